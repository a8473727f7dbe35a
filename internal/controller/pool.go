package controller

import (
	"fmt"
	"log/slog"

	"github.com/cuongbtq/scan-control/internal/domain"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (c *Controller) spawnWorkerPool() {
	c.logger.Info("Spawning worker pool",
		slog.Int("concurrency", c.workers),
		slog.Int("queue_size", cap(c.tasks)),
	)

	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.workerLoop(i)
	}
}

// workerLoop is the main processing loop for each worker goroutine
func (c *Controller) workerLoop(workerNum int) {
	defer c.wg.Done()

	workerName := fmt.Sprintf("worker-%d", workerNum)
	c.logger.Debug("Worker goroutine started", slog.String("worker_name", workerName))

	for {
		select {
		case <-c.stopChan:
			c.logger.Debug("Worker goroutine stopping - stopChan closed",
				slog.String("worker_name", workerName),
			)
			return

		case t := <-c.tasks:
			c.logger.Info("Worker received job",
				slog.String("worker_name", workerName),
				slog.String("job_id", t.job.ID),
			)
			c.process(c.runCtx, t)
		}
	}
}

// drainQueue fails jobs that were queued but never picked up
func (c *Controller) drainQueue() {
	for {
		select {
		case t := <-c.tasks:
			c.registry.Remove(t.job.ID)
			c.finish(c.runCtx, t, domain.JobStatusFailed, reasonShutdown)
		default:
			return
		}
	}
}
