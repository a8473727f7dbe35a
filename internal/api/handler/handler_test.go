package handler

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/scan-control/internal/controller"
	"github.com/cuongbtq/scan-control/internal/domain"
	"github.com/cuongbtq/scan-control/internal/storage"
)

func TestJobCursor_RoundTrip(t *testing.T) {
	in := &storage.JobCursor{
		CreatedAt: time.Date(2026, 5, 4, 13, 14, 15, 123456789, time.UTC),
		JobID:     "0b8f5c1e-6c2a-4a53-9a4e-4bb1f3f0c7de",
	}

	out, err := DecodeJobCursor(EncodeJobCursor(in))
	require.NoError(t, err)
	assert.Equal(t, in.JobID, out.JobID)
	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
}

func TestDecodeJobCursor_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		cursor string
	}{
		{name: "not base64", cursor: "***"},
		{name: "no separator", cursor: "bm90LWEtY3Vyc29y"},
		{name: "bad timestamp", cursor: "YWJjfGpvYg=="},
		{name: "empty id", cursor: "MTIzfA=="},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeJobCursor(tt.cursor)
			assert.Error(t, err)
		})
	}

	c, err := DecodeJobCursor("")
	assert.NoError(t, err)
	assert.Nil(t, c)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrJobNotFound, http.StatusNotFound},
		{fmt.Errorf("lookup: %w", domain.ErrScheduleNotFound), http.StatusNotFound},
		{domain.ErrResultNotFound, http.StatusNotFound},
		{domain.ErrJobNotRunning, http.StatusConflict},
		{domain.ErrInvalidTransition, http.StatusConflict},
		{domain.ErrScheduleNotPending, http.StatusConflict},
		{fmt.Errorf("failed to create job: %w", domain.ErrDuplicateName), http.StatusConflict},
		{domain.ErrUnknownKind, http.StatusBadRequest},
		{domain.ErrInvalidPayload, http.StatusBadRequest},
		{domain.ErrScheduleInPast, http.StatusBadRequest},
		{domain.ErrQueueFull, http.StatusServiceUnavailable},
		{controller.ErrStopped, http.StatusServiceUnavailable},
		{fmt.Errorf("connection refused"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
