package recon

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
)

type fakeResolver struct {
	a     map[string]string
	cname map[string][]string
	// prefixA resolves any name starting with a key
	prefixA map[string]string
}

func (f *fakeResolver) LookupA(_ context.Context, host string) (string, error) {
	if ip, ok := f.a[host]; ok {
		return ip, nil
	}
	for prefix, ip := range f.prefixA {
		if strings.HasPrefix(host, prefix) {
			return ip, nil
		}
	}
	return "", ErrNoRecord
}

func (f *fakeResolver) LookupCNAME(_ context.Context, host string) ([]string, error) {
	if chain, ok := f.cname[host]; ok {
		return chain, nil
	}
	return nil, ErrNoRecord
}

type fakeResponse struct {
	status int
	header http.Header
}

// fakeTransport answers by "scheme://host/path"; hosts absent from the map
// fail like an unreachable server.
type fakeTransport struct {
	mu        sync.Mutex
	responses map[string]fakeResponse
	calls     []string
}

func (f *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	key := req.URL.Scheme + "://" + req.URL.Host + req.URL.Path
	f.mu.Lock()
	f.calls = append(f.calls, key)
	resp, ok := f.responses[key]
	if !ok {
		resp, ok = f.responses[strings.TrimSuffix(key, "/")]
	}
	f.mu.Unlock()

	if !ok {
		return nil, errors.New("connection refused")
	}
	header := resp.header
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		StatusCode: resp.status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader("")),
		Request:    req,
	}, nil
}

type fakePassive struct {
	names []string
	err   error
}

func (f fakePassive) Subdomains(context.Context, string) ([]string, error) {
	return f.names, f.err
}

func secureHeaders() http.Header {
	h := http.Header{}
	for _, name := range SecurityHeaders {
		h.Set(name, "x")
	}
	return h
}

func fixedSuffix() func() int {
	n := 100000
	return func() int {
		n++
		return n
	}
}
