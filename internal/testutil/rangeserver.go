// Package testutil provides helpers for examples and tests.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
)

// RangeServer is an httptest.Server that serves one object with HTTP Range
// semantics and records the requests it receives.
type RangeServer struct {
	*httptest.Server

	mu       sync.Mutex
	data     []byte
	etag     string
	heads    int
	ranges   []string
	failWith int

	noRanges        bool
	noContentLength bool
	ignoreRange     bool
}

// ServerOption configures a RangeServer.
type ServerOption func(*RangeServer)

// WithoutRangeSupport omits Accept-Ranges from HEAD responses.
func WithoutRangeSupport() ServerOption {
	return func(s *RangeServer) { s.noRanges = true }
}

// WithoutContentLength omits Content-Length from HEAD responses.
func WithoutContentLength() ServerOption {
	return func(s *RangeServer) { s.noContentLength = true }
}

// IgnoringRange answers every GET with 200 and the whole object.
func IgnoringRange() ServerOption {
	return func(s *RangeServer) { s.ignoreRange = true }
}

// WithETag sets the initial ETag of the object.
func WithETag(etag string) ServerOption {
	return func(s *RangeServer) { s.etag = etag }
}

// NewRangeServer starts a server for data. Close it when done.
//
// Usage:
//
//	srv := testutil.NewRangeServer([]byte("hello"))
//	defer srv.Close()
func NewRangeServer(data []byte, opts ...ServerOption) *RangeServer {
	s := &RangeServer{data: append([]byte(nil), data...)}
	for _, opt := range opts {
		opt(s)
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// Replace swaps the served object and its ETag, simulating a remote update.
func (s *RangeServer) Replace(data []byte, etag string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append([]byte(nil), data...)
	s.etag = etag
}

// FailWith makes every subsequent GET answer with status. Zero restores
// normal behavior.
func (s *RangeServer) FailWith(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = status
}

// Heads returns the number of HEAD requests served.
func (s *RangeServer) Heads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heads
}

// Ranges returns the Range header of every GET served, in order.
func (s *RangeServer) Ranges() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ranges...)
}

func (s *RangeServer) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	data, etag, failWith := s.data, s.etag, s.failWith
	switch r.Method {
	case http.MethodHead:
		s.heads++
	case http.MethodGet:
		s.ranges = append(s.ranges, r.Header.Get("Range"))
	}
	s.mu.Unlock()

	if etag != "" {
		w.Header().Set("ETag", etag)
	}

	switch r.Method {
	case http.MethodHead:
		if !s.noRanges {
			w.Header().Set("Accept-Ranges", "bytes")
		}
		if !s.noContentLength {
			w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		}
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		if failWith != 0 {
			http.Error(w, "injected failure", failWith)
			return
		}
		if m := r.Header.Get("If-Match"); m != "" && m != etag {
			http.Error(w, "precondition failed", http.StatusPreconditionFailed)
			return
		}
		if s.ignoreRange {
			w.Header().Set("Content-Length", strconv.Itoa(len(data)))
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(data)
			return
		}

		start, end, ok := parseRange(r.Header.Get("Range"), len(data))
		if !ok {
			http.Error(w, "Bad Range", http.StatusBadRequest)
			return
		}
		if start >= len(data) {
			w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", len(data)))
			http.Error(w, "Invalid Range", http.StatusRequestedRangeNotSatisfiable)
			return
		}
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(data)))
		w.Header().Set("Content-Length", strconv.Itoa(end-start+1))
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(data[start : end+1])
	default:
		http.Error(w, "unsupported method", http.StatusMethodNotAllowed)
	}
}

// parseRange parses "bytes=start-end" or "bytes=start-" and clamps end.
func parseRange(h string, size int) (start, end int, ok bool) {
	rng, found := strings.CutPrefix(h, "bytes=")
	if !found {
		return 0, 0, false
	}
	first, last, found := strings.Cut(rng, "-")
	if !found {
		return 0, 0, false
	}
	start, err := strconv.Atoi(first)
	if err != nil || start < 0 {
		return 0, 0, false
	}
	end = size - 1
	if last != "" {
		if end, err = strconv.Atoi(last); err != nil || end < start {
			return 0, 0, false
		}
	}
	if end > size-1 {
		end = size - 1
	}
	return start, end, true
}
