package rangefile

import (
	"context"
	"sync"
	"testing"
)

// -----------------------------------------------------------------------------
// Fault-Injection Source Wrapper (test-only)
// -----------------------------------------------------------------------------
//
// faultSource wraps a Source and enables deterministic fault injection for
// testing fill and rollback paths. It provides:
//   - Error injection on FetchRange
//   - Call observation/recording
//   - Truncation of results to simulate a shorter object than advertised

// fetchCall records the arguments of one FetchRange call.
type fetchCall struct {
	start, stop int64
}

// faultSource wraps a Source with fault injection capabilities.
type faultSource struct {
	inner Source

	mu sync.Mutex

	// Error injection: set to make FetchRange fail
	fetchErr error

	// truncateAt, if positive, hides every byte at or past this offset.
	truncateAt int64

	// sizeOverride, if non-zero, replaces the inner Size.
	sizeOverride int64

	calls []fetchCall
}

// newFaultSource creates a fault-injection wrapper around src.
func newFaultSource(src Source) *faultSource {
	return &faultSource{inner: src}
}

// SetFetchError sets an error to be returned by FetchRange calls.
// Pass nil to clear.
func (f *faultSource) SetFetchError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchErr = err
}

// Calls returns a copy of the recorded FetchRange calls.
func (f *faultSource) Calls() []fetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fetchCall(nil), f.calls...)
}

// ResetCalls clears the recorded calls.
func (f *faultSource) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

func (f *faultSource) Name() string { return f.inner.Name() }

func (f *faultSource) Size() int64 {
	if f.sizeOverride != 0 {
		return f.sizeOverride
	}
	return f.inner.Size()
}

func (f *faultSource) FetchRange(ctx context.Context, start, stop int64) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fetchCall{start: start, stop: stop})
	err := f.fetchErr
	truncateAt := f.truncateAt
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	data, err := f.inner.FetchRange(ctx, start, stop)
	if err != nil {
		return nil, err
	}
	if truncateAt > 0 {
		if start >= truncateAt {
			return []byte{}, nil
		}
		if start+int64(len(data)) > truncateAt {
			data = data[:truncateAt-start]
		}
	}
	return data, nil
}

// newTestFile builds a File over a faultSource wrapping an in-memory object.
func newTestFile(t testing.TB, data []byte, readAhead int64) (*File, *faultSource) {
	t.Helper()
	mem, err := NewMemorySource("test.bin", data, WithGate(NewGate(FamilyMemory, GateConfig{})))
	if err != nil {
		t.Fatalf("NewMemorySource: %v", err)
	}
	src := newFaultSource(mem)
	f, err := NewFile(src, WithReadAhead(readAhead))
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	return f, src
}
