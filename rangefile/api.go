// Package rangefile provides buffered, seekable, file-like access to remote
// objects that can be addressed by byte range.
//
// A File reads through a Source, which fetches inclusive byte ranges from an
// HTTP resource, an S3 object, a local file, or memory. File keeps a
// read-ahead cache so that sequential scans cost one round trip per
// read-ahead window rather than one per call.
package rangefile

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

// DefaultReadAheadSize is the number of bytes a File requests from its Source
// on a cache miss unless a larger read is pending.
const DefaultReadAheadSize = 1_000_000

// UnknownSize is reported by Source.Size when the backend could not report a
// total size. It is treated as "very large".
const UnknownSize = int64(math.MaxInt64)

// OpenEnded as the stop argument of FetchRange requests everything from start
// through the end of the object.
const OpenEnded = int64(-1)

// Backend families. Sources of one family share a Gate by default.
const (
	FamilyHTTP   = "http"
	FamilyS3     = "s3"
	FamilyFile   = "file"
	FamilyMemory = "memory"
)

// -----------------------------------------------------------------------------
// Source interface
// -----------------------------------------------------------------------------

// Source fetches byte ranges from a single object of known total size.
//
// Implementations resolve Name and Size once at construction; both are
// immutable afterwards.
type Source interface {
	// Name returns the display name derived from the locator's path.
	Name() string

	// Size returns the total object size, or UnknownSize.
	Size() int64

	// FetchRange returns the bytes in [start, stop], or [start, end-of-object]
	// when stop is OpenEnded. The result may be shorter than requested at the
	// end of the object.
	FetchRange(ctx context.Context, start, stop int64) ([]byte, error)
}

// Opener constructs a Source from a locator string.
type Opener func(ctx context.Context, locator string, opts ...Option) (Source, error)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

// Error sentinel values for common conditions.
var (
	// ErrNotFound indicates the remote object does not exist.
	ErrNotFound = errNotFound{}

	// ErrUnsupportedRangeRequests indicates the remote does not advertise
	// byte range support.
	ErrUnsupportedRangeRequests = errors.New("remote does not support byte range requests")

	// ErrInvalidSeek indicates a negative resulting position or an
	// unsupported whence.
	ErrInvalidSeek = errors.New("invalid seek")

	// ErrRemoteFetchFailed wraps transport and service failures.
	ErrRemoteFetchFailed = errors.New("remote fetch failed")

	// ErrObjectChanged indicates the remote object no longer matches the
	// version observed at construction.
	ErrObjectChanged = errors.New("remote object changed")

	// ErrInvalidRange indicates malformed FetchRange arguments.
	ErrInvalidRange = errors.New("invalid byte range")

	// ErrInvalidLocator indicates a locator that cannot address an object.
	ErrInvalidLocator = errors.New("invalid locator")

	// ErrUnknownScheme indicates no Opener is registered for a scheme.
	ErrUnknownScheme = errors.New("unknown locator scheme")
)

type errNotFound struct{}

func (errNotFound) Error() string { return "not found" }

// ValidateRange checks FetchRange arguments and clamps stop to size.
// ok is false when the range starts at or past a known end of object, in
// which case there is nothing to fetch.
func ValidateRange(start, stop, size int64) (clampedStop int64, ok bool, err error) {
	if start < 0 || (stop != OpenEnded && stop < start) {
		return 0, false, fmt.Errorf("%w: [%d, %d]", ErrInvalidRange, start, stop)
	}
	if size == UnknownSize {
		return stop, true, nil
	}
	if start >= size {
		return stop, false, nil
	}
	if stop == OpenEnded || stop > size-1 {
		stop = size - 1
	}
	return stop, true, nil
}

// RangeHeader formats an HTTP Range header value for an inclusive range.
func RangeHeader(start, stop int64) string {
	if stop == OpenEnded {
		return fmt.Sprintf("bytes=%d-", start)
	}
	return fmt.Sprintf("bytes=%d-%d", start, stop)
}
