package rangefile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

// json is a drop-in replacement for encoding/json with better performance.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Stats counts the traffic of a File since it was created.
type Stats struct {
	// Fetches is the number of FetchRange calls that succeeded.
	Fetches int `json:"fetches"`

	// BytesFetched is the total returned by those calls.
	BytesFetched int64 `json:"bytes_fetched"`

	// BytesDelivered is the total handed to the caller.
	BytesDelivered int64 `json:"bytes_delivered"`
}

// JSON encodes the stats as a JSON object.
func (s Stats) JSON() ([]byte, error) {
	return json.Marshal(s)
}

// File is a seekable, buffered reader over a Source.
//
// A File is not safe for concurrent use. Several Files may share one Source
// family; their network calls are serialized by the family's Gate.
type File struct {
	src       Source
	readAhead int64
	logger    logrus.FieldLogger
	ctx       context.Context

	cur   cursor
	cache pendingCache
	stats Stats
}

// NewFile wraps src in a File positioned at offset 0.
func NewFile(src Source, opts ...Option) (*File, error) {
	if src == nil {
		return nil, errors.New("rangefile: source is required")
	}
	cfg, err := resolveFileOptions(opts)
	if err != nil {
		return nil, err
	}
	return &File{
		src:       src,
		readAhead: cfg.readAhead,
		logger:    cfg.logger.WithField("name", src.Name()),
		ctx:       cfg.ctx,
	}, nil
}

// Name returns the display name of the underlying object.
func (f *File) Name() string { return f.src.Name() }

// Size returns the total size of the underlying object, or UnknownSize.
func (f *File) Size() int64 { return f.src.Size() }

// Source returns the Source the File reads from.
func (f *File) Source() Source { return f.src }

// Stats returns traffic counters.
func (f *File) Stats() Stats { return f.stats }

// Tell returns the caller-visible position.
func (f *File) Tell() int64 { return f.cur.buffer }

// Seek sets the position for the next read. whence must be io.SeekStart or
// io.SeekCurrent. Seeking always discards read-ahead data.
// On error the File is left unchanged.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = f.cur.buffer + offset
	default:
		return f.cur.buffer, fmt.Errorf("%w: whence %d", ErrInvalidSeek, whence)
	}
	if pos < 0 {
		return f.cur.buffer, fmt.Errorf("%w: offset %d", ErrInvalidSeek, pos)
	}

	f.cur.reset(pos)
	f.cache.clear()
	return pos, nil
}

// ReadN returns up to size bytes from the current position.
//
// A short result means the end of the object was reached; it is not an
// error. A size that runs past the largest representable offset reads to
// the end of the object. size == 0 returns an empty slice without fetching. A negative size
// reads everything from the current position to the end of the object.
func (f *File) ReadN(ctx context.Context, size int64) ([]byte, error) {
	switch {
	case size == 0:
		return []byte{}, nil
	case size < 0:
		if err := f.fill(ctx, OpenEnded); err != nil {
			return nil, err
		}
		return f.deliver(int64(f.cache.Len())), nil
	}

	if int64(f.cache.Len()) < size {
		if err := f.fill(ctx, max(f.readAhead, size)); err != nil {
			return nil, err
		}
	}
	return f.deliver(size), nil
}

// Read implements io.Reader. It returns io.EOF once no bytes remain.
// Fetches run under the context set with WithContext; use ReadN to bound a
// single read.
func (f *File) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	data, err := f.ReadN(f.ctx, int64(len(p)))
	if err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, io.EOF
	}
	return copy(p, data), nil
}

// Close discards the cache and rewinds to offset 0. The File stays usable;
// there is no remote state to release.
func (f *File) Close() error {
	_, err := f.Seek(0, io.SeekStart)
	return err
}

// fill appends the next n bytes from the remote position to the cache, or
// everything up to the end of the object when n is OpenEnded. On error the
// cursor and cache are left as they were.
func (f *File) fill(ctx context.Context, n int64) error {
	if f.cur.exhausted(f.src.Size()) {
		return nil
	}

	start := f.cur.remote
	stop := OpenEnded
	if n != OpenEnded && n-1 <= math.MaxInt64-start {
		stop = start + n - 1
	}

	data, err := f.src.FetchRange(ctx, start, stop)
	if err != nil {
		f.logger.WithError(err).WithField("start", start).Debug("fill failed")
		return err
	}

	f.cache.push(data)
	f.cur.fetched(int64(len(data)), n)
	f.stats.Fetches++
	f.stats.BytesFetched += int64(len(data))

	f.logger.WithFields(logrus.Fields{
		"start":     start,
		"requested": n,
		"received":  len(data),
	}).Debug("cache filled")
	return nil
}

// deliver pops up to n bytes from the cache and advances the buffer cursor.
func (f *File) deliver(n int64) []byte {
	data := f.cache.pop(int(min(n, int64(f.cache.Len()))))
	f.cur.consumed(int64(len(data)))
	f.stats.BytesDelivered += int64(len(data))
	return data
}

// Compile-time interface satisfaction checks
var (
	_ io.Reader     = (*File)(nil)
	_ io.Seeker     = (*File)(nil)
	_ io.ReadSeeker = (*File)(nil)
	_ io.Closer     = (*File)(nil)
)
