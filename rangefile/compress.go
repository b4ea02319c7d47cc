package rangefile

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// Decompressor inflates a compressed block read from a File.
//
// Binary container formats frequently store independently compressed blocks
// at known offsets; ReadBlock pairs a sized read with one of these.
type Decompressor interface {
	// Name returns the decompressor identifier (for example, "zlib" or "zstd").
	Name() string

	// Decompress wraps a reader with decompression.
	Decompress(r io.Reader) (io.ReadCloser, error)
}

// -----------------------------------------------------------------------------
// Zlib
// -----------------------------------------------------------------------------

type zlibDecompressor struct{}

// NewZlibDecompressor returns a Decompressor for zlib (RFC 1950) streams.
func NewZlibDecompressor() Decompressor { return zlibDecompressor{} }

func (zlibDecompressor) Name() string { return "zlib" }

func (zlibDecompressor) Decompress(r io.Reader) (io.ReadCloser, error) {
	return zlib.NewReader(r)
}

// -----------------------------------------------------------------------------
// Gzip
// -----------------------------------------------------------------------------

type gzipDecompressor struct{}

// NewGzipDecompressor returns a Decompressor for gzip streams.
func NewGzipDecompressor() Decompressor { return gzipDecompressor{} }

func (gzipDecompressor) Name() string { return "gzip" }

func (gzipDecompressor) Decompress(r io.Reader) (io.ReadCloser, error) {
	return gzip.NewReader(r)
}

// -----------------------------------------------------------------------------
// Zstd
// -----------------------------------------------------------------------------

type zstdDecompressor struct{}

// NewZstdDecompressor returns a Decompressor for Zstandard frames.
func NewZstdDecompressor() Decompressor { return zstdDecompressor{} }

func (zstdDecompressor) Name() string { return "zstd" }

func (zstdDecompressor) Decompress(r io.Reader) (io.ReadCloser, error) {
	decoder, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	return decoder.IOReadCloser(), nil
}

// -----------------------------------------------------------------------------
// NoOp
// -----------------------------------------------------------------------------

type noopDecompressor struct{}

// NewNoOpDecompressor returns a Decompressor that passes data through.
func NewNoOpDecompressor() Decompressor { return noopDecompressor{} }

func (noopDecompressor) Name() string { return "noop" }

func (noopDecompressor) Decompress(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(r), nil
}

// DecompressorByName returns the Decompressor registered under name.
func DecompressorByName(name string) (Decompressor, error) {
	switch name {
	case "zlib":
		return NewZlibDecompressor(), nil
	case "gzip":
		return NewGzipDecompressor(), nil
	case "zstd":
		return NewZstdDecompressor(), nil
	case "noop", "":
		return NewNoOpDecompressor(), nil
	}
	return nil, fmt.Errorf("rangefile: unknown decompressor %q", name)
}

// ReadBlock reads exactly size bytes from the current position and returns
// them decompressed with d. A block cut short by the end of the object
// returns io.ErrUnexpectedEOF; the position has still advanced past the
// bytes that were read.
func (f *File) ReadBlock(ctx context.Context, size int64, d Decompressor) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("rangefile: block size must be positive, got %d", size)
	}
	raw, err := f.ReadN(ctx, size)
	if err != nil {
		return nil, err
	}
	if int64(len(raw)) < size {
		return nil, fmt.Errorf("block of %d bytes at offset %d: %w", size, f.Tell()-int64(len(raw)), io.ErrUnexpectedEOF)
	}

	rc, err := d.Decompress(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%s block: %w", d.Name(), err)
	}
	defer func() { _ = rc.Close() }()

	out, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%s block: %w", d.Name(), err)
	}
	return out, nil
}
