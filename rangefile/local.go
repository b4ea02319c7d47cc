package rangefile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// -----------------------------------------------------------------------------
// Filesystem Source
// -----------------------------------------------------------------------------

// FSSource implements Source over a local file.
//
// Each fetch opens the file, reads with ReadAt and closes it again, so an
// FSSource holds no descriptor between calls.
type FSSource struct {
	path   string
	name   string
	size   int64
	gate   *Gate
	logger logrus.FieldLogger
}

// NewFSSource stats path and returns a Source for it.
// Returns ErrNotFound if the file does not exist.
func NewFSSource(path string, opts ...Option) (*FSSource, error) {
	cfg, err := ResolveSourceOptions(opts...)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, ErrInvalidLocator
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrInvalidLocator, path)
	}

	return &FSSource{
		path:   path,
		name:   filepath.Base(path),
		size:   info.Size(),
		gate:   cfg.GateFor(FamilyFile),
		logger: cfg.Logger.WithFields(logrus.Fields{"family": FamilyFile, "locator": path}),
	}, nil
}

// Name returns the base name of the file.
func (s *FSSource) Name() string { return s.name }

// Size returns the file size observed at construction.
func (s *FSSource) Size() int64 { return s.size }

// FetchRange reads [start, stop] from the file.
func (s *FSSource) FetchRange(ctx context.Context, start, stop int64) ([]byte, error) {
	stop, ok, err := ValidateRange(start, stop, s.size)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []byte{}, nil
	}

	s.logger.WithFields(logrus.Fields{"start": start, "stop": stop}).Debug("range read")

	return s.gate.Do(ctx, OpFetch, func(context.Context) ([]byte, error) {
		file, err := os.Open(s.path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRemoteFetchFailed, err)
		}
		defer func() { _ = file.Close() }()

		buf := make([]byte, stop-start+1)
		n, err := file.ReadAt(buf, start)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %w", ErrRemoteFetchFailed, err)
		}
		return buf[:n], nil
	})
}

// -----------------------------------------------------------------------------
// Memory Source
// -----------------------------------------------------------------------------

// MemorySource implements Source over an in-memory byte slice.
// It is safe for concurrent use.
type MemorySource struct {
	name string
	data []byte
	gate *Gate
}

// NewMemorySource copies data and returns a Source for it.
func NewMemorySource(name string, data []byte, opts ...Option) (*MemorySource, error) {
	cfg, err := ResolveSourceOptions(opts...)
	if err != nil {
		return nil, err
	}
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)
	return &MemorySource{
		name: name,
		data: dataCopy,
		gate: cfg.GateFor(FamilyMemory),
	}, nil
}

// Name returns the name given at construction.
func (m *MemorySource) Name() string { return m.name }

// Size returns the length of the data.
func (m *MemorySource) Size() int64 { return int64(len(m.data)) }

// FetchRange returns a copy of data[start:stop+1].
func (m *MemorySource) FetchRange(ctx context.Context, start, stop int64) ([]byte, error) {
	stop, ok, err := ValidateRange(start, stop, m.Size())
	if err != nil {
		return nil, err
	}
	if !ok {
		return []byte{}, nil
	}
	return m.gate.Do(ctx, OpFetch, func(context.Context) ([]byte, error) {
		out := make([]byte, stop-start+1)
		copy(out, m.data[start:stop+1])
		return out, nil
	})
}

var (
	_ Source = (*FSSource)(nil)
	_ Source = (*MemorySource)(nil)
)
