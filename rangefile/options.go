package rangefile

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
)

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// fileConfig holds the resolved configuration for a File.
type fileConfig struct {
	readAhead int64
	logger    logrus.FieldLogger
	ctx       context.Context
}

// SourceSettings holds the resolved configuration for a Source.
// Backend packages outside rangefile obtain it from ResolveSourceOptions.
type SourceSettings struct {
	// Gate serializes network calls. Nil means the family's SharedGate.
	Gate *Gate

	// Logger receives per-fetch debug output.
	Logger logrus.FieldLogger

	// HTTPClient is used by HTTP sources.
	HTTPClient *http.Client

	// Header is added to every HTTP request.
	Header http.Header
}

// GateFor returns the configured gate or the shared gate for family.
func (s SourceSettings) GateFor(family string) *Gate {
	if s.Gate != nil {
		return s.Gate
	}
	return SharedGate(family)
}

// Option configures File or Source construction.
// Options implement methods for the constructors they support.
// Using an option with an unsupported constructor returns an error.
type Option interface {
	applyFile(*fileConfig) error
	applySource(*SourceSettings) error
}

// ErrOptionNotValidForFile indicates an option was used with NewFile
// that only applies to sources.
var ErrOptionNotValidForFile = errors.New("option not valid for file")

// ErrOptionNotValidForSource indicates an option was used with a Source
// constructor that only applies to NewFile.
var ErrOptionNotValidForSource = errors.New("option not valid for source")

// readAheadOption implements Option for WithReadAhead (file-only).
type readAheadOption struct {
	n int64
}

// WithReadAhead sets the minimum number of bytes fetched on a cache miss.
// Default: DefaultReadAheadSize. n must be positive.
// This option is only valid for NewFile.
func WithReadAhead(n int64) Option {
	return &readAheadOption{n: n}
}

func (o *readAheadOption) applyFile(cfg *fileConfig) error {
	if o.n <= 0 {
		return fmt.Errorf("WithReadAhead: size must be positive, got %d", o.n)
	}
	cfg.readAhead = o.n
	return nil
}

func (o *readAheadOption) applySource(*SourceSettings) error {
	return fmt.Errorf("WithReadAhead: %w", ErrOptionNotValidForSource)
}

// loggerOption implements Option for WithLogger.
type loggerOption struct {
	logger logrus.FieldLogger
}

// WithLogger sets the logger for a File or Source.
// Default: logrus.StandardLogger().
func WithLogger(l logrus.FieldLogger) Option {
	return &loggerOption{logger: l}
}

func (o *loggerOption) applyFile(cfg *fileConfig) error {
	cfg.logger = o.logger
	return nil
}

func (o *loggerOption) applySource(cfg *SourceSettings) error {
	cfg.Logger = o.logger
	return nil
}

// contextOption implements Option for WithContext (file-only).
type contextOption struct {
	ctx context.Context
}

// WithContext sets the context that File.Read passes to the source, so
// io.Reader consumers can cancel a stalled fetch.
// Default: context.Background().
// This option is only valid for NewFile.
func WithContext(ctx context.Context) Option {
	return &contextOption{ctx: ctx}
}

func (o *contextOption) applyFile(cfg *fileConfig) error {
	if o.ctx == nil {
		return errors.New("WithContext: context must not be nil")
	}
	cfg.ctx = o.ctx
	return nil
}

func (o *contextOption) applySource(*SourceSettings) error {
	return fmt.Errorf("WithContext: %w", ErrOptionNotValidForSource)
}

// gateOption implements Option for WithGate (source-only).
type gateOption struct {
	gate *Gate
}

// WithGate routes a source's network calls through g instead of the shared
// gate for its family.
// This option is only valid for sources.
func WithGate(g *Gate) Option {
	return &gateOption{gate: g}
}

func (o *gateOption) applyFile(*fileConfig) error {
	return fmt.Errorf("WithGate: %w", ErrOptionNotValidForFile)
}

func (o *gateOption) applySource(cfg *SourceSettings) error {
	cfg.Gate = o.gate
	return nil
}

// httpClientOption implements Option for WithHTTPClient (source-only).
type httpClientOption struct {
	client *http.Client
}

// WithHTTPClient sets the client used by HTTP sources.
// Default: http.DefaultClient.
func WithHTTPClient(c *http.Client) Option {
	return &httpClientOption{client: c}
}

func (o *httpClientOption) applyFile(*fileConfig) error {
	return fmt.Errorf("WithHTTPClient: %w", ErrOptionNotValidForFile)
}

func (o *httpClientOption) applySource(cfg *SourceSettings) error {
	cfg.HTTPClient = o.client
	return nil
}

// headerOption implements Option for WithHeader (source-only).
type headerOption struct {
	key, value string
}

// WithHeader adds a header to every request an HTTP source sends,
// for example an Authorization header.
func WithHeader(key, value string) Option {
	return &headerOption{key: key, value: value}
}

func (o *headerOption) applyFile(*fileConfig) error {
	return fmt.Errorf("WithHeader: %w", ErrOptionNotValidForFile)
}

func (o *headerOption) applySource(cfg *SourceSettings) error {
	if cfg.Header == nil {
		cfg.Header = make(http.Header)
	}
	cfg.Header.Add(o.key, o.value)
	return nil
}

// -----------------------------------------------------------------------------
// Resolution
// -----------------------------------------------------------------------------

func resolveFileOptions(opts []Option) (fileConfig, error) {
	cfg := fileConfig{
		readAhead: DefaultReadAheadSize,
		logger:    logrus.StandardLogger(),
		ctx:       context.Background(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyFile(&cfg); err != nil {
			return fileConfig{}, err
		}
	}
	if cfg.logger == nil {
		cfg.logger = logrus.StandardLogger()
	}
	return cfg, nil
}

// ResolveSourceOptions applies opts to a default SourceSettings.
func ResolveSourceOptions(opts ...Option) (SourceSettings, error) {
	cfg := SourceSettings{
		Logger:     logrus.StandardLogger(),
		HTTPClient: http.DefaultClient,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applySource(&cfg); err != nil {
			return SourceSettings{}, err
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	return cfg, nil
}

// splitOptions separates options for a combined source + file construction.
// An option must be valid for at least one of the two.
func splitOptions(opts []Option) (sourceOpts, fileOpts []Option, err error) {
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		srcErr := opt.applySource(&SourceSettings{})
		fileErr := opt.applyFile(&fileConfig{})
		if srcErr == nil {
			sourceOpts = append(sourceOpts, opt)
		}
		if fileErr == nil {
			fileOpts = append(fileOpts, opt)
		}
		if srcErr != nil && fileErr != nil {
			if errors.Is(srcErr, ErrOptionNotValidForSource) {
				return nil, nil, fileErr
			}
			return nil, nil, srcErr
		}
	}
	return sourceOpts, fileOpts, nil
}
