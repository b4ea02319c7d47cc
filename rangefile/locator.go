package rangefile

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// Locator is a parsed object address.
type Locator struct {
	// Raw is the locator as given.
	Raw string

	// Scheme is the lower-cased URL scheme, "file" for bare paths.
	Scheme string

	// Bucket is the host segment of an object-storage locator.
	Bucket string

	// Key is everything after the bucket for object storage, or the path
	// for file locators. Empty for http(s).
	Key string

	// Name is the last path segment, used for display.
	Name string
}

// objectStorageSchemes address objects as scheme://bucket/key.
var objectStorageSchemes = map[string]bool{
	"s3": true,
}

// ParseLocator splits a locator into its scheme, bucket, key and name.
//
// Accepted forms are http(s)://host/path, s3://bucket/key, file:///path,
// mem://name and bare filesystem paths.
func ParseLocator(raw string) (Locator, error) {
	if raw == "" {
		return Locator{}, fmt.Errorf("%w: empty", ErrInvalidLocator)
	}
	if !strings.Contains(raw, "://") {
		return Locator{Raw: raw, Scheme: "file", Key: raw, Name: displayName(raw)}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Locator{}, fmt.Errorf("%w: %v", ErrInvalidLocator, err)
	}
	loc := Locator{
		Raw:    raw,
		Scheme: strings.ToLower(u.Scheme),
		Name:   displayName(u.Path),
	}

	switch {
	case objectStorageSchemes[loc.Scheme]:
		loc.Bucket = u.Host
		loc.Key = strings.TrimPrefix(u.Path, "/")
		if loc.Bucket == "" || loc.Key == "" {
			return Locator{}, fmt.Errorf("%w: %q needs %s://bucket/key", ErrInvalidLocator, raw, loc.Scheme)
		}
	case loc.Scheme == "file":
		loc.Key = u.Path
		if loc.Key == "" {
			return Locator{}, fmt.Errorf("%w: %q has no path", ErrInvalidLocator, raw)
		}
	case loc.Scheme == "mem":
		loc.Key = u.Host + u.Path
		loc.Name = displayName(loc.Key)
	case loc.Scheme == "http" || loc.Scheme == "https":
		if u.Host == "" {
			return Locator{}, fmt.Errorf("%w: %q has no host", ErrInvalidLocator, raw)
		}
	}
	return loc, nil
}

// -----------------------------------------------------------------------------
// Resolver
// -----------------------------------------------------------------------------

// Resolver maps locator schemes to Openers.
// It is safe for concurrent use.
type Resolver struct {
	mu      sync.RWMutex
	openers map[string]Opener
}

// NewResolver returns a Resolver that knows http, https and file.
// Object storage schemes are added with Register, for example
// r.Register("s3", s3.Opener(client)).
func NewResolver() *Resolver {
	r := &Resolver{openers: make(map[string]Opener)}
	r.Register("http", openHTTP)
	r.Register("https", openHTTP)
	r.Register("file", openFS)
	return r
}

// Register sets the Opener for scheme, replacing any previous one.
func (r *Resolver) Register(scheme string, o Opener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.openers[strings.ToLower(scheme)] = o
}

// Has reports whether an Opener is registered for scheme.
func (r *Resolver) Has(scheme string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.openers[strings.ToLower(scheme)]
	return ok
}

// OpenSource parses locator and constructs a Source with the matching Opener.
func (r *Resolver) OpenSource(ctx context.Context, locator string, opts ...Option) (Source, error) {
	loc, err := ParseLocator(locator)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	open, ok := r.openers[loc.Scheme]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, loc.Scheme)
	}
	return open(ctx, locator, opts...)
}

// Open constructs a Source for locator and wraps it in a File.
// opts may mix source and file options.
func (r *Resolver) Open(ctx context.Context, locator string, opts ...Option) (*File, error) {
	sourceOpts, fileOpts, err := splitOptions(opts)
	if err != nil {
		return nil, err
	}
	src, err := r.OpenSource(ctx, locator, sourceOpts...)
	if err != nil {
		return nil, err
	}
	return NewFile(src, fileOpts...)
}

func openHTTP(ctx context.Context, locator string, opts ...Option) (Source, error) {
	return NewHTTPSource(ctx, locator, opts...)
}

func openFS(_ context.Context, locator string, opts ...Option) (Source, error) {
	loc, err := ParseLocator(locator)
	if err != nil {
		return nil, err
	}
	return NewFSSource(loc.Key, opts...)
}

// defaultResolver backs the package-level Open.
var defaultResolver = NewResolver()

// Open opens locator with the default resolver, which handles http, https
// and file locators.
func Open(ctx context.Context, locator string, opts ...Option) (*File, error) {
	return defaultResolver.Open(ctx, locator, opts...)
}
