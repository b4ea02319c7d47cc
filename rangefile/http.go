package rangefile

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// -----------------------------------------------------------------------------
// HTTP Source
// -----------------------------------------------------------------------------

// validators holds the response headers that identify an object version.
type validators struct {
	etag         string
	lastModified string
}

func validatorsFrom(h http.Header) validators {
	return validators{
		etag:         h.Get("ETag"),
		lastModified: h.Get("Last-Modified"),
	}
}

// apply adds conditional headers so that a changed object fails with 412.
func (v validators) apply(h http.Header) {
	if v.etag != "" {
		h.Set("If-Match", v.etag)
	}
	if v.lastModified != "" {
		h.Set("If-Unmodified-Since", v.lastModified)
	}
}

// HTTPSource implements Source with HTTP Range requests.
type HTTPSource struct {
	client *http.Client
	gate   *Gate
	header http.Header
	logger logrus.FieldLogger

	url  string
	name string
	size int64
	meta validators
}

// NewHTTPSource probes rawURL with a HEAD request and returns a Source for it.
//
// The server must advertise "Accept-Ranges: bytes"; otherwise
// ErrUnsupportedRangeRequests is returned. A missing or malformed
// Content-Length yields UnknownSize.
func NewHTTPSource(ctx context.Context, rawURL string, opts ...Option) (*HTTPSource, error) {
	cfg, err := ResolveSourceOptions(opts...)
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLocator, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q is not an http(s) url", ErrInvalidLocator, rawURL)
	}

	s := &HTTPSource{
		client: cfg.HTTPClient,
		gate:   cfg.GateFor(FamilyHTTP),
		header: cfg.Header,
		logger: cfg.Logger.WithFields(logrus.Fields{"family": FamilyHTTP, "locator": rawURL}),
		url:    rawURL,
		name:   displayName(u.Path),
	}

	var (
		probe  http.Header
		length int64 = -1
	)
	_, err = s.gate.Do(ctx, OpProbe, func(ctx context.Context) ([]byte, error) {
		req, err := s.newRequest(ctx, http.MethodHead)
		if err != nil {
			return nil, err
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: HEAD %s: %w", ErrRemoteFetchFailed, rawURL, err)
		}
		_ = resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, fmt.Errorf("HEAD %s: %w", rawURL, ErrNotFound)
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			return nil, fmt.Errorf("%w: HEAD %s returned %s", ErrRemoteFetchFailed, rawURL, resp.Status)
		}
		probe = resp.Header
		length = resp.ContentLength
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	if !acceptsByteRanges(probe) {
		s.logger.WithField("accept_ranges", probe.Get("Accept-Ranges")).Warn("server rejects range requests")
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedRangeRequests, rawURL)
	}

	s.size = UnknownSize
	if length >= 0 {
		s.size = length
	} else if cl := probe.Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil && n >= 0 {
			s.size = n
		}
	}
	s.meta = validatorsFrom(probe)
	return s, nil
}

// Name returns the last path segment of the URL.
func (s *HTTPSource) Name() string { return s.name }

// Size returns the Content-Length reported by the probe, or UnknownSize.
func (s *HTTPSource) Size() int64 { return s.size }

// URL returns the URL the source reads.
func (s *HTTPSource) URL() string { return s.url }

// FetchRange issues a conditional GET with Range: bytes=start-stop.
func (s *HTTPSource) FetchRange(ctx context.Context, start, stop int64) ([]byte, error) {
	stop, ok, err := ValidateRange(start, stop, s.size)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []byte{}, nil
	}

	s.logger.WithFields(logrus.Fields{"start": start, "stop": stop}).Debug("range request")

	return s.gate.Do(ctx, OpFetch, func(ctx context.Context) ([]byte, error) {
		req, err := s.newRequest(ctx, http.MethodGet)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Range", RangeHeader(start, stop))
		s.meta.apply(req.Header)

		resp, err := s.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: GET %s: %w", ErrRemoteFetchFailed, s.url, err)
		}
		defer func() { _ = resp.Body.Close() }()

		switch resp.StatusCode {
		case http.StatusPartialContent:
			if first, ok := contentRangeStart(resp.Header.Get("Content-Range")); ok && first != start {
				return nil, fmt.Errorf("%w: GET %s returned bytes from %d, requested %d",
					ErrRemoteFetchFailed, s.url, first, start)
			}
		case http.StatusOK:
			// The server ignored Range and sent the whole object. That body
			// is only usable when the range starts at 0.
			if start != 0 {
				return nil, fmt.Errorf("%w: GET %s ignored Range header", ErrRemoteFetchFailed, s.url)
			}
		case http.StatusRequestedRangeNotSatisfiable:
			return []byte{}, nil
		case http.StatusPreconditionFailed:
			return nil, fmt.Errorf("%w: GET %s: %w", ErrRemoteFetchFailed, s.url, ErrObjectChanged)
		default:
			return nil, fmt.Errorf("%w: GET %s returned %s", ErrRemoteFetchFailed, s.url, resp.Status)
		}

		var body io.Reader = resp.Body
		if stop != OpenEnded {
			body = io.LimitReader(resp.Body, stop-start+1)
		}
		data, err := io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("%w: reading body of %s: %w", ErrRemoteFetchFailed, s.url, err)
		}
		return data, nil
	})
}

// contentRangeStart returns the first offset of a "bytes first-last/size"
// Content-Range value. ok is false when the header is absent or unparsable.
func contentRangeStart(h string) (first int64, ok bool) {
	rng, found := strings.CutPrefix(h, "bytes ")
	if !found {
		return 0, false
	}
	lo, _, found := strings.Cut(rng, "-")
	if !found {
		return 0, false
	}
	first, err := strconv.ParseInt(strings.TrimSpace(lo), 10, 64)
	if err != nil {
		return 0, false
	}
	return first, true
}

func (s *HTTPSource) newRequest(ctx context.Context, method string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLocator, err)
	}
	for k, vs := range s.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return req, nil
}

// acceptsByteRanges reports whether an Accept-Ranges header lists "bytes".
func acceptsByteRanges(h http.Header) bool {
	for _, v := range h.Values("Accept-Ranges") {
		for _, tok := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(tok), "bytes") {
				return true
			}
		}
	}
	return false
}

// displayName returns the last element of a slash-separated path, or "" for
// an empty or root path.
func displayName(p string) string {
	name := path.Base(p)
	if name == "." || name == "/" {
		return ""
	}
	return name
}

var _ Source = (*HTTPSource)(nil)
