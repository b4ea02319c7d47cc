package rangefile

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/pithecene-io/rangefile/internal/testutil"
)

var objectData = []byte(strings.Repeat("0123456789abcdef", 16)) // 256 bytes

// privateGate keeps tests from sharing the process-wide HTTP gate.
func privateGate() Option {
	return WithGate(NewGate(FamilyHTTP, GateConfig{}))
}

// -----------------------------------------------------------------------------
// Probe
// -----------------------------------------------------------------------------

func TestNewHTTPSource_Probe(t *testing.T) {
	srv := testutil.NewRangeServer(objectData)
	defer srv.Close()

	src, err := NewHTTPSource(t.Context(), srv.URL+"/data/genome.bgen", privateGate())
	if err != nil {
		t.Fatalf("NewHTTPSource failed: %v", err)
	}
	if src.Size() != int64(len(objectData)) {
		t.Errorf("expected size %d, got %d", len(objectData), src.Size())
	}
	if src.Name() != "genome.bgen" {
		t.Errorf("expected name genome.bgen, got %q", src.Name())
	}
	if srv.Heads() != 1 {
		t.Errorf("expected 1 HEAD, got %d", srv.Heads())
	}
	if len(srv.Ranges()) != 0 {
		t.Errorf("expected no GET during probe, got %v", srv.Ranges())
	}
}

func TestNewHTTPSource_Errors(t *testing.T) {
	tests := []struct {
		name    string
		url     func(srv *testutil.RangeServer) string
		opts    []testutil.ServerOption
		wantErr error
	}{
		{
			name:    "no range support",
			url:     func(srv *testutil.RangeServer) string { return srv.URL + "/x" },
			opts:    []testutil.ServerOption{testutil.WithoutRangeSupport()},
			wantErr: ErrUnsupportedRangeRequests,
		},
		{
			name:    "bad scheme",
			url:     func(*testutil.RangeServer) string { return "ftp://example.com/x" },
			wantErr: ErrInvalidLocator,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testutil.NewRangeServer(objectData, tt.opts...)
			defer srv.Close()

			_, err := NewHTTPSource(t.Context(), tt.url(srv), privateGate())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestNewHTTPSource_StatusMapping(t *testing.T) {
	tests := []struct {
		status  int
		wantErr error
	}{
		{http.StatusNotFound, ErrNotFound},
		{http.StatusForbidden, ErrRemoteFetchFailed},
		{http.StatusInternalServerError, ErrRemoteFetchFailed},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := NewHTTPSource(t.Context(), srv.URL+"/x", privateGate())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestNewHTTPSource_UnknownSize(t *testing.T) {
	srv := testutil.NewRangeServer(objectData, testutil.WithoutContentLength())
	defer srv.Close()

	src, err := NewHTTPSource(t.Context(), srv.URL+"/x", privateGate())
	if err != nil {
		t.Fatal(err)
	}
	if src.Size() != UnknownSize {
		t.Errorf("expected UnknownSize, got %d", src.Size())
	}
}

func TestAcceptsByteRanges(t *testing.T) {
	tests := []struct {
		values []string
		want   bool
	}{
		{nil, false},
		{[]string{"none"}, false},
		{[]string{"bytes"}, true},
		{[]string{"Bytes"}, true},
		{[]string{"none, bytes"}, true},
		{[]string{"none", "bytes"}, true},
		{[]string{"bytesx"}, false},
	}
	for _, tt := range tests {
		h := http.Header{}
		for _, v := range tt.values {
			h.Add("Accept-Ranges", v)
		}
		if got := acceptsByteRanges(h); got != tt.want {
			t.Errorf("acceptsByteRanges(%q) = %v, want %v", tt.values, got, tt.want)
		}
	}
}

// -----------------------------------------------------------------------------
// FetchRange
// -----------------------------------------------------------------------------

func TestHTTPSource_FetchRange(t *testing.T) {
	srv := testutil.NewRangeServer(objectData)
	defer srv.Close()

	src, err := NewHTTPSource(t.Context(), srv.URL+"/x", privateGate())
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name        string
		start, stop int64
		want        []byte
		wantHeader  string
	}{
		{"head of object", 0, 15, objectData[:16], "bytes=0-15"},
		{"middle", 100, 109, objectData[100:110], "bytes=100-109"},
		{"clamped to size", 250, 300, objectData[250:], "bytes=250-255"},
		{"open-ended clamped to size", 240, OpenEnded, objectData[240:], "bytes=240-255"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(srv.Ranges())
			got, err := src.FetchRange(t.Context(), tt.start, tt.stop)
			if err != nil {
				t.Fatalf("FetchRange failed: %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
			ranges := srv.Ranges()[before:]
			if !slices.Equal(ranges, []string{tt.wantHeader}) {
				t.Errorf("expected Range %q, got %v", tt.wantHeader, ranges)
			}
		})
	}
}

func TestHTTPSource_FetchRange_PastEnd(t *testing.T) {
	t.Run("known size skips request", func(t *testing.T) {
		srv := testutil.NewRangeServer(objectData)
		defer srv.Close()

		src, err := NewHTTPSource(t.Context(), srv.URL+"/x", privateGate())
		if err != nil {
			t.Fatal(err)
		}
		got, err := src.FetchRange(t.Context(), 256, 300)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 0 {
			t.Errorf("expected empty, got %d bytes", len(got))
		}
		if len(srv.Ranges()) != 0 {
			t.Errorf("expected no GET, got %v", srv.Ranges())
		}
	})

	t.Run("unknown size maps 416 to empty", func(t *testing.T) {
		srv := testutil.NewRangeServer(objectData, testutil.WithoutContentLength())
		defer srv.Close()

		src, err := NewHTTPSource(t.Context(), srv.URL+"/x", privateGate())
		if err != nil {
			t.Fatal(err)
		}
		got, err := src.FetchRange(t.Context(), 1000, 1010)
		if err != nil {
			t.Fatalf("expected 416 to yield empty, got error: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("expected empty, got %d bytes", len(got))
		}
	})
}

func TestHTTPSource_FetchRange_InvalidRange(t *testing.T) {
	srv := testutil.NewRangeServer(objectData)
	defer srv.Close()

	src, err := NewHTTPSource(t.Context(), srv.URL+"/x", privateGate())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := src.FetchRange(t.Context(), -1, 4); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("expected ErrInvalidRange for negative start, got: %v", err)
	}
	if _, err := src.FetchRange(t.Context(), 10, 4); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("expected ErrInvalidRange for stop < start, got: %v", err)
	}
}

func TestHTTPSource_FetchRange_ServerError(t *testing.T) {
	srv := testutil.NewRangeServer(objectData)
	defer srv.Close()

	src, err := NewHTTPSource(t.Context(), srv.URL+"/x", privateGate())
	if err != nil {
		t.Fatal(err)
	}
	srv.FailWith(http.StatusServiceUnavailable)

	_, err = src.FetchRange(t.Context(), 0, 9)
	if !errors.Is(err, ErrRemoteFetchFailed) {
		t.Errorf("expected ErrRemoteFetchFailed, got: %v", err)
	}
}

func TestHTTPSource_ObjectChanged(t *testing.T) {
	srv := testutil.NewRangeServer(objectData, testutil.WithETag(`"v1"`))
	defer srv.Close()

	src, err := NewHTTPSource(t.Context(), srv.URL+"/x", privateGate())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := src.FetchRange(t.Context(), 0, 9); err != nil {
		t.Fatalf("fetch before change failed: %v", err)
	}

	srv.Replace(bytes.ToUpper(objectData), `"v2"`)

	_, err = src.FetchRange(t.Context(), 0, 9)
	if !errors.Is(err, ErrObjectChanged) {
		t.Errorf("expected ErrObjectChanged, got: %v", err)
	}
	if !errors.Is(err, ErrRemoteFetchFailed) {
		t.Errorf("expected ErrRemoteFetchFailed, got: %v", err)
	}
}

func TestHTTPSource_IgnoredRange(t *testing.T) {
	srv := testutil.NewRangeServer(objectData, testutil.IgnoringRange())
	defer srv.Close()

	src, err := NewHTTPSource(t.Context(), srv.URL+"/x", privateGate())
	if err != nil {
		t.Fatal(err)
	}

	got, err := src.FetchRange(t.Context(), 0, 9)
	if err != nil {
		t.Fatalf("range from 0 failed: %v", err)
	}
	if !bytes.Equal(got, objectData[:10]) {
		t.Errorf("expected body truncated to range, got %q", got)
	}

	if _, err := src.FetchRange(t.Context(), 10, 19); !errors.Is(err, ErrRemoteFetchFailed) {
		t.Errorf("expected ErrRemoteFetchFailed for ignored Range at offset 10, got: %v", err)
	}
}

func TestHTTPSource_ShiftedContentRange(t *testing.T) {
	inner := testutil.NewRangeServer(objectData)
	defer inner.Close()

	// Serves bytes four past the requested range.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			r.Header.Set("Range", "bytes=14-23")
		}
		inner.Config.Handler.ServeHTTP(w, r)
	}))
	defer srv.Close()

	src, err := NewHTTPSource(t.Context(), srv.URL+"/x", privateGate())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := src.FetchRange(t.Context(), 10, 19); !errors.Is(err, ErrRemoteFetchFailed) {
		t.Errorf("expected ErrRemoteFetchFailed for shifted Content-Range, got: %v", err)
	}
}

func TestContentRangeStart(t *testing.T) {
	tests := []struct {
		header string
		first  int64
		ok     bool
	}{
		{"bytes 10-19/256", 10, true},
		{"bytes 0-0/*", 0, true},
		{"", 0, false},
		{"bytes */256", 0, false},
		{"items 1-2/3", 0, false},
	}
	for _, tt := range tests {
		first, ok := contentRangeStart(tt.header)
		if first != tt.first || ok != tt.ok {
			t.Errorf("contentRangeStart(%q) = %d, %v; want %d, %v", tt.header, first, ok, tt.first, tt.ok)
		}
	}
}

func TestHTTPSource_ExtraHeaders(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	inner := testutil.NewRangeServer(objectData)
	defer inner.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Method+" "+r.Header.Get("Authorization"))
		mu.Unlock()
		inner.Config.Handler.ServeHTTP(w, r)
	}))
	defer srv.Close()

	src, err := NewHTTPSource(t.Context(), srv.URL+"/x", privateGate(), WithHeader("Authorization", "Bearer token"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := src.FetchRange(t.Context(), 0, 3); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"HEAD Bearer token", "GET Bearer token"}
	if !slices.Equal(seen, want) {
		t.Errorf("expected %v, got %v", want, seen)
	}
}

// -----------------------------------------------------------------------------
// File over HTTP
// -----------------------------------------------------------------------------

func TestOpen_HTTPFile(t *testing.T) {
	srv := testutil.NewRangeServer(objectData)
	defer srv.Close()

	f, err := Open(t.Context(), srv.URL+"/x", privateGate(), WithReadAhead(64))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	var got []byte
	for {
		chunk, err := f.ReadN(t.Context(), 16)
		if err != nil {
			t.Fatal(err)
		}
		if len(chunk) == 0 {
			break
		}
		got = append(got, chunk...)
	}
	if !bytes.Equal(got, objectData) {
		t.Errorf("read mismatch: got %d bytes", len(got))
	}
	want := []string{"bytes=0-63", "bytes=64-127", "bytes=128-191", "bytes=192-255"}
	if !slices.Equal(srv.Ranges(), want) {
		t.Errorf("expected ranges %v, got %v", want, srv.Ranges())
	}
}
