package rangefile

import (
	"bytes"
	"testing"
)

func TestCursor_Fetched(t *testing.T) {
	tests := []struct {
		name      string
		n         int64
		requested int64
		wantEOF   bool
	}{
		{"full fetch", 4, 4, false},
		{"short fetch", 2, 4, true},
		{"empty fetch", 0, 4, true},
		{"open-ended", 6, OpenEnded, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c cursor
			c.reset(10)
			c.fetched(tt.n, tt.requested)
			if c.remote != 10+tt.n {
				t.Errorf("expected remote %d, got %d", 10+tt.n, c.remote)
			}
			if c.buffer != 10 {
				t.Errorf("buffer moved on fetch: %d", c.buffer)
			}
			if c.eof != tt.wantEOF {
				t.Errorf("expected eof=%v, got %v", tt.wantEOF, c.eof)
			}
		})
	}
}

func TestCursor_Exhausted(t *testing.T) {
	tests := []struct {
		name string
		c    cursor
		size int64
		want bool
	}{
		{"before end", cursor{remote: 5}, 10, false},
		{"at end", cursor{remote: 10}, 10, true},
		{"past end", cursor{remote: 12}, 10, true},
		{"eof flag", cursor{remote: 3, eof: true}, 10, true},
		{"unknown size", cursor{remote: 1 << 50}, UnknownSize, false},
	}
	for _, tt := range tests {
		if got := tt.c.exhausted(tt.size); got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, got)
		}
	}
}

func TestCursor_ResetClearsEOF(t *testing.T) {
	c := cursor{buffer: 3, remote: 8, eof: true}
	c.reset(4)
	if c != (cursor{buffer: 4, remote: 4}) {
		t.Errorf("unexpected cursor after reset: %+v", c)
	}
}

func TestCursor_Consistent(t *testing.T) {
	c := cursor{buffer: 2, remote: 6}
	if !c.consistent(4) {
		t.Error("expected consistent with 4 cached bytes")
	}
	if c.consistent(3) {
		t.Error("expected inconsistent with 3 cached bytes")
	}
	if (cursor{buffer: 5, remote: 4}).consistent(0) {
		t.Error("remote behind buffer must be inconsistent")
	}
}

// -----------------------------------------------------------------------------
// pendingCache
// -----------------------------------------------------------------------------

func TestPendingCache_FIFO(t *testing.T) {
	var c pendingCache
	c.push([]byte("abc"))
	c.push([]byte("defg"))

	if c.Len() != 7 {
		t.Fatalf("expected 7 bytes, got %d", c.Len())
	}
	if got := c.pop(2); string(got) != "ab" {
		t.Errorf("expected %q, got %q", "ab", got)
	}
	if got := c.pop(3); string(got) != "cde" {
		t.Errorf("expected %q, got %q", "cde", got)
	}
	if got := c.pop(10); string(got) != "fg" {
		t.Errorf("expected %q, got %q", "fg", got)
	}
	if c.Len() != 0 {
		t.Errorf("expected empty cache, got %d", c.Len())
	}
	if got := c.pop(1); len(got) != 0 {
		t.Errorf("expected empty pop, got %q", got)
	}
}

func TestPendingCache_CompactsAndPreservesOrder(t *testing.T) {
	var c pendingCache
	var want []byte
	for i := range 50 {
		chunk := bytes.Repeat([]byte{byte('a' + i%26)}, 7)
		c.push(chunk)
		want = append(want, chunk...)

		got := c.pop(5)
		if !bytes.Equal(got, want[:5]) {
			t.Fatalf("iteration %d: expected %q, got %q", i, want[:5], got)
		}
		want = want[5:]
		if c.Len() != len(want) {
			t.Fatalf("iteration %d: expected %d cached, got %d", i, len(want), c.Len())
		}
	}
	if c.head > len(c.buf) {
		t.Errorf("head %d past buffer %d", c.head, len(c.buf))
	}
}

func TestPendingCache_PopReturnsCopy(t *testing.T) {
	var c pendingCache
	c.push([]byte("abcd"))
	got := c.pop(2)
	got[0] = 'X'
	if rest := c.pop(2); string(rest) != "cd" {
		t.Errorf("expected %q, got %q", "cd", rest)
	}
}

func TestPendingCache_Clear(t *testing.T) {
	var c pendingCache
	c.push([]byte("abcd"))
	c.pop(1)
	c.clear()
	if c.Len() != 0 {
		t.Errorf("expected empty cache after clear, got %d", c.Len())
	}
	c.push([]byte("z"))
	if got := c.pop(1); string(got) != "z" {
		t.Errorf("expected %q, got %q", "z", got)
	}
}
