package rangefile

// pendingCache is a FIFO of fetched bytes not yet delivered to the caller.
// Whole fetches are appended at the tail and reads consume from the head.
type pendingCache struct {
	buf  []byte
	head int
}

// Len returns the number of queued bytes.
func (c *pendingCache) Len() int {
	return len(c.buf) - c.head
}

// push appends a whole fetch.
func (c *pendingCache) push(p []byte) {
	if len(p) == 0 {
		return
	}
	if c.head > 0 && c.head >= len(c.buf)/2 {
		// Reclaim the consumed prefix before growing.
		n := copy(c.buf, c.buf[c.head:])
		c.buf = c.buf[:n]
		c.head = 0
	}
	c.buf = append(c.buf, p...)
}

// pop removes and returns up to n bytes from the head.
func (c *pendingCache) pop(n int) []byte {
	if avail := c.Len(); n > avail {
		n = avail
	}
	out := make([]byte, n)
	copy(out, c.buf[c.head:c.head+n])
	c.head += n
	if c.head == len(c.buf) {
		c.buf = c.buf[:0]
		c.head = 0
	}
	return out
}

// clear drops every queued byte.
func (c *pendingCache) clear() {
	c.buf = nil
	c.head = 0
}
