package rangefile

// cursor tracks the two positions of a File.
//
// buffer is the position the caller observes through Tell. remote is the
// offset of the next byte to fetch from the Source. The bytes between them
// are held in the pending cache, so remote-buffer always equals the cache
// length.
type cursor struct {
	buffer int64
	remote int64

	// eof is set once a fetch returned fewer bytes than requested.
	eof bool
}

// reset moves both positions to pos and forgets any end-of-object state.
func (c *cursor) reset(pos int64) {
	c.buffer = pos
	c.remote = pos
	c.eof = false
}

// fetched records n bytes appended to the cache out of requested.
// A requested value of OpenEnded always marks end of object.
func (c *cursor) fetched(n, requested int64) {
	c.remote += n
	if requested == OpenEnded || n < requested {
		c.eof = true
	}
}

// consumed records n bytes handed to the caller.
func (c *cursor) consumed(n int64) {
	c.buffer += n
}

// pending returns the number of fetched but undelivered bytes.
func (c cursor) pending() int64 {
	return c.remote - c.buffer
}

// exhausted reports whether no further bytes can be fetched.
func (c cursor) exhausted(size int64) bool {
	return c.eof || (size != UnknownSize && c.remote >= size)
}

// consistent reports whether the cursor agrees with a cache of cacheLen bytes.
func (c cursor) consistent(cacheLen int) bool {
	return c.remote >= c.buffer && c.pending() == int64(cacheLen)
}
