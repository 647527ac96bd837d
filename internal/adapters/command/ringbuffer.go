package command

import "sync"

// RingBuffer is an io.Writer that keeps only the last Cap bytes written.
// It is safe for concurrent writers.
type RingBuffer struct {
	mu      sync.Mutex
	buf     []byte
	cap     int
	written int64
}

// NewRingBuffer creates a RingBuffer retaining at most capacity bytes.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer{cap: capacity, buf: make([]byte, 0, min(capacity, 4096))}
}

// Write appends p, discarding the oldest bytes once capacity is exceeded.
// It never fails.
func (b *RingBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(p)
	b.written += int64(n)

	if n >= b.cap {
		b.buf = append(b.buf[:0], p[n-b.cap:]...)
		return n, nil
	}

	if overflow := len(b.buf) + n - b.cap; overflow > 0 {
		b.buf = append(b.buf[:0], b.buf[overflow:]...)
	}
	b.buf = append(b.buf, p...)
	return n, nil
}

// String returns the retained bytes.
func (b *RingBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

// Len returns the number of retained bytes.
func (b *RingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}

// Truncated reports whether older bytes have been discarded.
func (b *RingBuffer) Truncated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.written > int64(len(b.buf))
}

// Written returns the total number of bytes ever written.
func (b *RingBuffer) Written() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.written
}
