package stackarena

import "sync"

// SafeAllocator is a mutex-protected wrapper around Allocator for hosts
// that share one session between goroutines. Every call is serialised; the
// stack discipline is still the callers' business, interleaved frees from
// different goroutines will mostly land on buried blocks.
type SafeAllocator struct {
	mu sync.Mutex
	a  *Allocator
}

// NewSafeAllocator wraps a.
func NewSafeAllocator(a *Allocator) *SafeAllocator {
	return &SafeAllocator{a: a}
}

// Allocate thread-safely reserves a block of size bytes.
func (s *SafeAllocator) Allocate(size int) (Ptr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.Allocate(size)
}

// Free thread-safely releases the block at p.
func (s *SafeAllocator) Free(p Ptr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.a.Free(p)
}

// Reallocate thread-safely resizes the block at p.
func (s *SafeAllocator) Reallocate(p Ptr, size int) (Ptr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.Reallocate(p, size)
}

// UsableSize thread-safely returns the payload capacity of the block at p.
func (s *SafeAllocator) UsableSize(p Ptr) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.UsableSize(p)
}

// Write thread-safely copies b into the payload at p and returns the number
// of bytes copied.
func (s *SafeAllocator) Write(p Ptr, b []byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copy(s.a.Bytes(p), b)
}

// Read thread-safely copies the payload at p into b.
func (s *SafeAllocator) Read(p Ptr, b []byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copy(b, s.a.Bytes(p))
}

// Reset thread-safely ends the session.
func (s *SafeAllocator) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.a.Reset()
}

// Release thread-safely drops the arena.
func (s *SafeAllocator) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.Release()
}
