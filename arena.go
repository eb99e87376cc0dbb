package stackarena

import "unsafe"

// DefaultCapacity is the default arena capacity (640 KiB).
const DefaultCapacity = 640 * 1024

// Arena is a single fixed-size, word-aligned byte region and a cursor
// counting the bytes handed out from its start. It never grows.
type Arena struct {
	buf     []byte
	off     int          // bytes in use
	unmap   func() error // non-nil for off-heap backings
	backing string
}

// NewArena creates a heap-backed Arena of the given capacity, rounded down
// to a word multiple. If capacity <= 0, DefaultCapacity is used.
func NewArena(capacity int) *Arena {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if capacity > MaxCapacity {
		capacity = MaxCapacity
	}
	capacity = capacity &^ (wordSize - 1)
	if capacity == 0 {
		capacity = wordSize
	}
	// Back the bytes with words so the region starts word aligned.
	words := make([]uintptr, capacity/wordSize)
	buf := unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), capacity)
	return &Arena{buf: buf, backing: BackingHeap}
}

// Capacity returns the size of the region in bytes.
func (a *Arena) Capacity() int {
	return len(a.buf)
}

// Len returns the number of bytes in use.
func (a *Arena) Len() int {
	return a.off
}

// Available returns the number of bytes still free at the end of the region.
func (a *Arena) Available() int {
	return len(a.buf) - a.off
}

// Backing names the memory the region lives in.
func (a *Arena) Backing() string {
	return a.backing
}

// bytes returns n raw bytes starting at off.
func (a *Arena) bytes(off, n int) []byte {
	return a.buf[off : off+n : off+n]
}

// headerAt returns the block header stored at off.
func (a *Arena) headerAt(off int) *header {
	return (*header)(unsafe.Pointer(&a.buf[off]))
}

// bump advances the cursor by n and returns the previous cursor.
func (a *Arena) bump(n int) int {
	off := a.off
	a.off += n
	return off
}

// rewind moves the cursor back by n.
func (a *Arena) rewind(n int) {
	a.off -= n
}

// Reset rewinds the cursor to the start of the region. Memory is not
// cleared, so this is O(1) regardless of how much was handed out.
func (a *Arena) Reset() {
	a.panicIfReleased()
	a.off = 0
}

// Release drops the region and makes the arena unusable.
// Any subsequent operations will panic.
func (a *Arena) Release() error {
	var err error
	if a.unmap != nil {
		err = a.unmap()
		a.unmap = nil
	}
	a.buf = nil
	a.off = 0
	return err
}

func (a *Arena) released() bool {
	return a.buf == nil
}

// panicIfReleased panics if the arena has been released.
func (a *Arena) panicIfReleased() {
	if a.buf == nil {
		panic("stackarena: use after Release()")
	}
}
