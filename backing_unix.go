//go:build unix

package stackarena

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

// NewMmapArena creates an Arena backed by an anonymous private mapping that
// lives outside the Go heap. The mapping is page aligned, which satisfies
// word alignment. Release unmaps it.
func NewMmapArena(capacity int) (*Arena, error) {
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
	buf, err := unix.Mmap(-1, 0, capacity,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, errors.Wrapf(err, "stackarena: mmap %d bytes", capacity)
	}
	return &Arena{
		buf:     buf,
		backing: BackingMmap,
		unmap:   func() error { return unix.Munmap(buf) },
	}, nil
}
