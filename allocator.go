package stackarena

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"
)

// Ptr locates a payload inside an Allocator's arena. It is the payload's
// byte offset, which is never below HeaderSize, so the zero value is Nil.
type Ptr int

// Nil is the absent pointer.
const Nil Ptr = 0

// Allocator hands out blocks from a fixed Arena in stack order. Freeing the
// most recent block (the top) gives its space back; freeing any other block
// only drops the live count and leaves its space stranded until Reset.
// Not goroutine-safe. Use SafeAllocator for concurrent access.
type Allocator struct {
	arena   *Arena
	top     Ptr
	live    int
	budget  int // 0 when only the capacity applies
	checked bool
	stats   counters
}

// counters are per session and cleared by Reset.
type counters struct {
	peak           int
	allocs         int
	frees          int
	reclaims       int
	buried         int
	reallocs       int
	budgetFailures int
	spaceFailures  int
}

// New creates a heap-backed Allocator with the given capacity and no
// budget. If capacity <= 0, DefaultCapacity is used.
func New(capacity int) *Allocator {
	return newAllocator(NewArena(capacity))
}

// NewWithArena creates an Allocator over an existing arena, which it then
// owns. The arena is reset first.
func NewWithArena(arena *Arena) *Allocator {
	arena.Reset()
	return newAllocator(arena)
}

func newAllocator(arena *Arena) *Allocator {
	return &Allocator{arena: arena}
}

// Allocate reserves a block with room for size bytes and returns its
// payload. It fails with ErrOutOfBudget when the block would push the bytes
// in use past the budget and with ErrOutOfSpace when the arena has no room
// left. A failed call changes nothing but the failure counters.
func (al *Allocator) Allocate(size int) (Ptr, error) {
	al.arena.panicIfReleased()
	if size <= 0 {
		return Nil, errors.Wrapf(ErrInvalidSize, "allocate %d bytes", size)
	}
	n := al.footprint(size)
	if err := al.fits(n, "malloc", size, al.arena.Len()); err != nil {
		return Nil, err
	}
	return al.push(size), nil
}

// fits checks a footprint of n bytes against the budget, then the space left.
// Failures report inuse, the usage the caller observes.
func (al *Allocator) fits(n int, op string, size, inuse int) error {
	if al.budget > 0 && al.arena.Len()+n > al.budget {
		al.stats.budgetFailures++
		logger.Warn(op+": budget reached",
			slog.Int("size", size), slog.Int("inuse", inuse), slog.Int("budget", al.budget))
		return errors.Wrapf(ErrOutOfBudget, "%s %d bytes, %d of %d in use", op, size, inuse, al.budget)
	}
	if n > al.arena.Available() {
		al.stats.spaceFailures++
		logger.Warn(op+": no space left",
			slog.Int("size", size), slog.Int("inuse", inuse), slog.Int("capacity", al.arena.Capacity()))
		return errors.Wrapf(ErrOutOfSpace, "%s %d bytes, %d of %d in use", op, size, inuse, al.arena.Capacity())
	}
	return nil
}

// footprint clamps size so oversized requests cannot overflow; anything past
// the capacity fails either way.
func (al *Allocator) footprint(size int) int {
	if c := al.arena.Capacity(); size > c {
		size = c + 1
	}
	return footprint(size)
}

func (al *Allocator) push(size int) Ptr {
	asize := alignSize(size)
	off := al.arena.bump(HeaderSize + asize)
	h := al.arena.headerAt(off)
	h.self = uint32(asize / wordSize)
	h.prev = 0
	if al.top != Nil {
		h.prev = al.header(al.top).self
	}
	al.top = Ptr(off + HeaderSize)
	al.live++
	al.stats.allocs++
	if inuse := al.arena.Len(); inuse > al.stats.peak {
		al.stats.peak = inuse
	}
	return al.top
}

// Free releases the block at p. If p is the top its space is reclaimed and
// the block below it becomes the top; otherwise the space stays in use until
// the session is reset. Freeing Nil is a no-op. Freeing the same block twice
// or a pointer from elsewhere is undefined unless checked mode is on.
func (al *Allocator) Free(p Ptr) {
	if p == Nil {
		return
	}
	al.arena.panicIfReleased()
	if al.checked {
		al.mustValidate(p)
	}
	al.live--
	al.stats.frees++
	if p != al.top {
		al.stats.buried++
		return
	}
	h := al.header(p)
	if int(p) == HeaderSize {
		al.top = Nil
	} else {
		al.top = p - Ptr(h.prevSize()+HeaderSize)
	}
	al.arena.rewind(HeaderSize + h.selfSize())
	al.stats.reclaims++
}

// Reallocate resizes the block at p and returns its new payload, copying
// the surviving bytes when the block moves. A Nil p allocates, a zero size
// frees and returns Nil. The budget is checked against the current usage
// before the old block is let go. On failure the old block is left intact.
func (al *Allocator) Reallocate(p Ptr, size int) (Ptr, error) {
	if p == Nil {
		if size == 0 {
			return Nil, nil
		}
		return al.Allocate(size)
	}
	if size == 0 {
		al.Free(p)
		return Nil, nil
	}
	al.arena.panicIfReleased()
	if size < 0 {
		return Nil, errors.Wrapf(ErrInvalidSize, "realloc %d bytes", size)
	}
	if al.checked {
		al.mustValidate(p)
	}

	old := al.header(p).selfSize()
	inuse := al.arena.Len()
	if al.budget > 0 && inuse+al.footprint(size)-old > al.budget {
		al.stats.budgetFailures++
		logger.Warn("realloc: budget reached",
			slog.Int("size", size), slog.Int("inuse", inuse), slog.Int("budget", al.budget))
		return Nil, errors.Wrapf(ErrOutOfBudget, "realloc %d bytes, %d of %d in use", size, inuse, al.budget)
	}

	saved := al.save()
	al.Free(p)
	n := al.footprint(size)
	if err := al.fits(n, "realloc", size, inuse); err != nil {
		al.restore(saved)
		return Nil, err
	}
	np := al.push(size)
	al.stats.allocs--
	al.stats.frees--
	al.stats.reallocs++
	if np != p {
		keep := min(old, alignSize(size))
		copy(al.arena.bytes(int(np), keep), al.arena.bytes(int(p), keep))
	}
	return np, nil
}

// UsableSize returns the payload capacity of the block at p, which is the
// requested size rounded up to a word multiple.
func (al *Allocator) UsableSize(p Ptr) int {
	if p == Nil {
		return 0
	}
	al.arena.panicIfReleased()
	if al.checked {
		al.mustValidate(p)
	}
	return al.header(p).selfSize()
}

// Bytes returns the payload of the block at p. The slice aliases the arena
// and is only meaningful until the block is freed.
func (al *Allocator) Bytes(p Ptr) []byte {
	if p == Nil {
		return nil
	}
	al.arena.panicIfReleased()
	if al.checked {
		al.mustValidate(p)
	}
	return al.arena.bytes(int(p), al.header(p).selfSize())
}

// SetBudget sets the soft ceiling on bytes in use, headers included. Zero
// removes it, leaving only the arena capacity. A budget below the current
// usage is accepted and makes every further allocation fail until blocks
// are reclaimed.
func (al *Allocator) SetBudget(n int) error {
	al.arena.panicIfReleased()
	if n < 0 || n > al.arena.Capacity() {
		return errors.Wrapf(ErrInvalidBudget, "budget %d, capacity %d", n, al.arena.Capacity())
	}
	al.budget = n
	return nil
}

// Reset ends the session: the cursor, the top and the live count are
// rewound in O(1). The host must no longer reference any block of the
// finished session, the arena bytes are reused as they are.
func (al *Allocator) Reset() {
	if al.live != 0 || al.arena.Len() != 0 {
		logger.Debug("stackarena: session reset",
			slog.Int("inuse", al.arena.Len()), slog.Int("live", al.live), slog.Int("peak", al.stats.peak))
	}
	al.arena.Reset()
	al.top = Nil
	al.live = 0
	al.stats = counters{}
}

// Release drops the arena and makes the allocator unusable.
// Any subsequent operations will panic.
func (al *Allocator) Release() error {
	al.top = Nil
	al.live = 0
	return al.arena.Release()
}

// InUse returns the bytes consumed from the arena, headers and stranded
// blocks included.
func (al *Allocator) InUse() int {
	return al.arena.Len()
}

// Live returns the number of allocations not yet matched by a free.
func (al *Allocator) Live() int {
	return al.live
}

// Budget returns the soft ceiling on bytes in use, 0 when none is set.
func (al *Allocator) Budget() int {
	return al.budget
}

// Capacity returns the physical size of the arena.
func (al *Allocator) Capacity() int {
	return al.arena.Capacity()
}

// Top returns the payload of the block that is currently the top of the
// stack, or Nil when the arena is empty.
func (al *Allocator) Top() Ptr {
	return al.top
}

func (al *Allocator) header(p Ptr) *header {
	return al.arena.headerAt(int(p) - HeaderSize)
}

type savepoint struct {
	off      int
	top      Ptr
	live     int
	frees    int
	reclaims int
	buried   int
}

func (al *Allocator) save() savepoint {
	return savepoint{
		off:      al.arena.Len(),
		top:      al.top,
		live:     al.live,
		frees:    al.stats.frees,
		reclaims: al.stats.reclaims,
		buried:   al.stats.buried,
	}
}

func (al *Allocator) restore(sp savepoint) {
	al.arena.off = sp.off
	al.top = sp.top
	al.live = sp.live
	al.stats.frees = sp.frees
	al.stats.reclaims = sp.reclaims
	al.stats.buried = sp.buried
}

// validate checks that p denotes a block inside the used part of the arena.
func (al *Allocator) validate(p Ptr) error {
	off, inuse := int(p), al.arena.Len()
	if off < HeaderSize || off >= inuse || off%wordSize != 0 {
		return errors.Wrapf(ErrInvalidPointer, "%d outside [%d, %d)", off, HeaderSize, inuse)
	}
	h := al.header(p)
	if h.self == 0 || off+h.selfSize() > inuse {
		return errors.Wrapf(ErrInvalidPointer, "%d has corrupt header {%d %d}", off, h.self, h.prev)
	}
	return nil
}

func (al *Allocator) mustValidate(p Ptr) {
	if err := al.validate(p); err != nil {
		panic(err)
	}
}
