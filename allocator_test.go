package stackarena

import (
	"fmt"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateAdvancesCursor(t *testing.T) {
	a := New(4096)
	defer a.Release()

	for _, size := range []int{1, 7, 8, 9, 31, 64, 100} {
		before := a.InUse()
		p, err := a.Allocate(size)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, a.InUse(), before+footprint(size), "size %d", size)
		assert.Equal(t, before+footprint(size), a.InUse(), "size %d", size)
		assert.Equal(t, p, a.Top())
		assert.Equal(t, Ptr(before+HeaderSize), p)
	}
	assert.Equal(t, 7, a.Live())
}

func TestAllocateInvalidSize(t *testing.T) {
	a := New(1024)
	for _, size := range []int{0, -1} {
		p, err := a.Allocate(size)
		assert.Equal(t, Nil, p)
		assert.True(t, errors.Is(err, ErrInvalidSize))
	}
	assert.Equal(t, 0, a.InUse())
	assert.Equal(t, 0, a.Live())
}

func TestFreeTopReclaims(t *testing.T) {
	a := New(1024)
	pa, err := a.Allocate(24)
	require.NoError(t, err)
	afterA, topA := a.InUse(), a.Top()

	pb, err := a.Allocate(40)
	require.NoError(t, err)
	require.NotEqual(t, pa, pb)

	a.Free(pb)
	assert.Equal(t, afterA, a.InUse())
	assert.Equal(t, topA, a.Top())
	assert.Equal(t, 1, a.Live())

	a.Free(pa)
	assert.Equal(t, 0, a.InUse())
	assert.Equal(t, Nil, a.Top())
	assert.Equal(t, 0, a.Live())
}

func TestFreeBuriedStrands(t *testing.T) {
	a := New(1024)
	pa, _ := a.Allocate(24)
	pb, _ := a.Allocate(40)
	inuse := a.InUse()

	a.Free(pa)
	assert.Equal(t, inuse, a.InUse())
	assert.Equal(t, pb, a.Top())
	assert.Equal(t, 1, a.Live())

	// Freeing the top now rewinds onto the stranded block, not past it.
	a.Free(pb)
	assert.Equal(t, footprint(24), a.InUse())
	assert.Equal(t, pa, a.Top())
	assert.Equal(t, 0, a.Live())

	st := a.Stats()
	assert.Equal(t, 1, st.BuriedFrees)
	assert.Equal(t, 1, st.Reclaims)
}

func TestFreeNil(t *testing.T) {
	a := New(1024)
	a.Allocate(8)
	a.Free(Nil)
	assert.Equal(t, 1, a.Live())
	assert.Equal(t, footprint(8), a.InUse())
}

func TestFreeUnwindsWholeStack(t *testing.T) {
	a := New(4096)
	sizes := []int{3, 17, 64, 5, 120, 8}
	ptrs := make([]Ptr, len(sizes))
	marks := make([]int, len(sizes))
	for i, size := range sizes {
		marks[i] = a.InUse()
		p, err := a.Allocate(size)
		require.NoError(t, err)
		ptrs[i] = p
	}
	for i := len(ptrs) - 1; i >= 0; i-- {
		a.Free(ptrs[i])
		assert.Equal(t, marks[i], a.InUse())
		if i > 0 {
			assert.Equal(t, ptrs[i-1], a.Top())
		}
	}
	assert.Equal(t, Nil, a.Top())
	assert.Equal(t, 0, a.Live())
}

func TestBudgetEnforced(t *testing.T) {
	a := New(1024)
	require.NoError(t, a.SetBudget(3*footprint(32)))

	for i := 0; i < 3; i++ {
		_, err := a.Allocate(32)
		require.NoError(t, err)
	}
	inuse, top, live := a.InUse(), a.Top(), a.Live()

	p, err := a.Allocate(1)
	assert.Equal(t, Nil, p)
	assert.True(t, errors.Is(err, ErrOutOfBudget))
	assert.False(t, errors.Is(err, ErrOutOfSpace))
	assert.True(t, IsOutOfMemory(err))
	assert.Contains(t, err.Error(), "budget reached")

	assert.Equal(t, inuse, a.InUse())
	assert.Equal(t, top, a.Top())
	assert.Equal(t, live, a.Live())
	assert.Equal(t, 1, a.Stats().BudgetFailures)
}

func TestBudgetCheckedBeforeSpace(t *testing.T) {
	a := New(256)
	require.NoError(t, a.SetBudget(256))
	_, err := a.Allocate(200)
	require.NoError(t, err)

	// would overflow both limits, the budget is reported
	_, err = a.Allocate(100)
	assert.True(t, errors.Is(err, ErrOutOfBudget))
	assert.Equal(t, 0, a.Stats().SpaceFailures)
}

func TestOutOfSpaceDistinctFromBudget(t *testing.T) {
	a := New(128)

	_, err := a.Allocate(100)
	require.NoError(t, err)
	inuse := a.InUse()

	p, err := a.Allocate(64)
	assert.Equal(t, Nil, p)
	assert.True(t, errors.Is(err, ErrOutOfSpace))
	assert.False(t, errors.Is(err, ErrOutOfBudget))
	assert.Contains(t, err.Error(), "no space left")
	assert.Equal(t, inuse, a.InUse())
	assert.Equal(t, 1, a.Stats().SpaceFailures)
}

func TestAllocateHuge(t *testing.T) {
	a := New(1024)
	_, err := a.Allocate(int(^uint(0) >> 1))
	assert.True(t, errors.Is(err, ErrOutOfSpace))
	assert.Equal(t, 0, a.InUse())

	require.NoError(t, a.SetBudget(512))
	_, err = a.Allocate(int(^uint(0) >> 1))
	assert.True(t, errors.Is(err, ErrOutOfBudget))
}

func TestSetBudget(t *testing.T) {
	a := New(1024)
	assert.Equal(t, 0, a.Budget())

	require.NoError(t, a.SetBudget(512))
	assert.Equal(t, 512, a.Budget())

	assert.True(t, errors.Is(a.SetBudget(1025), ErrInvalidBudget))
	assert.True(t, errors.Is(a.SetBudget(-1), ErrInvalidBudget))
	assert.Equal(t, 512, a.Budget())

	require.NoError(t, a.SetBudget(0))
	assert.Equal(t, 0, a.Budget())
}

func TestReallocateNilAndZero(t *testing.T) {
	a := New(1024)

	p, err := a.Reallocate(Nil, 0)
	assert.NoError(t, err)
	assert.Equal(t, Nil, p)
	assert.Equal(t, 0, a.Live())

	p, err = a.Reallocate(Nil, 20)
	require.NoError(t, err)
	assert.Equal(t, Ptr(HeaderSize), p)
	assert.Equal(t, alignSize(20), a.UsableSize(p))
	assert.Equal(t, 1, a.Live())

	q, err := a.Reallocate(p, 0)
	assert.NoError(t, err)
	assert.Equal(t, Nil, q)
	assert.Equal(t, 0, a.Live())
	assert.Equal(t, 0, a.InUse())
}

func TestReallocateTopInPlace(t *testing.T) {
	a := New(1024)
	pa, _ := a.Allocate(16)
	pb, _ := a.Allocate(64)
	copy(a.Bytes(pb), "stack discipline")

	// shrink gives the tail back
	p, err := a.Reallocate(pb, 16)
	require.NoError(t, err)
	assert.Equal(t, pb, p)
	assert.Equal(t, footprint(16)+footprint(16), a.InUse())
	assert.Equal(t, "stack discipline", string(a.Bytes(p)))

	// grow stays in place as well
	p, err = a.Reallocate(p, 200)
	require.NoError(t, err)
	assert.Equal(t, pb, p)
	assert.Equal(t, footprint(16)+footprint(200), a.InUse())
	assert.Equal(t, "stack discipline", string(a.Bytes(p)[:16]))
	assert.Equal(t, 2, a.Live())

	// the backward link still leads to A
	a.Free(p)
	assert.Equal(t, pa, a.Top())
	assert.Equal(t, 2, a.Stats().Reallocs)
}

func TestReallocateBuriedMoves(t *testing.T) {
	a := New(1024)
	pa, _ := a.Allocate(16)
	copy(a.Bytes(pa), "0123456789abcdef")
	pb, _ := a.Allocate(32)
	inuse := a.InUse()

	p, err := a.Reallocate(pa, 40)
	require.NoError(t, err)
	assert.NotEqual(t, pa, p)
	assert.Equal(t, inuse+footprint(40), a.InUse())
	assert.Equal(t, "0123456789abcdef", string(a.Bytes(p)[:16]))
	assert.Equal(t, p, a.Top())
	assert.Equal(t, 2, a.Live())

	// shrinking copies only what the new block holds
	q, err := a.Reallocate(pb, 8)
	require.NoError(t, err)
	assert.Equal(t, 8, a.UsableSize(q))
}

func TestReallocateBudgetCheckedBeforeFree(t *testing.T) {
	a := New(1024)
	p, _ := a.Allocate(64)
	require.NoError(t, a.SetBudget(footprint(64)+8))

	// 64 -> 80 on the top block: in use + new footprint - old payload
	// = 72 + 88 - 64 = 96 > 80
	q, err := a.Reallocate(p, 80)
	assert.Equal(t, Nil, q)
	assert.True(t, errors.Is(err, ErrOutOfBudget))
	assert.Contains(t, err.Error(), "realloc")
	assert.Equal(t, footprint(64), a.InUse())
	assert.Equal(t, p, a.Top())
	assert.Equal(t, 1, a.Live())
	assert.Equal(t, 64, a.UsableSize(p))
}

func TestReallocateFailureRollsBack(t *testing.T) {
	a := New(1024)
	pa, _ := a.Allocate(64)
	pb, _ := a.Allocate(8)
	inuse := a.InUse()
	// The pre-check passes (it credits A's payload) but A is buried, so
	// nothing is reclaimed and the fresh block does not fit.
	require.NoError(t, a.SetBudget(inuse+16))

	q, err := a.Reallocate(pa, 72)
	assert.Equal(t, Nil, q)
	assert.True(t, errors.Is(err, ErrOutOfBudget))
	assert.Equal(t, inuse, a.InUse())
	assert.Equal(t, pb, a.Top())
	assert.Equal(t, 2, a.Live())
	assert.Equal(t, 0, a.Stats().BuriedFrees)
}

func TestReallocateTopOutOfSpaceRollsBack(t *testing.T) {
	a := New(128)
	pa, _ := a.Allocate(16)
	pb, _ := a.Allocate(32)
	copy(a.Bytes(pb), "keepme")
	inuse := a.InUse()

	q, err := a.Reallocate(pb, 200)
	assert.Equal(t, Nil, q)
	assert.True(t, errors.Is(err, ErrOutOfSpace))
	assert.Contains(t, err.Error(), fmt.Sprintf("%d of 128 in use", inuse))

	assert.Equal(t, inuse, a.InUse())
	assert.Equal(t, pb, a.Top())
	assert.Equal(t, 2, a.Live())
	assert.Equal(t, 32, a.UsableSize(pb))
	assert.Equal(t, "keepme", string(a.Bytes(pb)[:6]))

	st := a.Stats()
	assert.Equal(t, 1, st.SpaceFailures)
	assert.Equal(t, 0, st.Frees)
	assert.Equal(t, 0, st.Reclaims)

	a.Free(pb)
	assert.Equal(t, pa, a.Top())
	assert.Equal(t, footprint(16), a.InUse())
}

func TestUsableSize(t *testing.T) {
	a := New(4096)
	for n := 1; n <= 70; n++ {
		p, err := a.Allocate(n)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, a.UsableSize(p), n)
		assert.Equal(t, alignSize(n), a.UsableSize(p))
		assert.Len(t, a.Bytes(p), alignSize(n))
	}
	assert.Equal(t, 0, a.UsableSize(Nil))
	assert.Nil(t, a.Bytes(Nil))
}

func TestScenario256(t *testing.T) {
	a := New(256)
	require.NoError(t, a.SetBudget(256))
	require.Equal(t, 8, HeaderSize)

	pa, err := a.Allocate(32)
	require.NoError(t, err)
	afterA := a.InUse()
	assert.Equal(t, 8+32, afterA)

	pb, err := a.Allocate(64)
	require.NoError(t, err)
	a.Free(pb)
	assert.Equal(t, afterA, a.InUse())

	pc, err := a.Allocate(64)
	require.NoError(t, err)
	assert.Equal(t, pb, pc)
	assert.Equal(t, 2, a.Live())

	inuse := a.InUse()
	a.Free(pa)
	assert.Equal(t, inuse, a.InUse())
	assert.Equal(t, 1, a.Live())
	assert.Equal(t, pc, a.Top())
}

func TestReset(t *testing.T) {
	a := New(1024)
	a.Allocate(100)
	p, _ := a.Allocate(200)
	a.Allocate(10)
	a.Free(p)

	a.Reset()
	assert.Equal(t, 0, a.InUse())
	assert.Equal(t, 0, a.Live())
	assert.Equal(t, Nil, a.Top())
	assert.Equal(t, Stats{Capacity: 1024}, a.Stats())

	// the first block of the next session lands at the start again
	q, err := a.Allocate(8)
	require.NoError(t, err)
	assert.Equal(t, Ptr(HeaderSize), q)
}

func TestRelease(t *testing.T) {
	a := New(1024)
	a.Allocate(100)
	require.NoError(t, a.Release())

	assert.Panics(t, func() { a.Allocate(8) })
	assert.Panics(t, func() { a.Reallocate(Ptr(HeaderSize), 8) })
	assert.Panics(t, func() { a.Reset() })
	assert.Panics(t, func() { a.SetBudget(8) })
	// Nil is still a no-op
	assert.NotPanics(t, func() { a.Free(Nil) })
}

func TestCheckedMode(t *testing.T) {
	a, err := NewAllocator(Config{Capacity: 1024, Checked: true})
	require.NoError(t, err)
	p, _ := a.Allocate(16)

	bad := []Ptr{1, Ptr(HeaderSize + 3), p + 1024, Ptr(a.InUse())}
	for _, q := range bad {
		func() {
			defer func() {
				r := recover()
				require.NotNil(t, r, "pointer %d", q)
				assert.True(t, errors.Is(r.(error), ErrInvalidPointer))
			}()
			a.Free(q)
		}()
	}
	assert.Equal(t, 1, a.Live())
	assert.NotPanics(t, func() { a.Free(p) })
}
