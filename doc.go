// Package stackarena implements a fixed-capacity stack allocator for hosting
// an embedded script runtime inside a hard memory budget.
//
// # Overview
//
// An Allocator carves blocks out of one fixed, word-aligned Arena. Every
// block is preceded by a small header recording its own size and the size
// of the block that was on top when it was created. That backward link is
// all the bookkeeping there is: there is no free list.
//
//   - Freeing the most recent block (the top) moves the cursor back and
//     makes the block below it the new top.
//   - Freeing any other (buried) block only drops the live count. Its space
//     stays in use until the session is Reset.
//
// This suits short evaluation runs whose allocations are mostly released in
// reverse order, followed by a full reset.
//
// # Basic Usage
//
//	a := stackarena.New(0) // 640 KiB arena, no budget
//	defer a.Release()
//
//	p, err := a.Allocate(100)
//	if err != nil {
//		// errors.Is(err, stackarena.ErrOutOfBudget) or ErrOutOfSpace
//	}
//	buf := a.Bytes(p) // len(buf) == a.UsableSize(p) == 104
//
//	p, err = a.Reallocate(p, 200)
//	a.Free(p)
//
//	a.Reset() // end of session, O(1)
//
// # Limits
//
// Two limits are enforced independently. The capacity is the physical size
// of the arena; running out of it fails with ErrOutOfSpace. The budget is an
// optional soft ceiling on bytes in use (headers included), at most the
// capacity, set with SetBudget; crossing it fails with ErrOutOfBudget and
// is checked first. A failed call leaves the allocator unchanged.
//
// # Hosting a runtime
//
// Hooks exposes Malloc, Free, Realloc and UsableSize with the conventions a
// pluggable runtime malloc table expects: failures come back as Nil and the
// reason is logged through the package logger (see SetLogger).
//
// # Thread Safety
//
// Allocator is not thread-safe and is meant for exactly one owner. For
// shared use, wrap it in a SafeAllocator.
//
// # Important Notes
//
//   - A Ptr is only meaningful for the allocator that returned it.
//   - Double free, use after free and foreign pointers are undefined
//     behaviour. Config.Checked turns them into panics where detectable.
//   - Reset reuses the arena bytes as they are; nothing may still refer to
//     blocks of the finished session.
//
// # Metrics
//
//	st := a.Stats()
//	fmt.Println(st) // inuse=... peak=... live=... buried=...
package stackarena
