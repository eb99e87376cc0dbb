package stackarena

// Hooks adapts an Allocator to the malloc table an embedded runtime
// expects: failures are reported as Nil results, the reason is logged and
// kept for Err.
type Hooks struct {
	a   *Allocator
	err error
}

// Hooks returns the host-facing entry points of al.
func (al *Allocator) Hooks() *Hooks {
	return &Hooks{a: al}
}

// Malloc allocates size bytes. Zero or negative sizes yield Nil without
// counting as a failure.
func (h *Hooks) Malloc(size int) Ptr {
	if size <= 0 {
		return Nil
	}
	p, err := h.a.Allocate(size)
	if err != nil {
		h.err = err
		return Nil
	}
	return p
}

// Free releases p; Nil is ignored.
func (h *Hooks) Free(p Ptr) {
	h.a.Free(p)
}

// Realloc resizes p, see Allocator.Reallocate.
func (h *Hooks) Realloc(p Ptr, size int) Ptr {
	np, err := h.a.Reallocate(p, size)
	if err != nil {
		h.err = err
		return Nil
	}
	return np
}

// UsableSize returns the payload capacity of p.
func (h *Hooks) UsableSize(p Ptr) int {
	return h.a.UsableSize(p)
}

// Bytes returns the payload of p.
func (h *Hooks) Bytes(p Ptr) []byte {
	return h.a.Bytes(p)
}

// Err returns the reason of the most recent failed Malloc or Realloc.
func (h *Hooks) Err() error {
	return h.err
}

// Allocator returns the allocator behind the hooks.
func (h *Hooks) Allocator() *Allocator {
	return h.a
}
