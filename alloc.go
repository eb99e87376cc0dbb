package stackarena

import "unsafe"

// Alloc allocates a zeroed T inside the allocator's arena and returns both
// the block and a typed view of it. T must not contain Go pointers; the
// garbage collector does not scan arena memory.
func Alloc[T any](a *Allocator) (Ptr, *T, error) {
	var zero T
	size := int(unsafe.Sizeof(zero))
	p, err := a.Allocate(max(size, 1))
	if err != nil {
		return Nil, nil, err
	}
	b := a.Bytes(p)
	clear(b)
	return p, As[T](b), nil
}

// AllocSlice allocates a zeroed slice of n elements of type T. The same
// pointer restriction as Alloc applies. Returns Nil and a nil slice if n <= 0.
func AllocSlice[T any](a *Allocator, n int) (Ptr, []T, error) {
	if n <= 0 {
		return Nil, nil, nil
	}
	var zero T
	elemSize := int(unsafe.Sizeof(zero))
	p, err := a.Allocate(max(elemSize*n, 1))
	if err != nil {
		return Nil, nil, err
	}
	b := a.Bytes(p)
	clear(b)
	return p, AsSlice[T](b[:elemSize*n]), nil
}

// As reinterprets the start of b as a *T. b must be at least
// unsafe.Sizeof(T) long and suitably aligned, which payload slices are.
func As[T any](b []byte) *T {
	var zero T
	if len(b) < int(unsafe.Sizeof(zero)) {
		panic("stackarena: buffer too small for type")
	}
	return (*T)(unsafe.Pointer(unsafe.SliceData(b)))
}

// AsSlice reinterprets b as a slice of T covering as many whole elements
// as fit. Returns nil when none fit.
func AsSlice[T any](b []byte) []T {
	var zero T
	elemSize := int(unsafe.Sizeof(zero))
	if elemSize == 0 {
		return nil
	}
	n := len(b) / elemSize
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(b))), n)
}
