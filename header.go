package stackarena

import "unsafe"

// header precedes every payload. Both sizes are counted in words.
type header struct {
	self uint32 // aligned payload size of this block
	prev uint32 // payload size of the block that was top when this one was made
}

// HeaderSize is the number of bytes reserved in front of every payload.
const HeaderSize = int(unsafe.Sizeof(header{}))

// wordSize is the allocation granularity.
const wordSize = int(unsafe.Sizeof(uintptr(0)))

func (h *header) selfSize() int {
	return int(h.self) * wordSize
}

func (h *header) prevSize() int {
	return int(h.prev) * wordSize
}

// alignSize rounds n up to the next word multiple.
func alignSize(n int) int {
	mask := wordSize - 1
	return (n + mask) &^ mask
}

// footprint is the arena space consumed by a payload of n bytes.
func footprint(n int) int {
	return HeaderSize + alignSize(n)
}
