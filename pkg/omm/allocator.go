package omm

import "unsafe"

// Allocator provides every buffer the baker owns. Alloc must return a slice of
// exactly size bytes whose first element is aligned to alignment.
type Allocator interface {
	Alloc(size, alignment int) []byte
	Free(buf []byte)
}

// SystemAllocator allocates from the Go heap. Free is a no-op.
type SystemAllocator struct{}

// Alloc over-allocates and slices to the requested alignment.
func (SystemAllocator) Alloc(size, alignment int) []byte {
	if size == 0 {
		return []byte{}
	}
	if alignment <= 1 {
		return make([]byte, size)
	}
	buf := make([]byte, size+alignment-1)
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
	off := int((uintptr(alignment) - addr%uintptr(alignment)) % uintptr(alignment))
	return buf[off : off+size : off+size]
}

// Free does nothing; the garbage collector reclaims the buffer.
func (SystemAllocator) Free([]byte) {}
