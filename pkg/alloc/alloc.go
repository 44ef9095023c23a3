// Package alloc provides the allocation hooks used for parsed scene data.
// Hosts can substitute their own arena or pooled allocator; every block
// handed out is aligned to Alignment bytes.
package alloc

import "unsafe"

// Alignment of every block returned by the allocators in this package.
const Alignment = 16

// Allocator hands out byte blocks of exactly the requested length.
// Free may be a no-op; callers must not use a block after freeing it.
type Allocator interface {
	Alloc(size int) []byte
	Free(block []byte)
}

// Heap is the default allocator: aligned blocks from the Go heap. Free is a
// no-op and the block is reclaimed by the garbage collector.
type Heap struct{}

// Alloc returns a zeroed, aligned block of size bytes.
func (Heap) Alloc(size int) []byte {
	return alignedBlock(size)
}

// Free does nothing.
func (Heap) Free([]byte) {}

// alignedBlock over-allocates by Alignment-1 bytes and slices at the first
// aligned address.
func alignedBlock(size int) []byte {
	if size <= 0 {
		return []byte{}
	}
	raw := make([]byte, size+Alignment-1)
	off := AlignmentOffset(raw)
	return raw[off : off+size : off+size]
}

// AlignmentOffset returns how many bytes must be skipped from the start of b
// to reach an Alignment boundary.
func AlignmentOffset(b []byte) int {
	if len(b) == 0 {
		return 0
	}
	addr := uintptr(unsafe.Pointer(&b[0]))
	return int((Alignment - addr%Alignment) % Alignment)
}

// IsAligned reports whether the first byte of b sits on an Alignment boundary.
func IsAligned(b []byte) bool {
	return len(b) == 0 || AlignmentOffset(b) == 0
}

// Default is the allocator used when none is configured.
var Default Allocator = Heap{}
