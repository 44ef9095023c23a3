package alloc

// Arena is a bump allocator over fixed-size chunks. Free is a no-op;
// everything is released at once by Reset. Arena is not safe for
// concurrent use.
type Arena struct {
	chunkSize int
	chunks    [][]byte
	used      int // bytes used in the last chunk
	allocated int
}

// NewArena creates an arena whose chunks hold at least chunkSize bytes.
func NewArena(chunkSize int) *Arena {
	if chunkSize < Alignment {
		chunkSize = Alignment
	}
	return &Arena{chunkSize: chunkSize}
}

func alignUp(n int) int {
	return (n + Alignment - 1) &^ (Alignment - 1)
}

// Alloc returns an aligned block carved from the current chunk, starting a
// new chunk when the request does not fit. Oversized requests get their
// own chunk.
func (a *Arena) Alloc(size int) []byte {
	if size <= 0 {
		return []byte{}
	}
	if len(a.chunks) == 0 || a.used+size > len(a.chunks[len(a.chunks)-1]) {
		n := a.chunkSize
		if size > n {
			n = alignUp(size)
		}
		a.chunks = append(a.chunks, alignedBlock(n))
		a.used = 0
	}
	chunk := a.chunks[len(a.chunks)-1]
	block := chunk[a.used : a.used+size : a.used+size]
	a.used = alignUp(a.used + size)
	a.allocated += size
	return block
}

// Free is a no-op; use Reset.
func (a *Arena) Free([]byte) {}

// Allocated returns the number of bytes handed out since the last Reset.
func (a *Arena) Allocated() int {
	return a.allocated
}

// Reset drops every chunk. Blocks handed out earlier must no longer be used.
func (a *Arena) Reset() {
	a.chunks = nil
	a.used = 0
	a.allocated = 0
}
