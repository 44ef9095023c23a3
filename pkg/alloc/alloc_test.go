package alloc

import "testing"

func TestHeapAlignment(t *testing.T) {
	var h Heap
	for _, size := range []int{1, 3, 15, 16, 17, 100, 4096} {
		b := h.Alloc(size)
		if len(b) != size {
			t.Errorf("Alloc(%d) len = %d", size, len(b))
		}
		if cap(b) != size {
			t.Errorf("Alloc(%d) cap = %d, want %d", size, cap(b), size)
		}
		if !IsAligned(b) {
			t.Errorf("Alloc(%d) not %d-byte aligned", size, Alignment)
		}
		h.Free(b)
	}
}

func TestHeapZeroSize(t *testing.T) {
	b := Heap{}.Alloc(0)
	if b == nil || len(b) != 0 {
		t.Errorf("Alloc(0) = %v, want empty non-nil slice", b)
	}
}

func TestArenaAlignment(t *testing.T) {
	a := NewArena(64)
	sizes := []int{5, 16, 33, 7, 200, 1}
	blocks := make([][]byte, 0, len(sizes))
	for _, size := range sizes {
		b := a.Alloc(size)
		if len(b) != size {
			t.Fatalf("Alloc(%d) len = %d", size, len(b))
		}
		if !IsAligned(b) {
			t.Errorf("Alloc(%d) not aligned", size)
		}
		blocks = append(blocks, b)
	}

	// Blocks must not overlap: writing one must not disturb another.
	for i, b := range blocks {
		for j := range b {
			b[j] = byte(i + 1)
		}
	}
	for i, b := range blocks {
		for j := range b {
			if b[j] != byte(i+1) {
				t.Fatalf("block %d byte %d overwritten", i, j)
			}
		}
	}

	want := 0
	for _, s := range sizes {
		want += s
	}
	if a.Allocated() != want {
		t.Errorf("Allocated() = %d, want %d", a.Allocated(), want)
	}

	a.Reset()
	if a.Allocated() != 0 {
		t.Errorf("Allocated() after Reset = %d", a.Allocated())
	}
}

func TestAllocatorInterface(t *testing.T) {
	var _ Allocator = Heap{}
	var _ Allocator = NewArena(0)
	if Default == nil {
		t.Fatal("Default allocator is nil")
	}
}
