package gpu

import (
	"errors"
	"fmt"
	"sync"
)

// ErrInjected is returned by MemoryFactory once FailAfter is exhausted.
var ErrInjected = errors.New("gpu: injected failure")

// ErrUnknownHandle is returned when releasing a handle that is not live.
var ErrUnknownHandle = errors.New("gpu: unknown handle")

// Resource is one upload recorded by MemoryFactory.
type Resource struct {
	Handle  Handle
	Buffer  *BufferDesc
	Texture *TextureDesc
	Data    []byte
}

// MemoryFactory keeps copies of every upload in host memory. It backs the
// headless loader and lets tests inspect what reached the GPU.
type MemoryFactory struct {
	// FailAfter makes creation fail once this many resources have been
	// created. Negative disables injection.
	FailAfter int

	mu      sync.Mutex
	next    Handle
	created int
	live    map[Handle]*Resource
}

// NewMemoryFactory creates an empty factory without failure injection.
func NewMemoryFactory() *MemoryFactory {
	return &MemoryFactory{FailAfter: -1, live: make(map[Handle]*Resource)}
}

func (f *MemoryFactory) record(r *Resource) (Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.live == nil {
		f.live = make(map[Handle]*Resource)
	}
	if f.FailAfter >= 0 && f.created >= f.FailAfter {
		return 0, fmt.Errorf("%w after %d resources", ErrInjected, f.created)
	}
	f.next++
	f.created++
	r.Handle = f.next
	f.live[r.Handle] = r
	return r.Handle, nil
}

// CreateBuffer records a copy of data.
func (f *MemoryFactory) CreateBuffer(desc BufferDesc, data []byte) (Handle, error) {
	if desc.ByteSize != len(data) {
		return 0, fmt.Errorf("gpu: buffer %q: size %d, data %d bytes", desc.Name, desc.ByteSize, len(data))
	}
	return f.record(&Resource{Buffer: &desc, Data: append([]byte(nil), data...)})
}

// CreateTexture records a copy of pixels.
func (f *MemoryFactory) CreateTexture(desc TextureDesc, pixels []byte) (Handle, error) {
	want := desc.Width * desc.Height * desc.Format.BytesPerPixel()
	if want == 0 || want != len(pixels) {
		return 0, fmt.Errorf("gpu: texture %q: %dx%d %s needs %d bytes, got %d",
			desc.Name, desc.Width, desc.Height, desc.Format, want, len(pixels))
	}
	return f.record(&Resource{Texture: &desc, Data: append([]byte(nil), pixels...)})
}

// Release frees a live resource.
func (f *MemoryFactory) Release(h Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.live[h]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	delete(f.live, h)
	return nil
}

// Get returns the live resource for h.
func (f *MemoryFactory) Get(h Handle) (*Resource, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.live[h]
	return r, ok
}

// Live returns the number of resources not yet released.
func (f *MemoryFactory) Live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.live)
}

// Created returns the number of successful creations so far.
func (f *MemoryFactory) Created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created
}

// Textures returns the number of live textures.
func (f *MemoryFactory) Textures() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.live {
		if r.Texture != nil {
			n++
		}
	}
	return n
}
