package scene

import (
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/scene-ingest/internal/engine/texture"
	"github.com/Faultbox/scene-ingest/internal/gpu"
	"github.com/Faultbox/scene-ingest/pkg/pack"
)

// Materializer hands finished buffers and images to a gpu.Factory and
// records every handle it gets back.
type Materializer struct {
	factory gpu.Factory
	log     *zap.Logger
	handles []gpu.Handle
}

// NewMaterializer creates a materializer over factory. A nil logger is
// replaced by a no-op logger.
func NewMaterializer(factory gpu.Factory, log *zap.Logger) *Materializer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Materializer{factory: factory, log: log}
}

func (m *Materializer) createBuffer(desc gpu.BufferDesc, data []byte) (gpu.Handle, error) {
	h, err := m.factory.CreateBuffer(desc, data)
	if err != nil {
		return 0, fmt.Errorf("create buffer %q: %w", desc.Name, err)
	}
	m.handles = append(m.handles, h)
	m.log.Debug("buffer created",
		zap.String("name", desc.Name),
		zap.Bool("index", desc.IsIndex),
		zap.Int("bytes", desc.ByteSize),
		zap.Uint64("handle", uint64(h)),
	)
	return h, nil
}

// CreateIndexBuffer uploads indices as little-endian uint32.
func (m *Materializer) CreateIndexBuffer(name string, indices []uint32) (gpu.Handle, error) {
	data := pack.IndexBytes(indices)
	return m.createBuffer(gpu.BufferDesc{Name: name, IsIndex: true, ByteSize: len(data)}, data)
}

// CreateVertexBuffer uploads an interleaved or single-attribute vertex stream.
func (m *Materializer) CreateVertexBuffer(name string, data []byte) (gpu.Handle, error) {
	return m.createBuffer(gpu.BufferDesc{Name: name, ByteSize: len(data)}, data)
}

// CreateTexture uploads a decoded image.
func (m *Materializer) CreateTexture(name string, img *texture.Image) (gpu.Handle, error) {
	desc := gpu.TextureDesc{Name: name, Width: img.Width, Height: img.Height, Format: img.Format}
	h, err := m.factory.CreateTexture(desc, img.Pix)
	if err != nil {
		return 0, fmt.Errorf("create texture %q: %w", name, err)
	}
	m.handles = append(m.handles, h)
	m.log.Debug("texture created",
		zap.String("name", name),
		zap.Int("width", img.Width),
		zap.Int("height", img.Height),
		zap.Stringer("format", img.Format),
		zap.Uint64("handle", uint64(h)),
	)
	return h, nil
}

// Handles returns the recorded handles in creation order.
func (m *Materializer) Handles() []gpu.Handle {
	return append([]gpu.Handle(nil), m.handles...)
}

// Release frees every recorded handle, newest first, if the factory
// implements gpu.Releaser. All handles are attempted; failures are combined.
func (m *Materializer) Release() error {
	r, ok := m.factory.(gpu.Releaser)
	if !ok {
		m.handles = nil
		return nil
	}

	var err error
	for i := len(m.handles) - 1; i >= 0; i-- {
		err = multierr.Append(err, r.Release(m.handles[i]))
	}
	m.handles = nil
	return err
}
