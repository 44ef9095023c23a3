// Package texture decodes raster images into RGBA8 pixel data ready for
// texture upload. PNG is the primary format; TGA, BMP, WebP and JPEG are
// accepted as well.
package texture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	gomath "math"

	"golang.org/x/image/bmp"
	"golang.org/x/image/webp"

	"github.com/Faultbox/scene-ingest/internal/gpu"
	"github.com/Faultbox/scene-ingest/pkg/alloc"
	"github.com/Faultbox/scene-ingest/pkg/formats"
)

// DefaultMaxDimension is the largest accepted width or height.
const DefaultMaxDimension = 16384

// Image is a decoded image in 8-bit straight-alpha RGBA, rows top to bottom.
type Image struct {
	Width  int
	Height int
	Format gpu.Format
	Pix    []byte
}

// Decoder converts encoded image files to RGBA8. The zero value is usable.
type Decoder struct {
	// MaxDimension limits width and height. Zero means DefaultMaxDimension.
	MaxDimension int

	// Alloc provides the pixel memory. Nil means alloc.Default.
	Alloc alloc.Allocator
}

func (d *Decoder) maxDimension() int {
	if d.MaxDimension > 0 {
		return d.MaxDimension
	}
	return DefaultMaxDimension
}

func (d *Decoder) allocator() alloc.Allocator {
	if d.Alloc != nil {
		return d.Alloc
	}
	return alloc.Default
}

// Release returns the pixel memory of img to the decoder's allocator.
func (d *Decoder) Release(img *Image) {
	if img == nil || img.Pix == nil {
		return
	}
	d.allocator().Free(img.Pix)
	img.Pix = nil
}

// codec is a non-PNG format, tried in order after the PNG check.
type codec struct {
	name   string
	match  func([]byte) bool
	config func([]byte) (image.Config, error)
	decode func([]byte) (image.Image, error)
}

var codecs = []codec{
	{"bmp", isBMP, readerConfig(bmp.DecodeConfig), readerDecode(bmp.Decode)},
	{"webp", isWebP, readerConfig(webp.DecodeConfig), readerDecode(webp.Decode)},
	{"jpeg", isJPEG, readerConfig(jpeg.DecodeConfig), readerDecode(jpeg.Decode)},
	{"tga", looksLikeTGA, DecodeTGAConfig, func(b []byte) (image.Image, error) { return DecodeTGA(b) }},
}

func isBMP(b []byte) bool  { return bytes.HasPrefix(b, []byte("BM")) }
func isJPEG(b []byte) bool { return bytes.HasPrefix(b, []byte{0xff, 0xd8, 0xff}) }
func isWebP(b []byte) bool {
	return len(b) >= 12 && string(b[0:4]) == "RIFF" && string(b[8:12]) == "WEBP"
}

func readerConfig(fn func(r io.Reader) (image.Config, error)) func([]byte) (image.Config, error) {
	return func(b []byte) (image.Config, error) { return fn(bytes.NewReader(b)) }
}

func readerDecode(fn func(r io.Reader) (image.Image, error)) func([]byte) (image.Image, error) {
	return func(b []byte) (image.Image, error) { return fn(bytes.NewReader(b)) }
}

// Decode converts an encoded image to RGBA8. srgb only selects the output
// format tag; pixel values are not converted between color spaces.
func (d *Decoder) Decode(data []byte, srgb bool) (*Image, error) {
	format := gpu.FormatRGBA8
	if srgb {
		format = gpu.FormatRGBA8SRGB
	}

	if formats.IsPNG(data) {
		return d.decodePNG(data, format)
	}
	for _, c := range codecs {
		if !c.match(data) {
			continue
		}
		cfg, err := c.config(data)
		if err != nil {
			return nil, codecError(c.name, err)
		}
		if err := d.checkSize(cfg.Width, cfg.Height); err != nil {
			return nil, err
		}
		img, err := c.decode(data)
		if err != nil {
			return nil, codecError(c.name, err)
		}
		return d.convert(img, format, 1)
	}
	return nil, fmt.Errorf("%w: unrecognized image data", formats.ErrUnsupportedFormat)
}

func (d *Decoder) decodePNG(data []byte, format gpu.Format) (*Image, error) {
	info, err := formats.ScanPNG(data)
	if err != nil {
		return nil, err
	}
	if err := d.checkSize(info.Width, info.Height); err != nil {
		return nil, err
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, codecError("png", err)
	}

	// An sRGB chunk overrides gAMA.
	fileGamma := DefaultFileGamma
	if info.HasGamma && !info.HasSRGB {
		fileGamma = info.Gamma
	}
	return d.convert(img, format, CorrectionExponent(fileGamma))
}

func codecError(name string, err error) error {
	var unsupported png.UnsupportedError
	if errors.As(err, &unsupported) {
		return fmt.Errorf("%w: %s: %v", formats.ErrUnsupportedFormat, name, err)
	}
	if errors.Is(err, formats.ErrParse) || errors.Is(err, formats.ErrUnsupportedFormat) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", formats.ErrParse, name, err)
}

// checkSize rejects empty images, images above the dimension limit and
// images whose RGBA8 byte size does not fit in an int.
func (d *Decoder) checkSize(width, height int) error {
	if width < 1 || height < 1 {
		return fmt.Errorf("%w: image is %dx%d", formats.ErrUnsupportedFormat, width, height)
	}
	if limit := d.maxDimension(); width > limit || height > limit {
		return fmt.Errorf("%w: image is %dx%d, limit %d", formats.ErrSizeOverflow, width, height, limit)
	}
	if uint64(width)*uint64(height)*4 > uint64(gomath.MaxInt) {
		return fmt.Errorf("%w: %dx%d RGBA8 does not fit in memory", formats.ErrSizeOverflow, width, height)
	}
	return nil
}

// convert writes img as straight-alpha RGBA8 into allocator memory. Color
// channels are raised to exponent, alpha is not. 16-bit sources are
// corrected at full precision before they are narrowed.
func (d *Decoder) convert(img image.Image, format gpu.Format, exponent float64) (*Image, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if err := d.checkSize(w, h); err != nil {
		return nil, err
	}

	pix := d.allocator().Alloc(w * h * 4)
	if len(pix) != w*h*4 {
		return nil, fmt.Errorf("%w: allocator returned %d of %d bytes", formats.ErrSizeOverflow, len(pix), w*h*4)
	}

	var (
		lut   *[256]uint8
		lut16 *[65536]uint8
	)
	if is16Bit(img.ColorModel()) {
		lut16 = GammaTable16(exponent)
	} else {
		lut = GammaTable(exponent)
	}

	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			var c color.NRGBA
			if lut16 != nil {
				v := color.NRGBA64Model.Convert(img.At(x, y)).(color.NRGBA64)
				c = color.NRGBA{R: lut16[v.R], G: lut16[v.G], B: lut16[v.B], A: Scale16(v.A)}
			} else {
				c = toNRGBA(img.At(x, y))
				if lut != nil {
					c.R, c.G, c.B = lut[c.R], lut[c.G], lut[c.B]
				}
			}
			pix[i+0] = c.R
			pix[i+1] = c.G
			pix[i+2] = c.B
			pix[i+3] = c.A
			i += 4
		}
	}

	return &Image{Width: w, Height: h, Format: format, Pix: pix}, nil
}

func is16Bit(m color.Model) bool {
	switch m {
	case color.NRGBA64Model, color.RGBA64Model, color.Gray16Model:
		return true
	}
	return false
}

// toNRGBA converts any color to 8-bit straight alpha, keeping 8-bit
// straight-alpha sources exact.
func toNRGBA(c color.Color) color.NRGBA {
	switch v := c.(type) {
	case color.NRGBA:
		return v
	case color.Gray:
		return color.NRGBA{R: v.Y, G: v.Y, B: v.Y, A: 0xff}
	case color.NRGBA64:
		return color.NRGBA{R: Scale16(v.R), G: Scale16(v.G), B: Scale16(v.B), A: Scale16(v.A)}
	}
	v := color.NRGBA64Model.Convert(c).(color.NRGBA64)
	return color.NRGBA{R: Scale16(v.R), G: Scale16(v.G), B: Scale16(v.B), A: Scale16(v.A)}
}

// Scale16 maps a 16-bit channel to 8 bits with rounding (v*255/65535).
func Scale16(v uint16) uint8 {
	return uint8((uint32(v)*255 + 32895) >> 16)
}
