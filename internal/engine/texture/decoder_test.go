package texture

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	gomath "math"
	"testing"

	"golang.org/x/image/bmp"

	"github.com/Faultbox/scene-ingest/internal/gpu"
	"github.com/Faultbox/scene-ingest/pkg/formats"
)

func pngChunk(typ string, body []byte) []byte {
	out := make([]byte, 8, 12+len(body))
	binary.BigEndian.PutUint32(out, uint32(len(body)))
	copy(out[4:], typ)
	out = append(out, body...)
	return binary.BigEndian.AppendUint32(out, crc32.ChecksumIEEE(out[4:]))
}

// encodePNG encodes img and inserts extra chunks right after IHDR.
func encodePNG(t *testing.T, img image.Image, extra ...[]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode failed: %v", err)
	}
	data := buf.Bytes()
	ihdrEnd := 8 + 12 + 13
	out := append([]byte{}, data[:ihdrEnd]...)
	for _, c := range extra {
		out = append(out, c...)
	}
	return append(out, data[ihdrEnd:]...)
}

// headerOnlyPNG returns a PNG with the given IHDR and no image data.
func headerOnlyPNG(width, height uint32) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], width)
	binary.BigEndian.PutUint32(ihdr[4:], height)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 6 // RGBA
	out := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	out = append(out, pngChunk("IHDR", ihdr)...)
	return append(out, pngChunk("IEND", nil)...)
}

func gamaChunk(gamma float64) []byte {
	return pngChunk("gAMA", binary.BigEndian.AppendUint32(nil, uint32(gamma*100000+0.5)))
}

func TestDecode_PNGColorTypes(t *testing.T) {
	rgb := image.NewRGBA(image.Rect(0, 0, 1, 1))
	rgb.Set(0, 0, color.RGBA{R: 10, G: 20, B: 30, A: 255})

	gray := image.NewGray(image.Rect(0, 0, 2, 2))
	for i, v := range []uint8{0, 64, 128, 255} {
		gray.SetGray(i%2, i/2, color.Gray{Y: v})
	}

	rgba := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	rgba.SetNRGBA(0, 0, color.NRGBA{R: 200, G: 100, B: 50, A: 7})

	deep := image.NewNRGBA64(image.Rect(0, 0, 1, 1))
	deep.SetNRGBA64(0, 0, color.NRGBA64{R: 0xffff, G: 0x8080, B: 0x0101, A: 0xffff})

	pal := image.NewPaletted(image.Rect(0, 0, 2, 1), color.Palette{
		color.NRGBA{R: 255, A: 255},
		color.NRGBA{G: 255, A: 0},
	})
	pal.SetColorIndex(1, 0, 1)

	tests := []struct {
		name string
		img  image.Image
		want []byte
	}{
		{"rgb synthesizes alpha", rgb, []byte{10, 20, 30, 255}},
		{"gray expands to rgb", gray, []byte{
			0, 0, 0, 255, 64, 64, 64, 255,
			128, 128, 128, 255, 255, 255, 255, 255,
		}},
		{"rgba keeps straight alpha", rgba, []byte{200, 100, 50, 7}},
		{"16-bit scales with rounding", deep, []byte{255, 128, 1, 255}},
		{"palette with transparency", pal, []byte{255, 0, 0, 255, 0, 255, 0, 0}},
	}

	var d Decoder
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := d.Decode(encodePNG(t, tt.img), false)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if out.Format != gpu.FormatRGBA8 {
				t.Errorf("format = %s, want RGBA8", out.Format)
			}
			if !bytes.Equal(out.Pix, tt.want) {
				t.Errorf("pixels = %v, want %v", out.Pix, tt.want)
			}
		})
	}
}

func TestDecode_GrayTransparency(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 2, 1))
	gray.SetGray(0, 0, color.Gray{Y: 10})
	gray.SetGray(1, 0, color.Gray{Y: 20})

	var d Decoder
	out, err := d.Decode(encodePNG(t, gray, pngChunk("tRNS", []byte{0, 10})), false)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if out.Pix[3] != 0 {
		t.Errorf("keyed pixel alpha = %d, want 0", out.Pix[3])
	}
	if out.Pix[4] != 20 || out.Pix[7] != 255 {
		t.Errorf("other pixel = %v, want gray 20 opaque", out.Pix[4:8])
	}
}

func TestDecode_Gamma(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 128, G: 0, B: 255, A: 128})

	var d Decoder

	t.Run("linear file is brightened", func(t *testing.T) {
		out, err := d.Decode(encodePNG(t, img, gamaChunk(1.0)), false)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		want := uint8(gomath.Floor(255*gomath.Pow(128.0/255, 1/2.2) + 0.5))
		if out.Pix[0] != want {
			t.Errorf("R = %d, want %d", out.Pix[0], want)
		}
		if out.Pix[1] != 0 || out.Pix[2] != 255 {
			t.Errorf("end points moved: %v", out.Pix[:3])
		}
		if out.Pix[3] != 128 {
			t.Errorf("alpha = %d, want 128 (not gamma corrected)", out.Pix[3])
		}
	})

	t.Run("display gamma file is unchanged", func(t *testing.T) {
		out, err := d.Decode(encodePNG(t, img, gamaChunk(0.45455)), false)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if out.Pix[0] != 128 {
			t.Errorf("R = %d, want 128", out.Pix[0])
		}
	})

	t.Run("sRGB chunk overrides gAMA", func(t *testing.T) {
		out, err := d.Decode(encodePNG(t, img, pngChunk("sRGB", []byte{0}), gamaChunk(1.0)), false)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if out.Pix[0] != 128 {
			t.Errorf("R = %d, want 128", out.Pix[0])
		}
	})
}

func TestDecode_Gamma16Bit(t *testing.T) {
	// Dark 16-bit values that narrow to the same 8-bit code must still be
	// corrected from their full precision value.
	img := image.NewNRGBA64(image.Rect(0, 0, 2, 1))
	img.SetNRGBA64(0, 0, color.NRGBA64{R: 300, G: 0, B: 0xffff, A: 0x8080})
	img.SetNRGBA64(1, 0, color.NRGBA64{R: 200, A: 0xffff})

	var d Decoder
	out, err := d.Decode(encodePNG(t, img, gamaChunk(1.0)), false)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	exact := func(v uint16) uint8 {
		return uint8(gomath.Floor(255*gomath.Pow(float64(v)/65535, 1/2.2) + 0.5))
	}
	if got, want := out.Pix[0], exact(300); got != want {
		t.Errorf("R = %d, want %d", got, want)
	}
	if got, want := out.Pix[4], exact(200); got != want {
		t.Errorf("second R = %d, want %d", got, want)
	}
	if out.Pix[0] == out.Pix[4] {
		t.Errorf("distinct dark inputs collapsed to %d", out.Pix[0])
	}
	if out.Pix[1] != 0 || out.Pix[2] != 255 {
		t.Errorf("end points moved: %v", out.Pix[:3])
	}
	if out.Pix[3] != 128 {
		t.Errorf("alpha = %d, want 128 (not gamma corrected)", out.Pix[3])
	}
}

func TestDecode_SRGBSelectsFormat(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 90, G: 90, B: 90, A: 255})

	var d Decoder
	out, err := d.Decode(encodePNG(t, img), true)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if out.Format != gpu.FormatRGBA8SRGB {
		t.Errorf("format = %s, want RGBA8_SRGB", out.Format)
	}
	if out.Pix[0] != 90 {
		t.Errorf("R = %d, want 90 (no color space conversion)", out.Pix[0])
	}
}

func TestDecode_Errors(t *testing.T) {
	valid := encodePNG(t, image.NewNRGBA(image.Rect(0, 0, 8, 8)))
	corrupt := append([]byte{}, valid...)
	idat := bytes.Index(corrupt, []byte("IDAT"))
	corrupt[idat+6] ^= 0xff
	// Keep the chunk checksum valid so the damage reaches the inflater.
	length := int(binary.BigEndian.Uint32(corrupt[idat-4:]))
	binary.BigEndian.PutUint32(corrupt[idat+4+length:], crc32.ChecksumIEEE(corrupt[idat:idat+4+length]))

	tests := []struct {
		name string
		dec  Decoder
		data []byte
		want error
	}{
		{"zero width", Decoder{}, headerOnlyPNG(0, 4), formats.ErrUnsupportedFormat},
		{"zero height", Decoder{}, headerOnlyPNG(4, 0), formats.ErrUnsupportedFormat},
		{"over default limit", Decoder{}, headerOnlyPNG(DefaultMaxDimension+1, 1), formats.ErrSizeOverflow},
		{"over custom limit", Decoder{MaxDimension: 4}, valid, formats.ErrSizeOverflow},
		{"unknown format", Decoder{}, []byte("not an image at all"), formats.ErrUnsupportedFormat},
		{"corrupt image data", Decoder{}, corrupt, formats.ErrParse},
		{"truncated png", Decoder{}, valid[:40], formats.ErrParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.dec.Decode(tt.data, false); !errors.Is(err, tt.want) {
				t.Errorf("got error %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDecode_BMP(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.RGBA{R: 1, G: 2, B: 3, A: 255})
	img.Set(1, 0, color.RGBA{R: 4, G: 5, B: 6, A: 255})
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, img); err != nil {
		t.Fatalf("bmp.Encode failed: %v", err)
	}

	var d Decoder
	out, err := d.Decode(buf.Bytes(), false)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	want := []byte{1, 2, 3, 255, 4, 5, 6, 255}
	if !bytes.Equal(out.Pix, want) {
		t.Errorf("pixels = %v, want %v", out.Pix, want)
	}
}

type countingAlloc struct{ live int }

func (a *countingAlloc) Alloc(size int) []byte { a.live++; return make([]byte, size) }
func (a *countingAlloc) Free([]byte)           { a.live-- }

func TestDecoder_Release(t *testing.T) {
	a := &countingAlloc{}
	d := Decoder{Alloc: a}
	out, err := d.Decode(encodePNG(t, image.NewGray(image.Rect(0, 0, 3, 3))), false)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(out.Pix) != 3*3*4 || a.live != 1 {
		t.Fatalf("pix = %d bytes, live = %d", len(out.Pix), a.live)
	}
	d.Release(out)
	d.Release(out)
	if a.live != 0 || out.Pix != nil {
		t.Errorf("after Release: live = %d, pix nil = %v", a.live, out.Pix == nil)
	}
}
