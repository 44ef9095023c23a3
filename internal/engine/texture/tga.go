package texture

import (
	"fmt"
	"image"

	"github.com/Faultbox/scene-ingest/pkg/formats"
)

// TGA image type constants.
const (
	TGATypeUncompressed = 2  // Uncompressed true-color
	TGATypeRLE          = 10 // RLE compressed true-color
)

const tgaHeaderSize = 18

// tgaHeader is the subset of the 18-byte TGA header the decoder needs.
type tgaHeader struct {
	idLength     int
	colorMapType byte
	imageType    byte
	width        int
	height       int
	bpp          int
	topToBottom  bool
}

func parseTGAHeader(data []byte) (tgaHeader, error) {
	if len(data) < tgaHeaderSize {
		return tgaHeader{}, fmt.Errorf("%w: TGA data too short", formats.ErrParse)
	}
	h := tgaHeader{
		idLength:     int(data[0]),
		colorMapType: data[1],
		imageType:    data[2],
		width:        int(data[12]) | int(data[13])<<8,
		height:       int(data[14]) | int(data[15])<<8,
		bpp:          int(data[16]),
		// Bit 5 of the descriptor selects top-to-bottom row order.
		topToBottom: data[17]&0x20 != 0,
	}

	if h.colorMapType != 0 {
		return h, fmt.Errorf("%w: color-mapped TGA", formats.ErrUnsupportedFormat)
	}
	if h.imageType != TGATypeUncompressed && h.imageType != TGATypeRLE {
		return h, fmt.Errorf("%w: TGA type %d (only uncompressed/RLE true-color)", formats.ErrUnsupportedFormat, h.imageType)
	}
	if h.bpp != 24 && h.bpp != 32 {
		return h, fmt.Errorf("%w: TGA bit depth %d (only 24/32)", formats.ErrUnsupportedFormat, h.bpp)
	}
	return h, nil
}

// looksLikeTGA reports whether data has a plausible true-color TGA header.
// TGA has no magic number, so it is the last format tried.
func looksLikeTGA(data []byte) bool {
	_, err := parseTGAHeader(data)
	return err == nil
}

// DecodeTGAConfig returns the dimensions of a TGA image without decoding it.
func DecodeTGAConfig(data []byte) (image.Config, error) {
	h, err := parseTGAHeader(data)
	if err != nil {
		return image.Config{}, err
	}
	return image.Config{Width: h.width, Height: h.height}, nil
}

// DecodeTGA decodes an uncompressed (type 2) or RLE (type 10) true-color TGA
// into straight-alpha RGBA. 24-bit images are opaque.
func DecodeTGA(data []byte) (*image.NRGBA, error) {
	h, err := parseTGAHeader(data)
	if err != nil {
		return nil, err
	}

	offset := tgaHeaderSize + h.idLength
	if offset > len(data) {
		return nil, fmt.Errorf("%w: TGA data truncated", formats.ErrParse)
	}
	pixelData := data[offset:]

	img := image.NewNRGBA(image.Rect(0, 0, h.width, h.height))
	bytesPerPixel := h.bpp / 8

	if h.imageType == TGATypeUncompressed {
		expectedSize := h.width * h.height * bytesPerPixel
		if len(pixelData) < expectedSize {
			return nil, fmt.Errorf("%w: TGA pixel data truncated", formats.ErrParse)
		}
		for i := 0; i < h.width*h.height; i++ {
			setTGAPixel(img, h, i, pixelData[i*bytesPerPixel:])
		}
		return img, nil
	}

	if err := decodeTGARLE(img, h, pixelData); err != nil {
		return nil, err
	}
	return img, nil
}

// setTGAPixel stores the BGR(A) pixel src at linear index i, flipping rows
// for bottom-to-top images.
func setTGAPixel(img *image.NRGBA, h tgaHeader, i int, src []byte) {
	x := i % h.width
	y := i / h.width
	if !h.topToBottom {
		y = h.height - 1 - y
	}
	a := uint8(255)
	if h.bpp == 32 {
		a = src[3]
	}
	o := img.PixOffset(x, y)
	img.Pix[o+0] = src[2]
	img.Pix[o+1] = src[1]
	img.Pix[o+2] = src[0]
	img.Pix[o+3] = a
}

// decodeTGARLE decodes RLE-compressed TGA pixel data into an image.
func decodeTGARLE(img *image.NRGBA, h tgaHeader, pixelData []byte) error {
	bytesPerPixel := h.bpp / 8
	pixelCount := h.width * h.height
	pixelIdx := 0
	dataIdx := 0

	for pixelIdx < pixelCount {
		if dataIdx >= len(pixelData) {
			return fmt.Errorf("%w: TGA RLE data truncated at pixel %d of %d", formats.ErrParse, pixelIdx, pixelCount)
		}
		packet := pixelData[dataIdx]
		dataIdx++
		count := int(packet&0x7F) + 1

		if packet&0x80 != 0 {
			// RLE packet - repeat single pixel
			if dataIdx+bytesPerPixel > len(pixelData) {
				return fmt.Errorf("%w: TGA RLE packet truncated", formats.ErrParse)
			}
			src := pixelData[dataIdx : dataIdx+bytesPerPixel]
			dataIdx += bytesPerPixel
			for i := 0; i < count && pixelIdx < pixelCount; i++ {
				setTGAPixel(img, h, pixelIdx, src)
				pixelIdx++
			}
			continue
		}

		// Raw packet - read count pixels
		for i := 0; i < count && pixelIdx < pixelCount; i++ {
			if dataIdx+bytesPerPixel > len(pixelData) {
				return fmt.Errorf("%w: TGA raw packet truncated", formats.ErrParse)
			}
			setTGAPixel(img, h, pixelIdx, pixelData[dataIdx:])
			dataIdx += bytesPerPixel
			pixelIdx++
		}
	}

	return nil
}
