package formats

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// pngSignature starts every PNG stream.
var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// PNGColorType is the IHDR color type.
type PNGColorType uint8

const (
	PNGGray      PNGColorType = 0
	PNGRGB       PNGColorType = 2
	PNGPalette   PNGColorType = 3
	PNGGrayAlpha PNGColorType = 4
	PNGRGBA      PNGColorType = 6
)

// String returns a human-readable color type name.
func (c PNGColorType) String() string {
	switch c {
	case PNGGray:
		return "Gray"
	case PNGRGB:
		return "RGB"
	case PNGPalette:
		return "Palette"
	case PNGGrayAlpha:
		return "GrayAlpha"
	case PNGRGBA:
		return "RGBA"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(c))
	}
}

// Channels returns the number of channels stored per pixel.
func (c PNGColorType) Channels() int {
	switch c {
	case PNGGray, PNGPalette:
		return 1
	case PNGGrayAlpha:
		return 2
	case PNGRGB:
		return 3
	case PNGRGBA:
		return 4
	default:
		return 0
	}
}

// PNGInfo is the metadata that precedes the image data.
type PNGInfo struct {
	Width     int
	Height    int
	BitDepth  int
	ColorType PNGColorType
	HasGamma  bool
	Gamma     float64 // file gamma, e.g. 0.45455
	HasSRGB   bool
}

// IsPNG reports whether data starts with the PNG signature.
func IsPNG(data []byte) bool {
	return bytes.HasPrefix(data, pngSignature)
}

// ScanPNG walks the chunks up to the first IDAT and collects the header
// and color space metadata. Chunk CRCs are verified.
func ScanPNG(data []byte) (*PNGInfo, error) {
	if !IsPNG(data) {
		return nil, fmt.Errorf("%w: missing PNG signature", ErrUnsupportedFormat)
	}

	info := &PNGInfo{}
	seenHeader := false
	off := len(pngSignature)
	for {
		if off+8 > len(data) {
			return nil, fmt.Errorf("%w: truncated PNG chunk header at %d", ErrParse, off)
		}
		length := binary.BigEndian.Uint32(data[off:])
		if length > 0x7fffffff || uint64(off)+12+uint64(length) > uint64(len(data)) {
			return nil, fmt.Errorf("%w: PNG chunk of %d bytes at %d exceeds stream", ErrParse, length, off)
		}
		typ := string(data[off+4 : off+8])
		body := data[off+8 : off+8+int(length)]
		crc := binary.BigEndian.Uint32(data[off+8+int(length):])
		if crc32.ChecksumIEEE(data[off+4:off+8+int(length)]) != crc {
			return nil, fmt.Errorf("%w: PNG chunk %s checksum mismatch", ErrParse, typ)
		}
		off += 12 + int(length)

		if !seenHeader && typ != "IHDR" {
			return nil, fmt.Errorf("%w: PNG first chunk is %s, want IHDR", ErrParse, typ)
		}

		switch typ {
		case "IHDR":
			if len(body) != 13 {
				return nil, fmt.Errorf("%w: IHDR length %d", ErrParse, len(body))
			}
			info.Width = int(binary.BigEndian.Uint32(body[0:]))
			info.Height = int(binary.BigEndian.Uint32(body[4:]))
			info.BitDepth = int(body[8])
			info.ColorType = PNGColorType(body[9])
			if info.ColorType.Channels() == 0 {
				return nil, fmt.Errorf("%w: PNG color type %d", ErrUnsupportedFormat, body[9])
			}
			seenHeader = true
		case "gAMA":
			if len(body) == 4 {
				if g := binary.BigEndian.Uint32(body); g != 0 {
					info.HasGamma = true
					info.Gamma = float64(g) / 100000
				}
			}
		case "sRGB":
			info.HasSRGB = true
		case "IDAT", "IEND":
			return info, nil
		}
	}
}
