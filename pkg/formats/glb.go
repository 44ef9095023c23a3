package formats

import (
	"encoding/binary"
	"fmt"
)

const (
	glbMagic     = 0x46546c67 // "glTF"
	glbVersion   = 2
	glbChunkJSON = 0x4e4f534a
	glbChunkBIN  = 0x004e4942

	glbHeaderSize      = 12
	glbChunkHeaderSize = 8
)

// IsGLB reports whether data starts with a binary glTF version 2 header.
func IsGLB(data []byte) bool {
	return len(data) >= glbHeaderSize &&
		binary.LittleEndian.Uint32(data) == glbMagic &&
		binary.LittleEndian.Uint32(data[4:]) == glbVersion
}

// splitGLB returns the JSON chunk and the optional BIN chunk of a GLB blob.
// Chunks of other types are skipped.
func splitGLB(data []byte) (jsonChunk, binChunk []byte, err error) {
	if !IsGLB(data) {
		return nil, nil, fmt.Errorf("%w: not a GLB version 2 blob", ErrParse)
	}
	total := int(binary.LittleEndian.Uint32(data[8:]))
	if total > len(data) {
		return nil, nil, fmt.Errorf("%w: GLB declares %d bytes, file has %d", ErrIO, total, len(data))
	}
	data = data[:total]

	off := glbHeaderSize
	for off < len(data) {
		if off+glbChunkHeaderSize > len(data) {
			return nil, nil, fmt.Errorf("%w: truncated GLB chunk header at %d", ErrParse, off)
		}
		length := int(binary.LittleEndian.Uint32(data[off:]))
		typ := binary.LittleEndian.Uint32(data[off+4:])
		off += glbChunkHeaderSize
		if length < 0 || length > len(data)-off {
			return nil, nil, fmt.Errorf("%w: GLB chunk of %d bytes at %d exceeds file", ErrParse, length, off)
		}
		payload := data[off : off+length]
		off += length

		switch {
		case jsonChunk == nil:
			if typ != glbChunkJSON || length == 0 {
				return nil, nil, fmt.Errorf("%w: first GLB chunk is not JSON", ErrParse)
			}
			jsonChunk = payload
		case typ == glbChunkBIN && binChunk == nil:
			binChunk = payload
		}
	}
	if jsonChunk == nil {
		return nil, nil, fmt.Errorf("%w: GLB has no JSON chunk", ErrParse)
	}
	return jsonChunk, binChunk, nil
}
