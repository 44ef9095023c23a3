package formats

import "errors"

// Error taxonomy shared by every stage of a scene load. Errors leaving the
// pipeline wrap exactly one of these, so callers can use errors.Is.
var (
	ErrFileNotFound      = errors.New("file not found")
	ErrIO                = errors.New("i/o error")
	ErrParse             = errors.New("parse error")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrSizeOverflow      = errors.New("size overflow")
)
