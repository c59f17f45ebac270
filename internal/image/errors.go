package image

import "errors"

// ErrIO wraps any underlying file I/O failure (open, read, write, sync,
// truncate) and an out-of-range user id; a read that stops at end of file
// is not reported as an error. ErrCorruptImage wraps header/structural
// invariant violations detected on load.
var (
	ErrIO           = errors.New("image: io error")
	ErrCorruptImage = errors.New("image: corrupt image")
)
