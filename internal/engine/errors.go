package engine

import "errors"

// Error is a sentinel operation-engine error carrying the stable integer
// code spec.md §7 requires get_error_message to expose.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string { return e.Message }

func newErr(code int, msg string) *Error { return &Error{Code: code, Message: msg} }

// The taxonomy from spec.md §7, each a distinct sentinel so callers can
// errors.Is against it and the transport layer can map it to an
// error_code.
var (
	ErrInvalidArgument   = newErr(1, "invalid argument")
	ErrNotFound          = newErr(2, "not found")
	ErrAlreadyExists     = newErr(3, "already exists")
	ErrNotADirectory     = newErr(4, "not a directory")
	ErrNotAFile          = newErr(5, "not a file")
	ErrIsDirectory       = newErr(6, "is a directory")
	ErrPermissionDenied  = newErr(7, "permission denied")
	ErrUnauthorized      = newErr(8, "unauthorized")
	ErrAuthFailed        = newErr(9, "authentication failed")
	ErrNoSpace           = newErr(10, "no space left")
	ErrIO                = newErr(11, "io error")
	ErrCorruptImage      = newErr(12, "corrupt image")
	ErrDirectoryNotEmpty = newErr(13, "directory not empty")
)

var byCode = map[int]*Error{}

func init() {
	for _, e := range []*Error{
		ErrInvalidArgument, ErrNotFound, ErrAlreadyExists, ErrNotADirectory,
		ErrNotAFile, ErrIsDirectory, ErrPermissionDenied, ErrUnauthorized,
		ErrAuthFailed, ErrNoSpace, ErrIO, ErrCorruptImage, ErrDirectoryNotEmpty,
	} {
		byCode[e.Code] = e
	}
}

// MessageForCode implements get_error_message: a stable, human-readable
// sentence for a given error code, or false if the code is unknown.
func MessageForCode(code int) (string, bool) {
	e, ok := byCode[code]
	if !ok {
		return "", false
	}
	return e.Message, true
}

// CodeOf extracts the stable error code from err, or 0 (treated as
// unknown/unmapped) if err does not wrap one of this package's sentinels.
func CodeOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}
