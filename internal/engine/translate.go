package engine

import (
	"errors"
	"fmt"

	"omnifs/internal/image"
	"omnifs/internal/users"
)

func wrapIO(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrIO, err)
}

// translateImageErr maps the image package's sentinels onto the engine's
// own error taxonomy so callers only ever see engine.Error values.
func translateImageErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, image.ErrCorruptImage):
		return fmt.Errorf("%w: %v", ErrCorruptImage, err)
	case errors.Is(err, image.ErrIO):
		return fmt.Errorf("%w: %v", ErrIO, err)
	default:
		return err
	}
}

// translateUsersErr maps the users package's sentinels onto the engine's
// taxonomy.
func translateUsersErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, users.ErrAuthFailed):
		return fmt.Errorf("%w: %v", ErrAuthFailed, err)
	case errors.Is(err, users.ErrAlreadyExists):
		return fmt.Errorf("%w: %v", ErrAlreadyExists, err)
	case errors.Is(err, users.ErrNoSlot):
		return fmt.Errorf("%w: %v", ErrNoSpace, err)
	case errors.Is(err, users.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, users.ErrInvariantViolation):
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	default:
		return wrapIO(err)
	}
}
