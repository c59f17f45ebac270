package metadata

import "errors"

// ErrNoSlot is returned by Allocate when the metadata table is full.
var ErrNoSlot = errors.New("metadata: no free entry slot")
