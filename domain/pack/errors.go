package pack

import "errors"

// Domain errors for pack operations.
var (
	// ErrInvalidPack is returned when a pack is nil or unnamed.
	ErrInvalidPack = errors.New("invalid pack")
)
