package trader

import "errors"

// Request validation errors
var (
	ErrInvalidInterval = errors.New("invalid interval")
	ErrInvalidSide     = errors.New("invalid order side")
	ErrInvalidRange    = errors.New("invalid time range")
)
