package game

import "errors"

var (
	ErrConflict        = errors.New("entity already exists")
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidPosition = errors.New("position out of bounds")
	ErrInvalidMap      = errors.New("invalid map dimensions")
)
