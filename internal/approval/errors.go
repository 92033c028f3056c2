package approval

import "errors"

var (
	ErrNotFound      = errors.New("candidate not found")
	ErrInvalidConfig = errors.New("invalid tracker config")
)
