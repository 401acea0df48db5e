package domain

import "errors"

var (
	ErrInvalidTransition = errors.New("invalid job state transition")
	ErrIncomplete        = errors.New("batch run incomplete")
	ErrRunNotFound       = errors.New("run not found")
	ErrInvalidConfig     = errors.New("invalid configuration")
)
