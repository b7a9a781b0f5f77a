package project

import "errors"

var (
	ErrInvalidLimit   = errors.New("invalid resource limit")
	ErrUnknownRuntime = errors.New("unknown runtime")
)
