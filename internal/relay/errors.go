package relay

import "errors"

var (
	// ErrNotConnected marks warning results: the operation needed an active,
	// store-verified session and the caller does not have one. The result
	// string tells the caller what to do, the process carries on.
	ErrNotConnected = errors.New("no active session")

	// ErrEmptyInput marks input rejected before any store call.
	ErrEmptyInput = errors.New("empty input")
)
