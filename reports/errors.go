package reports

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	// ErrTerminal is returned when a change is attempted on a record whose
	// status is already terminal.
	ErrTerminal = errors.New("download already finished")
)

// ErrInvalidPattern is returned for pattern text that does not compile. It
// also matches ErrInvalidInput.
var ErrInvalidPattern = fmt.Errorf("%w: invalid regex pattern", ErrInvalidInput)
