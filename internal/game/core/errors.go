package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAction        = errors.New("invalid action")
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrInvalidBoard         = errors.New("invalid board")
)

// WrapActionError annotates err with the offending action value.
func WrapActionError(a Action, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("action %d (%s): %w", int(a), a, err)
}
