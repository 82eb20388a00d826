package core

import (
	"fmt"
	"strings"
)

// Action is one of the four slide directions. The integer encoding is part of
// the external contract and must not change.
type Action int

const (
	ActionUp Action = iota
	ActionDown
	ActionLeft
	ActionRight
)

// NumActions is the size of the discrete action space.
const NumActions = 4

// AllActions lists every action in encoding order.
var AllActions = [NumActions]Action{ActionUp, ActionDown, ActionLeft, ActionRight}

func (a Action) String() string {
	switch a {
	case ActionUp:
		return "up"
	case ActionDown:
		return "down"
	case ActionLeft:
		return "left"
	case ActionRight:
		return "right"
	default:
		return fmt.Sprintf("unknown(%d)", int(a))
	}
}

// Validate returns ErrInvalidAction for values outside [0,3].
func (a Action) Validate() error {
	if a < ActionUp || a > ActionRight {
		return WrapActionError(a, ErrInvalidAction)
	}
	return nil
}

// IsVertical reports whether the action moves tiles along columns.
func (a Action) IsVertical() bool { return a == ActionUp || a == ActionDown }

// IsReversed reports whether lines are traversed from the far edge
// (Down and Right read each line backwards before transforming it).
func (a Action) IsReversed() bool { return a == ActionDown || a == ActionRight }

// ParseAction accepts either the direction name or its integer encoding.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up", "u", "0":
		return ActionUp, nil
	case "down", "d", "1":
		return ActionDown, nil
	case "left", "l", "2":
		return ActionLeft, nil
	case "right", "r", "3":
		return ActionRight, nil
	}
	return 0, fmt.Errorf("parse action %q: %w", s, ErrInvalidAction)
}
