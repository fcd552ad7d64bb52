package model

import "fmt"

// Action is the decision recorded for an article.
type Action string

const (
	ActionLike     Action = "like"
	ActionDismiss  Action = "dismiss"
	ActionBookmark Action = "bookmark"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionLike, ActionDismiss, ActionBookmark:
		return true
	}
	return false
}

// ParseAction parses an action name. "skip" is accepted for dismiss.
func ParseAction(s string) (Action, error) {
	if s == "skip" {
		return ActionDismiss, nil
	}
	a := Action(s)
	if !a.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidAction, s)
	}
	return a, nil
}

// Past returns the word used in user-facing messages.
func (a Action) Past() string {
	switch a {
	case ActionLike:
		return "liked"
	case ActionDismiss:
		return "skipped"
	case ActionBookmark:
		return "bookmarked"
	}
	return string(a)
}

// Direction is the swipe direction.
type Direction string

const (
	DirectionLeft  Direction = "left"
	DirectionRight Direction = "right"
)

// ParseDirection parses a swipe direction.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(s); d {
	case DirectionLeft, DirectionRight:
		return d, nil
	}
	return "", fmt.Errorf("invalid direction: %q (expected left or right)", s)
}

// Action maps right to like and left to dismiss.
func (d Direction) Action() Action {
	if d == DirectionRight {
		return ActionLike
	}
	return ActionDismiss
}
