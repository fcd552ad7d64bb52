package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an article or feed id is unknown.
	ErrNotFound = errors.New("not found")
	// ErrInvalidAction is returned for an unknown ledger action.
	ErrInvalidAction = errors.New("invalid action")
	// ErrInvalidFilter is returned for an unknown time filter.
	ErrInvalidFilter = errors.New("invalid time filter")
	// ErrInvalidGoal is returned for a daily goal below one.
	ErrInvalidGoal = errors.New("daily goal must be at least 1")
)

// FetchError reports a failed request for a feed or configuration document.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: HTTP error! status: %d", e.URL, e.StatusCode)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsFetchError reports whether err wraps a *FetchError.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}
