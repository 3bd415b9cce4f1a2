package model

import "fmt"

// ValidationError reports bad caller input: malformed routes, duplicate
// routes or group names, or referenced entities that don't exist for
// the calling user. It surfaces synchronously and is never retried.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// FetchError reports a transport failure or non-2xx response while
// fetching a feed URL.
type FetchError struct {
	Route  string
	Status int // 0 when the request never produced a response
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.Route, e.Err)
	}
	return fmt.Sprintf("Failed to fetch feed: %d", e.Status)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ParseError reports a malformed feed body or an unrecognized feed
// shape.
type ParseError struct {
	Message string
}

func (e *ParseError) Error() string {
	return e.Message
}
