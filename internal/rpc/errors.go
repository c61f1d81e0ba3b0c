package rpc

import (
	"fmt"
	"net/http"
)

// FetchError reports a failed request to an upstream API: connection
// failure, timeout or non-2xx status.
type FetchError struct {
	Source     string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("fetch %s: HTTP %d %s: %v", e.Source, e.StatusCode, http.StatusText(e.StatusCode), e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("fetch %s: HTTP %d %s", e.Source, e.StatusCode, http.StatusText(e.StatusCode))
	default:
		return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ParseError reports a response body that is not valid JSON or lacks a
// required field.
type ParseError struct {
	Source string
	Field  string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: field %q: %v", e.Source, e.Field, e.Err)
	}
	return fmt.Sprintf("parse %s: field %q missing", e.Source, e.Field)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
