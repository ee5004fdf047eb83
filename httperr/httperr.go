// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package httperr provides error types with HTTP status codes and call stacks for
// error reporting.
package httperr

import (
	"errors"
	"fmt"
	"net/http"
)

// CodedError wraps an error with an HTTP status code and the call stack
// captured where the error was created.
type CodedError struct {
	err   error
	code  int
	stack *stack
}

// Error implements the error interface.
func (e *CodedError) Error() string {
	return e.err.Error()
}

// Unwrap returns the underlying error for errors.Is() and errors.As() compatibility.
func (e *CodedError) Unwrap() error {
	return e.err
}

// HTTPCode returns the HTTP status code associated with this error.
func (e *CodedError) HTTPCode() int {
	return e.code
}

// WithCode wraps an error with an HTTP status code.
// The returned error implements Unwrap() for use with errors.Is() and errors.As().
// If err is nil, WithCode returns nil.
func WithCode(err error, code int) error {
	if err == nil {
		return nil
	}
	return &CodedError{err: err, code: code, stack: callers()}
}

// New creates a new error with the given message and HTTP status code.
func New(message string, code int) error {
	return &CodedError{err: errors.New(message), code: code, stack: callers()}
}

// Errorf formats an error message and attaches the given HTTP status code.
// The %w verb is supported for wrapping.
func Errorf(code int, format string, args ...any) error {
	return &CodedError{err: fmt.Errorf(format, args...), code: code, stack: callers()}
}

// Status extracts the HTTP status code from an error chain.
// The second return value is false when no status was attached.
func Status(err error) (int, bool) {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.code, true
	}
	return 0, false
}

// Code extracts the HTTP status code from an error.
// If no CodedError is found, it returns http.StatusInternalServerError (500).
// A nil error maps to http.StatusOK (200).
func Code(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if code, ok := Status(err); ok {
		return code
	}
	return http.StatusInternalServerError
}
