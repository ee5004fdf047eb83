// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package recovery

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/stacklok/errorflynn/httperr"
)

// ErrPanic is wrapped by errors produced from recovered panics.
var ErrPanic = errors.New("panic")

// Guard runs fn and converts a panic into a 500 error that carries the stack
// of the panic site, so the panic flows through the error chain like any
// other returned error. http.ErrAbortHandler is re-raised.
func Guard(fn func(http.ResponseWriter, *http.Request) error) func(http.ResponseWriter, *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) (err error) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler { //nolint:errorlint // sentinel panic value
				panic(rec)
			}
			err = panicError(rec)
		}()
		return fn(w, r)
	}
}

func panicError(rec any) error {
	if err, ok := rec.(error); ok {
		return httperr.Errorf(http.StatusInternalServerError, "%w: %w", ErrPanic, err)
	}
	return httperr.Errorf(http.StatusInternalServerError, "%w: %v", ErrPanic, rec)
}

// Middleware is an HTTP middleware that recovers from panics escaping the
// error chain. It logs the panic value and stack trace and returns a 500
// Internal Server Error response.
func Middleware(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler { //nolint:errorlint // sentinel panic value
					panic(rec)
				}
				logger.Error("recovered from panic",
					"panic", fmt.Sprint(rec),
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
