// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package recovery turns handler panics into reportable errors.
//
// Guard wraps an error-returning handler. A panic becomes an httperr error with
// status 500 and the stack of the panic site, so it reaches error middleware
// such as the notifier exactly like a returned error:
//
//	h := recovery.Guard(func(w http.ResponseWriter, r *http.Request) error {
//		panic("boom")
//	})
//	err := h(w, r) // "panic: boom", errors.Is(err, recovery.ErrPanic)
//
// Middleware is the outermost safety net for panics raised outside the error
// chain (for example in plain net/http middleware). It logs the panic value and
// stack and answers 500:
//
//	srv := &http.Server{Handler: recovery.Middleware(logger)(app)}
package recovery
