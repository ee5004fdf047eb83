// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package httperr

import (
	"fmt"
	"runtime"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

const maxStackDepth = 32

type stack []uintptr

// stackTracer is implemented by errors created with github.com/pkg/errors.
type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

func callers() *stack {
	var pcs [maxStackDepth]uintptr
	// skip runtime.Callers, callers and the exported constructor
	n := runtime.Callers(3, pcs[:])
	s := stack(pcs[:n])
	return &s
}

func (s *stack) format() string {
	var b strings.Builder
	frames := runtime.CallersFrames(*s)
	for {
		frame, more := frames.Next()
		if frame.Function != "" {
			fmt.Fprintf(&b, "\n    at %s (%s:%d)", frame.Function, frame.File, frame.Line)
		}
		if !more {
			break
		}
	}
	return b.String()
}

// Stack returns a printable call stack for err, headed by the error message.
// It uses the innermost stack found in the error tree, from either a
// CodedError or an error carrying a github.com/pkg/errors stack trace. Joined
// errors are searched depth-first. Errors without a recorded stack yield an
// empty string.
func Stack(err error) string {
	if err == nil {
		return ""
	}
	trace := findStack(err)
	if trace == "" {
		return ""
	}
	return err.Error() + trace
}

func findStack(err error) string {
	var children []error
	switch u := err.(type) {
	case interface{ Unwrap() error }:
		if inner := u.Unwrap(); inner != nil {
			children = []error{inner}
		}
	case interface{ Unwrap() []error }:
		children = u.Unwrap()
	}
	for _, child := range children {
		if child == nil {
			continue
		}
		if trace := findStack(child); trace != "" {
			return trace
		}
	}
	return ownStack(err)
}

func ownStack(err error) string {
	switch v := err.(type) {
	case *CodedError:
		if v.stack != nil && len(*v.stack) > 0 {
			return v.stack.format()
		}
	case stackTracer:
		if st := v.StackTrace(); len(st) > 0 {
			return formatPkgStack(st)
		}
	}
	return ""
}

func formatPkgStack(st pkgerrors.StackTrace) string {
	var b strings.Builder
	for _, f := range st {
		fmt.Fprintf(&b, "\n    at %n (%s:%d)", f, f, f)
	}
	return b.String()
}
