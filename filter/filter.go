// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package filter compiles CEL expressions that decide whether an error
// notification is suppressed.
package filter

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/stacklok/errorflynn/httperr"
)

const (
	// DefaultMaxExpressionLength is the maximum allowed length for an expression.
	DefaultMaxExpressionLength = 4096

	// DefaultCostLimit is the default runtime cost limit for expression evaluation.
	// Expressions run on every reported error, so the budget is kept small.
	DefaultCostLimit = 100000
)

// Variable names available to expressions.
const (
	VarStatus  = "status"
	VarMessage = "message"
	VarMethod  = "method"
	VarPath    = "path"
	VarHost    = "host"
	VarQuery   = "query"
	VarHeaders = "headers"
)

// Engine compiles filter expressions. It is safe for concurrent use.
type Engine struct {
	once sync.Once
	env  *cel.Env
	err  error

	maxExpressionLength int
	costLimit           uint64
}

// Expression is a compiled filter ready for evaluation.
type Expression struct {
	source  string
	program cel.Program
}

// Source returns the original expression source string.
func (e *Expression) Source() string {
	return e.source
}

// NewEngine creates an engine declaring the request and error variables:
//
//	status  int                 HTTP status of the error (500 when none attached)
//	message string              error message
//	method  string              request method
//	path    string              request path
//	host    string              request host
//	query   map(string, string) first value of each query parameter
//	headers map(string, string) request headers, lower-cased names
func NewEngine() *Engine {
	return &Engine{
		maxExpressionLength: DefaultMaxExpressionLength,
		costLimit:           DefaultCostLimit,
	}
}

// WithMaxExpressionLength sets the maximum allowed length for expressions.
func (e *Engine) WithMaxExpressionLength(maxLen int) *Engine {
	e.maxExpressionLength = maxLen
	return e
}

// WithCostLimit sets the runtime cost limit for expression evaluation.
func (e *Engine) WithCostLimit(limit uint64) *Engine {
	e.costLimit = limit
	return e
}

func (e *Engine) getEnv() (*cel.Env, error) {
	e.once.Do(func() {
		e.env, e.err = cel.NewEnv(
			cel.Variable(VarStatus, cel.IntType),
			cel.Variable(VarMessage, cel.StringType),
			cel.Variable(VarMethod, cel.StringType),
			cel.Variable(VarPath, cel.StringType),
			cel.Variable(VarHost, cel.StringType),
			cel.Variable(VarQuery, cel.MapType(cel.StringType, cel.StringType)),
			cel.Variable(VarHeaders, cel.MapType(cel.StringType, cel.StringType)),
		)
	})
	return e.env, e.err
}

// Compile parses and type-checks an expression. The expression must evaluate
// to a bool.
//
// Returns an error if the expression exceeds the maximum length, a ParseError
// if the expression has syntax errors, or a CheckError if the expression has
// type errors.
func (e *Engine) Compile(expr string) (*Expression, error) {
	checked, env, err := e.check(expr)
	if err != nil {
		return nil, err
	}

	program, err := env.Program(checked, cel.CostLimit(e.costLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to create program for %q: %w", expr, err)
	}

	return &Expression{source: expr, program: program}, nil
}

// Check verifies that an expression is valid without creating a program.
func (e *Engine) Check(expr string) error {
	_, _, err := e.check(expr)
	return err
}

func (e *Engine) check(expr string) (*cel.Ast, *cel.Env, error) {
	if len(expr) > e.maxExpressionLength {
		return nil, nil, fmt.Errorf("%w: expression length %d exceeds maximum of %d",
			ErrExpressionCheck, len(expr), e.maxExpressionLength)
	}

	env, err := e.getEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get CEL environment: %w", err)
	}

	parsed, issues := env.Parse(expr)
	if issues.Err() != nil {
		return nil, nil, newParseError(expr, issues)
	}

	checked, issues := env.Check(parsed)
	if issues.Err() != nil {
		return nil, nil, newCheckError(expr, issues)
	}

	if !checked.OutputType().IsExactType(cel.BoolType) {
		return nil, nil, fmt.Errorf("%w: %q has type %s, want bool",
			ErrInvalidResult, expr, checked.OutputType())
	}

	return checked, env, nil
}

// Input is the data an expression is evaluated against.
type Input struct {
	Status  int
	Message string
	Method  string
	Path    string
	Host    string
	Query   map[string]string
	Headers map[string]string
}

// InputFrom collects the expression variables for an error raised while serving r.
func InputFrom(err error, r *http.Request) Input {
	in := Input{
		Status:  httperr.Code(err),
		Query:   map[string]string{},
		Headers: map[string]string{},
	}
	if err != nil {
		in.Message = err.Error()
	}
	if r == nil {
		return in
	}

	in.Method = r.Method
	in.Host = r.Host
	if r.URL != nil {
		in.Path = r.URL.Path
		for k, v := range r.URL.Query() {
			if len(v) > 0 {
				in.Query[k] = v[0]
			}
		}
	}
	for k, v := range r.Header {
		if len(v) > 0 {
			in.Headers[strings.ToLower(k)] = v[0]
		}
	}
	return in
}

func (in Input) activation() map[string]any {
	query, headers := in.Query, in.Headers
	if query == nil {
		query = map[string]string{}
	}
	if headers == nil {
		headers = map[string]string{}
	}
	return map[string]any{
		VarStatus:  int64(in.Status),
		VarMessage: in.Message,
		VarMethod:  in.Method,
		VarPath:    in.Path,
		VarHost:    in.Host,
		VarQuery:   query,
		VarHeaders: headers,
	}
}

// Matches evaluates the expression against in.
func (e *Expression) Matches(in Input) (bool, error) {
	out, _, err := e.program.Eval(in.activation())
	if err != nil {
		return false, fmt.Errorf("%w: %s", ErrEvaluation, err)
	}

	matched, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("%w: got %T", ErrInvalidResult, out.Value())
	}
	return matched, nil
}
