// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package filter compiles CEL expressions that decide, per error, whether a
notification is suppressed. The configuration file carries them as the skip
option:

	skip: 'status == 404 && path.startsWith("/favicon")'

# Usage

	engine := filter.NewEngine()
	expr, err := engine.Compile(`status < 500 && headers["user-agent"].contains("bot")`)
	if err != nil {
	    // reject the configuration
	}

	skip, err := expr.Matches(filter.InputFrom(err, r))

Expressions must have type bool; anything else is rejected at compile time
with ErrInvalidResult.

# Errors

Rejected expressions come back as *ParseError or *CheckError with the source
and line/column details; both wrap ErrExpressionCheck. Runtime failures, for
example indexing a missing header, wrap ErrEvaluation. Callers treat an
evaluation failure as "do not skip".

# Limits

Expressions run for every reported error. The engine caps expression length
(DefaultMaxExpressionLength) and evaluation cost (DefaultCostLimit).
*/
package filter
