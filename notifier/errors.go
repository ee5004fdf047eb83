// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package notifier

import "errors"

// Construction errors. They are returned wrapped; test with errors.Is.
var (
	// ErrMissingURL is returned when no webhook URL was configured.
	ErrMissingURL = errors.New("error notifier requires a webhook URL")

	// ErrInvalidURL is returned when the webhook URL is not an absolute http(s) URL.
	ErrInvalidURL = errors.New("invalid webhook URL")

	// ErrInvalidOptions is returned for malformed overrides, headers or skip expressions.
	ErrInvalidOptions = errors.New("invalid notifier options")
)
