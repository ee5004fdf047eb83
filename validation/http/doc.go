// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package http provides security-focused validation functions for HTTP headers and webhook URLs.

This package helps prevent common security vulnerabilities such as HTTP header injection
(CRLF injection) and malformed URI attacks by validating input against RFC specifications.

# Header Validation

Validate HTTP header names and values per RFC 7230:

	if err := http.ValidateHeaderName("X-Custom-Header"); err != nil {
		// Handle invalid header name
	}

	if err := http.ValidateHeaderValue("Bearer token123"); err != nil {
		// Handle invalid header value
	}

The validators check for:
  - CRLF injection attempts (\r\n sequences)
  - Control characters
  - RFC 7230 token compliance for header names
  - Length limits to prevent DoS (256 bytes for names, 8192 for values)

A header map, such as the extra headers sent with every webhook delivery, can be
checked in one call with ValidateHeaders.

# Webhook URL Validation

	if err := http.ValidateWebhookURL("https://hooks.slack.com/services/T/B/X"); err != nil {
		// Handle invalid URL
	}

Webhook URLs must:
  - Use the http or https scheme
  - Include a host
  - Not contain fragment identifiers (#)
*/
package http
