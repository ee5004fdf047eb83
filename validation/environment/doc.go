// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package environment provides validation functions for environment names.

The environment name is reported with every error notification, so it is kept
to a short, printable label.

# Name Validation

	if err := environment.ValidateName("production"); err != nil {
		// Handle invalid environment name
	}

Valid environment names must:
  - Be non-empty (not just whitespace)
  - Be at most 63 characters long
  - Contain only alphanumeric characters, underscores, dashes, dots, and spaces
  - Not contain null bytes
  - Not have leading or trailing whitespace
  - Not contain consecutive spaces

# Examples

Valid names:

	"production"
	"eu-west.staging"
	"Review App 42"

Invalid names:

	""                  // empty
	"prod/eu"           // special characters
	" production"       // leading space
	"review  app"       // consecutive spaces
*/
package environment
