// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package environment provides validation functions for environment names.
package environment

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxNameLength is the longest accepted environment name.
const MaxNameLength = 63

var validNameRegex = regexp.MustCompile(`^[A-Za-z0-9_.\-\s]+$`)

// ValidateName validates that an environment name only contains allowed
// characters: alphanumeric, underscore, dash, dot and space.
// It also enforces no leading/trailing/consecutive spaces and disallows null bytes.
func ValidateName(name string) error {
	if name == "" || strings.TrimSpace(name) == "" {
		return fmt.Errorf("environment name cannot be empty or consist only of whitespace")
	}

	// Check for null bytes explicitly
	if strings.Contains(name, "\x00") {
		return fmt.Errorf("environment name cannot contain null bytes")
	}

	if len(name) > MaxNameLength {
		return fmt.Errorf("environment name is longer than %d characters: %q", MaxNameLength, name)
	}

	// Validate characters
	if !validNameRegex.MatchString(name) {
		return fmt.Errorf("environment name can only contain alphanumeric characters, underscores, dashes, dots, and spaces: %q", name)
	}

	// Check for leading/trailing whitespace
	if strings.TrimSpace(name) != name {
		return fmt.Errorf("environment name cannot have leading or trailing whitespace: %q", name)
	}

	// Check for consecutive spaces
	if strings.Contains(name, "  ") {
		return fmt.Errorf("environment name cannot contain consecutive spaces: %q", name)
	}

	return nil
}
