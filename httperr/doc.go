// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package httperr provides error types that carry an HTTP status code and the call
stack of the place they were created.

Handlers served through errchain return errors instead of writing responses. The
status travels with the error so that error middleware (the notifier, the final
status writer) can classify it, and the captured stack is what ends up in the
"Call Stack" section of a notification.

# Basic Usage

	err := httperr.New("Not Found!", http.StatusNotFound)
	err = httperr.WithCode(err, http.StatusBadRequest)
	err = httperr.Errorf(http.StatusBadGateway, "upstream %s: %w", name, cause)

# Extracting Status Codes

	code := httperr.Code(err)       // 500 when no status was attached, 200 for nil
	code, ok := httperr.Status(err) // ok is false when no status was attached

# Stacks

Stack returns the error message followed by one "at function (file:line)" line per
frame. Errors created with github.com/pkg/errors are recognised as well:

	st := httperr.Stack(pkgerrors.New("Oh noooooooo!"))
*/
package httperr
