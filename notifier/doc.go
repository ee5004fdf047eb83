// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package notifier reports request errors to a Slack-compatible incoming webhook.

A Notifier is an [errchain.ErrorHandler]. For every error that reaches it, it
builds an attachment describing the failed request (status, path, environment,
host CPU load, call stack, query string and request body), posts it to the
webhook in the background and passes the error on to the next handler
unchanged.

	n, err := notifier.New(notifier.Options{
		URL:      url,
		SkipExpr: `status == 404`,
	})
	if err != nil {
		return err
	}
	app := errchain.New()
	app.UseError(n.Handler())

Delivery failures are logged and never reach the caller. Call [Notifier.Wait]
before exiting to let pending deliveries finish.

# Overrides

[Overrides] replace parts of the computed attachment. A nil field keeps the
computed value, a field pointing at "" removes the key from the payload, and
keys listed in Overrides.Suppress are removed regardless.
*/
package notifier
