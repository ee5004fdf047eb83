// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package webhook is a minimal client for Slack-compatible incoming webhooks.

A Client is bound to one URL at construction and posts Message values as
JSON. Outbound requests go through an OpenTelemetry instrumented transport, so
deliveries show up as client spans when a tracer provider is installed.

	client, err := webhook.New(url, webhook.WithTimeout(10*time.Second))
	if err != nil {
	    return err
	}
	err = client.Send(ctx, webhook.Message{
	    Attachments: []webhook.Attachment{{Title: "Oh noooooooo!", Color: webhook.ColorDanger}},
	})

Any 2xx answer counts as delivered. Other statuses are returned as
*StatusError with the (truncated) response body, which is where Slack puts
its reason, for example "invalid_payload" or "no_service".

The Sender interface is what the notifier depends on; a generated gomock mock
lives in the mocks sub-package.
*/
package webhook
