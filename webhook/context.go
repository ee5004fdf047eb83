// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package webhook

import "context"

// NotificationIDHeader carries the notification id on outbound requests so a
// delivery can be matched to the log line reporting its failure.
const NotificationIDHeader = "X-Flynn-Notification-Id"

type notificationIDKey struct{}

// WithNotificationID returns a context carrying id.
func WithNotificationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, notificationIDKey{}, id)
}

// NotificationID returns the id stored by WithNotificationID, or "".
func NotificationID(ctx context.Context) string {
	id, _ := ctx.Value(notificationIDKey{}).(string)
	return id
}
