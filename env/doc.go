// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package env provides an interface-based abstraction for environment variable
access, so that the ERROR_FLYNN_URL lookup happens once, at startup, in the
caller rather than inside the notifier.

# Basic Usage

	reader := &env.OSReader{}
	url := reader.Getenv(env.URLVar)

# Testing

MapReader serves fixed values, and a generated gomock mock lives in the mocks
sub-package:

	ctrl := gomock.NewController(t)
	mock := mocks.NewMockReader(ctrl)
	mock.EXPECT().Getenv(env.URLVar).Return("https://hooks.example.com/x")
*/
package env
