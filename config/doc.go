// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package config loads the errorflynn YAML configuration file.

The file lives at $XDG_CONFIG_HOME/errorflynn/config.yaml by default and is
validated against an embedded JSON schema before it is decoded:

	url: https://hooks.slack.com/services/T000/B000/XXXX
	environment: production
	skip: status == 404
	timeout: 5s
	max_in_flight: 16
	headers:
	  X-Team: payments
	overrides:
	  author_name: ""
	  footer: checkout
	  suppress: [fields]
	log:
	  format: text
	  level: debug

An override set to "" or null removes that key from the notification, as does
listing the key under suppress.
When url is empty, [ResolveURL] falls back to the ERROR_FLYNN_URL environment
variable.
*/
package config
