// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/errorflynn/errchain"
	"github.com/stacklok/errorflynn/httperr"
	"github.com/stacklok/errorflynn/webhook"
)

// Section titles of the attachment text, in order.
const (
	SectionCallStack   = "Call Stack"
	SectionQueryString = "Query String"
	SectionRequestBody = "Request Body"
	loadUnavailable    = "n/a"
	codeFence          = "```"
)

// Severity returns the attachment color for an HTTP status:
// warning below 500, danger otherwise.
func Severity(status int) string {
	if status < http.StatusInternalServerError {
		return webhook.ColorWarning
	}
	return webhook.ColorDanger
}

// StatusOf returns the status attached to err, or 500.
func StatusOf(err error) int {
	if status, ok := httperr.Status(err); ok {
		return status
	}
	return http.StatusInternalServerError
}

// Attachment builds the notification for err raised while serving r, with
// the configured overrides applied.
func (n *Notifier) Attachment(err error, r *http.Request) webhook.Attachment {
	status := StatusOf(err)
	a := webhook.Attachment{
		AuthorName: r.Host,
		Color:      Severity(status),
		Fallback:   err.Error(),
		Fields:     n.fields(status, r),
		MrkdwnIn:   []string{"text"},
		Title:      err.Error(),
		Text:       Text(err, r),
	}
	n.overrides.Apply(&a)
	return a
}

func (n *Notifier) fields(status int, r *http.Request) []webhook.Field {
	environment := errchain.Setting(r, errchain.SettingEnv)
	if environment == "" {
		environment = n.environment
	}

	load, err := n.sampler.Sample()
	loadValue := load.Summary()
	if err != nil {
		n.logger.Debug("host load unavailable", "error", err)
		loadValue = loadUnavailable
	}

	fields := []webhook.Field{
		{Title: "HTTP Status", Value: strconv.Itoa(status), Short: true},
		{Title: "Path", Value: r.URL.RequestURI(), Short: true},
		{Title: "Environment", Value: environment, Short: true},
		{Title: load.Title(), Value: loadValue, Short: true},
	}

	if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
		fields = append(fields, webhook.Field{Title: "Trace ID", Value: sc.TraceID().String(), Short: true})
	}
	return fields
}

// Text assembles the markdown sections for err and r: call stack, query
// string and request body, each left out when empty.
func Text(err error, r *http.Request) string {
	var query any
	if r.URL.RawQuery != "" {
		query = errchain.Flatten(r.URL.Query())
	}

	return CodeBlock(SectionCallStack, httperr.Stack(err)) +
		CodeBlock(SectionQueryString, query) +
		CodeBlock(SectionRequestBody, errchain.Body(r))
}

// CodeBlock renders value as a titled code block. Strings are trimmed, other
// values are rendered as indented JSON. Empty values render as "".
func CodeBlock(title string, value any) string {
	if isEmpty(value) {
		return ""
	}

	var code string
	if s, ok := value.(string); ok {
		code = strings.TrimSpace(s)
	} else {
		code = indentJSON(value)
	}
	if code == "" {
		return ""
	}
	return "_" + title + "_" + codeFence + code + codeFence + "\n"
}

func indentJSON(value any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(value); err != nil {
		return fmt.Sprintf("%+v", value)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

func isEmpty(value any) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.String, reflect.Map, reflect.Slice, reflect.Array:
		return v.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return v.IsNil()
	default:
		return false
	}
}
