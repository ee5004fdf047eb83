// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package errchain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/stacklok/errorflynn/httperr"
)

type bodyKey struct{}

// Body returns the parsed request body: the decoded JSON value for
// application/json, a map of form values for url-encoded forms, or the text
// of text/plain bodies. It returns nil when the body was empty or not parsed.
func Body(r *http.Request) any {
	return r.Context().Value(bodyKey{})
}

// Flatten converts url.Values into a map where single-valued keys hold a
// string and repeated keys hold a []string.
func Flatten(values url.Values) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		switch len(v) {
		case 0:
			out[k] = ""
		case 1:
			out[k] = v[0]
		default:
			out[k] = append([]string(nil), v...)
		}
	}
	return out
}

// parseBody decodes the request body according to its content type and stores
// the result in the request context. The raw bytes are restored on r.Body.
func parseBody(r *http.Request, limit int64) (*http.Request, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return r, nil
	}
	if Body(r) != nil {
		return r, nil
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json", "application/x-www-form-urlencoded", "text/plain":
	default:
		return r, nil
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	_ = r.Body.Close()
	if err != nil {
		return r, httperr.Errorf(http.StatusBadRequest, "reading request body: %w", err)
	}
	if int64(len(data)) > limit {
		return r, httperr.New("request entity too large", http.StatusRequestEntityTooLarge)
	}
	r.Body = io.NopCloser(bytes.NewReader(data))

	value, err := decodeBody(mediaType, data)
	if err != nil {
		return r, err
	}
	if value == nil {
		return r, nil
	}
	return r.WithContext(context.WithValue(r.Context(), bodyKey{}, value)), nil
}

func decodeBody(mediaType string, data []byte) (any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	switch mediaType {
	case "application/json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, httperr.Errorf(http.StatusBadRequest, "invalid JSON body: %w", err)
		}
		if dec.More() {
			return nil, httperr.WithCode(errors.New("invalid JSON body: trailing data"), http.StatusBadRequest)
		}
		return v, nil
	case "application/x-www-form-urlencoded":
		values, err := url.ParseQuery(string(data))
		if err != nil {
			return nil, httperr.Errorf(http.StatusBadRequest, "invalid form body: %w", err)
		}
		return Flatten(values), nil
	case "text/plain":
		return strings.TrimSpace(string(data)), nil
	default:
		return nil, fmt.Errorf("unsupported media type %q", mediaType)
	}
}
