// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/stacklok/errorflynn/env"
	"github.com/stacklok/errorflynn/logging"
	"github.com/stacklok/errorflynn/notifier"
)

//go:embed data/config.schema.json
var embeddedSchemaFS embed.FS

const schemaFile = "data/config.schema.json"

// URLKey is the log attribute under which the webhook URL is logged. Loggers
// built by [File.Logger] redact it, since webhook URLs embed their secret.
const URLKey = "webhook_url"

// ErrInvalidConfig is returned when a configuration file cannot be parsed or
// does not match the schema.
var ErrInvalidConfig = errors.New("invalid configuration")

// File is the YAML configuration file.
type File struct {
	URL         string             `yaml:"url"`
	Environment string             `yaml:"environment"`
	Skip        string             `yaml:"skip"`
	Timeout     string             `yaml:"timeout"`
	MaxInFlight int64              `yaml:"max_in_flight"`
	Headers     map[string]string  `yaml:"headers"`
	Overrides   notifier.Overrides `yaml:"overrides"`
	Log         Log                `yaml:"log"`
}

// Log configures the diagnostic logger.
type Log struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

// DefaultPath returns the configuration path under the XDG config home.
func DefaultPath() string {
	return PathFor(xdg.ConfigHome)
}

// PathFor returns the configuration path under the given config home.
func PathFor(configHome string) string {
	return filepath.Join(configHome, "errorflynn", "config.yaml")
}

// Load reads and parses the configuration file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is chosen by the operator
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes a YAML configuration and validates it against the schema.
func Parse(data []byte) (*File, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if raw == nil {
		raw = map[string]any{}
	}

	if o, ok := raw["overrides"]; ok && o != nil {
		if _, isMap := o.(map[string]any); !isMap {
			return nil, fmt.Errorf("%w: overrides must be a mapping, got %T", notifier.ErrInvalidOptions, o)
		}
	}

	doc, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := validateAgainstSchema(doc); err != nil {
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if o, ok := raw["overrides"].(map[string]any); ok {
		suppressNulls(&f.Overrides, o)
	}
	return &f, nil
}

// suppressNulls adds every override key set to null in the document to the
// suppress list. yaml.v3 decodes null as a nil pointer, which would keep the
// computed value.
func suppressNulls(o *notifier.Overrides, raw map[string]any) {
	for _, key := range notifier.Keys() {
		v, present := raw[key]
		if !present || v != nil || slices.Contains(o.Suppress, key) {
			continue
		}
		o.Suppress = append(o.Suppress, key)
	}
}

func validateAgainstSchema(doc []byte) error {
	schemaData, err := embeddedSchemaFS.ReadFile(schemaFile)
	if err != nil {
		return fmt.Errorf("failed to read embedded schema %s: %w", schemaFile, err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaData),
		gojsonschema.NewBytesLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	if len(msgs) == 1 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, msgs[0])
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d errors:", len(msgs))
	for i, msg := range msgs {
		fmt.Fprintf(&b, "\n  %d. %s", i+1, msg)
	}
	return fmt.Errorf("%w with %s", ErrInvalidConfig, b.String())
}

// ResolveURL returns explicit when set, otherwise the value of
// ERROR_FLYNN_URL read through r.
func ResolveURL(explicit string, r env.Reader) (string, error) {
	if u := strings.TrimSpace(explicit); u != "" {
		return u, nil
	}
	if r != nil {
		if u := strings.TrimSpace(r.Getenv(env.URLVar)); u != "" {
			return u, nil
		}
	}
	return "", fmt.Errorf("%w: pass a URL or set %s", notifier.ErrMissingURL, env.URLVar)
}

// Options converts the file into notifier options, resolving the webhook URL
// through r when the file sets none. Logger, Sender and Registerer are left
// for the caller.
func (f *File) Options(r env.Reader) (notifier.Options, error) {
	u, err := ResolveURL(f.URL, r)
	if err != nil {
		return notifier.Options{}, err
	}

	var timeout time.Duration
	if f.Timeout != "" {
		timeout, err = time.ParseDuration(f.Timeout)
		if err != nil {
			return notifier.Options{}, fmt.Errorf("%w: timeout: %w", ErrInvalidConfig, err)
		}
	}

	return notifier.Options{
		URL:         u,
		Overrides:   f.Overrides,
		SkipExpr:    f.Skip,
		Environment: f.Environment,
		Headers:     f.Headers,
		Timeout:     timeout,
		MaxInFlight: f.MaxInFlight,
	}, nil
}

// Logger builds the diagnostic logger described by the log section. The
// webhook URL attribute is always redacted.
func (f *File) Logger(out io.Writer) (*slog.Logger, error) {
	format, err := logging.ParseFormat(f.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	level, err := logging.ParseLevel(f.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	opts := []logging.Option{
		logging.WithFormat(format),
		logging.WithLevel(level),
		logging.WithRedactedKeys(URLKey),
	}
	if out != nil {
		opts = append(opts, logging.WithOutput(out))
	}
	return logging.New(opts...), nil
}
