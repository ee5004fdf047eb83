// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package notifier_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/errorflynn/errchain"
	"github.com/stacklok/errorflynn/hostload"
	hostloadmocks "github.com/stacklok/errorflynn/hostload/mocks"
	"github.com/stacklok/errorflynn/httperr"
	"github.com/stacklok/errorflynn/logging"
	"github.com/stacklok/errorflynn/notifier"
	"github.com/stacklok/errorflynn/webhook"
	webhookmocks "github.com/stacklok/errorflynn/webhook/mocks"
)

const testURL = "https://hooks.example.com/services/T000/B000/XXXX"

var testLoad = hostload.Load{Cores: 4, Load1: 1.234, Load5: 0.5, Load15: 0.25}

// recorder collects the messages handed to a mock sender.
type recorder struct {
	mu   sync.Mutex
	msgs []webhook.Message
	ctxs []context.Context
}

func (rec *recorder) send(ctx context.Context, msg webhook.Message) error {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.msgs = append(rec.msgs, msg)
	rec.ctxs = append(rec.ctxs, ctx)
	return nil
}

func (rec *recorder) attachments() []webhook.Attachment {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	var out []webhook.Attachment
	for _, m := range rec.msgs {
		out = append(out, m.Attachments...)
	}
	return out
}

func newSampler(ctrl *gomock.Controller) *hostloadmocks.MockSampler {
	sampler := hostloadmocks.NewMockSampler(ctrl)
	sampler.EXPECT().Sample().Return(testLoad, nil).AnyTimes()
	return sampler
}

// newApp serves the demo routes with n in the error chain and records the
// errors the next handler receives.
func newApp(n *notifier.Notifier, seen *[]error) *errchain.App {
	app := errchain.New()
	app.Get("/ok", func(w http.ResponseWriter, _ *http.Request) error {
		_, _ = w.Write([]byte("OK"))
		return nil
	})
	app.Get("/404", func(_ http.ResponseWriter, _ *http.Request) error {
		return httperr.New("Not Found!", http.StatusNotFound)
	})
	app.Handle("/500", func(_ http.ResponseWriter, _ *http.Request) error {
		return pkgerrors.New("Oh noooooooo!")
	})
	app.UseError(n.Handler())
	if seen != nil {
		var mu sync.Mutex
		app.UseError(func(err error, _ http.ResponseWriter, _ *http.Request, next errchain.Next) {
			mu.Lock()
			*seen = append(*seen, err)
			mu.Unlock()
			next(err)
		})
	}
	return app
}

func do(app http.Handler, method, target, body, contentType string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	return rec
}

func fieldValue(t *testing.T, a webhook.Attachment, title string) string {
	t.Helper()
	for _, f := range a.Fields {
		if f.Title == title {
			assert.True(t, f.Short, "field %q should be short", title)
			return f.Value
		}
	}
	t.Fatalf("field %q not found in %+v", title, a.Fields)
	return ""
}

func TestNew_Errors(t *testing.T) {
	t.Parallel()

	empty := ""
	tests := []struct {
		name    string
		opts    notifier.Options
		wantErr error
	}{
		{"missing URL", notifier.Options{}, notifier.ErrMissingURL},
		{"blank URL", notifier.Options{URL: "   "}, notifier.ErrMissingURL},
		{"relative URL", notifier.Options{URL: "/hooks"}, notifier.ErrInvalidURL},
		{"unsupported scheme", notifier.Options{URL: "ftp://hooks.example.com/x"}, notifier.ErrInvalidURL},
		{"unknown suppress key", notifier.Options{URL: testURL, Overrides: notifier.Overrides{Suppress: []string{"nope"}}}, notifier.ErrInvalidOptions},
		{"invalid header", notifier.Options{URL: testURL, Headers: map[string]string{"Bad Header": "x"}}, notifier.ErrInvalidOptions},
		{"invalid skip expression", notifier.Options{URL: testURL, SkipExpr: "status =="}, notifier.ErrInvalidOptions},
		{"non-bool skip expression", notifier.Options{URL: testURL, SkipExpr: "status + 1"}, notifier.ErrInvalidOptions},
		{"invalid environment", notifier.Options{URL: testURL, Environment: "prod/eu"}, notifier.ErrInvalidOptions},
		{"negative max in flight", notifier.Options{URL: testURL, MaxInFlight: -1}, notifier.ErrInvalidOptions},
		{"suppressing override is valid", notifier.Options{URL: testURL, Overrides: notifier.Overrides{AuthorName: &empty}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			n, err := notifier.New(tt.opts)
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.NotNil(t, n)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, n)
		})
	}
}

func TestNew_MissingURLNamesVariable(t *testing.T) {
	t.Parallel()

	_, err := notifier.New(notifier.Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERROR_FLYNN_URL")
}

func TestNew_InjectedSenderStillValidatesTransportOptions(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	sender := webhookmocks.NewMockSender(ctrl)

	_, err := notifier.New(notifier.Options{
		URL:     testURL,
		Sender:  sender,
		Headers: map[string]string{"Bad Header": "x"},
	})
	require.ErrorIs(t, err, notifier.ErrInvalidOptions)

	_, err = notifier.New(notifier.Options{URL: testURL, Sender: sender, Timeout: -time.Second})
	require.ErrorIs(t, err, notifier.ErrInvalidOptions)

	rec := &recorder{}
	sender.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(rec.send)
	n, err := notifier.New(notifier.Options{
		URL:         testURL,
		Sender:      sender,
		LoadSampler: newSampler(ctrl),
		Headers:     map[string]string{"X-Team": "payments"},
		Timeout:     time.Nanosecond,
	})
	require.NoError(t, err)

	n.Handler()(errors.New("boom"), httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil), func(error) {})
	n.Wait()

	require.Len(t, rec.ctxs, 1)
	_, hasDeadline := rec.ctxs[0].Deadline()
	assert.False(t, hasDeadline, "timeout belongs to the built client, not the injected sender")
}

func TestHandler_Delivers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		method      string
		target      string
		body        string
		contentType string
		wantStatus  string
		wantColor   string
		wantTitle   string
		wantPath    string
		wantText    []string
		notInText   []string
	}{
		{
			name:       "server error",
			method:     http.MethodGet,
			target:     "/500",
			wantStatus: "500",
			wantColor:  webhook.ColorDanger,
			wantTitle:  "Oh noooooooo!",
			wantPath:   "/500",
			wantText:   []string{"_Call Stack_```Oh noooooooo!\n    at "},
			notInText:  []string{notifier.SectionQueryString, notifier.SectionRequestBody},
		},
		{
			name:       "client error",
			method:     http.MethodGet,
			target:     "/404",
			wantStatus: "404",
			wantColor:  webhook.ColorWarning,
			wantTitle:  "Not Found!",
			wantPath:   "/404",
			wantText:   []string{"_Call Stack_```Not Found!\n    at "},
		},
		{
			name:       "query string",
			method:     http.MethodGet,
			target:     "/500?a=1&b=2&b=3",
			wantStatus: "500",
			wantColor:  webhook.ColorDanger,
			wantTitle:  "Oh noooooooo!",
			wantPath:   "/500?a=1&b=2&b=3",
			wantText: []string{
				"_Query String_```{\n  \"a\": \"1\",\n  \"b\": [\n    \"2\",\n    \"3\"\n  ]\n}```\n",
			},
			notInText: []string{notifier.SectionRequestBody},
		},
		{
			name:        "json body",
			method:      http.MethodPost,
			target:      "/500",
			body:        `{"name":"flynn","tags":["a"]}`,
			contentType: "application/json",
			wantStatus:  "500",
			wantColor:   webhook.ColorDanger,
			wantTitle:   "Oh noooooooo!",
			wantPath:    "/500",
			wantText: []string{
				"_Request Body_```{\n  \"name\": \"flynn\",\n  \"tags\": [\n    \"a\"\n  ]\n}```\n",
			},
		},
		{
			name:        "nested json body",
			method:      http.MethodPost,
			target:      "/500",
			body:        `{"test":"test","a":{"b":1}}`,
			contentType: "application/json",
			wantStatus:  "500",
			wantColor:   webhook.ColorDanger,
			wantTitle:   "Oh noooooooo!",
			wantPath:    "/500",
			wantText: []string{
				"_Request Body_```{\n  \"a\": {\n    \"b\": 1\n  },\n  \"test\": \"test\"\n}```\n",
			},
		},
		{
			name:       "single query parameter",
			method:     http.MethodGet,
			target:     "/500?girlfriend=x",
			wantStatus: "500",
			wantColor:  webhook.ColorDanger,
			wantTitle:  "Oh noooooooo!",
			wantPath:   "/500?girlfriend=x",
			wantText:   []string{"_Query String_```{\n  \"girlfriend\": \"x\"\n}```\n"},
		},
		{
			name:        "text body is trimmed",
			method:      http.MethodPut,
			target:      "/500",
			body:        "  hello there \n",
			contentType: "text/plain",
			wantStatus:  "500",
			wantColor:   webhook.ColorDanger,
			wantTitle:   "Oh noooooooo!",
			wantPath:    "/500",
			wantText:    []string{"_Request Body_```hello there```\n"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			rec := &recorder{}
			sender := webhookmocks.NewMockSender(ctrl)
			sender.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(rec.send).Times(1)

			n, err := notifier.New(notifier.Options{URL: testURL, Sender: sender, LoadSampler: newSampler(ctrl)})
			require.NoError(t, err)

			var seen []error
			resp := do(newApp(n, &seen), tt.method, tt.target, tt.body, tt.contentType)
			n.Wait()

			require.Len(t, seen, 1)
			assert.Equal(t, tt.wantStatus, strconv.Itoa(resp.Code))

			got := rec.attachments()
			require.Len(t, got, 1)
			a := got[0]
			assert.Equal(t, "example.com", a.AuthorName)
			assert.Equal(t, tt.wantColor, a.Color)
			assert.Equal(t, tt.wantTitle, a.Title)
			assert.Equal(t, tt.wantTitle, a.Fallback)
			assert.Equal(t, []string{"text"}, a.MrkdwnIn)
			assert.Equal(t, tt.wantStatus, fieldValue(t, a, "HTTP Status"))
			assert.Equal(t, tt.wantPath, fieldValue(t, a, "Path"))
			assert.Equal(t, errchain.DefaultEnv, fieldValue(t, a, "Environment"))
			assert.Equal(t, "1.23 – 0.5 – 0.25", fieldValue(t, a, "CPU Load (4 cores)"))
			for _, want := range tt.wantText {
				assert.Contains(t, a.Text, want)
			}
			for _, absent := range tt.notInText {
				assert.NotContains(t, a.Text, absent)
			}
		})
	}
}

func TestHandler_PassesOriginalError(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	sender := webhookmocks.NewMockSender(ctrl)
	sender.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil)

	n, err := notifier.New(notifier.Options{URL: testURL, Sender: sender, LoadSampler: newSampler(ctrl)})
	require.NoError(t, err)

	original := errors.New("boom")
	var got error
	n.Handler()(original, httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil), func(err error) {
		got = err
	})
	n.Wait()

	assert.Same(t, original, got)
}

func TestHandler_NilError(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	sender := webhookmocks.NewMockSender(ctrl)
	sender.EXPECT().Send(gomock.Any(), gomock.Any()).Times(0)

	n, err := notifier.New(notifier.Options{URL: testURL, Sender: sender, LoadSampler: newSampler(ctrl)})
	require.NoError(t, err)

	called := false
	n.Handler()(nil, httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil), func(err error) {
		called = true
		assert.NoError(t, err)
	})
	n.Wait()
	assert.True(t, called)
}

func TestHandler_NoErrorNoDelivery(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	sender := webhookmocks.NewMockSender(ctrl)
	sender.EXPECT().Send(gomock.Any(), gomock.Any()).Times(0)

	n, err := notifier.New(notifier.Options{URL: testURL, Sender: sender, LoadSampler: newSampler(ctrl)})
	require.NoError(t, err)

	resp := do(newApp(n, nil), http.MethodGet, "/ok", "", "")
	n.Wait()
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestHandler_Skip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		opts       notifier.Options
		target     string
		wantSent   bool
		wantStatus int
	}{
		{
			name: "skip func",
			opts: notifier.Options{Skip: func(err error, _ *http.Request, _ http.ResponseWriter) bool {
				return httperr.Code(err) == http.StatusNotFound
			}},
			target:     "/404",
			wantStatus: http.StatusNotFound,
		},
		{
			name: "skip func false",
			opts: notifier.Options{Skip: func(error, *http.Request, http.ResponseWriter) bool {
				return false
			}},
			target:     "/404",
			wantSent:   true,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "skip expression",
			opts:       notifier.Options{SkipExpr: `status == 404 && path.startsWith("/4")`},
			target:     "/404",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "skip expression not matching",
			opts:       notifier.Options{SkipExpr: `status == 404`},
			target:     "/500",
			wantSent:   true,
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "skip expression on query",
			opts:       notifier.Options{SkipExpr: `query["quiet"] == "1"`},
			target:     "/500?quiet=1",
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			sender := webhookmocks.NewMockSender(ctrl)
			times := 0
			if tt.wantSent {
				times = 1
			}
			sender.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil).Times(times)

			opts := tt.opts
			opts.URL = testURL
			opts.Sender = sender
			opts.LoadSampler = newSampler(ctrl)
			n, err := notifier.New(opts)
			require.NoError(t, err)

			var seen []error
			resp := do(newApp(n, &seen), http.MethodGet, tt.target, "", "")
			n.Wait()

			assert.Len(t, seen, 1, "next must run whether or not the error is reported")
			assert.Equal(t, tt.wantStatus, resp.Code)
		})
	}
}

func TestHandler_Overrides(t *testing.T) {
	t.Parallel()

	empty := ""
	title := "Checkout is down"
	footer := "errorflynn"
	fields := []webhook.Field{{Title: "Team", Value: "payments", Short: true}}

	tests := []struct {
		name      string
		overrides notifier.Overrides
		check     func(t *testing.T, a webhook.Attachment)
	}{
		{
			name:      "suppress author name with empty value",
			overrides: notifier.Overrides{AuthorName: &empty},
			check: func(t *testing.T, a webhook.Attachment) {
				t.Helper()
				assert.Empty(t, a.AuthorName)
				assert.Equal(t, "Oh noooooooo!", a.Title)
			},
		},
		{
			name:      "replace title and add footer",
			overrides: notifier.Overrides{Title: &title, Footer: &footer},
			check: func(t *testing.T, a webhook.Attachment) {
				t.Helper()
				assert.Equal(t, title, a.Title)
				assert.Equal(t, footer, a.Footer)
				assert.Equal(t, "Oh noooooooo!", a.Fallback)
			},
		},
		{
			name:      "replace fields",
			overrides: notifier.Overrides{Fields: &fields},
			check: func(t *testing.T, a webhook.Attachment) {
				t.Helper()
				assert.Equal(t, fields, a.Fields)
			},
		},
		{
			name:      "suppress list",
			overrides: notifier.Overrides{Suppress: []string{notifier.KeyFields, notifier.KeyColor, notifier.KeyMrkdwnIn}},
			check: func(t *testing.T, a webhook.Attachment) {
				t.Helper()
				assert.Nil(t, a.Fields)
				assert.Nil(t, a.MrkdwnIn)
				assert.Empty(t, a.Color)
				assert.NotEmpty(t, a.Text)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			rec := &recorder{}
			sender := webhookmocks.NewMockSender(ctrl)
			sender.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(rec.send)

			n, err := notifier.New(notifier.Options{
				URL:         testURL,
				Sender:      sender,
				LoadSampler: newSampler(ctrl),
				Overrides:   tt.overrides,
			})
			require.NoError(t, err)

			do(newApp(n, nil), http.MethodGet, "/500", "", "")
			n.Wait()

			got := rec.attachments()
			require.Len(t, got, 1)
			tt.check(t, got[0])
		})
	}
}

func TestHandler_DeliveryContext(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	rec := &recorder{}
	sender := webhookmocks.NewMockSender(ctrl)
	sender.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(rec.send)

	n, err := notifier.New(notifier.Options{URL: testURL, Sender: sender, LoadSampler: newSampler(ctrl)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/x", nil).WithContext(ctx)
	n.Handler()(errors.New("boom"), httptest.NewRecorder(), req, func(error) { cancel() })
	n.Wait()

	require.Len(t, rec.ctxs, 1)
	assert.NoError(t, rec.ctxs[0].Err(), "delivery must outlive the request")
	assert.NotEmpty(t, webhook.NotificationID(rec.ctxs[0]))
}

func TestHandler_DeliveryFailureIsLogged(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	sender := webhookmocks.NewMockSender(ctrl)
	sender.EXPECT().Send(gomock.Any(), gomock.Any()).Return(&webhook.StatusError{Code: http.StatusForbidden, Body: "invalid_token"})

	var buf bytes.Buffer
	reg := prometheus.NewRegistry()
	n, err := notifier.New(notifier.Options{
		URL:         testURL,
		Sender:      sender,
		LoadSampler: newSampler(ctrl),
		Logger:      logging.New(logging.WithOutput(&buf)),
		Registerer:  reg,
	})
	require.NoError(t, err)

	var seen []error
	resp := do(newApp(n, &seen), http.MethodGet, "/500", "", "")
	n.Wait()

	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Len(t, seen, 1)
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"), "exactly one log line")
	assert.Contains(t, buf.String(), `"msg":"failed to deliver error notification"`)
	assert.Contains(t, buf.String(), `"notification_id":`)
	assert.Contains(t, buf.String(), "invalid_token")

	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(metricsText(0, 1, 0, 0)),
		"errorflynn_notifications_total"))
}

func TestHandler_MaxInFlight(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	started := make(chan struct{})
	release := make(chan struct{})
	sender := webhookmocks.NewMockSender(ctrl)
	sender.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, webhook.Message) error {
		close(started)
		<-release
		return nil
	}).Times(1)

	var buf bytes.Buffer
	reg := prometheus.NewRegistry()
	n, err := notifier.New(notifier.Options{
		URL:         testURL,
		Sender:      sender,
		LoadSampler: newSampler(ctrl),
		Logger:      logging.New(logging.WithOutput(&buf)),
		Registerer:  reg,
		MaxInFlight: 1,
	})
	require.NoError(t, err)

	app := newApp(n, nil)
	do(app, http.MethodGet, "/500", "", "")
	<-started
	do(app, http.MethodGet, "/500", "", "")
	close(release)
	n.Wait()

	assert.Contains(t, buf.String(), "dropping error notification")
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(metricsText(1, 0, 0, 1)),
		"errorflynn_notifications_total"))
}

func TestHandler_Metrics(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	sender := webhookmocks.NewMockSender(ctrl)
	sender.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	reg := prometheus.NewRegistry()
	n, err := notifier.New(notifier.Options{
		URL:         testURL,
		Sender:      sender,
		LoadSampler: newSampler(ctrl),
		Registerer:  reg,
		SkipExpr:    `status == 404`,
	})
	require.NoError(t, err)

	// A second notifier on the same registry shares the counter.
	other, err := notifier.New(notifier.Options{URL: testURL, Sender: sender, LoadSampler: newSampler(ctrl), Registerer: reg})
	require.NoError(t, err)

	do(newApp(n, nil), http.MethodGet, "/500", "", "")
	do(newApp(n, nil), http.MethodGet, "/404", "", "")
	do(newApp(n, nil), http.MethodGet, "/ok", "", "")
	do(newApp(other, nil), http.MethodGet, "/500", "", "")
	n.Wait()
	other.Wait()

	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(metricsText(2, 0, 1, 0)),
		"errorflynn_notifications_total"))
}

func metricsText(sent, failed, skipped, dropped int) string {
	var b strings.Builder
	b.WriteString("# HELP errorflynn_notifications_total Error notifications handled, by outcome.\n")
	b.WriteString("# TYPE errorflynn_notifications_total counter\n")
	for _, row := range []struct {
		outcome string
		value   int
	}{
		{notifier.OutcomeDropped, dropped},
		{notifier.OutcomeFailed, failed},
		{notifier.OutcomeSent, sent},
		{notifier.OutcomeSkipped, skipped},
	} {
		b.WriteString(`errorflynn_notifications_total{outcome="` + row.outcome + `"} `)
		b.WriteString(strconv.Itoa(row.value))
		b.WriteString("\n")
	}
	return b.String()
}
