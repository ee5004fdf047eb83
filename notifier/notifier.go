// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/semaphore"

	"github.com/stacklok/errorflynn/env"
	"github.com/stacklok/errorflynn/errchain"
	"github.com/stacklok/errorflynn/filter"
	"github.com/stacklok/errorflynn/hostload"
	"github.com/stacklok/errorflynn/logging"
	"github.com/stacklok/errorflynn/validation/environment"
	validation "github.com/stacklok/errorflynn/validation/http"
	"github.com/stacklok/errorflynn/webhook"
)

// SkipFunc reports whether the notification for err should be suppressed.
type SkipFunc func(err error, r *http.Request, w http.ResponseWriter) bool

// Options configure a Notifier.
type Options struct {
	// URL is the incoming-webhook endpoint. Required.
	URL string

	// Overrides replace or suppress parts of every attachment.
	Overrides Overrides

	// Skip suppresses delivery when it returns true.
	Skip SkipFunc

	// SkipExpr is a filter expression suppressing delivery when it evaluates
	// to true. It is checked after Skip.
	SkipExpr string

	// Environment is reported when the request carries no app environment setting.
	Environment string

	// Headers are sent with every delivery. Ignored when Sender is set.
	Headers map[string]string

	// Timeout bounds each delivery. Zero means no limit. Ignored when Sender
	// is set.
	Timeout time.Duration

	// MaxInFlight caps concurrent deliveries; notifications beyond the cap are
	// dropped. Zero means no cap.
	MaxInFlight int64

	Logger      *slog.Logger
	Registerer  prometheus.Registerer
	LoadSampler hostload.Sampler

	// Sender replaces the webhook client built from URL. Headers and Timeout
	// are still validated but only apply to the built client; an injected
	// Sender is responsible for its own headers and timeouts.
	Sender webhook.Sender
}

// Notifier reports errors to a chat webhook.
type Notifier struct {
	sender      webhook.Sender
	overrides   Overrides
	skip        SkipFunc
	skipExpr    *filter.Expression
	environment string
	logger      *slog.Logger
	sampler     hostload.Sampler
	metrics     *metrics
	inFlight    *semaphore.Weighted
	maxInFlight int64
	wg          sync.WaitGroup
}

// New validates opts and returns a Notifier bound to opts.URL.
func New(opts Options) (*Notifier, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return nil, fmt.Errorf("%w: pass a URL or set %s", ErrMissingURL, env.URLVar)
	}
	if err := validation.ValidateWebhookURL(opts.URL); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if err := opts.Overrides.validate(); err != nil {
		return nil, err
	}
	if err := validation.ValidateHeaders(opts.Headers); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	if opts.Environment != "" {
		if err := environment.ValidateName(opts.Environment); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
		}
	}
	if opts.Timeout < 0 || opts.MaxInFlight < 0 {
		return nil, fmt.Errorf("%w: timeout and max in-flight must not be negative", ErrInvalidOptions)
	}

	n := &Notifier{
		sender:      opts.Sender,
		overrides:   opts.Overrides,
		skip:        opts.Skip,
		environment: opts.Environment,
		logger:      opts.Logger,
		sampler:     opts.LoadSampler,
		maxInFlight: opts.MaxInFlight,
	}

	if opts.SkipExpr != "" {
		expr, err := filter.NewEngine().Compile(opts.SkipExpr)
		if err != nil {
			return nil, fmt.Errorf("%w: skip: %w", ErrInvalidOptions, err)
		}
		n.skipExpr = expr
	}

	if n.sender == nil {
		client, err := webhook.New(opts.URL,
			webhook.WithHeaders(opts.Headers),
			webhook.WithTimeout(opts.Timeout),
		)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
		}
		n.sender = client
	}
	if n.logger == nil {
		n.logger = logging.New()
	}
	if n.sampler == nil {
		n.sampler = hostload.Default()
	}
	if opts.MaxInFlight > 0 {
		n.inFlight = semaphore.NewWeighted(opts.MaxInFlight)
	}

	m, err := newMetrics(opts.Registerer)
	if err != nil {
		return nil, err
	}
	n.metrics = m

	return n, nil
}

// Handler returns the error middleware. It starts delivery of a notification
// for each error and hands the unchanged error to next without waiting for
// the delivery to finish.
func (n *Notifier) Handler() errchain.ErrorHandler {
	return n.handle
}

func (n *Notifier) handle(err error, w http.ResponseWriter, r *http.Request, next errchain.Next) {
	if err == nil {
		next(nil)
		return
	}

	if n.skipped(err, r, w) {
		n.metrics.record(OutcomeSkipped)
		next(err)
		return
	}

	n.dispatch(r.Context(), n.Attachment(err, r))
	next(err)
}

func (n *Notifier) skipped(err error, r *http.Request, w http.ResponseWriter) bool {
	if n.skip != nil && n.skip(err, r, w) {
		return true
	}
	if n.skipExpr == nil {
		return false
	}
	matched, evalErr := n.skipExpr.Matches(filter.InputFrom(err, r))
	if evalErr != nil {
		n.logger.Debug("skip expression failed, delivering notification",
			"expression", n.skipExpr.Source(), "error", evalErr)
		return false
	}
	return matched
}

// dispatch sends the attachment in the background. The request context is
// detached from cancellation so a finished request does not abort delivery.
func (n *Notifier) dispatch(ctx context.Context, a webhook.Attachment) {
	if n.inFlight != nil && !n.inFlight.TryAcquire(1) {
		n.metrics.record(OutcomeDropped)
		n.logger.Warn("dropping error notification, too many deliveries in flight",
			"max_in_flight", n.maxInFlight, "title", a.Title)
		return
	}

	id := uuid.NewString()
	ctx = webhook.WithNotificationID(context.WithoutCancel(ctx), id)
	msg := webhook.Message{Attachments: []webhook.Attachment{a}}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if n.inFlight != nil {
			defer n.inFlight.Release(1)
		}

		if err := n.sender.Send(ctx, msg); err != nil {
			n.metrics.record(OutcomeFailed)
			n.logger.Error("failed to deliver error notification",
				"notification_id", id, "error", err)
			return
		}
		n.metrics.record(OutcomeSent)
	}()
}

// Wait blocks until all started deliveries have finished.
func (n *Notifier) Wait() {
	n.wg.Wait()
}
