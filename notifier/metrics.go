// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package notifier

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Delivery outcomes reported on the notifications counter.
const (
	OutcomeSent    = "sent"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
	OutcomeDropped = "dropped"
)

type metrics struct {
	notifications *prometheus.CounterVec
}

// newMetrics creates the notifier collectors and registers them with reg when
// reg is non-nil. Notifiers sharing a registry share the collectors.
func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "errorflynn",
		Name:      "notifications_total",
		Help:      "Error notifications handled, by outcome.",
	}, []string{"outcome"})

	if reg != nil {
		if err := reg.Register(notifications); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return nil, fmt.Errorf("registering notifier metrics: %w", err)
			}
			existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				return nil, fmt.Errorf("registering notifier metrics: %w", err)
			}
			notifications = existing
		}
	}

	for _, outcome := range []string{OutcomeSent, OutcomeFailed, OutcomeSkipped, OutcomeDropped} {
		notifications.WithLabelValues(outcome)
	}
	return &metrics{notifications: notifications}, nil
}

func (m *metrics) record(outcome string) {
	m.notifications.WithLabelValues(outcome).Inc()
}
