// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package rest

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/jeremyhahn/go-passkey/pkg/events"
	"github.com/jeremyhahn/go-passkey/pkg/metrics"
)

// startMetricsSubscriber consumes ceremony outcome events and records
// Prometheus metrics. Running this off the event bus keeps the
// ceremony service and its HTTP layer free of metrics wiring.
func (s *Server) startMetricsSubscriber(ctx context.Context) error {
	succeeded, err := s.bus.Subscribe(ctx, events.TopicCeremonySucceeded)
	if err != nil {
		return err
	}
	failed, err := s.bus.Subscribe(ctx, events.TopicCeremonyFailed)
	if err != nil {
		return err
	}

	go s.consumeOutcomes(succeeded)
	go s.consumeOutcomes(failed)
	return nil
}

// consumeOutcomes drains one outcome topic until its channel closes.
func (s *Server) consumeOutcomes(messages <-chan *message.Message) {
	for msg := range messages {
		outcome, err := events.DecodeOutcome(msg)
		if err != nil {
			s.logger.Warn("Failed to decode ceremony outcome event", "error", err)
			msg.Ack()
			continue
		}

		result := metrics.OutcomeFailure
		if outcome.Verified {
			result = metrics.OutcomeSuccess
		}
		metrics.RecordCeremony(string(outcome.Purpose), result)
		if !outcome.Verified {
			metrics.RecordVerificationFailure(string(outcome.Purpose), outcome.Reason)
		}

		s.logger.Debug("Recorded ceremony outcome",
			"purpose", outcome.Purpose,
			"verified", outcome.Verified,
			"reason", outcome.Reason)

		msg.Ack()
	}
}
