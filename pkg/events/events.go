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

// Package events publishes ceremony outcomes on a Watermill message
// bus so presentation layers and metrics can react to completed
// ceremonies without coupling to the ceremony core.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/jeremyhahn/go-passkey/pkg/ceremony"
)

// Topics for ceremony outcomes.
const (
	TopicCeremonySucceeded = "ceremony.succeeded"
	TopicCeremonyFailed    = "ceremony.failed"
)

// Publisher delivers ceremony outcomes to a Watermill publisher. It
// implements ceremony.EventPublisher.
type Publisher struct {
	publisher message.Publisher
}

// NewPublisher creates an outcome publisher over any Watermill
// publisher (in-process channel, AMQP, Kafka, ...).
func NewPublisher(publisher message.Publisher) *Publisher {
	return &Publisher{publisher: publisher}
}

// PublishOutcome publishes the outcome as JSON on the succeeded or
// failed topic.
func (p *Publisher) PublishOutcome(ctx context.Context, outcome *ceremony.Outcome) error {
	payload, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("encode outcome: %w", err)
	}

	topic := TopicCeremonyFailed
	if outcome.Verified {
		topic = TopicCeremonySucceeded
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("identity", outcome.Identity)
	msg.Metadata.Set("purpose", string(outcome.Purpose))

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish outcome: %w", err)
	}
	return nil
}

// NewGoChannelBus creates an in-process pub/sub suitable for wiring
// the publisher and subscribers inside a single server.
func NewGoChannelBus(logger *slog.Logger) *gochannel.GoChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return gochannel.NewGoChannel(gochannel.Config{}, watermill.NewSlogLogger(logger))
}

// DecodeOutcome decodes an outcome message payload.
func DecodeOutcome(msg *message.Message) (*ceremony.Outcome, error) {
	var outcome ceremony.Outcome
	if err := json.Unmarshal(msg.Payload, &outcome); err != nil {
		return nil, fmt.Errorf("decode outcome: %w", err)
	}
	return &outcome, nil
}
