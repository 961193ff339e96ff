package provider

import (
	"context"

	"github.com/Digital-Creators-Team/faucet-module/config"
	apperrors "github.com/Digital-Creators-Team/faucet-module/errors"
	"github.com/Digital-Creators-Team/faucet-module/pkg/providers"
)

// MessageSender queues a keyed JSON message on a topic
type MessageSender interface {
	SendMessage(ctx context.Context, topic, key string, value interface{}) error
}

// EventProvider implements providers.EventPublisher on Kafka.
// Messages are keyed by address so one account's events stay ordered.
type EventProvider struct {
	sender        MessageSender
	claimTopic    string
	referralTopic string
}

// NewEventProvider creates a publisher on the configured topics
func NewEventProvider(sender MessageSender, cfg config.KafkaConfig) *EventProvider {
	return &EventProvider{
		sender:        sender,
		claimTopic:    cfg.Topics["claims"],
		referralTopic: cfg.Topics["referral_payouts"],
	}
}

func (p *EventProvider) PublishClaim(ctx context.Context, event *providers.ClaimEvent) error {
	return p.send(ctx, p.claimTopic, event.Address, event)
}

func (p *EventProvider) PublishReferralPayout(ctx context.Context, event *providers.ReferralPayoutEvent) error {
	return p.send(ctx, p.referralTopic, event.Address, event)
}

func (p *EventProvider) send(ctx context.Context, topic, key string, value interface{}) error {
	if err := p.sender.SendMessage(ctx, topic, key, value); err != nil {
		return apperrors.WrapWithDebug(err, apperrors.ErrKafkaError, "failed to publish event", topic)
	}
	return nil
}
