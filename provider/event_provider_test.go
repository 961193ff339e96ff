package provider

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Digital-Creators-Team/faucet-module/config"
	apperrors "github.com/Digital-Creators-Team/faucet-module/errors"
	"github.com/Digital-Creators-Team/faucet-module/events/kafka"
	"github.com/Digital-Creators-Team/faucet-module/pkg/providers"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingWriter struct {
	msgs []kafkago.Message
}

func (w *capturingWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *capturingWriter) Close() error { return nil }

func TestEventProviderRoutesTopics(t *testing.T) {
	w := &capturingWriter{}
	producer := kafka.NewProducerWithConfig(kafka.ProducerConfig{Writer: w, WorkerNum: 1, Logger: zerolog.Nop()})

	cfg := &config.Config{}
	cfg.Kafka.Topics = map[string]string{"claims": "c.topic", "referral_payouts": "r.topic"}
	events := NewEventProvider(producer, cfg.Kafka)

	ctx := context.Background()
	require.NoError(t, events.PublishClaim(ctx, &providers.ClaimEvent{
		EventID:         "e1",
		Currency:        "NANO",
		Address:         addrA,
		Prize:           decimal.RequireFromString("0.0001"),
		TransactionHash: "H1",
		Timestamp:       time.Unix(0, 0).UTC(),
	}))
	require.NoError(t, events.PublishReferralPayout(ctx, &providers.ReferralPayoutEvent{
		EventID:         "e2",
		Currency:        "BAN",
		Address:         addrB,
		Amount:          decimal.NewFromInt(2),
		TransactionHash: "H2",
	}))
	require.NoError(t, producer.Close())

	require.Len(t, w.msgs, 2)
	assert.Equal(t, "c.topic", w.msgs[0].Topic)
	assert.Equal(t, addrA, string(w.msgs[0].Key))
	assert.Equal(t, "r.topic", w.msgs[1].Topic)
	assert.Equal(t, addrB, string(w.msgs[1].Key))

	var claim providers.ClaimEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &claim))
	assert.Equal(t, "H1", claim.TransactionHash)
	assert.True(t, claim.Prize.Equal(decimal.RequireFromString("0.0001")))
}

var _ providers.EventPublisher = (*EventProvider)(nil)

func TestEventProviderClosedProducer(t *testing.T) {
	producer := kafka.NewProducerWithConfig(kafka.ProducerConfig{Writer: &capturingWriter{}, WorkerNum: 1, Logger: zerolog.Nop()})
	require.NoError(t, producer.Close())

	cfg := &config.Config{}
	cfg.Kafka.Topics = map[string]string{"claims": "c.topic"}
	err := NewEventProvider(producer, cfg.Kafka).PublishClaim(context.Background(), &providers.ClaimEvent{Address: addrA})

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrKafkaError, apperrors.GetCode(err))
	assert.ErrorIs(t, err, kafka.ErrProducerClosed)
}
