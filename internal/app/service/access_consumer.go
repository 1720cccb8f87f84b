package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"shortreg/internal/app/model"
	"shortreg/internal/app/storage"
	"shortreg/internal/infra/prometheus"
)

// AccessConsumer drains access events and applies the counter increments.
// Increments are atomic at the store, so redeliveries only ever re-apply
// an increment that previously failed.
type AccessConsumer struct {
	js     nats.JetStreamContext
	urls   storage.URLStore
	logger *zap.Logger
}

// NewAccessConsumer creates a consumer applying increments through urls.
func NewAccessConsumer(js nats.JetStreamContext, urls storage.URLStore, logger *zap.Logger) *AccessConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessConsumer{js: js, urls: urls, logger: logger}
}

// Start ensures the stream and durable consumer exist, then consumes in a
// background goroutine until the subscription dies.
func (c *AccessConsumer) Start() error {
	if _, err := c.js.StreamInfo(model.AccessStreamName); err != nil {
		_, err = c.js.AddStream(&nats.StreamConfig{
			Name:     model.AccessStreamName,
			Subjects: []string{model.AccessStreamSubject},
			MaxAge:   model.AccessStreamMaxAge,
		})
		if err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
	}

	if _, err := c.js.ConsumerInfo(model.AccessStreamName, model.AccessConsumerName); err != nil {
		_, err = c.js.AddConsumer(model.AccessStreamName, &nats.ConsumerConfig{
			Durable:   model.AccessConsumerName,
			AckPolicy: nats.AckExplicitPolicy,
		})
		if err != nil {
			return fmt.Errorf("failed to create consumer: %w", err)
		}
	}

	sub, err := c.js.PullSubscribe(model.AccessStreamSubject, model.AccessConsumerName)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	go c.consume(sub)
	return nil
}

func (c *AccessConsumer) consume(sub *nats.Subscription) {
	ctx := context.Background()
	for {
		msgs, err := sub.Fetch(10, nats.MaxWait(5*time.Second))
		if err != nil && !errors.Is(err, nats.ErrTimeout) {
			c.logger.Error("failed to fetch access events", zap.Error(err))
			continue
		}

		for _, msg := range msgs {
			var event model.AccessEvent
			if err := json.Unmarshal(msg.Data, &event); err != nil {
				c.logger.Error("failed to unmarshal access event", zap.Error(err))
				_ = msg.Nak()
				continue
			}

			if err := c.urls.IncrementAccessCount(ctx, event.Code); err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					// Link deleted after the event was published;
					// nothing left to count.
					_ = msg.Ack()
					continue
				}
				prometheus.AccessRecordFailures.Inc()
				c.logger.Error("failed to apply access event",
					zap.String("id", event.ID),
					zap.String("code", event.Code),
					zap.Error(err))
				_ = msg.Nak()
				continue
			}

			_ = msg.Ack()
		}
	}
}
