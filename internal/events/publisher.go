// Package events emits payment lifecycle events: a durable stream over Kafka
// for downstream consumers (ledger, job completion) and ephemeral per-payment
// notifications over NATS for the requester's view.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/segmentio/kafka-go"

	"github.com/servineo/payment-system/internal/models"
)

type Publisher struct {
	kafkaWriter *kafka.Writer
	nc          *nats.Conn
}

func NewPublisher(kafkaWriter *kafka.Writer, nc *nats.Conn) *Publisher {
	return &Publisher{kafkaWriter: kafkaWriter, nc: nc}
}

func (p *Publisher) PaymentPaid(ctx context.Context, payment *models.Payment) error {
	event := map[string]interface{}{
		"payment_id":   payment.ID,
		"job_id":       payment.JobID,
		"requester_id": payment.RequesterID,
		"fixer_id":     payment.FixerID,
		"total":        payment.Amount.Total,
		"currency":     payment.Amount.Currency,
		"status":       payment.Status,
		"paid_at":      payment.PaidAt,
	}
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.kafkaWriter.WriteMessages(ctx, kafka.Message{
		Key:   []byte(payment.ID),
		Value: eventJSON,
	})
}

func (p *Publisher) PaymentUpdated(_ context.Context, payment *models.Payment, kind string) error {
	event := map[string]interface{}{
		"payment_id": payment.ID,
		"status":     payment.Status,
		"kind":       kind,
		"timestamp":  time.Now(),
	}
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.nc.Publish(fmt.Sprintf("payments.updates.%s", payment.ID), eventJSON)
}

// NoopPublisher backs demo mode, where no brokers are running.
type NoopPublisher struct{}

func (NoopPublisher) PaymentPaid(context.Context, *models.Payment) error { return nil }

func (NoopPublisher) PaymentUpdated(context.Context, *models.Payment, string) error { return nil }
