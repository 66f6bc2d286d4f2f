package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/cartera/internal/cartera/domain"
	"github.com/wyfcoding/cartera/pkg/mq"
)

type recordingProducer struct {
	topic string
	msgs  []mq.Message
	err   error
}

func (p *recordingProducer) SendMessages(_ context.Context, topic string, messages ...mq.Message) error {
	p.topic = topic
	p.msgs = append(p.msgs, messages...)
	return p.err
}

func TestKafkaEventPublisher(t *testing.T) {
	prod := &recordingProducer{}
	pub := NewKafkaEventPublisher(prod, "cartera.ledger")
	events := []*domain.LedgerEvent{{
		EventID:          "e-1",
		CreditoID:        7,
		Tipo:             domain.EventPagoAplicado,
		CapitalDelta:     decimal.RequireFromString("-133.2"),
		SaldoAFavorDelta: decimal.Zero,
		MoraDelta:        decimal.Zero,
		OccurredAt:       time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}}
	if err := pub.Publish(context.Background(), events); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if prod.topic != "cartera.ledger" || len(prod.msgs) != 1 {
		t.Fatalf("sent %d messages to %q", len(prod.msgs), prod.topic)
	}
	m := prod.msgs[0]
	if m.Key != "7" || m.Headers["event_type"] != "PAGO_APLICADO" {
		t.Errorf("message = %+v", m)
	}
	body := m.Value.(EventMessage)
	if body.Capital != "-133.20" || body.Occurred != "2025-03-01T12:00:00Z" {
		t.Errorf("body = %+v", body)
	}

	if err := pub.Publish(context.Background(), nil); err != nil {
		t.Errorf("empty batch error = %v", err)
	}

	prod.err = errors.New("broker down")
	if err := pub.Publish(context.Background(), events); !errors.Is(err, prod.err) {
		t.Errorf("error = %v, want wrapped broker error", err)
	}
}
