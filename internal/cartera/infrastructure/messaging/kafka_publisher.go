// Package messaging 账务事件的 Kafka 投递
package messaging

import (
	"context"
	"fmt"
	"strconv"

	"github.com/wyfcoding/cartera/internal/cartera/domain"
	"github.com/wyfcoding/cartera/pkg/mq"
)

// Producer Kafka 生产者抽象
type Producer interface {
	SendMessages(ctx context.Context, topic string, messages ...mq.Message) error
}

// EventMessage 发往 Kafka 的事件消息体
type EventMessage struct {
	EventID   string                 `json:"event_id"`
	CreditoID uint                   `json:"credito_id"`
	Tipo      domain.LedgerEventType `json:"tipo"`
	Capital   string                 `json:"capital_delta"`
	Saldo     string                 `json:"saldo_a_favor_delta"`
	Mora      string                 `json:"mora_delta"`
	Payload   string                 `json:"payload"`
	Occurred  string                 `json:"occurred_at"`
}

// KafkaEventPublisher 以信贷 ID 为 key 发布事件，同一信贷的事件保持顺序
type KafkaEventPublisher struct {
	producer Producer
	topic    string
}

// NewKafkaEventPublisher 创建事件发布器
func NewKafkaEventPublisher(producer Producer, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

// Publish 整批发送
func (p *KafkaEventPublisher) Publish(ctx context.Context, events []*domain.LedgerEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]mq.Message, len(events))
	for i, e := range events {
		msgs[i] = mq.Message{
			Key:   strconv.FormatUint(uint64(e.CreditoID), 10),
			Value: toMessage(e),
			Headers: map[string]string{
				"event_id":   e.EventID,
				"event_type": string(e.Tipo),
			},
		}
	}
	if err := p.producer.SendMessages(ctx, p.topic, msgs...); err != nil {
		return fmt.Errorf("failed to publish ledger events to %s: %w", p.topic, err)
	}
	return nil
}

func toMessage(e *domain.LedgerEvent) EventMessage {
	return EventMessage{
		EventID:   e.EventID,
		CreditoID: e.CreditoID,
		Tipo:      e.Tipo,
		Capital:   e.CapitalDelta.StringFixed(2),
		Saldo:     e.SaldoAFavorDelta.StringFixed(2),
		Mora:      e.MoraDelta.StringFixed(2),
		Payload:   e.Payload,
		Occurred:  e.OccurredAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}
