package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// AggregateTypeOrder задаёт тип агрегата в outbox.
const AggregateTypeOrder = "order"

// Типы событий, которые пишутся в outbox вместе с изменением агрегата.
const (
	EventOrderCreated     = "order.created"
	EventOrderUpdated     = "order.updated"
	EventOrderDeleted     = "order.deleted"
	EventOrderItemAdded   = "order.item_added"
	EventOrderItemUpdated = "order.item_updated"
	EventOrderItemDeleted = "order.item_deleted"
)

// ErrMalformedEvent: outbox-сообщение нельзя разобрать как событие заказа.
var ErrMalformedEvent = errors.New("malformed order event")

var itemEvents = map[string]bool{
	EventOrderCreated:     false,
	EventOrderUpdated:     false,
	EventOrderDeleted:     false,
	EventOrderItemAdded:   true,
	EventOrderItemUpdated: true,
	EventOrderItemDeleted: true,
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
}

// OrderEvent описывает полезную нагрузку событий заказа.
type OrderEvent struct {
	OrderID    int64     `json:"order_id"`
	SeqID      int64     `json:"order_item_seq_id,omitempty"`
	ItemCount  int       `json:"item_count,omitempty"`
	Actor      string    `json:"actor,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewOrderEvent собирает outbox-сообщение для заказа.
// Имя вызывающего берётся из контекста, если оно там есть.
func NewOrderEvent(ctx context.Context, eventType string, event OrderEvent, now time.Time) (OutboxMessage, error) {
	if actor, ok := ActorFromContext(ctx); ok {
		event.Actor = actor.Username
	}
	event.OccurredAt = now.UTC()

	payload, err := json.Marshal(event)
	if err != nil {
		return OutboxMessage{}, err
	}

	return OutboxMessage{
		ID:            uuid.NewString(),
		AggregateType: AggregateTypeOrder,
		AggregateID:   strconv.FormatInt(event.OrderID, 10),
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     event.OccurredAt,
	}, nil
}

// ParseOrderEvent разбирает полезную нагрузку outbox-сообщения.
// События позиций обязаны нести order_item_seq_id, id заказа должен совпадать с AggregateID.
func ParseOrderEvent(msg OutboxMessage) (OrderEvent, error) {
	if msg.AggregateType != AggregateTypeOrder {
		return OrderEvent{}, fmt.Errorf("%w: aggregate type %q", ErrMalformedEvent, msg.AggregateType)
	}
	itemEvent, known := itemEvents[msg.EventType]
	if !known {
		return OrderEvent{}, fmt.Errorf("%w: event type %q", ErrMalformedEvent, msg.EventType)
	}

	var event OrderEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return OrderEvent{}, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	if event.OrderID <= 0 || strconv.FormatInt(event.OrderID, 10) != msg.AggregateID {
		return OrderEvent{}, fmt.Errorf("%w: order id %d does not match aggregate %q", ErrMalformedEvent, event.OrderID, msg.AggregateID)
	}
	if itemEvent && event.SeqID <= 0 {
		return OrderEvent{}, fmt.Errorf("%w: %s without order_item_seq_id", ErrMalformedEvent, msg.EventType)
	}
	return event, nil
}
