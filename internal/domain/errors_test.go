package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		notFound  bool
		invalid   bool
		aggregate bool
	}{
		{name: "order not found", err: ErrOrderNotFound, notFound: true},
		{name: "wrapped item not found", err: fmt.Errorf("update: %w", ErrItemNotFound), notFound: true},
		{name: "validation", err: NewValidationError("customer_id", "is required"), invalid: true},
		{
			name:      "aggregate write with validation cause",
			err:       NewAggregateWriteError("create", NewValidationError("quantity", "is required")),
			invalid:   true,
			aggregate: true,
		},
		{name: "aggregate write with store cause", err: NewAggregateWriteError("create", errors.New("conn reset")), aggregate: true},
		{name: "nil error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.notFound, IsNotFound(tt.err))
			assert.Equal(t, tt.invalid, IsValidation(tt.err))
			assert.Equal(t, tt.aggregate, IsAggregateWrite(tt.err))
		})
	}
}

func TestNewAggregateWriteError_DoesNotDoubleWrap(t *testing.T) {
	cause := errors.New("boom")
	first := NewAggregateWriteError("create", cause)
	second := NewAggregateWriteError("outer", first)

	assert.Same(t, first, second)
	assert.ErrorIs(t, second, cause)
	assert.Equal(t, "create: aggregate write failed: boom", second.Error())
}

func TestNewOrderEvent(t *testing.T) {
	ctx := WithActor(context.Background(), Identity{UserID: 7, Username: "alice"})
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	msg, err := NewOrderEvent(ctx, EventOrderItemAdded, OrderEvent{OrderID: 42, SeqID: 5}, now)
	require.NoError(t, err)

	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, AggregateTypeOrder, msg.AggregateType)
	assert.Equal(t, "42", msg.AggregateID)
	assert.Equal(t, EventOrderItemAdded, msg.EventType)
	assert.Equal(t, now, msg.CreatedAt)

	var payload OrderEvent
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Equal(t, int64(42), payload.OrderID)
	assert.Equal(t, int64(5), payload.SeqID)
	assert.Equal(t, "alice", payload.Actor)
}

func TestParseOrderEvent(t *testing.T) {
	ctx := WithActor(context.Background(), Identity{Username: "alice"})
	valid, err := NewOrderEvent(ctx, EventOrderItemUpdated, OrderEvent{OrderID: 9, SeqID: 3}, time.Now())
	require.NoError(t, err)

	event, err := ParseOrderEvent(valid)
	require.NoError(t, err)
	assert.Equal(t, int64(9), event.OrderID)
	assert.Equal(t, int64(3), event.SeqID)
	assert.Equal(t, "alice", event.Actor)

	broken := func(mutate func(*OutboxMessage)) OutboxMessage {
		msg := valid
		mutate(&msg)
		return msg
	}
	cases := map[string]OutboxMessage{
		"foreign aggregate": broken(func(m *OutboxMessage) { m.AggregateType = "payment" }),
		"unknown type":      broken(func(m *OutboxMessage) { m.EventType = "order.archived" }),
		"not json":          broken(func(m *OutboxMessage) { m.Payload = []byte("{oops") }),
		"id mismatch":       broken(func(m *OutboxMessage) { m.AggregateID = "10" }),
		"item without seq":  broken(func(m *OutboxMessage) { m.Payload = []byte(`{"order_id":9}`) }),
	}
	for name, msg := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseOrderEvent(msg)
			assert.ErrorIs(t, err, ErrMalformedEvent)
		})
	}

	header := broken(func(m *OutboxMessage) {
		m.EventType = EventOrderDeleted
		m.Payload = []byte(`{"order_id":9}`)
	})
	_, err = ParseOrderEvent(header)
	assert.NoError(t, err)
}

func TestActorFromContext(t *testing.T) {
	_, ok := ActorFromContext(context.Background())
	assert.False(t, ok)

	id, ok := ActorFromContext(WithActor(context.Background(), Identity{UserID: 1, Username: "bob"}))
	require.True(t, ok)
	assert.Equal(t, "bob", id.Username)
}
