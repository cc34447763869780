package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

func ptr[T any](v T) *T { return &v }

func sampleNewOrder(items ...domain.NewOrderItem) domain.NewOrder {
	return domain.NewOrder{
		CustomerID:            ptr(int64(1)),
		ShippingContactMechID: ptr(int64(2)),
		BillingContactMechID:  ptr(int64(3)),
		Items:                 items,
	}
}

func sampleItem(productID int64, qty int32) domain.NewOrderItem {
	return domain.NewOrderItem{ProductID: ptr(productID), Quantity: ptr(qty)}
}

func TestOrderRepository_PostgresCreateGet(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	clock := func() time.Time { return time.Date(2024, 2, 29, 18, 0, 0, 0, time.UTC) }
	repo := NewOrderRepository(store, WithClock(clock))
	ctx := context.Background()

	created, err := repo.Create(ctx, sampleNewOrder(sampleItem(10, 2), sampleItem(11, 1)))
	require.NoError(t, err)
	assert.Positive(t, created.ID)
	assert.Equal(t, "2024-02-29", created.OrderDate.Format(domain.DateLayout))
	require.Len(t, created.Items, 2)

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)
	assert.Equal(t, domain.DefaultItemStatus, got.Items[0].Status)
	assert.Less(t, got.Items[0].SeqID, got.Items[1].SeqID)

	empty, err := repo.Create(ctx, sampleNewOrder())
	require.NoError(t, err)
	got, err = repo.Get(ctx, empty.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Items)

	_, err = repo.Get(ctx, 987654)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestOrderRepository_PostgresCreateRollback(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store, WithOutbox(true))
	ctx := context.Background()

	_, err := repo.Create(ctx, sampleNewOrder(sampleItem(10, 1), domain.NewOrderItem{ProductID: ptr(int64(11))}))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAggregateWrite)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = repo.Get(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	var headers, items, events int
	require.NoError(t, store.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM order_header`).Scan(&headers))
	require.NoError(t, store.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM order_item`).Scan(&items))
	require.NoError(t, store.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM outbox_messages`).Scan(&events))
	assert.Zero(t, headers)
	assert.Zero(t, items)
	assert.Zero(t, events)
}

func TestOrderRepository_PostgresUpdateHeaderPartial(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)
	ctx := context.Background()

	created, err := repo.Create(ctx, sampleNewOrder(sampleItem(10, 2)))
	require.NoError(t, err)

	updated, err := repo.UpdateHeaderFields(ctx, created.ID, domain.HeaderPatch{BillingContactMechID: ptr(int64(33))})
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.ShippingContactMechID)
	assert.Equal(t, int64(33), updated.BillingContactMechID)
	assert.Len(t, updated.Items, 1)

	_, err = repo.UpdateHeaderFields(ctx, created.ID+100, domain.HeaderPatch{BillingContactMechID: ptr(int64(1))})
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestOrderRepository_PostgresDeleteCascade(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)
	ctx := context.Background()

	created, err := repo.Create(ctx, sampleNewOrder(sampleItem(10, 2), sampleItem(11, 3)))
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, created.ID))
	assert.ErrorIs(t, repo.Delete(ctx, created.ID), domain.ErrOrderNotFound)

	for _, item := range created.Items {
		_, err := repo.UpdateItem(ctx, created.ID, item.SeqID, domain.ItemPatch{Quantity: ptr(int32(9))})
		assert.ErrorIs(t, err, domain.ErrItemNotFound)
		assert.ErrorIs(t, repo.DeleteItem(ctx, created.ID, item.SeqID), domain.ErrItemNotFound)
	}
}

func TestOrderRepository_PostgresItems(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)
	ctx := context.Background()

	first, err := repo.Create(ctx, sampleNewOrder(sampleItem(10, 1)))
	require.NoError(t, err)
	second, err := repo.Create(ctx, sampleNewOrder())
	require.NoError(t, err)

	_, err = repo.AddItem(ctx, second.ID+100, sampleItem(1, 1))
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	added, err := repo.AddItem(ctx, second.ID, domain.NewOrderItem{ProductID: ptr(int64(20)), Quantity: ptr(int32(5)), Status: ptr("Packed")})
	require.NoError(t, err)
	assert.Equal(t, second.ID, added.OrderID)
	assert.Equal(t, "Packed", added.Status)

	// Позиция первого заказа недоступна через второй заказ.
	foreign := first.Items[0].SeqID
	_, err = repo.UpdateItem(ctx, second.ID, foreign, domain.ItemPatch{Status: ptr("Shipped")})
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
	_, err = repo.UpdateItem(ctx, second.ID, foreign, domain.ItemPatch{Quantity: ptr(int32(0))})
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
	assert.False(t, domain.IsAggregateWrite(err))

	_, err = repo.UpdateItem(ctx, first.ID, foreign, domain.ItemPatch{Quantity: ptr(int32(0))})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.False(t, domain.IsAggregateWrite(err))
	assert.ErrorIs(t, repo.DeleteItem(ctx, second.ID, foreign), domain.ErrItemNotFound)

	updated, err := repo.UpdateItem(ctx, second.ID, added.SeqID, domain.ItemPatch{Quantity: ptr(int32(7))})
	require.NoError(t, err)
	assert.Equal(t, int32(7), updated.Quantity)
	assert.Equal(t, "Packed", updated.Status)

	require.NoError(t, repo.DeleteItem(ctx, second.ID, added.SeqID))

	got, err := repo.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultItemStatus, got.Items[0].Status)
}

func TestOrderRepository_PostgresWritesOutbox(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store, WithOutbox(true))
	outbox := NewOutboxRepository(store)
	ctx := domain.WithActor(context.Background(), domain.Identity{UserID: 5, Username: "carol"})

	created, err := repo.Create(ctx, sampleNewOrder(sampleItem(1, 1)))
	require.NoError(t, err)
	require.NoError(t, repo.Delete(ctx, created.ID))

	pending, err := outbox.PullPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, domain.EventOrderCreated, pending[0].EventType)
	assert.Equal(t, domain.EventOrderDeleted, pending[1].EventType)
	assert.Contains(t, string(pending[0].Payload), `"carol"`)
}
