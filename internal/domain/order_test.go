package domain_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

func ptr[T any](v T) *T { return &v }

// helper для создания валидного запроса на заказ с одной позицией.
func makeNewOrder() domain.NewOrder {
	return domain.NewOrder{
		CustomerID:            ptr(int64(1)),
		ShippingContactMechID: ptr(int64(2)),
		BillingContactMechID:  ptr(int64(3)),
		Items: []domain.NewOrderItem{
			{ProductID: ptr(int64(10)), Quantity: ptr(int32(2))},
		},
	}
}

func TestResolveHeader_DefaultsDateToToday(t *testing.T) {
	now := time.Date(2024, 3, 15, 23, 10, 0, 0, time.UTC)

	header, err := makeNewOrder().ResolveHeader(now)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), header.OrderDate)
	assert.Equal(t, int64(1), header.CustomerID)
	assert.Equal(t, int64(2), header.ShippingContactMechID)
	assert.Equal(t, int64(3), header.BillingContactMechID)
	assert.Empty(t, header.Items)
}

func TestResolveHeader_KeepsExplicitDate(t *testing.T) {
	order := makeNewOrder()
	order.OrderDate = ptr(time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC))

	header, err := order.ResolveHeader(time.Now())
	require.NoError(t, err)
	assert.Equal(t, "2023-01-02", header.OrderDate.Format(domain.DateLayout))
}

func TestResolveHeader_RequiredFields(t *testing.T) {
	cases := []struct {
		name  string
		field string
		mut   func(o *domain.NewOrder)
	}{
		{name: "no customer", field: "customer_id", mut: func(o *domain.NewOrder) { o.CustomerID = nil }},
		{name: "no shipping", field: "shipping_contact_mech_id", mut: func(o *domain.NewOrder) { o.ShippingContactMechID = nil }},
		{name: "no billing", field: "billing_contact_mech_id", mut: func(o *domain.NewOrder) { o.BillingContactMechID = nil }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := makeNewOrder()
			tc.mut(&order)

			_, err := order.ResolveHeader(time.Now())
			require.Error(t, err)
			assert.True(t, domain.IsValidation(err))

			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestNewOrderItemResolve(t *testing.T) {
	t.Run("default status", func(t *testing.T) {
		item, err := domain.NewOrderItem{ProductID: ptr(int64(10)), Quantity: ptr(int32(2))}.Resolve()
		require.NoError(t, err)
		assert.Equal(t, domain.DefaultItemStatus, item.Status)
		assert.Equal(t, int64(10), item.ProductID)
		assert.Equal(t, int32(2), item.Quantity)
	})

	t.Run("explicit status", func(t *testing.T) {
		item, err := domain.NewOrderItem{ProductID: ptr(int64(10)), Quantity: ptr(int32(1)), Status: ptr("Shipped")}.Resolve()
		require.NoError(t, err)
		assert.Equal(t, "Shipped", item.Status)
	})

	cases := []struct {
		name string
		item domain.NewOrderItem
	}{
		{name: "no product", item: domain.NewOrderItem{Quantity: ptr(int32(1))}},
		{name: "no quantity", item: domain.NewOrderItem{ProductID: ptr(int64(1))}},
		{name: "zero quantity", item: domain.NewOrderItem{ProductID: ptr(int64(1)), Quantity: ptr(int32(0))}},
		{name: "negative quantity", item: domain.NewOrderItem{ProductID: ptr(int64(1)), Quantity: ptr(int32(-3))}},
		{name: "long status", item: domain.NewOrderItem{ProductID: ptr(int64(1)), Quantity: ptr(int32(1)), Status: ptr(strings.Repeat("x", 21))}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.item.Resolve()
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestHeaderPatchApply_Partial(t *testing.T) {
	header := domain.OrderHeader{ShippingContactMechID: 2, BillingContactMechID: 3}
	patch := domain.HeaderPatch{BillingContactMechID: ptr(int64(30))}

	assert.False(t, patch.Empty())
	patch.Apply(&header)

	assert.Equal(t, int64(2), header.ShippingContactMechID)
	assert.Equal(t, int64(30), header.BillingContactMechID)
	assert.True(t, domain.HeaderPatch{}.Empty())
}

func TestItemPatch(t *testing.T) {
	item := domain.OrderItem{Quantity: 2, Status: "Pending"}

	patch := domain.ItemPatch{Status: ptr("Shipped")}
	require.NoError(t, patch.Validate())
	patch.Apply(&item)
	assert.Equal(t, int32(2), item.Quantity)
	assert.Equal(t, "Shipped", item.Status)

	assert.ErrorIs(t, domain.ItemPatch{Quantity: ptr(int32(0))}.Validate(), domain.ErrValidation)
	assert.ErrorIs(t, domain.ItemPatch{Status: ptr("")}.Validate(), domain.ErrValidation)
	assert.ErrorIs(t, domain.ItemPatch{Status: ptr(strings.Repeat("й", 21))}.Validate(), domain.ErrValidation)
	assert.NoError(t, domain.ItemPatch{Status: ptr(strings.Repeat("й", 20))}.Validate())
}

func TestOrderHeaderClone(t *testing.T) {
	header := domain.OrderHeader{ID: 1, Items: []domain.OrderItem{{SeqID: 1, Status: "Pending"}}}
	clone := header.Clone()
	clone.Items[0].Status = "Changed"

	assert.Equal(t, "Pending", header.Items[0].Status)
}
