package httpapi

import (
	"time"

	"github.com/samber/lo"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/auth"
)

// Формы запросов и ответов описаны явно и не зависят от строк хранилища.

type orderItemRequest struct {
	ProductID *int64  `json:"product_id"`
	Quantity  *int32  `json:"quantity"`
	Status    *string `json:"status"`
}

type createOrderRequest struct {
	OrderDate             *string            `json:"order_date"`
	CustomerID            *int64             `json:"customer_id"`
	ShippingContactMechID *int64             `json:"shipping_contact_mech_id"`
	BillingContactMechID  *int64             `json:"billing_contact_mech_id"`
	OrderItems            []orderItemRequest `json:"order_items"`
}

type updateOrderRequest struct {
	ShippingContactMechID *int64 `json:"shipping_contact_mech_id"`
	BillingContactMechID  *int64 `json:"billing_contact_mech_id"`
}

type updateItemRequest struct {
	Quantity *int32  `json:"quantity"`
	Status   *string `json:"status"`
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type itemResponse struct {
	OrderItemSeqID int64  `json:"order_item_seq_id"`
	OrderID        int64  `json:"order_id"`
	ProductID      int64  `json:"product_id"`
	Quantity       int32  `json:"quantity"`
	Status         string `json:"status"`
}

type orderResponse struct {
	OrderID               int64          `json:"order_id"`
	OrderDate             string         `json:"order_date"`
	CustomerID            int64          `json:"customer_id"`
	ShippingContactMechID int64          `json:"shipping_contact_mech_id"`
	BillingContactMechID  int64          `json:"billing_contact_mech_id"`
	Items                 []itemResponse `json:"items"`
}

type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func (r orderItemRequest) toDomain() domain.NewOrderItem {
	return domain.NewOrderItem{ProductID: r.ProductID, Quantity: r.Quantity, Status: r.Status}
}

func (r createOrderRequest) toDomain() (domain.NewOrder, error) {
	order := domain.NewOrder{
		CustomerID:            r.CustomerID,
		ShippingContactMechID: r.ShippingContactMechID,
		BillingContactMechID:  r.BillingContactMechID,
		Items: lo.Map(r.OrderItems, func(item orderItemRequest, _ int) domain.NewOrderItem {
			return item.toDomain()
		}),
	}

	if r.OrderDate != nil {
		date, err := time.Parse(domain.DateLayout, *r.OrderDate)
		if err != nil {
			return domain.NewOrder{}, domain.NewValidationError("order_date", "must be a date in YYYY-MM-DD format")
		}
		order.OrderDate = &date
	}

	return order, nil
}

func (r updateOrderRequest) toDomain() domain.HeaderPatch {
	return domain.HeaderPatch{
		ShippingContactMechID: r.ShippingContactMechID,
		BillingContactMechID:  r.BillingContactMechID,
	}
}

func (r updateItemRequest) toDomain() domain.ItemPatch {
	return domain.ItemPatch{Quantity: r.Quantity, Status: r.Status}
}

func toItemResponse(item domain.OrderItem) itemResponse {
	return itemResponse{
		OrderItemSeqID: item.SeqID,
		OrderID:        item.OrderID,
		ProductID:      item.ProductID,
		Quantity:       item.Quantity,
		Status:         item.Status,
	}
}

func toOrderResponse(header domain.OrderHeader) orderResponse {
	return orderResponse{
		OrderID:               header.ID,
		OrderDate:             header.OrderDate.Format(domain.DateLayout),
		CustomerID:            header.CustomerID,
		ShippingContactMechID: header.ShippingContactMechID,
		BillingContactMechID:  header.BillingContactMechID,
		Items: lo.Map(header.Items, func(item domain.OrderItem, _ int) itemResponse {
			return toItemResponse(item)
		}),
	}
}

func toTokenResponse(token auth.Token) tokenResponse {
	return tokenResponse{
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
		ExpiresAt:   token.ExpiresAt,
	}
}
