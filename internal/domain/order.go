package domain

import (
	"time"
	"unicode/utf8"
)

const (
	// DefaultItemStatus присваивается позиции, если статус не передан.
	DefaultItemStatus = "Pending"
	// MaxItemStatusLen ограничивает длину статуса позиции (VARCHAR(20) в схеме).
	MaxItemStatusLen = 20
	// DateLayout задаёт формат даты заказа на проводе.
	DateLayout = "2006-01-02"
)

// OrderItem представляет одну позицию заказа.
type OrderItem struct {
	// SeqID генерируется хранилищем при вставке.
	SeqID int64
	// OrderID ссылается на заголовок-владелец, никогда не пустой.
	OrderID   int64
	ProductID int64
	Quantity  int32
	Status    string
}

// OrderHeader агрегирует заголовок заказа и принадлежащие ему позиции.
// Items упорядочены по порядку вставки (SeqID по возрастанию).
type OrderHeader struct {
	ID                    int64
	OrderDate             time.Time
	CustomerID            int64
	ShippingContactMechID int64
	BillingContactMechID  int64
	Items                 []OrderItem
}

// Clone возвращает копию заголовка с собственным срезом позиций.
func (h OrderHeader) Clone() OrderHeader {
	if h.Items != nil {
		items := make([]OrderItem, len(h.Items))
		copy(items, h.Items)
		h.Items = items
	}
	return h
}

// NewOrderItem описывает позицию в запросе на создание.
// Указатели отличают отсутствующее поле от нулевого значения.
type NewOrderItem struct {
	ProductID *int64
	Quantity  *int32
	Status    *string
}

// Resolve проверяет обязательные поля и подставляет статус по умолчанию.
func (i NewOrderItem) Resolve() (OrderItem, error) {
	if i.ProductID == nil {
		return OrderItem{}, NewValidationError("product_id", "is required")
	}
	if i.Quantity == nil {
		return OrderItem{}, NewValidationError("quantity", "is required")
	}
	if *i.Quantity <= 0 {
		return OrderItem{}, NewValidationError("quantity", "must be greater than zero")
	}

	status := DefaultItemStatus
	if i.Status != nil && *i.Status != "" {
		status = *i.Status
	}
	if err := validateStatus(status); err != nil {
		return OrderItem{}, err
	}

	return OrderItem{
		ProductID: *i.ProductID,
		Quantity:  *i.Quantity,
		Status:    status,
	}, nil
}

// NewOrder содержит данные для создания заказа вместе с начальным набором позиций.
type NewOrder struct {
	OrderDate             *time.Time
	CustomerID            *int64
	ShippingContactMechID *int64
	BillingContactMechID  *int64
	Items                 []NewOrderItem
}

// ResolveHeader проверяет поля заголовка и возвращает заголовок без позиций.
// Если дата не указана, используется текущая календарная дата (UTC).
func (o NewOrder) ResolveHeader(now time.Time) (OrderHeader, error) {
	if o.CustomerID == nil {
		return OrderHeader{}, NewValidationError("customer_id", "is required")
	}
	if o.ShippingContactMechID == nil {
		return OrderHeader{}, NewValidationError("shipping_contact_mech_id", "is required")
	}
	if o.BillingContactMechID == nil {
		return OrderHeader{}, NewValidationError("billing_contact_mech_id", "is required")
	}

	date := now
	if o.OrderDate != nil {
		date = *o.OrderDate
	}

	return OrderHeader{
		OrderDate:             TruncateDate(date),
		CustomerID:            *o.CustomerID,
		ShippingContactMechID: *o.ShippingContactMechID,
		BillingContactMechID:  *o.BillingContactMechID,
	}, nil
}

// TruncateDate отбрасывает время суток и приводит дату к UTC.
func TruncateDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// HeaderPatch описывает частичное обновление заголовка.
// Изменяемы только ссылки на контакты доставки и оплаты.
type HeaderPatch struct {
	ShippingContactMechID *int64
	BillingContactMechID  *int64
}

// Empty сообщает, что патч не содержит ни одного поля.
func (p HeaderPatch) Empty() bool {
	return p.ShippingContactMechID == nil && p.BillingContactMechID == nil
}

// Apply применяет присутствующие поля к заголовку.
func (p HeaderPatch) Apply(h *OrderHeader) {
	if p.ShippingContactMechID != nil {
		h.ShippingContactMechID = *p.ShippingContactMechID
	}
	if p.BillingContactMechID != nil {
		h.BillingContactMechID = *p.BillingContactMechID
	}
}

// ItemPatch описывает частичное обновление позиции (quantity/status).
type ItemPatch struct {
	Quantity *int32
	Status   *string
}

// Validate проверяет присутствующие поля патча.
func (p ItemPatch) Validate() error {
	if p.Quantity != nil && *p.Quantity <= 0 {
		return NewValidationError("quantity", "must be greater than zero")
	}
	if p.Status != nil {
		if *p.Status == "" {
			return NewValidationError("status", "must not be empty")
		}
		if err := validateStatus(*p.Status); err != nil {
			return err
		}
	}
	return nil
}

// Apply применяет присутствующие поля к позиции.
func (p ItemPatch) Apply(item *OrderItem) {
	if p.Quantity != nil {
		item.Quantity = *p.Quantity
	}
	if p.Status != nil {
		item.Status = *p.Status
	}
}

func validateStatus(status string) error {
	if utf8.RuneCountInString(status) > MaxItemStatusLen {
		return NewValidationError("status", "must be at most 20 characters")
	}
	return nil
}
