package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

// orderRepositoryInMemory реализует агрегатный репозиторий в памяти.
// Каждая операция готовит изменения на копии и записывает их в map только
// после успешной проверки всех строк, поэтому частичных состояний нет.
// Счётчики идентификаторов ведут себя как последовательности БД: не откатываются.
type orderRepositoryInMemory struct {
	mu          sync.RWMutex
	orders      map[int64]domain.OrderHeader
	nextOrderID int64
	nextSeqID   int64

	outbox *OutboxRepository
	now    func() time.Time
}

// Option настраивает in-memory репозиторий заказов.
type Option func(*orderRepositoryInMemory)

// WithOutbox включает запись событий в outbox вместе с изменением агрегата.
func WithOutbox(outbox *OutboxRepository) Option {
	return func(r *orderRepositoryInMemory) {
		r.outbox = outbox
	}
}

// WithClock подменяет источник времени (дата заказа по умолчанию, время событий).
func WithClock(now func() time.Time) Option {
	return func(r *orderRepositoryInMemory) {
		if now != nil {
			r.now = now
		}
	}
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOrderRepository(opts ...Option) domain.OrderRepository {
	r := &orderRepositoryInMemory{
		orders: make(map[int64]domain.OrderHeader),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create сохраняет заголовок и все позиции либо ничего.
func (r *orderRepositoryInMemory) Create(ctx context.Context, order domain.NewOrder) (domain.OrderHeader, error) {
	now := r.now()
	header, err := order.ResolveHeader(now)
	if err != nil {
		return domain.OrderHeader{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextOrderID++
	header.ID = r.nextOrderID

	header.Items = make([]domain.OrderItem, 0, len(order.Items))
	for _, newItem := range order.Items {
		item, err := newItem.Resolve()
		if err != nil {
			return domain.OrderHeader{}, domain.NewAggregateWriteError("create order", err)
		}
		r.nextSeqID++
		item.SeqID = r.nextSeqID
		item.OrderID = header.ID
		header.Items = append(header.Items, item)
	}

	if err := r.emit(ctx, domain.EventOrderCreated, domain.OrderEvent{OrderID: header.ID, ItemCount: len(header.Items)}, now); err != nil {
		return domain.OrderHeader{}, domain.NewAggregateWriteError("create order", err)
	}

	r.orders[header.ID] = header
	return header.Clone(), nil
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepositoryInMemory) Get(_ context.Context, orderID int64) (domain.OrderHeader, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	header, ok := r.orders[orderID]
	if !ok {
		return domain.OrderHeader{}, domain.ErrOrderNotFound
	}
	return header.Clone(), nil
}

// UpdateHeaderFields меняет только присутствующие в патче ссылки.
func (r *orderRepositoryInMemory) UpdateHeaderFields(ctx context.Context, orderID int64, patch domain.HeaderPatch) (domain.OrderHeader, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.orders[orderID]
	if !ok {
		return domain.OrderHeader{}, domain.ErrOrderNotFound
	}

	updated := current.Clone()
	patch.Apply(&updated)

	if err := r.emit(ctx, domain.EventOrderUpdated, domain.OrderEvent{OrderID: orderID}, r.now()); err != nil {
		return domain.OrderHeader{}, domain.NewAggregateWriteError("update order", err)
	}

	r.orders[orderID] = updated
	return updated.Clone(), nil
}

// Delete удаляет заголовок вместе со всеми позициями.
func (r *orderRepositoryInMemory) Delete(ctx context.Context, orderID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[orderID]; !ok {
		return domain.ErrOrderNotFound
	}
	if err := r.emit(ctx, domain.EventOrderDeleted, domain.OrderEvent{OrderID: orderID}, r.now()); err != nil {
		return domain.NewAggregateWriteError("delete order", err)
	}

	delete(r.orders, orderID)
	return nil
}

// AddItem добавляет позицию к существующему заказу.
func (r *orderRepositoryInMemory) AddItem(ctx context.Context, orderID int64, newItem domain.NewOrderItem) (domain.OrderItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.orders[orderID]
	if !ok {
		return domain.OrderItem{}, domain.ErrOrderNotFound
	}

	item, err := newItem.Resolve()
	if err != nil {
		return domain.OrderItem{}, domain.NewAggregateWriteError("add item", err)
	}
	r.nextSeqID++
	item.SeqID = r.nextSeqID
	item.OrderID = orderID

	if err := r.emit(ctx, domain.EventOrderItemAdded, domain.OrderEvent{OrderID: orderID, SeqID: item.SeqID}, r.now()); err != nil {
		return domain.OrderItem{}, domain.NewAggregateWriteError("add item", err)
	}

	updated := current.Clone()
	updated.Items = append(updated.Items, item)
	r.orders[orderID] = updated
	return item, nil
}

// UpdateItem меняет quantity/status позиции, найденной по (orderID, seqID).
// Отсутствующая позиция важнее невалидного патча.
func (r *orderRepositoryInMemory) UpdateItem(ctx context.Context, orderID, seqID int64, patch domain.ItemPatch) (domain.OrderItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, idx, err := r.locateItem(orderID, seqID)
	if err != nil {
		return domain.OrderItem{}, err
	}
	if err := patch.Validate(); err != nil {
		return domain.OrderItem{}, err
	}

	updated := current.Clone()
	patch.Apply(&updated.Items[idx])

	if err := r.emit(ctx, domain.EventOrderItemUpdated, domain.OrderEvent{OrderID: orderID, SeqID: seqID}, r.now()); err != nil {
		return domain.OrderItem{}, domain.NewAggregateWriteError("update item", err)
	}

	r.orders[orderID] = updated
	return updated.Items[idx], nil
}

// DeleteItem удаляет позицию, найденную по (orderID, seqID).
func (r *orderRepositoryInMemory) DeleteItem(ctx context.Context, orderID, seqID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, idx, err := r.locateItem(orderID, seqID)
	if err != nil {
		return err
	}
	if err := r.emit(ctx, domain.EventOrderItemDeleted, domain.OrderEvent{OrderID: orderID, SeqID: seqID}, r.now()); err != nil {
		return domain.NewAggregateWriteError("delete item", err)
	}

	updated := current.Clone()
	updated.Items = append(updated.Items[:idx], updated.Items[idx+1:]...)
	r.orders[orderID] = updated
	return nil
}

// locateItem ищет позицию только среди позиций указанного заказа.
func (r *orderRepositoryInMemory) locateItem(orderID, seqID int64) (domain.OrderHeader, int, error) {
	header, ok := r.orders[orderID]
	if !ok {
		return domain.OrderHeader{}, 0, domain.ErrItemNotFound
	}
	for i, item := range header.Items {
		if item.SeqID == seqID {
			return header, i, nil
		}
	}
	return domain.OrderHeader{}, 0, domain.ErrItemNotFound
}

// emit пишет событие в outbox; вызывается последним шагом перед фиксацией.
func (r *orderRepositoryInMemory) emit(ctx context.Context, eventType string, event domain.OrderEvent, now time.Time) error {
	if r.outbox == nil {
		return nil
	}
	msg, err := domain.NewOrderEvent(ctx, eventType, event, now)
	if err != nil {
		return err
	}
	r.outbox.enqueue(msg)
	return nil
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
