package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

type orderRepository struct {
	db     *sql.DB
	outbox bool
	now    func() time.Time
}

// OrderOption настраивает PostgreSQL-репозиторий заказов.
type OrderOption func(*orderRepository)

// WithOutbox включает запись outbox-событий в транзакции изменения агрегата.
func WithOutbox(enabled bool) OrderOption {
	return func(r *orderRepository) {
		r.outbox = enabled
	}
}

// WithClock подменяет источник времени для даты заказа и событий.
func WithClock(now func() time.Time) OrderOption {
	return func(r *orderRepository) {
		if now != nil {
			r.now = now
		}
	}
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store, opts ...OrderOption) domain.OrderRepository {
	r := &orderRepository{db: store.DB(), now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create вставляет заголовок, получает order_id и только затем вставляет позиции.
func (r *orderRepository) Create(ctx context.Context, order domain.NewOrder) (domain.OrderHeader, error) {
	now := r.now()
	header, err := order.ResolveHeader(now)
	if err != nil {
		return domain.OrderHeader{}, err
	}

	created, err := withTx(ctx, r.db, func(tx *sql.Tx) (domain.OrderHeader, error) {
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO order_header (
				order_date, customer_id, shipping_contact_mech_id, billing_contact_mech_id
			) VALUES ($1,$2,$3,$4)
			RETURNING order_id
		`,
			header.OrderDate, header.CustomerID, header.ShippingContactMechID, header.BillingContactMechID,
		).Scan(&header.ID); err != nil {
			return domain.OrderHeader{}, fmt.Errorf("insert order header: %w", translatePgError(err))
		}

		header.Items = make([]domain.OrderItem, 0, len(order.Items))
		for i, newItem := range order.Items {
			item, err := insertItem(ctx, tx, header.ID, newItem)
			if err != nil {
				return domain.OrderHeader{}, fmt.Errorf("order_items[%d]: %w", i, err)
			}
			header.Items = append(header.Items, item)
		}

		event := domain.OrderEvent{OrderID: header.ID, ItemCount: len(header.Items)}
		if err := r.enqueue(ctx, tx, domain.EventOrderCreated, event, now); err != nil {
			return domain.OrderHeader{}, err
		}
		return header, nil
	})
	if err != nil {
		return domain.OrderHeader{}, domain.NewAggregateWriteError("create order", err)
	}

	return created, nil
}

func (r *orderRepository) Get(ctx context.Context, orderID int64) (domain.OrderHeader, error) {
	return loadOrder(ctx, r.db, orderID)
}

// UpdateHeaderFields меняет только переданные ссылки: отсутствующие поля сохраняют значение через COALESCE.
func (r *orderRepository) UpdateHeaderFields(ctx context.Context, orderID int64, patch domain.HeaderPatch) (domain.OrderHeader, error) {
	updated, err := withTx(ctx, r.db, func(tx *sql.Tx) (domain.OrderHeader, error) {
		res, err := tx.ExecContext(ctx, `
			UPDATE order_header
			SET shipping_contact_mech_id = COALESCE($2, shipping_contact_mech_id),
			    billing_contact_mech_id = COALESCE($3, billing_contact_mech_id)
			WHERE order_id = $1
		`, orderID, patch.ShippingContactMechID, patch.BillingContactMechID)
		if err != nil {
			return domain.OrderHeader{}, fmt.Errorf("update order header: %w", translatePgError(err))
		}
		if err := requireAffected(res, domain.ErrOrderNotFound); err != nil {
			return domain.OrderHeader{}, err
		}

		header, err := loadOrder(ctx, tx, orderID)
		if err != nil {
			return domain.OrderHeader{}, err
		}
		if err := r.enqueue(ctx, tx, domain.EventOrderUpdated, domain.OrderEvent{OrderID: orderID}, r.now()); err != nil {
			return domain.OrderHeader{}, err
		}
		return header, nil
	})
	if err != nil {
		return domain.OrderHeader{}, writeErr("update order", err)
	}

	return updated, nil
}

// Delete удаляет позиции и заголовок в одной транзакции; ON DELETE CASCADE остаётся второй линией.
func (r *orderRepository) Delete(ctx context.Context, orderID int64) error {
	_, err := withTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		if _, err := tx.ExecContext(ctx, `DELETE FROM order_item WHERE order_id = $1`, orderID); err != nil {
			return struct{}{}, fmt.Errorf("delete order items: %w", err)
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM order_header WHERE order_id = $1`, orderID)
		if err != nil {
			return struct{}{}, fmt.Errorf("delete order header: %w", err)
		}
		if err := requireAffected(res, domain.ErrOrderNotFound); err != nil {
			return struct{}{}, err
		}

		return struct{}{}, r.enqueue(ctx, tx, domain.EventOrderDeleted, domain.OrderEvent{OrderID: orderID}, r.now())
	})
	return writeErr("delete order", err)
}

// AddItem блокирует заголовок (FOR UPDATE), чтобы параллельный Delete не оставил сироту.
func (r *orderRepository) AddItem(ctx context.Context, orderID int64, newItem domain.NewOrderItem) (domain.OrderItem, error) {
	item, err := withTx(ctx, r.db, func(tx *sql.Tx) (domain.OrderItem, error) {
		var locked int64
		err := tx.QueryRowContext(ctx, `
			SELECT order_id FROM order_header WHERE order_id = $1 FOR UPDATE
		`, orderID).Scan(&locked)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.OrderItem{}, domain.ErrOrderNotFound
		}
		if err != nil {
			return domain.OrderItem{}, fmt.Errorf("lock order header: %w", err)
		}

		item, err := insertItem(ctx, tx, orderID, newItem)
		if err != nil {
			return domain.OrderItem{}, err
		}

		event := domain.OrderEvent{OrderID: orderID, SeqID: item.SeqID}
		if err := r.enqueue(ctx, tx, domain.EventOrderItemAdded, event, r.now()); err != nil {
			return domain.OrderItem{}, err
		}
		return item, nil
	})
	if err != nil {
		return domain.OrderItem{}, writeErr("add item", err)
	}

	return item, nil
}

// UpdateItem ищет позицию строго по (order_id, order_item_seq_id).
// Патч проверяется только после того, как позиция найдена и заблокирована.
func (r *orderRepository) UpdateItem(ctx context.Context, orderID, seqID int64, patch domain.ItemPatch) (domain.OrderItem, error) {
	var invalid error
	item, err := withTx(ctx, r.db, func(tx *sql.Tx) (domain.OrderItem, error) {
		var locked int64
		err := tx.QueryRowContext(ctx, `
			SELECT order_item_seq_id
			FROM order_item
			WHERE order_id = $1
			  AND order_item_seq_id = $2
			FOR UPDATE
		`, orderID, seqID).Scan(&locked)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.OrderItem{}, domain.ErrItemNotFound
		}
		if err != nil {
			return domain.OrderItem{}, fmt.Errorf("lock order item: %w", err)
		}
		if invalid = patch.Validate(); invalid != nil {
			return domain.OrderItem{}, invalid
		}

		var item domain.OrderItem
		err = tx.QueryRowContext(ctx, `
			UPDATE order_item
			SET quantity = COALESCE($3, quantity),
			    status = COALESCE($4, status)
			WHERE order_id = $1
			  AND order_item_seq_id = $2
			RETURNING order_item_seq_id, order_id, product_id, quantity, status
		`, orderID, seqID, patch.Quantity, patch.Status).Scan(
			&item.SeqID, &item.OrderID, &item.ProductID, &item.Quantity, &item.Status,
		)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.OrderItem{}, domain.ErrItemNotFound
		}
		if err != nil {
			return domain.OrderItem{}, fmt.Errorf("update order item: %w", translatePgError(err))
		}

		event := domain.OrderEvent{OrderID: orderID, SeqID: seqID}
		if err := r.enqueue(ctx, tx, domain.EventOrderItemUpdated, event, r.now()); err != nil {
			return domain.OrderItem{}, err
		}
		return item, nil
	})
	if invalid != nil {
		return domain.OrderItem{}, invalid
	}
	if err != nil {
		return domain.OrderItem{}, writeErr("update item", err)
	}

	return item, nil
}

func (r *orderRepository) DeleteItem(ctx context.Context, orderID, seqID int64) error {
	_, err := withTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM order_item
			WHERE order_id = $1
			  AND order_item_seq_id = $2
		`, orderID, seqID)
		if err != nil {
			return struct{}{}, fmt.Errorf("delete order item: %w", err)
		}
		if err := requireAffected(res, domain.ErrItemNotFound); err != nil {
			return struct{}{}, err
		}

		event := domain.OrderEvent{OrderID: orderID, SeqID: seqID}
		return struct{}{}, r.enqueue(ctx, tx, domain.EventOrderItemDeleted, event, r.now())
	})
	return writeErr("delete item", err)
}

// loadOrder читает заголовок и позиции одним LEFT JOIN, позиции упорядочены по seq_id.
func loadOrder(ctx context.Context, q queryer, orderID int64) (domain.OrderHeader, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT h.order_id, h.order_date, h.customer_id,
		       h.shipping_contact_mech_id, h.billing_contact_mech_id,
		       i.order_item_seq_id, i.product_id, i.quantity, i.status
		FROM order_header h
		LEFT JOIN order_item i ON i.order_id = h.order_id
		WHERE h.order_id = $1
		ORDER BY i.order_item_seq_id ASC
	`, orderID)
	if err != nil {
		return domain.OrderHeader{}, fmt.Errorf("select order: %w", err)
	}
	defer rows.Close()

	var (
		header domain.OrderHeader
		found  bool
	)
	header.Items = make([]domain.OrderItem, 0)
	for rows.Next() {
		var (
			seqID     sql.NullInt64
			productID sql.NullInt64
			quantity  sql.NullInt32
			status    sql.NullString
		)
		if err := rows.Scan(
			&header.ID, &header.OrderDate, &header.CustomerID,
			&header.ShippingContactMechID, &header.BillingContactMechID,
			&seqID, &productID, &quantity, &status,
		); err != nil {
			return domain.OrderHeader{}, fmt.Errorf("scan order row: %w", err)
		}
		found = true

		if !seqID.Valid {
			continue
		}
		header.Items = append(header.Items, domain.OrderItem{
			SeqID:     seqID.Int64,
			OrderID:   header.ID,
			ProductID: productID.Int64,
			Quantity:  quantity.Int32,
			Status:    status.String,
		})
	}
	if err := rows.Err(); err != nil {
		return domain.OrderHeader{}, fmt.Errorf("iterate order rows: %w", err)
	}
	if !found {
		return domain.OrderHeader{}, domain.ErrOrderNotFound
	}

	header.OrderDate = domain.TruncateDate(header.OrderDate)
	return header, nil
}

func insertItem(ctx context.Context, tx *sql.Tx, orderID int64, newItem domain.NewOrderItem) (domain.OrderItem, error) {
	item, err := newItem.Resolve()
	if err != nil {
		return domain.OrderItem{}, err
	}
	item.OrderID = orderID

	if err := tx.QueryRowContext(ctx, `
		INSERT INTO order_item (order_id, product_id, quantity, status)
		VALUES ($1,$2,$3,$4)
		RETURNING order_item_seq_id
	`, orderID, item.ProductID, item.Quantity, item.Status).Scan(&item.SeqID); err != nil {
		return domain.OrderItem{}, fmt.Errorf("insert order item: %w", translatePgError(err))
	}

	return item, nil
}

func (r *orderRepository) enqueue(ctx context.Context, tx *sql.Tx, eventType string, event domain.OrderEvent, now time.Time) error {
	if !r.outbox {
		return nil
	}

	msg, err := domain.NewOrderEvent(ctx, eventType, event, now)
	if err != nil {
		return fmt.Errorf("build outbox event: %w", err)
	}
	return enqueueOutboxTx(ctx, tx, msg)
}

func requireAffected(res sql.Result, notFound error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return notFound
	}
	return nil
}

// writeErr оставляет NotFound как есть, остальные сбои считаются ошибкой записи агрегата.
func writeErr(op string, err error) error {
	if err == nil || domain.IsNotFound(err) {
		return err
	}
	return domain.NewAggregateWriteError(op, err)
}

var _ domain.OrderRepository = (*orderRepository)(nil)
