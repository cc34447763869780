package domain

import (
	"context"
	"time"
)

// OrderRepository описывает атомарные операции над агрегатом заголовок+позиции.
// Каждая многострочная операция выполняется в одной транзакции хранилища.
type OrderRepository interface {
	// Create сохраняет заголовок и начальный набор позиций целиком или не сохраняет ничего.
	Create(ctx context.Context, order NewOrder) (OrderHeader, error)
	// Get возвращает заголовок со всеми позициями или ErrOrderNotFound.
	Get(ctx context.Context, orderID int64) (OrderHeader, error)
	// UpdateHeaderFields применяет только присутствующие в патче поля.
	UpdateHeaderFields(ctx context.Context, orderID int64, patch HeaderPatch) (OrderHeader, error)
	// Delete удаляет заголовок вместе с позициями; повторный вызов вернёт ErrOrderNotFound.
	Delete(ctx context.Context, orderID int64) error
	// AddItem добавляет позицию к существующему заказу.
	AddItem(ctx context.Context, orderID int64, item NewOrderItem) (OrderItem, error)
	// UpdateItem ищет позицию по составному ключу (orderID, seqID).
	UpdateItem(ctx context.Context, orderID, seqID int64, patch ItemPatch) (OrderItem, error)
	// DeleteItem удаляет позицию по составному ключу (orderID, seqID).
	DeleteItem(ctx context.Context, orderID, seqID int64) error
}

// UserRepository хранит учётные данные пользователей.
type UserRepository interface {
	// CreateUser возвращает ErrDuplicateUser, если имя уже занято.
	CreateUser(ctx context.Context, username, passwordHash string) (User, error)
	// FindByUsername возвращает ErrUserNotFound, если пользователя нет.
	FindByUsername(ctx context.Context, username string) (User, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository отдаёт события, записанные вместе с изменениями агрегата.
type OutboxRepository interface {
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
