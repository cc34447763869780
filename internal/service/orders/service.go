package orders

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/metrics"
)

// Имена операций для логов и метрик.
const (
	OpCreateOrder = "create_order"
	OpGetOrder    = "get_order"
	OpUpdateOrder = "update_order"
	OpDeleteOrder = "delete_order"
	OpAddItem     = "add_item"
	OpUpdateItem  = "update_item"
	OpDeleteItem  = "delete_item"
)

// Service является тонким слоем над агрегатным репозиторием: каждая операция делает один вызов репозитория.
// Бизнес-правил сверх репозитория не добавляет; отвечает за метрики, логи
// и (опционально) обязательность личности вызывающего.
type Service struct {
	repo            domain.OrderRepository
	metrics         *metrics.Metrics
	logger          *log.Entry
	requireIdentity bool
}

// Option настраивает Service.
type Option func(*Service)

// WithLogger задаёт логгер сервиса.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics подключает Prometheus-метрики.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithIdentityRequired отклоняет вызовы без личности в контексте (защищённый вариант).
func WithIdentityRequired() Option {
	return func(s *Service) {
		s.requireIdentity = true
	}
}

// NewService конструирует сервис заказов.
func NewService(repo domain.OrderRepository, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		logger: log.WithField("component", "order-service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOrder создаёт заголовок вместе с начальными позициями.
func (s *Service) CreateOrder(ctx context.Context, order domain.NewOrder) (domain.OrderHeader, error) {
	var created domain.OrderHeader
	err := s.run(ctx, OpCreateOrder, log.Fields{"items": len(order.Items)}, func(ctx context.Context) (err error) {
		created, err = s.repo.Create(ctx, order)
		return err
	})
	return created, err
}

// GetOrder возвращает заказ со всеми позициями.
func (s *Service) GetOrder(ctx context.Context, orderID int64) (domain.OrderHeader, error) {
	var header domain.OrderHeader
	err := s.run(ctx, OpGetOrder, log.Fields{"order_id": orderID}, func(ctx context.Context) (err error) {
		header, err = s.repo.Get(ctx, orderID)
		return err
	})
	return header, err
}

// UpdateOrder применяет частичное обновление заголовка.
func (s *Service) UpdateOrder(ctx context.Context, orderID int64, patch domain.HeaderPatch) (domain.OrderHeader, error) {
	var header domain.OrderHeader
	err := s.run(ctx, OpUpdateOrder, log.Fields{"order_id": orderID}, func(ctx context.Context) (err error) {
		header, err = s.repo.UpdateHeaderFields(ctx, orderID, patch)
		return err
	})
	return header, err
}

// DeleteOrder удаляет заказ с каскадом на позиции.
func (s *Service) DeleteOrder(ctx context.Context, orderID int64) error {
	return s.run(ctx, OpDeleteOrder, log.Fields{"order_id": orderID}, func(ctx context.Context) error {
		return s.repo.Delete(ctx, orderID)
	})
}

// AddItem добавляет позицию к заказу.
func (s *Service) AddItem(ctx context.Context, orderID int64, item domain.NewOrderItem) (domain.OrderItem, error) {
	var added domain.OrderItem
	err := s.run(ctx, OpAddItem, log.Fields{"order_id": orderID}, func(ctx context.Context) (err error) {
		added, err = s.repo.AddItem(ctx, orderID, item)
		return err
	})
	return added, err
}

// UpdateItem обновляет позицию по составному ключу.
func (s *Service) UpdateItem(ctx context.Context, orderID, seqID int64, patch domain.ItemPatch) (domain.OrderItem, error) {
	var updated domain.OrderItem
	fields := log.Fields{"order_id": orderID, "seq_id": seqID}
	err := s.run(ctx, OpUpdateItem, fields, func(ctx context.Context) (err error) {
		updated, err = s.repo.UpdateItem(ctx, orderID, seqID, patch)
		return err
	})
	return updated, err
}

// DeleteItem удаляет позицию по составному ключу.
func (s *Service) DeleteItem(ctx context.Context, orderID, seqID int64) error {
	fields := log.Fields{"order_id": orderID, "seq_id": seqID}
	return s.run(ctx, OpDeleteItem, fields, func(ctx context.Context) error {
		return s.repo.DeleteItem(ctx, orderID, seqID)
	})
}

// run выполняет вызов репозитория без отмены по контексту запроса:
// операция либо завершается, либо откатывается целиком.
func (s *Service) run(ctx context.Context, op string, fields log.Fields, call func(ctx context.Context) error) error {
	actor, hasActor := domain.ActorFromContext(ctx)
	if s.requireIdentity && !hasActor {
		s.metrics.RecordOrderOperation(op, metrics.ResultDenied)
		return domain.ErrUnauthenticated
	}

	err := call(context.WithoutCancel(ctx))

	entry := s.logger.WithFields(fields).WithField("operation", op)
	if hasActor {
		entry = entry.WithField("actor", actor.Username)
	}

	switch {
	case err == nil:
		s.metrics.RecordOrderOperation(op, metrics.ResultOK)
		entry.Debug("order operation completed")
	case domain.IsNotFound(err):
		s.metrics.RecordOrderOperation(op, metrics.ResultNotFound)
		entry.WithError(err).Info("order operation target not found")
	case domain.IsAggregateWrite(err):
		s.metrics.RecordOrderOperation(op, metrics.ResultFailed)
		s.metrics.RecordAggregateWriteFailure(op)
		entry.WithError(err).Warn("aggregate write rolled back")
	case domain.IsValidation(err):
		s.metrics.RecordOrderOperation(op, metrics.ResultInvalid)
		entry.WithError(err).Info("order operation rejected")
	default:
		s.metrics.RecordOrderOperation(op, metrics.ResultFailed)
		entry.WithError(err).Error("order operation failed")
	}

	return err
}
