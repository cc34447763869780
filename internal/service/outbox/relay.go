package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/metrics"
)

// Исходы доставки для orderdesk_outbox_publish_attempts_total.
const (
	resultSent       = "sent"
	resultRetryError = "retry_error"
	resultFailed     = "failed"
	resultRejected   = "rejected"
	resultDLQFailed  = "dlq_failed"
)

// Settings задаёт расписание опроса и политику повторов.
type Settings struct {
	PollInterval   time.Duration
	BatchSize      int
	MaxAttempts    int
	RetryBaseDelay time.Duration
	MaxRetryDelay  time.Duration
}

// DefaultSettings совпадает со значениями конфигурации по умолчанию.
func DefaultSettings() Settings {
	return Settings{
		PollInterval:   time.Second,
		BatchSize:      100,
		MaxAttempts:    3,
		RetryBaseDelay: 50 * time.Millisecond,
		MaxRetryDelay:  5 * time.Second,
	}
}

func (s Settings) normalized() Settings {
	def := DefaultSettings()
	if s.PollInterval <= 0 {
		s.PollInterval = def.PollInterval
	}
	if s.BatchSize <= 0 {
		s.BatchSize = def.BatchSize
	}
	if s.MaxAttempts <= 0 {
		s.MaxAttempts = def.MaxAttempts
	}
	if s.RetryBaseDelay < 0 {
		s.RetryBaseDelay = 0
	}
	if s.MaxRetryDelay <= 0 {
		s.MaxRetryDelay = def.MaxRetryDelay
	}
	if s.MaxRetryDelay < s.RetryBaseDelay {
		s.MaxRetryDelay = s.RetryBaseDelay
	}
	return s
}

// backoff удваивает задержку после каждой неудачной попытки, не выходя за MaxRetryDelay.
func (s Settings) backoff(attempt int) time.Duration {
	if s.RetryBaseDelay <= 0 {
		return 0
	}
	delay := s.RetryBaseDelay
	for i := 1; i < attempt; i++ {
		if delay > s.MaxRetryDelay/2 {
			return s.MaxRetryDelay
		}
		delay *= 2
	}
	return min(delay, s.MaxRetryDelay)
}

// Option настраивает Relay.
type Option func(*Relay)

func WithLogger(logger *log.Entry) Option {
	return func(r *Relay) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Relay) {
		r.metrics = m
	}
}

// WithDeadLetter задаёт получателя событий, которые не удалось доставить или разобрать.
func WithDeadLetter(publisher domain.OutboxPublisher) Option {
	return func(r *Relay) {
		r.deadLetter = publisher
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Relay) {
		if now != nil {
			r.now = now
		}
	}
}

// Relay доставляет события заказов из outbox в брокер.
// Сообщение, которое не разбирается как событие заказа, сразу уходит в dead letter без повторов.
type Relay struct {
	repo       domain.OutboxRepository
	publisher  domain.OutboxPublisher
	deadLetter domain.OutboxPublisher
	settings   Settings
	metrics    *metrics.Metrics
	logger     *log.Entry
	now        func() time.Time
}

func NewRelay(repo domain.OutboxRepository, publisher domain.OutboxPublisher, settings Settings, opts ...Option) *Relay {
	r := &Relay{
		repo:      repo,
		publisher: publisher,
		settings:  settings.normalized(),
		logger:    log.WithField("component", "outbox-relay"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run опрашивает outbox каждые PollInterval до отмены ctx.
func (r *Relay) Run(ctx context.Context) {
	if r.repo == nil || r.publisher == nil {
		r.logger.Warn("outbox relay is disabled: repository or publisher is missing")
		return
	}

	ticker := time.NewTicker(r.settings.PollInterval)
	defer ticker.Stop()

	for {
		r.ProcessOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ProcessOnce разбирает одну пачку pending-сообщений и возвращает число доставленных.
// При отмене ctx недоставленные сообщения остаются pending.
func (r *Relay) ProcessOnce(ctx context.Context) int {
	if ctx.Err() != nil {
		return 0
	}
	defer r.refreshBacklog(ctx)

	batch, err := r.repo.PullPending(ctx, r.settings.BatchSize)
	if err != nil {
		r.logger.WithError(err).Warn("failed to pull pending order events")
		return 0
	}

	delivered := 0
	for _, msg := range batch {
		ok, err := r.deliver(ctx, msg)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			break
		}
		if ok {
			delivered++
		}
	}
	return delivered
}

// deliver доводит одно сообщение до конечного состояния: sent или failed.
func (r *Relay) deliver(ctx context.Context, msg domain.OutboxMessage) (bool, error) {
	entry := r.logger.WithFields(log.Fields{
		"outbox_id":  msg.ID,
		"event_type": msg.EventType,
		"order_id":   msg.AggregateID,
	})

	event, err := domain.ParseOrderEvent(msg)
	if err != nil {
		entry.WithError(err).Error("rejecting malformed order event")
		r.metrics.RecordOutboxPublish(resultRejected)
		r.fail(ctx, entry, msg, event, err, 0)
		return false, nil
	}
	if event.SeqID > 0 {
		entry = entry.WithField("order_item_seq_id", event.SeqID)
	}
	if event.Actor != "" {
		entry = entry.WithField("actor", event.Actor)
	}

	attempts, err := r.publish(ctx, msg)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		entry.WithError(err).WithField("attempts", attempts).Error("order event delivery failed")
		r.metrics.RecordOutboxPublish(resultFailed)
		r.fail(ctx, entry, msg, event, err, attempts)
		return false, nil
	}

	if err := r.repo.MarkSent(ctx, msg.ID); err != nil {
		entry.WithError(err).Warn("order event delivered but not marked as sent")
		return false, nil
	}
	entry.Debug("order event delivered")
	return true, nil
}

func (r *Relay) publish(ctx context.Context, msg domain.OutboxMessage) (int, error) {
	var lastErr error
	for attempt := 1; attempt <= r.settings.MaxAttempts; attempt++ {
		if lastErr = r.publisher.Publish(msg); lastErr == nil {
			r.metrics.RecordOutboxPublish(resultSent)
			return attempt, nil
		}
		r.metrics.RecordOutboxPublish(resultRetryError)

		if attempt == r.settings.MaxAttempts {
			break
		}
		if err := sleep(ctx, r.settings.backoff(attempt)); err != nil {
			return attempt, err
		}
	}
	return r.settings.MaxAttempts, lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// fail отправляет событие в dead letter и помечает запись failed.
func (r *Relay) fail(ctx context.Context, entry *log.Entry, msg domain.OutboxMessage, event domain.OrderEvent, cause error, attempts int) {
	if err := r.publishDeadLetter(msg, event, cause, attempts); err != nil {
		entry.WithError(err).Warn("failed to publish order event to dead letter topic")
		r.metrics.RecordOutboxPublish(resultDLQFailed)
	}
	if err := r.repo.MarkFailed(ctx, msg.ID); err != nil {
		entry.WithError(err).Warn("failed to mark order event as failed")
	}
}

// deadLetter описывает тело сообщения в DLQ-топике.
type deadLetter struct {
	OutboxID   string          `json:"outbox_id"`
	EventType  string          `json:"event_type"`
	OrderID    int64           `json:"order_id,omitempty"`
	SeqID      int64           `json:"order_item_seq_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	RawPayload string          `json:"raw_payload,omitempty"`
	Reason     string          `json:"reason"`
	Attempts   int             `json:"attempts"`
	FailedAt   time.Time       `json:"failed_at"`
}

func (r *Relay) publishDeadLetter(msg domain.OutboxMessage, event domain.OrderEvent, cause error, attempts int) error {
	if r.deadLetter == nil {
		return nil
	}

	body := deadLetter{
		OutboxID:  msg.ID,
		EventType: msg.EventType,
		OrderID:   event.OrderID,
		SeqID:     event.SeqID,
		Reason:    cause.Error(),
		Attempts:  attempts,
		FailedAt:  r.now().UTC(),
	}
	if json.Valid(msg.Payload) {
		body.Payload = msg.Payload
	} else {
		body.RawPayload = string(msg.Payload)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}

	dead := msg
	dead.Payload = payload
	if err := r.deadLetter.Publish(dead); err != nil {
		return fmt.Errorf("publish dead letter: %w", err)
	}
	return nil
}

func (r *Relay) refreshBacklog(ctx context.Context) {
	if r.metrics == nil {
		return
	}

	stats, err := r.repo.Stats(context.WithoutCancel(ctx))
	if err != nil {
		r.logger.WithError(err).Warn("failed to collect outbox backlog stats")
		return
	}

	var age time.Duration
	if stats.PendingCount > 0 && !stats.OldestPendingAt.IsZero() {
		age = r.now().Sub(stats.OldestPendingAt)
	}
	r.metrics.SetOutboxBacklog(stats.PendingCount, age)
}
