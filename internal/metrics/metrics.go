package metrics

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты операций для label result.
const (
	ResultOK        = "ok"
	ResultNotFound  = "not_found"
	ResultInvalid   = "invalid"
	ResultFailed    = "failed"
	ResultDenied    = "denied"
	ResultDuplicate = "duplicate"
)

// Metrics содержит коллекторы API заказов и контроля доступа.
// Все методы безопасны для nil-получателя.
type Metrics struct {
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	orderOperations  *prometheus.CounterVec
	aggregateFailure *prometheus.CounterVec
	authAttempts     *prometheus.CounterVec

	outboxPublish    *prometheus.CounterVec
	outboxPending    prometheus.Gauge
	outboxOldestAge  prometheus.Gauge
}

// New регистрирует коллекторы в registerer (при nil используется DefaultRegisterer).
// Повторная регистрация возвращает уже существующие коллекторы.
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &Metrics{
		httpRequests: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orderdesk_http_requests_total",
			Help: "Total number of HTTP requests by route and status code",
		}, []string{"method", "route", "code"})),
		httpDuration: register(registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "orderdesk_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "route"})),
		orderOperations: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orderdesk_order_operations_total",
			Help: "Order service operations by outcome",
		}, []string{"operation", "result"})),
		aggregateFailure: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orderdesk_aggregate_write_failures_total",
			Help: "Rolled back multi-row aggregate writes",
		}, []string{"operation"})),
		authAttempts: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orderdesk_auth_attempts_total",
			Help: "Register/login/authorize attempts by outcome",
		}, []string{"operation", "result"})),
		outboxPublish: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orderdesk_outbox_publish_attempts_total",
			Help: "Outbox publish attempts grouped by result",
		}, []string{"result"})),
		outboxPending: register(registerer, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orderdesk_outbox_pending_records",
			Help: "Current number of pending records in the transactional outbox",
		})),
		outboxOldestAge: register(registerer, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orderdesk_outbox_oldest_pending_age_seconds",
			Help: "Age in seconds of the oldest pending outbox record",
		})),
	}
}

// ObserveHTTP фиксирует завершённый HTTP-запрос.
func (m *Metrics) ObserveHTTP(method, route string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// RecordOrderOperation фиксирует результат операции сервиса заказов.
func (m *Metrics) RecordOrderOperation(operation, result string) {
	if m == nil {
		return
	}
	m.orderOperations.WithLabelValues(operation, result).Inc()
}

// RecordAggregateWriteFailure фиксирует откат транзакции агрегата.
func (m *Metrics) RecordAggregateWriteFailure(operation string) {
	if m == nil {
		return
	}
	m.aggregateFailure.WithLabelValues(operation).Inc()
}

// RecordAuthAttempt фиксирует попытку регистрации, входа или проверки токена.
func (m *Metrics) RecordAuthAttempt(operation, result string) {
	if m == nil {
		return
	}
	m.authAttempts.WithLabelValues(operation, result).Inc()
}

// RecordOutboxPublish фиксирует попытку публикации outbox-сообщения.
func (m *Metrics) RecordOutboxPublish(result string) {
	if m == nil {
		return
	}
	m.outboxPublish.WithLabelValues(result).Inc()
}

// SetOutboxBacklog выставляет размер backlog и возраст самой старой записи.
func (m *Metrics) SetOutboxBacklog(pending int, oldestAge time.Duration) {
	if m == nil {
		return
	}
	if oldestAge < 0 {
		oldestAge = 0
	}
	m.outboxPending.Set(float64(pending))
	m.outboxOldestAge.Set(oldestAge.Seconds())
}

func register[T prometheus.Collector](registerer prometheus.Registerer, collector T) T {
	if err := registerer.Register(collector); err != nil {
		var alreadyRegistered prometheus.AlreadyRegisteredError
		if errors.As(err, &alreadyRegistered) {
			existing, ok := alreadyRegistered.ExistingCollector.(T)
			if !ok {
				panic(fmt.Sprintf("collector already registered with unexpected type %T", alreadyRegistered.ExistingCollector))
			}
			return existing
		}
		panic(fmt.Sprintf("register collector: %v", err))
	}
	return collector
}
