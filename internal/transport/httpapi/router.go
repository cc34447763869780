package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/metrics"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/auth"
)

// OrderService описывает операции над агрегатом заказа, которые обслуживает API.
type OrderService interface {
	CreateOrder(ctx context.Context, order domain.NewOrder) (domain.OrderHeader, error)
	GetOrder(ctx context.Context, orderID int64) (domain.OrderHeader, error)
	UpdateOrder(ctx context.Context, orderID int64, patch domain.HeaderPatch) (domain.OrderHeader, error)
	DeleteOrder(ctx context.Context, orderID int64) error
	AddItem(ctx context.Context, orderID int64, item domain.NewOrderItem) (domain.OrderItem, error)
	UpdateItem(ctx context.Context, orderID, seqID int64, patch domain.ItemPatch) (domain.OrderItem, error)
	DeleteItem(ctx context.Context, orderID, seqID int64) error
}

// Authenticator регистрирует пользователей, выполняет вход и проверяет токены.
type Authenticator interface {
	Register(ctx context.Context, username, password string) error
	Login(ctx context.Context, username, password string) (auth.Token, error)
	Authorize(ctx context.Context, rawToken string) (domain.Identity, error)
}

type api struct {
	orders  OrderService
	auth    Authenticator
	metrics *metrics.Metrics
	logger  *log.Entry
}

// Option настраивает роутер.
type Option func(*api)

// WithAuthenticator включает защищённый вариант: /register, /login и guard на /orders.
func WithAuthenticator(a Authenticator) Option {
	return func(x *api) {
		x.auth = a
	}
}

// WithMetrics подключает HTTP-метрики.
func WithMetrics(m *metrics.Metrics) Option {
	return func(x *api) {
		x.metrics = m
	}
}

// WithLogger задаёт логгер запросов.
func WithLogger(logger *log.Entry) Option {
	return func(x *api) {
		if logger != nil {
			x.logger = logger
		}
	}
}

// NewRouter собирает HTTP-обработчик API заказов.
func NewRouter(orders OrderService, opts ...Option) http.Handler {
	a := &api{
		orders: orders,
		logger: log.WithField("component", "http-api"),
	}
	for _, opt := range opts {
		opt(a)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(a.observe)
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, errCodeNotFound, "resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, errCodeMethodNotAllowed, "method not allowed")
	})

	r.Get("/", a.index)

	if a.auth != nil {
		r.Post("/register", a.register)
		r.Post("/login", a.login)
	}

	r.Route("/orders", func(r chi.Router) {
		if a.auth != nil {
			r.Use(a.requireAuth)
		}

		r.Post("/", a.createOrder)
		r.Route("/{orderID:[0-9]+}", func(r chi.Router) {
			r.Get("/", a.getOrder)
			r.Put("/", a.updateOrder)
			r.Delete("/", a.deleteOrder)

			r.Post("/items", a.addItem)
			r.Put("/items/{seqID:[0-9]+}", a.updateItem)
			r.Delete("/items/{seqID:[0-9]+}", a.deleteItem)
		})
	})

	return r
}

func (a *api) index(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("orderdesk API is running. Send requests to /orders\n"))
}
