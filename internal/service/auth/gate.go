package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/metrics"
)

const (
	// MinSecretLen задаёт минимальную длину ключа подписи HS256.
	MinSecretLen = 32

	defaultIssuer   = "orderdesk"
	defaultTokenTTL = time.Hour

	opRegister  = "register"
	opLogin     = "login"
	opAuthorize = "authorize"
)

// Config задаёт параметры выдачи токенов и хеширования паролей.
type Config struct {
	Secret     []byte
	Issuer     string
	TokenTTL   time.Duration
	BcryptCost int
}

// Gate регистрирует пользователей, выдаёт токены и проверяет их перед операциями с заказами.
type Gate struct {
	users     domain.UserRepository
	tokens    tokenIssuer
	cost      int
	dummyHash []byte
	metrics   *metrics.Metrics
	logger    *log.Entry
}

// Option настраивает Gate.
type Option func(*Gate)

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithMetrics подключает метрики попыток аутентификации.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) {
		g.metrics = m
	}
}

// WithClock подменяет источник времени для выдачи и проверки токенов.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		if now != nil {
			g.tokens.now = now
		}
	}
}

// NewGate проверяет конфигурацию и заранее считает фиктивный хеш
// для сравнения при входе несуществующего пользователя.
func NewGate(users domain.UserRepository, cfg Config, opts ...Option) (*Gate, error) {
	if users == nil {
		return nil, errors.New("user repository is required")
	}
	if len(cfg.Secret) < MinSecretLen {
		return nil, fmt.Errorf("token secret must be at least %d bytes", MinSecretLen)
	}
	if cfg.Issuer == "" {
		cfg.Issuer = defaultIssuer
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("orderdesk-unknown-user"), cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}

	g := &Gate{
		users: users,
		tokens: tokenIssuer{
			secret: cfg.Secret,
			issuer: cfg.Issuer,
			ttl:    cfg.TokenTTL,
			now:    time.Now,
		},
		cost:      cfg.BcryptCost,
		dummyHash: dummy,
		logger:    log.WithField("component", "auth-gate"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Register сохраняет bcrypt-хеш пароля; открытый пароль не хранится и не логируется.
func (g *Gate) Register(ctx context.Context, username, password string) error {
	if err := validateCredentials(username, password); err != nil {
		g.metrics.RecordAuthAttempt(opRegister, metrics.ResultInvalid)
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), g.cost)
	if err != nil {
		g.metrics.RecordAuthAttempt(opRegister, metrics.ResultFailed)
		return fmt.Errorf("hash password: %w", err)
	}

	user, err := g.users.CreateUser(ctx, username, string(hash))
	switch {
	case errors.Is(err, domain.ErrDuplicateUser):
		g.metrics.RecordAuthAttempt(opRegister, metrics.ResultDuplicate)
		return err
	case err != nil:
		g.metrics.RecordAuthAttempt(opRegister, metrics.ResultFailed)
		g.logger.WithError(err).Error("failed to store user")
		return fmt.Errorf("create user: %w", err)
	}

	g.metrics.RecordAuthAttempt(opRegister, metrics.ResultOK)
	g.logger.WithField("user_id", user.ID).Info("user registered")
	return nil
}

// Login проверяет пароль и выдаёт токен. Неизвестное имя и неверный пароль
// дают одинаковый ErrInvalidCredentials и одинаковую стоимость проверки.
func (g *Gate) Login(ctx context.Context, username, password string) (Token, error) {
	user, err := g.users.FindByUsername(ctx, username)
	if err != nil {
		if !domain.IsNotFound(err) {
			g.metrics.RecordAuthAttempt(opLogin, metrics.ResultFailed)
			g.logger.WithError(err).Error("failed to load user")
			return Token{}, fmt.Errorf("find user: %w", err)
		}
		_ = bcrypt.CompareHashAndPassword(g.dummyHash, []byte(password))
		g.metrics.RecordAuthAttempt(opLogin, metrics.ResultDenied)
		return Token{}, domain.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		g.metrics.RecordAuthAttempt(opLogin, metrics.ResultDenied)
		return Token{}, domain.ErrInvalidCredentials
	}

	token, err := g.tokens.issue(user)
	if err != nil {
		g.metrics.RecordAuthAttempt(opLogin, metrics.ResultFailed)
		return Token{}, err
	}

	g.metrics.RecordAuthAttempt(opLogin, metrics.ResultOK)
	return token, nil
}

// Authorize проверяет токен без обращения к хранилищу.
func (g *Gate) Authorize(_ context.Context, rawToken string) (domain.Identity, error) {
	if rawToken == "" {
		g.metrics.RecordAuthAttempt(opAuthorize, metrics.ResultDenied)
		return domain.Identity{}, domain.ErrUnauthenticated
	}

	identity, err := g.tokens.verify(rawToken)
	if err != nil {
		g.metrics.RecordAuthAttempt(opAuthorize, metrics.ResultDenied)
		return domain.Identity{}, fmt.Errorf("%w: %w", domain.ErrUnauthenticated, err)
	}

	g.metrics.RecordAuthAttempt(opAuthorize, metrics.ResultOK)
	return identity, nil
}
