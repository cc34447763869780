package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound: запрошенный заголовок, позиция или пользователь не существует.
	ErrNotFound = errors.New("not found")
	// ErrValidation: отсутствует обязательное поле или значение вне допустимого диапазона.
	ErrValidation = errors.New("validation failed")
	// ErrAggregateWrite: сбой записи агрегата; транзакция откатывается целиком.
	ErrAggregateWrite = errors.New("aggregate write failed")
	// ErrDuplicateUser: имя пользователя уже занято.
	ErrDuplicateUser = errors.New("username already registered")
	// ErrInvalidCredentials: неверное имя пользователя или пароль (без уточнения).
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrUnauthenticated: токен отсутствует, недействителен или истёк.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrOutboxPublish: ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")

	ErrOrderNotFound = fmt.Errorf("order %w", ErrNotFound)
	ErrItemNotFound  = fmt.Errorf("order item %w", ErrNotFound)
	ErrUserNotFound  = fmt.Errorf("user %w", ErrNotFound)
)

// ValidationError описывает некорректное поле запроса.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError создаёт ошибку валидации для поля.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Reason
}

// Is позволяет сравнивать через errors.Is(err, ErrValidation).
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// AggregateWriteError сигнализирует о сбое многострочной записи агрегата.
// Cause хранит исходную причину (ошибку валидации позиции или хранилища).
type AggregateWriteError struct {
	Op    string
	Cause error
}

// NewAggregateWriteError оборачивает причину; уже обёрнутая ошибка возвращается как есть.
func NewAggregateWriteError(op string, cause error) error {
	var awe *AggregateWriteError
	if errors.As(cause, &awe) {
		return cause
	}
	return &AggregateWriteError{Op: op, Cause: cause}
}

func (e *AggregateWriteError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Op, ErrAggregateWrite)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, ErrAggregateWrite, e.Cause)
}

func (e *AggregateWriteError) Unwrap() error {
	return e.Cause
}

func (e *AggregateWriteError) Is(target error) bool {
	return target == ErrAggregateWrite
}

// IsNotFound проверяет, что ошибка относится к отсутствующей сущности.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation проверяет, что ошибка вызвана некорректными входными данными.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsAggregateWrite проверяет, что ошибка означает сбой записи агрегата.
func IsAggregateWrite(err error) bool {
	return errors.Is(err, ErrAggregateWrite)
}
