package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

// Коды ошибок PostgreSQL, которые классифицируются как ошибки входных данных.
const (
	codeUniqueViolation     = "23505"
	codeNotNullViolation    = "23502"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeStringTooLong       = "22001"
	codeNumericOutOfRange   = "22003"
)

// constraintFields сопоставляет именованные ограничения схемы с полями запроса.
var constraintFields = map[string]string{
	"order_item_quantity_check": "quantity",
	"order_item_order_id_fkey":  "order_id",
	"app_user_username_key":     "username",
}

// translatePgError превращает нарушения ограничений в доменную ошибку валидации.
// Исходная ошибка драйвера сохраняется в цепочке для логов.
func translatePgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	field := pgErr.ColumnName
	if f, ok := constraintFields[pgErr.ConstraintName]; ok {
		field = f
	}
	if field == "" {
		field = "value"
	}

	var verr error
	switch pgErr.Code {
	case codeNotNullViolation:
		verr = domain.NewValidationError(field, "is required")
	case codeCheckViolation:
		verr = domain.NewValidationError(field, "violates constraint "+pgErr.ConstraintName)
	case codeForeignKeyViolation:
		verr = domain.NewValidationError(field, "references a missing row")
	case codeStringTooLong:
		verr = domain.NewValidationError(field, "is too long")
	case codeNumericOutOfRange:
		verr = domain.NewValidationError(field, "is out of range")
	default:
		return err
	}

	return errors.Join(verr, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == codeUniqueViolation
	}
	return false
}
