package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

type userRepository struct {
	db *sql.DB
}

// NewUserRepository создаёт PostgreSQL-хранилище учётных данных.
func NewUserRepository(store *Store) domain.UserRepository {
	return &userRepository{db: store.DB()}
}

// CreateUser опирается на UNIQUE(username): гонка двух регистраций решается базой.
func (r *userRepository) CreateUser(ctx context.Context, username, passwordHash string) (domain.User, error) {
	user := domain.User{Username: username, PasswordHash: passwordHash}

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO app_user (username, password_hash)
		VALUES ($1, $2)
		RETURNING id, created_at
	`, username, passwordHash).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.User{}, domain.ErrDuplicateUser
		}
		return domain.User{}, fmt.Errorf("insert user: %w", translatePgError(err))
	}

	return user, nil
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (domain.User, error) {
	var user domain.User

	err := r.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, created_at
		FROM app_user
		WHERE username = $1
	`, username).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("select user: %w", err)
	}

	return user, nil
}

var _ domain.UserRepository = (*userRepository)(nil)
