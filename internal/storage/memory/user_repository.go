package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

// userRepositoryInMemory хранит учётные данные по имени пользователя.
type userRepositoryInMemory struct {
	mu     sync.RWMutex
	users  map[string]domain.User
	nextID int64
}

// NewUserRepository возвращает in-memory хранилище пользователей.
func NewUserRepository() domain.UserRepository {
	return &userRepositoryInMemory{users: make(map[string]domain.User)}
}

// CreateUser сохраняет пользователя, если имя ещё не занято.
func (r *userRepositoryInMemory) CreateUser(_ context.Context, username, passwordHash string) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[username]; exists {
		return domain.User{}, domain.ErrDuplicateUser
	}

	r.nextID++
	user := domain.User{
		ID:           r.nextID,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	r.users[username] = user
	return user, nil
}

// FindByUsername возвращает пользователя или ErrUserNotFound.
func (r *userRepositoryInMemory) FindByUsername(_ context.Context, username string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[username]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, nil
}

var _ domain.UserRepository = (*userRepositoryInMemory)(nil)
