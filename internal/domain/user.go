package domain

import (
	"context"
	"time"
)

// User описывает зарегистрированного пользователя. Пароль хранится только в виде хеша.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Identity хранит проверенную личность вызывающего, извлечённая из токена.
type Identity struct {
	UserID   int64
	Username string
}

type actorKey struct{}

// WithActor кладёт личность вызывающего в контекст запроса.
func WithActor(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, actorKey{}, id)
}

// ActorFromContext достаёт личность вызывающего, если она есть.
func ActorFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(actorKey{}).(Identity)
	return id, ok
}
