package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

// TokenType задаёт тип токена в ответе на login и в заголовке Authorization.
const TokenType = "Bearer"

// Token описывает выданный подписанный токен личности.
type Token struct {
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time
}

// identityClaims описывает содержимое JWT: sub = id пользователя, name = имя.
type identityClaims struct {
	Username string `json:"name"`
	jwt.RegisteredClaims
}

// tokenIssuer подписывает и проверяет HS256-токены.
type tokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func (t *tokenIssuer) issue(user domain.User) (Token, error) {
	now := t.now()
	expiresAt := now.Add(t.ttl)

	claims := identityClaims{
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}

	return Token{AccessToken: signed, TokenType: TokenType, ExpiresAt: expiresAt.UTC()}, nil
}

// verify проверяет подпись, алгоритм, издателя и срок действия.
func (t *tokenIssuer) verify(raw string) (domain.Identity, error) {
	var claims identityClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return domain.Identity{}, err
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || claims.Username == "" {
		return domain.Identity{}, errors.New("token subject is malformed")
	}

	return domain.Identity{UserID: userID, Username: claims.Username}, nil
}
