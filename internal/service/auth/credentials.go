package auth

import (
	"strings"
	"unicode/utf8"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 64
	minPasswordLen = 8
	// bcrypt учитывает только первые 72 байта пароля.
	maxPasswordBytes = 72
)

func validateCredentials(username, password string) error {
	if strings.TrimSpace(username) != username {
		return domain.NewValidationError("username", "must not have leading or trailing spaces")
	}
	if n := utf8.RuneCountInString(username); n < minUsernameLen || n > maxUsernameLen {
		return domain.NewValidationError("username", "must be between 3 and 64 characters")
	}
	if utf8.RuneCountInString(password) < minPasswordLen {
		return domain.NewValidationError("password", "must be at least 8 characters")
	}
	if len(password) > maxPasswordBytes {
		return domain.NewValidationError("password", "must be at most 72 bytes")
	}
	return nil
}
