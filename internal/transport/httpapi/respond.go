package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

const maxBodyBytes = 1 << 20

// Коды ошибок в теле ответа.
const (
	errCodeInvalidRequest     = "invalid_request"
	errCodeValidation         = "validation_error"
	errCodeAggregateWrite     = "aggregate_write_failed"
	errCodeNotFound           = "not_found"
	errCodeDuplicateUser      = "duplicate_user"
	errCodeInvalidCredentials = "invalid_credentials"
	errCodeUnauthenticated    = "unauthenticated"
	errCodeMethodNotAllowed   = "method_not_allowed"
	errCodeInternal           = "internal_error"
)

var errEmptyBody = errors.New("request body is empty")

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

func writeUnauthenticated(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="orderdesk"`)
	writeError(w, http.StatusUnauthorized, errCodeUnauthenticated, "a valid bearer token is required")
}

// decodeJSON читает тело запроса в dst с ограничением размера.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func writeDecodeError(w http.ResponseWriter, err error) {
	message := "request body must be a valid JSON object"
	if errors.Is(err, errEmptyBody) {
		message = errEmptyBody.Error()
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		message = "request body is too large"
	}
	writeError(w, http.StatusBadRequest, errCodeInvalidRequest, message)
}

// writeDomainError классифицирует ошибку и отвечает без внутренних подробностей хранилища.
func writeDomainError(w http.ResponseWriter, logger *log.Entry, err error) {
	var verr *domain.ValidationError
	hasValidation := errors.As(err, &verr)

	switch {
	case errors.Is(err, domain.ErrItemNotFound):
		writeError(w, http.StatusNotFound, errCodeNotFound, domain.ErrItemNotFound.Error())
	case domain.IsNotFound(err):
		writeError(w, http.StatusNotFound, errCodeNotFound, domain.ErrOrderNotFound.Error())
	case errors.Is(err, domain.ErrDuplicateUser):
		writeError(w, http.StatusBadRequest, errCodeDuplicateUser, domain.ErrDuplicateUser.Error())
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, errCodeInvalidCredentials, domain.ErrInvalidCredentials.Error())
	case errors.Is(err, domain.ErrUnauthenticated):
		writeUnauthenticated(w)
	case domain.IsAggregateWrite(err):
		message := "order could not be saved"
		if hasValidation {
			message += ": " + verr.Error()
		}
		writeError(w, http.StatusBadRequest, errCodeAggregateWrite, message)
	case hasValidation:
		writeError(w, http.StatusBadRequest, errCodeValidation, verr.Error())
	default:
		logger.WithError(err).Error("unhandled error in request")
		writeError(w, http.StatusInternalServerError, errCodeInternal, "internal server error")
	}
}
