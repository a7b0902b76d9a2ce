package apiutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/codr1/roombook/internal/api/authz"
)

type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

type HandlerError struct {
	Status  int
	Message string
	Err     error
}

func (e HandlerError) Error() string {
	return e.Message
}

func (e HandlerError) Unwrap() error {
	return e.Err
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return fmt.Errorf("missing request body")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	if err := encoder.Encode(payload); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err := w.Write(buf.Bytes())
	return err
}

// WriteError writes err as a JSON error body. HandlerError and FieldError
// carry their own status; anything else is a 500.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	logger := log.Ctx(r.Context())

	var fieldErr FieldError
	if errors.As(err, &fieldErr) {
		_ = WriteJSON(w, http.StatusBadRequest, errorResponse{Error: fieldErr.Error(), Field: fieldErr.Field})
		return
	}

	var handlerErr HandlerError
	if errors.As(err, &handlerErr) {
		if handlerErr.Status >= http.StatusInternalServerError {
			logger.Error().Err(handlerErr.Err).Int("status", handlerErr.Status).Msg(handlerErr.Message)
		}
		_ = WriteJSON(w, handlerErr.Status, errorResponse{Error: handlerErr.Message})
		return
	}

	logger.Error().Err(err).Msg("Unhandled handler error")
	_ = WriteJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal Server Error"})
}

// RequirePermission writes 401 or 403 and returns false unless the request's
// user holds perm.
func RequirePermission(w http.ResponseWriter, r *http.Request, perm authz.Permission) bool {
	logger := log.Ctx(r.Context())
	user := authz.UserFromContext(r.Context())
	if err := authz.RequirePermission(r.Context(), perm); err != nil {
		switch {
		case errors.Is(err, authz.ErrUnauthenticated):
			logger.Warn().Str("permission", string(perm)).Msg("Access denied: unauthenticated")
			_ = WriteJSON(w, http.StatusUnauthorized, errorResponse{Error: "Unauthorized"})
		case errors.Is(err, authz.ErrForbidden):
			logEvent := logger.Warn().Str("permission", string(perm))
			if user != nil {
				logEvent = logEvent.Int64("user_id", user.ID)
			}
			logEvent.Msg("Access denied: forbidden")
			_ = WriteJSON(w, http.StatusForbidden, errorResponse{Error: "Forbidden"})
		default:
			logger.Error().Err(err).Str("permission", string(perm)).Msg("Access denied: error")
			_ = WriteJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to authorize request"})
		}
		return false
	}
	return true
}

// RequireUser writes 401 and returns nil when the request is anonymous.
func RequireUser(w http.ResponseWriter, r *http.Request) *authz.AuthUser {
	user := authz.UserFromContext(r.Context())
	if user == nil {
		log.Ctx(r.Context()).Warn().Msg("Access denied: unauthenticated")
		_ = WriteJSON(w, http.StatusUnauthorized, errorResponse{Error: "Unauthorized"})
		return nil
	}
	return user
}
