package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"hisaab/internal/auth"
	"hisaab/internal/core"
	"hisaab/internal/log"
	"hisaab/internal/services"
)

const maxBodyBytes = 1 << 20

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageResponse{Message: msg})
}

// decodeJSON reads a single JSON object from the request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is empty", core.ErrValidation)
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("%w: request body too large", core.ErrValidation)
		}
		return fmt.Errorf("%w: malformed JSON body", core.ErrValidation)
	}
	return nil
}

// writeError maps service errors onto status codes. Access denial always
// carries the same body so a missing record and a wrong secret look alike.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrAccessDenied):
		writeMessage(w, http.StatusForbidden, "Access denied")
	case errors.Is(err, services.ErrInvalidCredentials):
		writeMessage(w, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, core.ErrUnauthorized):
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, core.ErrValidation):
		writeMessage(w, http.StatusBadRequest, clientMessage(err))
	case errors.Is(err, core.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "Not found")
	case errors.Is(err, core.ErrConflict):
		writeMessage(w, http.StatusConflict, clientMessage(err))
	case errors.Is(err, context.DeadlineExceeded):
		log.FromContext(r.Context()).WarnContext(r.Context(), "Request timed out",
			log.FieldPath, r.URL.Path,
			log.FieldError, err)
		writeMessage(w, http.StatusGatewayTimeout, "Request timed out")
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldPath, r.URL.Path,
			log.FieldMethod, r.Method,
			log.FieldError, err)
		writeMessage(w, http.StatusInternalServerError, "Internal server error")
	}
}

// clientMessage strips the sentinel prefix from a wrapped error.
func clientMessage(err error) string {
	msg := err.Error()
	for _, prefix := range []string{core.ErrValidation.Error() + ": ", core.ErrConflict.Error() + ": "} {
		if i := strings.LastIndex(msg, prefix); i >= 0 {
			return msg[i+len(prefix):]
		}
	}
	return msg
}

// storageContext bounds the store calls of one request.
func storageContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), storageTimeout)
}

// currentUser is only called behind the auth middleware.
func currentUser(r *http.Request) string {
	id, _ := auth.UserID(r.Context())
	return id
}
