package api

import (
	"context"
	"encoding/json"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-playground/validator/v10"
	"github.com/goliatone/go-targeted-ads/ads"
	"github.com/goliatone/go-targeted-ads/internal/database"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// StatusClientClosedRequest is written when the caller went away before the
// response was ready. The client never sees it; it keeps access logs honest.
const StatusClientClosedRequest = 499

// ErrorResponse is the body of every non 2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ItemsResponse wraps the result of a read.
type ItemsResponse struct {
	Items []ads.PartialAdvertisement `json:"items"`
}

// StatusResponse is returned by health checks and inserts.
type StatusResponse struct {
	Status string `json:"status"`
}

// RespondJSON writes data as JSON with the given status.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	if data == nil {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("encode JSON response")
	}
}

// RespondError writes an ErrorResponse.
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, ErrorResponse{Error: message})
}

// StatusFor maps a core error to an HTTP status.
func StatusFor(err error) int {
	var (
		ozzoErrs  validation.Errors
		fieldErrs validator.ValidationErrors
	)
	switch {
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest
	case errors.Is(err, database.ErrPoolExhausted), errors.Is(err, database.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ads.ErrUnknownValue), errors.As(err, &ozzoErrs), errors.As(err, &fieldErrs):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondErr logs server side failures and hides their detail from clients.
func respondErr(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status == StatusClientClosedRequest {
		log.Ctx(r.Context()).Debug().Err(err).Msg("request cancelled by client")
		RespondError(w, status, "client closed request")
		return
	}
	if status < http.StatusInternalServerError {
		RespondError(w, status, err.Error())
		return
	}
	log.Ctx(r.Context()).Error().Err(err).Int("status", status).Msg("request failed")
	RespondError(w, status, http.StatusText(status))
}
