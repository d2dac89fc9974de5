package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/storage"
	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto a status code and writes it as {"error": "..."}.
// Server errors are logged with the request's logger; their detail is not
// returned to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		common.LogError(r.Context(), err, "Request failed", nil)
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrDuplicateEntry):
		return http.StatusConflict
	case errors.Is(err, common.ErrInvalidInput),
		errors.Is(err, common.ErrInvalidRule),
		errors.Is(err, storage.ErrInvalidDateRange),
		errors.Is(err, storage.ErrEmptyString),
		errors.Is(err, storage.ErrNilParameter):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// decodeJSON reads a JSON body into v. An empty body is allowed when
// allowEmpty is set and leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: invalid JSON body: %w", common.ErrInvalidInput, err)
	}
	return nil
}

func ruleIDParam(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "ruleID")
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid rule id %q", common.ErrInvalidInput, raw)
	}
	return id, nil
}
