package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/spf13/cast"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

type transactionsResponse struct {
	Transactions []model.Transaction `json:"transactions"`
	Total        int                 `json:"total"`
	Limit        int                 `json:"limit"`
	Offset       int                 `json:"offset"`
}

// listTransactions supports start, end, account, ids (comma separated),
// limit and offset query parameters.
func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	filter, err := h.transactionFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}

	txns, err := h.store.GetTransactions(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	total, err := h.store.CountTransactions(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if txns == nil {
		txns = []model.Transaction{}
	}

	writeJSON(w, http.StatusOK, transactionsResponse{
		Transactions: txns,
		Total:        total,
		Limit:        filter.Limit,
		Offset:       filter.Offset,
	})
}

func (h *Handler) getTransaction(w http.ResponseWriter, r *http.Request) {
	txn, err := h.store.GetTransactionByID(r.Context(), chi.URLParam(r, "transactionID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txn)
}

func (h *Handler) getApplications(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "transactionID")
	if _, err := h.store.GetTransactionByID(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	apps, err := h.store.GetRuleApplications(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if apps == nil {
		apps = []model.RuleApplication{}
	}
	writeJSON(w, http.StatusOK, apps)
}

func (h *Handler) transactionFilter(q url.Values) (service.TransactionFilter, error) {
	filter := service.TransactionFilter{
		BankAccount: strings.TrimSpace(q.Get("account")),
		Limit:       defaultPageSize,
	}

	for _, key := range []string{"start", "end"} {
		raw := strings.TrimSpace(q.Get(key))
		if raw == "" {
			continue
		}
		t, err := cast.StringToDateInDefaultLocation(raw, h.matcher.Location())
		if err != nil {
			return filter, fmt.Errorf("%w: %s is not a date: %q", common.ErrInvalidInput, key, raw)
		}
		if key == "start" {
			filter.StartDate = &t
		} else {
			end := endOfDay(t, raw)
			filter.EndDate = &end
		}
	}

	if raw := q.Get("ids"); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				filter.IDs = append(filter.IDs, id)
			}
		}
	}

	var err error
	if filter.Limit, err = intParam(q, "limit", defaultPageSize); err != nil {
		return filter, err
	}
	if filter.Offset, err = intParam(q, "offset", 0); err != nil {
		return filter, err
	}
	if filter.Limit < 1 || filter.Limit > maxPageSize {
		return filter, fmt.Errorf("%w: limit must be between 1 and %d", common.ErrInvalidInput, maxPageSize)
	}
	return filter, nil
}

// endOfDay widens a date-only end bound to cover the whole day.
func endOfDay(t time.Time, raw string) time.Time {
	if len(raw) == len(time.DateOnly) {
		return t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return t
}

func intParam(q url.Values, key string, def int) (int, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return def, nil
	}
	n, err := cast.ToIntE(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", common.ErrInvalidInput, key)
	}
	return n, nil
}
