package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Veraticus/spice-ledger/internal/apply"
	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/rules"
	"github.com/Veraticus/spice-ledger/internal/storage"
	"github.com/Veraticus/spice-ledger/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	db     *testutil.TestDB
	router http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := testutil.SetupTestDB(t)
	matcher := rules.NewMatcher(time.UTC)
	h := NewHandler(db.Storage, apply.NewService(db.Storage, apply.WithMatcher(matcher)), matcher)
	return &testServer{db: db, router: h.Router()}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

func coffeeRuleBody() map[string]any {
	return map[string]any{
		"name":  "Coffee",
		"order": 1,
		"filters": map[string]any{
			"operator": "and",
			"filters": []map[string]any{
				{"field": "description", "operator": "contains", "value": "coffee"},
			},
		},
		"action": map[string]any{"category": "Dining"},
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestRuleCRUD(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/rules", coffeeRuleBody())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[ruleResponse](t, rec)
	assert.NotZero(t, created.ID)
	assert.True(t, created.Enabled, "enabled defaults to true")
	assert.NotEmpty(t, created.Filters.ID)
	assert.NotEmpty(t, created.Filters.Filters[0].ID)
	assert.Empty(t, created.Warnings)

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/api/rules/%d", created.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Coffee", decode[ruleResponse](t, rec).Name)

	update := coffeeRuleBody()
	update["name"] = "Coffee shops"
	update["enabled"] = false
	rec = s.do(t, http.MethodPut, fmt.Sprintf("/api/rules/%d", created.ID), update)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[ruleResponse](t, rec)
	assert.Equal(t, "Coffee shops", updated.Name)
	assert.False(t, updated.Enabled)

	rec = s.do(t, http.MethodGet, "/api/rules", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.TransactionRule](t, rec), 1)

	rec = s.do(t, http.MethodDelete, fmt.Sprintf("/api/rules/%d", created.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/api/rules/%d", created.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decode[errorResponse](t, rec).Error, "not found")
}

func TestListRules_Empty(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/api/rules", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestCreateRule_Warnings(t *testing.T) {
	s := newTestServer(t)
	body := coffeeRuleBody()
	body["filters"] = map[string]any{"operator": "and"}

	rec := s.do(t, http.MethodPost, "/api/rules", body)
	require.Equal(t, http.StatusCreated, rec.Code, "issues never block a save")
	resp := decode[ruleResponse](t, rec)
	require.Len(t, resp.Warnings, 1)
	assert.Contains(t, resp.Warnings[0], "empty group never matches")
}

func TestRuleErrors(t *testing.T) {
	s := newTestServer(t)

	noName := coffeeRuleBody()
	noName["name"] = " "
	noAction := coffeeRuleBody()
	noAction["action"] = map[string]any{}

	tests := []struct {
		body   any
		name   string
		method string
		path   string
		status int
	}{
		{name: "bad JSON", method: http.MethodPost, path: "/api/rules", body: "{nope", status: http.StatusBadRequest},
		{name: "missing name", method: http.MethodPost, path: "/api/rules", body: noName, status: http.StatusBadRequest},
		{name: "empty action", method: http.MethodPost, path: "/api/rules", body: noAction, status: http.StatusBadRequest},
		{name: "bad id", method: http.MethodGet, path: "/api/rules/abc", status: http.StatusBadRequest},
		{name: "negative id", method: http.MethodDelete, path: "/api/rules/-1", status: http.StatusBadRequest},
		{name: "unknown rule", method: http.MethodGet, path: "/api/rules/999", status: http.StatusNotFound},
		{name: "update unknown rule", method: http.MethodPut, path: "/api/rules/999", body: coffeeRuleBody(), status: http.StatusNotFound},
		{name: "delete unknown rule", method: http.MethodDelete, path: "/api/rules/999", status: http.StatusNotFound},
		{name: "apply without ids", method: http.MethodPost, path: "/api/rules/apply", body: map[string]any{"preview": true}, status: http.StatusBadRequest},
		{name: "apply unknown rule", method: http.MethodPost, path: "/api/rules/999/apply", status: http.StatusNotFound},
		{name: "test without transaction", method: http.MethodPost, path: "/api/rules/test", body: map[string]any{"filters": map[string]any{}}, status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.NotEmpty(t, decode[errorResponse](t, rec).Error)
		})
	}
}

func TestApplyRulesEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.db.SeedTransactions(
		testutil.NewTransaction("a", "Blue Bottle Coffee", 6, model.TypeDebit),
		testutil.NewTransaction("b", "Hardware store", 60, model.TypeDebit),
	)
	rule := s.db.SeedRules(testutil.ContainsRule("Coffee", 1, "coffee", "Dining"))[0]

	rec := s.do(t, http.MethodPost, "/api/rules/apply", map[string]any{
		"transactionIds": []string{"a", "b"},
		"preview":        true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	preview := decode[apply.Report](t, rec)
	assert.Equal(t, 1, preview.Matched)
	assert.Zero(t, preview.Updated)
	assert.Equal(t, []apply.RuleCount{{RuleID: rule.ID, RuleName: "Coffee", Matched: 1}}, preview.Breakdown)
	assert.Nil(t, s.db.MustGetTransaction("a").Category)

	rec = s.do(t, http.MethodPost, "/api/rules/apply", map[string]any{"transactionIds": []string{"a", "b"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[apply.Report](t, rec).Updated)
	assert.Equal(t, "Dining", s.db.MustGetTransaction("a").CategoryName())

	rec = s.do(t, http.MethodGet, "/api/transactions/a/applications", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	apps := decode[[]model.RuleApplication](t, rec)
	require.Len(t, apps, 1)
	assert.Equal(t, rule.ID, apps[0].RuleID)
}

func TestApplyRuleEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.db.SeedTransactions(
		testutil.NewTransaction("a", "Coffee", 6, model.TypeDebit),
		testutil.NewTransaction("b", "More coffee", 7, model.TypeDebit),
	)
	disabled := testutil.ContainsRule("Coffee", 1, "coffee", "Dining")
	disabled.Enabled = false
	rule := s.db.SeedRules(disabled)[0]

	path := fmt.Sprintf("/api/rules/%d/apply", rule.ID)

	rec := s.do(t, http.MethodPost, path, map[string]any{"preview": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2, decode[apply.Report](t, rec).Matched)

	rec = s.do(t, http.MethodPost, path, nil)
	require.Equal(t, http.StatusOK, rec.Code, "an empty body means not a preview")
	report := decode[apply.Report](t, rec)
	assert.Equal(t, 2, report.Updated)
	assert.False(t, report.Preview)
}

func TestTestRuleEndpoint(t *testing.T) {
	s := newTestServer(t)

	body := map[string]any{
		"filters": map[string]any{
			"operator": "and",
			"filters": []map[string]any{
				{"id": "t", "field": "type", "operator": "equals", "value": "Debit"},
				{"id": "a", "field": "amount", "operator": "greaterThan", "value": "100"},
			},
		},
		"transaction": map[string]any{
			"id": "x", "date": "2024-01-15T12:00:00Z", "description": "TV",
			"amount": 250, "type": "debit",
		},
	}
	rec := s.do(t, http.MethodPost, "/api/rules/test", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[testResponse](t, rec)
	assert.True(t, resp.Matched)
	assert.Empty(t, resp.Issues)

	body["filters"] = map[string]any{"operator": "or"}
	rec = s.do(t, http.MethodPost, "/api/rules/test", body)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[testResponse](t, rec)
	assert.False(t, resp.Matched, "empty group never matches")
	require.Len(t, resp.Issues, 1)
}

func TestListTransactions(t *testing.T) {
	s := newTestServer(t)
	base := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		account := "Checking"
		if i%2 == 1 {
			account = "Visa"
		}
		s.db.SeedTransactions(testutil.NewTransaction(fmt.Sprintf("t%d", i), fmt.Sprintf("row %d", i), 10, model.TypeDebit,
			testutil.WithDate(base.AddDate(0, 0, i)), testutil.WithAccount(account)))
	}

	tests := []struct {
		name    string
		query   string
		wantIDs []string
		status  int
	}{
		{name: "all", query: "", wantIDs: []string{"t0", "t1", "t2", "t3", "t4"}, status: http.StatusOK},
		{name: "account", query: "?account=Visa", wantIDs: []string{"t1", "t3"}, status: http.StatusOK},
		{name: "date range inclusive of end day", query: "?start=2024-01-11&end=2024-01-12", wantIDs: []string{"t1", "t2"}, status: http.StatusOK},
		{name: "page", query: "?limit=2&offset=1", wantIDs: []string{"t1", "t2"}, status: http.StatusOK},
		{name: "ids", query: "?ids=t4,t0", wantIDs: []string{"t0", "t4"}, status: http.StatusOK},
		{name: "bad date", query: "?start=yesterday", status: http.StatusBadRequest},
		{name: "bad limit", query: "?limit=0", status: http.StatusBadRequest},
		{name: "negative offset", query: "?offset=-3", status: http.StatusBadRequest},
		{name: "inverted range", query: "?start=2024-02-01&end=2024-01-01", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodGet, "/api/transactions"+tt.query, nil)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status != http.StatusOK {
				return
			}
			resp := decode[transactionsResponse](t, rec)
			assert.Equal(t, 5, resp.Total)
			ids := make([]string, 0, len(resp.Transactions))
			for _, txn := range resp.Transactions {
				ids = append(ids, txn.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestGetTransaction(t *testing.T) {
	s := newTestServer(t)
	s.db.SeedTransactions(testutil.NewTransaction("a", "Coffee", 6, model.TypeDebit, testutil.WithCategory("Dining")))

	rec := s.do(t, http.MethodGet, "/api/transactions/a", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Dining", decode[model.Transaction](t, rec).CategoryName())

	rec = s.do(t, http.MethodGet, "/api/transactions/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/transactions/missing/applications", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: fmt.Errorf("rule 3: %w", common.ErrNotFound), want: http.StatusNotFound},
		{err: common.ErrInvalidInput, want: http.StatusBadRequest},
		{err: common.ErrInvalidRule, want: http.StatusBadRequest},
		{err: storage.ErrInvalidDateRange, want: http.StatusBadRequest},
		{err: common.ErrDuplicateEntry, want: http.StatusConflict},
		{err: common.ErrDatabaseBusy, want: http.StatusInternalServerError},
		{err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestServerErrorsHideDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	writeError(rec, req, errors.New("database file is on fire"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal Server Error", decode[errorResponse](t, rec).Error)
}

func TestServe_Shutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, "127.0.0.1:0", http.NotFoundHandler(), time.Second)
	}()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
