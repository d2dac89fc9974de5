package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/Veraticus/spice-ledger/internal/apply"
	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/rules"
)

// ruleRequest is the body of rule create and update calls. Enabled defaults
// to true when omitted.
type ruleRequest struct {
	Enabled *bool             `json:"enabled"`
	Filters model.GroupFilter `json:"filters"`
	Action  model.RuleAction  `json:"action"`
	Name    string            `json:"name"`
	Order   int               `json:"order"`
}

func (req ruleRequest) toRule() (model.TransactionRule, error) {
	if strings.TrimSpace(req.Name) == "" {
		return model.TransactionRule{}, fmt.Errorf("%w: name is required", common.ErrInvalidRule)
	}
	if req.Action.IsEmpty() {
		return model.TransactionRule{}, fmt.Errorf("%w: action must set category, isInternal or notes", common.ErrInvalidRule)
	}

	rule := model.TransactionRule{
		Name:    strings.TrimSpace(req.Name),
		Order:   req.Order,
		Enabled: true,
		Filters: req.Filters,
		Action:  req.Action,
	}
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}
	if rule.Filters.Operator == "" {
		rule.Filters.Operator = model.CombinatorAnd
	}
	rules.AssignIDs(&rule.Filters)
	return rule, nil
}

// ruleResponse carries a rule plus authoring warnings. Warnings never block a
// save; a rule with issues is stored and evaluated as written.
type ruleResponse struct {
	model.TransactionRule
	Warnings []string `json:"warnings,omitempty"`
}

func (h *Handler) withWarnings(r *http.Request, rule model.TransactionRule) ruleResponse {
	resp := ruleResponse{TransactionRule: rule}
	for _, issue := range h.matcher.Validate(rule.Filters) {
		common.LoggerFrom(r.Context()).Warn("Rule filter issue",
			"rule_id", rule.ID,
			"path", issue.Path,
			"filter_id", issue.FilterID,
			"issue", issue.Message)
		resp.Warnings = append(resp.Warnings, issue.String())
	}
	return resp
}

func (h *Handler) listRules(w http.ResponseWriter, r *http.Request) {
	ruleSet, err := h.store.ListRules(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if ruleSet == nil {
		ruleSet = []model.TransactionRule{}
	}
	writeJSON(w, http.StatusOK, ruleSet)
}

func (h *Handler) getRule(w http.ResponseWriter, r *http.Request) {
	id, err := ruleIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rule, err := h.store.GetRule(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.withWarnings(r, *rule))
}

func (h *Handler) createRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	rule, err := req.toRule()
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.store.CreateRule(r.Context(), &rule); err != nil {
		writeError(w, r, err)
		return
	}

	common.LogInfo(r.Context(), "Created rule", common.Fields{"rule_id": rule.ID, "name": rule.Name})
	writeJSON(w, http.StatusCreated, h.withWarnings(r, rule))
}

func (h *Handler) updateRule(w http.ResponseWriter, r *http.Request) {
	id, err := ruleIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req ruleRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	rule, err := req.toRule()
	if err != nil {
		writeError(w, r, err)
		return
	}
	rule.ID = id
	if err := h.store.UpdateRule(r.Context(), &rule); err != nil {
		writeError(w, r, err)
		return
	}

	common.LogInfo(r.Context(), "Updated rule", common.Fields{"rule_id": rule.ID})
	writeJSON(w, http.StatusOK, h.withWarnings(r, rule))
}

func (h *Handler) deleteRule(w http.ResponseWriter, r *http.Request) {
	id, err := ruleIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.store.DeleteRule(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	common.LogInfo(r.Context(), "Deleted rule", common.Fields{"rule_id": id})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) applyRules(w http.ResponseWriter, r *http.Request) {
	var req apply.ApplyRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	report, err := h.applier.ApplyRules(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) applyRule(w http.ResponseWriter, r *http.Request) {
	id, err := ruleIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req struct {
		Preview bool `json:"preview"`
	}
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeError(w, r, err)
		return
	}
	report, err := h.applier.ApplyRuleToAll(r.Context(), id, req.Preview)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type testRequest struct {
	Transaction *model.Transaction `json:"transaction"`
	Filters     model.GroupFilter  `json:"filters"`
}

type testResponse struct {
	Issues  []rules.Issue `json:"issues,omitempty"`
	Matched bool          `json:"matched"`
}

// testRule evaluates a filter tree against a transaction without storing
// anything.
func (h *Handler) testRule(w http.ResponseWriter, r *http.Request) {
	var req testRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Transaction == nil {
		writeError(w, r, fmt.Errorf("%w: transaction is required", common.ErrInvalidInput))
		return
	}

	writeJSON(w, http.StatusOK, testResponse{
		Matched: h.matcher.MatchesGroup(*req.Transaction, req.Filters),
		Issues:  h.matcher.Validate(req.Filters),
	})
}
