package httpapi

import (
	"net/http"

	"bizzytrack/backend/internal/domain"
	"bizzytrack/backend/internal/ports"
)

func (a *API) handlePricingRules(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext) {
	switch r.Method {
	case http.MethodGet:
		rules, err := a.service.ListPricingRules(r.Context(), authCtx)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		a.writeJSON(w, http.StatusOK, rules)
	case http.MethodPost:
		var input domain.PricingRule
		if err := decodeJSON(w, r, &input); err != nil {
			a.writeDecodeError(w, err)
			return
		}
		created, err := a.service.CreatePricingRule(r.Context(), authCtx, input)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		a.writeJSON(w, http.StatusCreated, created)
	default:
		a.methodNotAllowed(w)
	}
}

func (a *API) handlePricingRuleByID(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext, segments []string) {
	ruleID, ok := parseResourceID(segments)
	if !ok || len(segments) != 3 {
		a.notFound(w)
		return
	}

	switch r.Method {
	case http.MethodGet:
		rule, err := a.service.GetPricingRule(r.Context(), authCtx, ruleID)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		a.writeJSON(w, http.StatusOK, rule)
	case http.MethodPut:
		var input domain.PricingRule
		if err := decodeJSON(w, r, &input); err != nil {
			a.writeDecodeError(w, err)
			return
		}
		updated, err := a.service.UpdatePricingRule(r.Context(), authCtx, ruleID, input)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		a.writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		if err := a.service.DeletePricingRule(r.Context(), authCtx, ruleID); err != nil {
			a.writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		a.methodNotAllowed(w)
	}
}

func (a *API) handleQuote(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext) {
	if r.Method != http.MethodPost {
		a.methodNotAllowed(w)
		return
	}
	var input domain.QuoteRequest
	if err := decodeJSON(w, r, &input); err != nil {
		a.writeDecodeError(w, err)
		return
	}
	quote, err := a.service.Quote(r.Context(), authCtx, input)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, quote)
}
