package httpapi

import (
	"net/http"

	"bizzytrack/backend/internal/domain"
	"bizzytrack/backend/internal/ports"
)

func (a *API) handleAccounts(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext) {
	switch r.Method {
	case http.MethodGet:
		accounts, err := a.service.ListAccounts(r.Context(), authCtx)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		a.writeJSON(w, http.StatusOK, accounts)
	case http.MethodPost:
		var input domain.Account
		if err := decodeJSON(w, r, &input); err != nil {
			a.writeDecodeError(w, err)
			return
		}
		created, err := a.service.CreateAccount(r.Context(), authCtx, input)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		a.writeJSON(w, http.StatusCreated, created)
	default:
		a.methodNotAllowed(w)
	}
}

func (a *API) handleAccountByID(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext, segments []string) {
	accountID, ok := parseResourceID(segments)
	if !ok {
		a.notFound(w)
		return
	}

	switch {
	case len(segments) == 3:
		a.dispatchAccountByIDMethod(w, r, authCtx, accountID)
	case len(segments) == 4 && isSubresourceRoute(segments, "ledger"):
		if r.Method != http.MethodGet {
			a.methodNotAllowed(w)
			return
		}
		query := r.URL.Query()
		ledger, err := a.service.AccountLedger(r.Context(), authCtx, accountID, query.Get("from"), query.Get("to"))
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		a.writeJSON(w, http.StatusOK, ledger)
	default:
		a.notFound(w)
	}
}

func (a *API) dispatchAccountByIDMethod(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext, accountID string) {
	switch r.Method {
	case http.MethodGet:
		account, err := a.service.GetAccount(r.Context(), authCtx, accountID)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		a.writeJSON(w, http.StatusOK, account)
	case http.MethodPut:
		var input domain.Account
		if err := decodeJSON(w, r, &input); err != nil {
			a.writeDecodeError(w, err)
			return
		}
		updated, err := a.service.UpdateAccount(r.Context(), authCtx, accountID, input)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		a.writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		if err := a.service.DeleteAccount(r.Context(), authCtx, accountID); err != nil {
			a.writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		a.methodNotAllowed(w)
	}
}

func (a *API) handleJournalEntries(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext) {
	switch r.Method {
	case http.MethodGet:
		entries, err := a.service.ListJournalEntries(r.Context(), authCtx)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		a.writeJSON(w, http.StatusOK, entries)
	case http.MethodPost:
		var input domain.JournalEntry
		if err := decodeJSON(w, r, &input); err != nil {
			a.writeDecodeError(w, err)
			return
		}
		posted, err := a.service.PostJournalEntry(r.Context(), authCtx, input)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		a.writeJSON(w, http.StatusCreated, posted)
	default:
		a.methodNotAllowed(w)
	}
}

func (a *API) handleJournalEntryByID(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext, segments []string) {
	entryID, ok := parseResourceID(segments)
	if !ok {
		a.notFound(w)
		return
	}

	switch {
	case len(segments) == 3:
		if r.Method != http.MethodGet {
			a.methodNotAllowed(w)
			return
		}
		entry, err := a.service.GetJournalEntry(r.Context(), authCtx, entryID)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		a.writeJSON(w, http.StatusOK, entry)
	case len(segments) == 4 && isSubresourceRoute(segments, "reverse"):
		if r.Method != http.MethodPost {
			a.methodNotAllowed(w)
			return
		}
		var input domain.ReverseRequest
		if err := decodeOptionalJSON(w, r, &input); err != nil {
			a.writeDecodeError(w, err)
			return
		}
		reversal, err := a.service.ReverseJournalEntry(r.Context(), authCtx, entryID, input)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		a.writeJSON(w, http.StatusCreated, reversal)
	default:
		a.notFound(w)
	}
}
