package httpapi

import (
	"net/http"

	"bizzytrack/backend/internal/domain"
	"bizzytrack/backend/internal/ports"
)

func (a *API) handleInvoices(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext) {
	switch r.Method {
	case http.MethodGet:
		invoices, err := a.service.ListInvoices(r.Context(), authCtx)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		a.writeJSON(w, http.StatusOK, invoices)
	case http.MethodPost:
		var input domain.Invoice
		if err := decodeJSON(w, r, &input); err != nil {
			a.writeDecodeError(w, err)
			return
		}
		created, err := a.service.CreateInvoice(r.Context(), authCtx, input)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		a.writeJSON(w, http.StatusCreated, created)
	default:
		a.methodNotAllowed(w)
	}
}

func (a *API) handleInvoiceByID(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext, segments []string) {
	invoiceID, ok := parseResourceID(segments)
	if !ok {
		a.notFound(w)
		return
	}

	if len(segments) == 3 {
		a.dispatchInvoiceByIDMethod(w, r, authCtx, invoiceID)
		return
	}
	if len(segments) != 4 {
		a.notFound(w)
		return
	}

	action, _ := parseSubresource(segments)
	switch action {
	case "issue", "payments", "void":
	default:
		a.notFound(w)
		return
	}
	if r.Method != http.MethodPost {
		a.methodNotAllowed(w)
		return
	}

	switch action {
	case "issue":
		a.issueInvoice(w, r, authCtx, invoiceID)
	case "payments":
		a.recordInvoicePayment(w, r, authCtx, invoiceID)
	case "void":
		invoice, err := a.service.VoidInvoice(r.Context(), authCtx, invoiceID)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		a.writeJSON(w, http.StatusOK, invoice)
	}
}

func (a *API) dispatchInvoiceByIDMethod(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext, invoiceID string) {
	switch r.Method {
	case http.MethodGet:
		invoice, err := a.service.GetInvoice(r.Context(), authCtx, invoiceID)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		a.writeJSON(w, http.StatusOK, invoice)
	case http.MethodPut:
		var input domain.Invoice
		if err := decodeJSON(w, r, &input); err != nil {
			a.writeDecodeError(w, err)
			return
		}
		updated, err := a.service.UpdateInvoice(r.Context(), authCtx, invoiceID, input)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		a.writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		if err := a.service.DeleteInvoice(r.Context(), authCtx, invoiceID); err != nil {
			a.writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		a.methodNotAllowed(w)
	}
}

func (a *API) issueInvoice(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext, invoiceID string) {
	var input domain.IssueInvoiceRequest
	if err := decodeOptionalJSON(w, r, &input); err != nil {
		a.writeDecodeError(w, err)
		return
	}
	invoice, err := a.service.IssueInvoice(r.Context(), authCtx, invoiceID, input)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, invoice)
}

func (a *API) recordInvoicePayment(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext, invoiceID string) {
	var input domain.InvoicePaymentRequest
	if err := decodeJSON(w, r, &input); err != nil {
		a.writeDecodeError(w, err)
		return
	}
	invoice, err := a.service.RecordInvoicePayment(r.Context(), authCtx, invoiceID, input)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, invoice)
}
