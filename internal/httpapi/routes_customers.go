package httpapi

import (
	"net/http"

	"bizzytrack/backend/internal/domain"
	"bizzytrack/backend/internal/ports"
)

func (a *API) handleCustomers(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext) {
	switch r.Method {
	case http.MethodGet:
		customers, err := a.service.ListCustomers(r.Context(), authCtx)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		a.writeJSON(w, http.StatusOK, customers)
	case http.MethodPost:
		var input domain.Customer
		if err := decodeJSON(w, r, &input); err != nil {
			a.writeDecodeError(w, err)
			return
		}
		created, err := a.service.CreateCustomer(r.Context(), authCtx, input)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		a.writeJSON(w, http.StatusCreated, created)
	default:
		a.methodNotAllowed(w)
	}
}

func (a *API) handleCustomerByID(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext, segments []string) {
	customerID, ok := parseResourceID(segments)
	if !ok || len(segments) != 3 {
		a.notFound(w)
		return
	}

	switch r.Method {
	case http.MethodGet:
		customer, err := a.service.GetCustomer(r.Context(), authCtx, customerID)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		a.writeJSON(w, http.StatusOK, customer)
	case http.MethodPut:
		var input domain.Customer
		if err := decodeJSON(w, r, &input); err != nil {
			a.writeDecodeError(w, err)
			return
		}
		updated, err := a.service.UpdateCustomer(r.Context(), authCtx, customerID, input)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		a.writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		if err := a.service.DeleteCustomer(r.Context(), authCtx, customerID); err != nil {
			a.writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		a.methodNotAllowed(w)
	}
}
