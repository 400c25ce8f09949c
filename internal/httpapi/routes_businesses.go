package httpapi

import (
	"net/http"

	"bizzytrack/backend/internal/domain"
	"bizzytrack/backend/internal/ports"
)

func (a *API) handleBusinesses(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext) {
	switch r.Method {
	case http.MethodGet:
		businesses, err := a.service.ListBusinesses(r.Context(), authCtx)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		a.writeJSON(w, http.StatusOK, businesses)
	case http.MethodPost:
		var input domain.Business
		if err := decodeJSON(w, r, &input); err != nil {
			a.writeDecodeError(w, err)
			return
		}
		created, err := a.service.CreateBusiness(r.Context(), authCtx, input)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		a.writeJSON(w, http.StatusCreated, created)
	default:
		a.methodNotAllowed(w)
	}
}

func (a *API) handleBusinessByID(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext, segments []string) {
	businessID, ok := parseResourceID(segments)
	if !ok || len(segments) != 3 {
		a.notFound(w)
		return
	}

	switch r.Method {
	case http.MethodGet:
		business, err := a.service.GetBusiness(r.Context(), authCtx, businessID)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		a.writeJSON(w, http.StatusOK, business)
	case http.MethodPut:
		var input domain.Business
		if err := decodeJSON(w, r, &input); err != nil {
			a.writeDecodeError(w, err)
			return
		}
		updated, err := a.service.UpdateBusiness(r.Context(), authCtx, businessID, input)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		a.writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		if err := a.service.DeleteBusiness(r.Context(), authCtx, businessID); err != nil {
			a.writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		a.methodNotAllowed(w)
	}
}
