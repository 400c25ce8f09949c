package httpapi

import (
	"net/http"

	"bizzytrack/backend/internal/domain"
	"bizzytrack/backend/internal/ports"
)

func (a *API) handleSales(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext) {
	switch r.Method {
	case http.MethodGet:
		sales, err := a.service.ListSales(r.Context(), authCtx)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		a.writeJSON(w, http.StatusOK, sales)
	case http.MethodPost:
		var input domain.SaleRequest
		if err := decodeJSON(w, r, &input); err != nil {
			a.writeDecodeError(w, err)
			return
		}
		sale, err := a.service.CreateSale(r.Context(), authCtx, input)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		a.writeJSON(w, http.StatusCreated, sale)
	default:
		a.methodNotAllowed(w)
	}
}

func (a *API) handleSaleByID(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext, segments []string) {
	saleID, ok := parseResourceID(segments)
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
		sale, err := a.service.GetSale(r.Context(), authCtx, saleID)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		a.writeJSON(w, http.StatusOK, sale)
	case len(segments) == 4 && isSubresourceRoute(segments, "void"):
		a.voidSale(w, r, authCtx, saleID)
	default:
		a.notFound(w)
	}
}

func (a *API) voidSale(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext, saleID string) {
	if r.Method != http.MethodPost {
		a.methodNotAllowed(w)
		return
	}
	var input domain.VoidRequest
	if err := decodeJSON(w, r, &input); err != nil {
		a.writeDecodeError(w, err)
		return
	}
	sale, err := a.service.VoidSale(r.Context(), authCtx, saleID, input)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, sale)
}
