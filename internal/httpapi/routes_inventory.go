package httpapi

import (
	"net/http"

	"bizzytrack/backend/internal/domain"
	"bizzytrack/backend/internal/ports"
)

func (a *API) handleInventory(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext) {
	switch r.Method {
	case http.MethodGet:
		items, err := a.service.ListInventoryItems(r.Context(), authCtx)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		a.writeJSON(w, http.StatusOK, items)
	case http.MethodPost:
		var input domain.InventoryItem
		if err := decodeJSON(w, r, &input); err != nil {
			a.writeDecodeError(w, err)
			return
		}
		created, err := a.service.CreateInventoryItem(r.Context(), authCtx, input)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		a.writeJSON(w, http.StatusCreated, created)
	default:
		a.methodNotAllowed(w)
	}
}

func (a *API) handleInventoryByID(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext, segments []string) {
	itemID, ok := parseResourceID(segments)
	if !ok {
		a.notFound(w)
		return
	}

	switch {
	case len(segments) == 3:
		a.dispatchInventoryByIDMethod(w, r, authCtx, itemID)
	case len(segments) == 4 && isSubresourceRoute(segments, "adjustments"):
		a.dispatchStockAdjustmentsMethod(w, r, authCtx, itemID)
	default:
		a.notFound(w)
	}
}

func (a *API) dispatchInventoryByIDMethod(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext, itemID string) {
	switch r.Method {
	case http.MethodGet:
		item, err := a.service.GetInventoryItem(r.Context(), authCtx, itemID)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		a.writeJSON(w, http.StatusOK, item)
	case http.MethodPut:
		var input domain.InventoryItem
		if err := decodeJSON(w, r, &input); err != nil {
			a.writeDecodeError(w, err)
			return
		}
		updated, err := a.service.UpdateInventoryItem(r.Context(), authCtx, itemID, input)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		a.writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		if err := a.service.DeleteInventoryItem(r.Context(), authCtx, itemID); err != nil {
			a.writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		a.methodNotAllowed(w)
	}
}

func (a *API) dispatchStockAdjustmentsMethod(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext, itemID string) {
	switch r.Method {
	case http.MethodGet:
		adjustments, err := a.service.ListStockAdjustments(r.Context(), authCtx, itemID)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		a.writeJSON(w, http.StatusOK, adjustments)
	case http.MethodPost:
		var input domain.StockAdjustment
		if err := decodeJSON(w, r, &input); err != nil {
			a.writeDecodeError(w, err)
			return
		}
		created, err := a.service.AdjustStock(r.Context(), authCtx, itemID, input)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		a.writeJSON(w, http.StatusCreated, created)
	default:
		a.methodNotAllowed(w)
	}
}
