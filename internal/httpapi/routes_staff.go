package httpapi

import (
	"net/http"

	"bizzytrack/backend/internal/domain"
	"bizzytrack/backend/internal/ports"
)

func (a *API) handleStaff(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext) {
	switch r.Method {
	case http.MethodGet:
		staff, err := a.service.ListStaff(r.Context(), authCtx)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		a.writeJSON(w, http.StatusOK, staff)
	case http.MethodPost:
		var input domain.StaffProfile
		if err := decodeJSON(w, r, &input); err != nil {
			a.writeDecodeError(w, err)
			return
		}
		created, err := a.service.CreateStaff(r.Context(), authCtx, input)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		a.writeJSON(w, http.StatusCreated, created)
	default:
		a.methodNotAllowed(w)
	}
}

func (a *API) handleStaffByID(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext, segments []string) {
	staffID, ok := parseResourceID(segments)
	if !ok {
		a.notFound(w)
		return
	}

	switch {
	case len(segments) == 3:
		a.dispatchStaffByIDMethod(w, r, authCtx, staffID)
	case len(segments) == 4 && isSubresourceRoute(segments, "pin"):
		a.setStaffPIN(w, r, authCtx, staffID)
	case len(segments) == 5 && isSubresourceRoute(segments, "pin") && segments[4] == "verify":
		a.verifyStaffPIN(w, r, authCtx, staffID)
	default:
		a.notFound(w)
	}
}

func (a *API) dispatchStaffByIDMethod(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext, staffID string) {
	switch r.Method {
	case http.MethodGet:
		staff, err := a.service.GetStaff(r.Context(), authCtx, staffID)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		a.writeJSON(w, http.StatusOK, staff)
	case http.MethodPut:
		var input domain.StaffProfile
		if err := decodeJSON(w, r, &input); err != nil {
			a.writeDecodeError(w, err)
			return
		}
		updated, err := a.service.UpdateStaff(r.Context(), authCtx, staffID, input)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		a.writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		if err := a.service.DeleteStaff(r.Context(), authCtx, staffID); err != nil {
			a.writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		a.methodNotAllowed(w)
	}
}

func (a *API) setStaffPIN(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext, staffID string) {
	if r.Method != http.MethodPost {
		a.methodNotAllowed(w)
		return
	}
	var input domain.PINRequest
	if err := decodeJSON(w, r, &input); err != nil {
		a.writeDecodeError(w, err)
		return
	}
	if err := a.service.SetStaffPIN(r.Context(), authCtx, staffID, input); err != nil {
		a.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) verifyStaffPIN(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext, staffID string) {
	if r.Method != http.MethodPost {
		a.methodNotAllowed(w)
		return
	}
	var input domain.PINRequest
	if err := decodeJSON(w, r, &input); err != nil {
		a.writeDecodeError(w, err)
		return
	}
	valid, err := a.service.VerifyStaffPIN(r.Context(), authCtx, staffID, input)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}
