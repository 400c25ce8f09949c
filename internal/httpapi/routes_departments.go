package httpapi

import (
	"net/http"

	"bizzytrack/backend/internal/domain"
	"bizzytrack/backend/internal/ports"
)

type departmentMemberInput struct {
	StaffID string `json:"staff_id"`
}

func (a *API) handleDepartments(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext) {
	switch r.Method {
	case http.MethodGet:
		departments, err := a.service.ListDepartments(r.Context(), authCtx)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		a.writeJSON(w, http.StatusOK, departments)
	case http.MethodPost:
		var input domain.Department
		if err := decodeJSON(w, r, &input); err != nil {
			a.writeDecodeError(w, err)
			return
		}
		created, err := a.service.CreateDepartment(r.Context(), authCtx, input)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		a.writeJSON(w, http.StatusCreated, created)
	default:
		a.methodNotAllowed(w)
	}
}

func (a *API) handleDepartmentByID(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext, segments []string) {
	departmentID, ok := parseResourceID(segments)
	if !ok {
		a.notFound(w)
		return
	}

	switch {
	case len(segments) == 3:
		a.dispatchDepartmentByIDMethod(w, r, authCtx, departmentID)
	case isSubresourceRoute(segments, "members"):
		a.handleDepartmentMembersRoute(w, r, authCtx, departmentID, segments)
	case len(segments) == 4 && isSubresourceRoute(segments, "handoffs"):
		a.listPendingHandoffs(w, r, authCtx, departmentID)
	default:
		a.notFound(w)
	}
}

func (a *API) dispatchDepartmentByIDMethod(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext, departmentID string) {
	switch r.Method {
	case http.MethodGet:
		department, err := a.service.GetDepartment(r.Context(), authCtx, departmentID)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		a.writeJSON(w, http.StatusOK, department)
	case http.MethodPut:
		var input domain.Department
		if err := decodeJSON(w, r, &input); err != nil {
			a.writeDecodeError(w, err)
			return
		}
		updated, err := a.service.UpdateDepartment(r.Context(), authCtx, departmentID, input)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		a.writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		if err := a.service.DeleteDepartment(r.Context(), authCtx, departmentID); err != nil {
			a.writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		a.methodNotAllowed(w)
	}
}

func (a *API) handleDepartmentMembersRoute(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext, departmentID string, segments []string) {
	switch len(segments) {
	case 4:
		if r.Method != http.MethodPost {
			a.methodNotAllowed(w)
			return
		}
		var input departmentMemberInput
		if err := decodeJSON(w, r, &input); err != nil {
			a.writeDecodeError(w, err)
			return
		}
		department, err := a.service.AddDepartmentMember(r.Context(), authCtx, departmentID, input.StaffID)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		a.writeJSON(w, http.StatusOK, department)
	case 5:
		if r.Method != http.MethodDelete {
			a.methodNotAllowed(w)
			return
		}
		staffID, _ := parseSubresourceID(segments)
		department, err := a.service.RemoveDepartmentMember(r.Context(), authCtx, departmentID, staffID)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		a.writeJSON(w, http.StatusOK, department)
	default:
		a.notFound(w)
	}
}

func (a *API) listPendingHandoffs(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext, departmentID string) {
	if r.Method != http.MethodGet {
		a.methodNotAllowed(w)
		return
	}
	handoffs, err := a.service.ListPendingHandoffs(r.Context(), authCtx, departmentID)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, handoffs)
}
