package httpapi

import (
	"net/http"

	"bizzytrack/backend/internal/domain"
	"bizzytrack/backend/internal/ports"
)

func (a *API) handleJobs(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext) {
	switch r.Method {
	case http.MethodGet:
		jobs, err := a.service.ListJobs(r.Context(), authCtx)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		a.writeJSON(w, http.StatusOK, jobs)
	case http.MethodPost:
		var input domain.Job
		if err := decodeJSON(w, r, &input); err != nil {
			a.writeDecodeError(w, err)
			return
		}
		created, err := a.service.CreateJob(r.Context(), authCtx, input)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		a.writeJSON(w, http.StatusCreated, created)
	default:
		a.methodNotAllowed(w)
	}
}

func (a *API) handleJobByID(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext, segments []string) {
	jobID, ok := parseResourceID(segments)
	if !ok {
		a.notFound(w)
		return
	}

	switch {
	case len(segments) == 3:
		a.dispatchJobByIDMethod(w, r, authCtx, jobID)
	case len(segments) == 4 && isSubresourceRoute(segments, "handoffs"):
		a.dispatchJobHandoffsMethod(w, r, authCtx, jobID)
	default:
		a.notFound(w)
	}
}

func (a *API) dispatchJobByIDMethod(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext, jobID string) {
	switch r.Method {
	case http.MethodGet:
		job, err := a.service.GetJob(r.Context(), authCtx, jobID)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		a.writeJSON(w, http.StatusOK, job)
	case http.MethodPut:
		var input domain.Job
		if err := decodeJSON(w, r, &input); err != nil {
			a.writeDecodeError(w, err)
			return
		}
		updated, err := a.service.UpdateJob(r.Context(), authCtx, jobID, input)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		a.writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		if err := a.service.DeleteJob(r.Context(), authCtx, jobID); err != nil {
			a.writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		a.methodNotAllowed(w)
	}
}

func (a *API) dispatchJobHandoffsMethod(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext, jobID string) {
	switch r.Method {
	case http.MethodGet:
		handoffs, err := a.service.ListJobHandoffs(r.Context(), authCtx, jobID)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		a.writeJSON(w, http.StatusOK, handoffs)
	case http.MethodPost:
		var input domain.HandoffRequest
		if err := decodeJSON(w, r, &input); err != nil {
			a.writeDecodeError(w, err)
			return
		}
		created, err := a.service.RequestHandoff(r.Context(), authCtx, jobID, input)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		a.writeJSON(w, http.StatusCreated, created)
	default:
		a.methodNotAllowed(w)
	}
}

func (a *API) handleHandoffByID(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext, segments []string) {
	handoffID, ok := parseResourceID(segments)
	if !ok || len(segments) != 4 {
		a.notFound(w)
		return
	}
	action, _ := parseSubresource(segments)
	if action != "accept" && action != "reject" {
		a.notFound(w)
		return
	}
	if r.Method != http.MethodPost {
		a.methodNotAllowed(w)
		return
	}

	var input domain.HandoffDecision
	if err := decodeOptionalJSON(w, r, &input); err != nil {
		a.writeDecodeError(w, err)
		return
	}

	decide := a.service.AcceptHandoff
	if action == "reject" {
		decide = a.service.RejectHandoff
	}
	handoff, err := decide(r.Context(), authCtx, handoffID, input)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, handoff)
}
