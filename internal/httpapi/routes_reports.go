package httpapi

import (
	"net/http"

	"bizzytrack/backend/internal/ports"
)

func (a *API) handleReport(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext, report string) {
	if r.Method != http.MethodGet {
		a.methodNotAllowed(w)
		return
	}

	query := r.URL.Query()
	var (
		body any
		err  error
	)
	switch report {
	case "trial-balance":
		body, err = a.service.TrialBalance(r.Context(), authCtx, query.Get("as_of"))
	case "sales-summary":
		body, err = a.service.SalesSummary(r.Context(), authCtx, query.Get("from"), query.Get("to"))
	case "low-stock":
		body, err = a.service.LowStock(r.Context(), authCtx)
	default:
		a.notFound(w)
		return
	}
	if err != nil {
		a.writeServiceError(w, err)
		return
	}

	a.writeJSON(w, http.StatusOK, body)
}

func (a *API) handleCatalog(w http.ResponseWriter, r *http.Request, authCtx ports.AuthContext) {
	switch r.Method {
	case http.MethodGet:
		document, contentType, err := a.service.ExportCatalog(r.Context(), authCtx)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", `attachment; filename="catalog.yaml"`)
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(document); err != nil {
			a.logger.WithError(err).Warn("write catalog failed")
		}
	case http.MethodPost:
		raw, err := readBody(w, r)
		if err != nil {
			a.writeDecodeError(w, err)
			return
		}
		result, err := a.service.ImportCatalog(r.Context(), authCtx, raw)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		a.writeJSON(w, http.StatusOK, result)
	default:
		a.methodNotAllowed(w)
	}
}
