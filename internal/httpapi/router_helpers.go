package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"bizzytrack/backend/internal/domain"
)

type corsPolicy struct {
	allowAnyOrigin bool
	allowedOrigins map[string]struct{}
	allowHeaders   string
	allowMethods   string
}

func newCORSPolicy(config RuntimeConfig) corsPolicy {
	policy := corsPolicy{
		allowAnyOrigin: config.AllowAnyCORSOrigin,
		allowedOrigins: make(map[string]struct{}, len(config.CORSAllowedOrigins)),
		allowHeaders:   "Content-Type, Authorization, X-User-ID, X-Business-ID, X-Role",
		allowMethods:   "GET, POST, PUT, DELETE, OPTIONS",
	}
	for _, origin := range config.CORSAllowedOrigins {
		policy.allowedOrigins[origin] = struct{}{}
	}
	return policy
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return []string{}
	}
	return strings.Split(trimmed, "/")
}

func parseResourceID(segments []string) (string, bool) {
	if len(segments) < 3 {
		return "", false
	}
	return segments[2], true
}

func parseSubresource(segments []string) (string, bool) {
	if len(segments) < 4 {
		return "", false
	}
	return segments[3], true
}

func parseSubresourceID(segments []string) (string, bool) {
	if len(segments) < 5 {
		return "", false
	}
	return segments[4], true
}

func isCollectionRoute(segments []string, resource string) bool {
	return len(segments) == 2 && segments[0] == "api" && segments[1] == resource
}

func isItemRoute(segments []string, resource string) bool {
	return len(segments) >= 3 && segments[0] == "api" && segments[1] == resource
}

func isExactRoute(segments []string, parts ...string) bool {
	if len(segments) != len(parts) {
		return false
	}
	for idx, part := range parts {
		if segments[idx] != part {
			return false
		}
	}
	return true
}

func isSubresourceRoute(segments []string, subresource string) bool {
	value, ok := parseSubresource(segments)
	return ok && value == subresource
}

func (a *API) methodNotAllowed(w http.ResponseWriter) {
	a.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (a *API) notFound(w http.ResponseWriter) {
	a.writeError(w, http.StatusNotFound, "not found")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

// decodeOptionalJSON accepts an empty body and leaves target untouched.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, target any) error {
	if err := decodeJSON(w, r, target); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	return io.ReadAll(r.Body)
}

func (a *API) writeJSON(w http.ResponseWriter, status int, body any) {
	encodeJSON(a.logger, w, status, body)
}

func (a *API) writeError(w http.ResponseWriter, status int, message string) {
	encodeJSON(a.logger, w, status, errorBody{Error: message})
}

// encodeJSON writes body and reports encode failures to logger.
func encodeJSON(logger logrus.FieldLogger, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.WithFields(logrus.Fields{
			"status":    status,
			"body_type": fmt.Sprintf("%T", body),
		}).WithError(err).Error("write json failed")
	}
}

type errorBody struct {
	Error  string              `json:"error"`
	Fields []domain.FieldError `json:"fields,omitempty"`
}

func (a *API) writeDecodeError(w http.ResponseWriter, err error) {
	message := "invalid JSON"
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) || strings.Contains(err.Error(), "request body too large") {
		message = fmt.Sprintf("request body too large (max %d bytes)", maxJSONBodyBytes)
	}
	a.writeError(w, http.StatusBadRequest, message)
}

func (a *API) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrForbidden):
		a.writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrValidation):
		a.writeJSON(w, http.StatusBadRequest, errorBody{
			Error:  detailedMessage(err, domain.ErrValidation, "validation failed"),
			Fields: domain.FieldErrors(err),
		})
	case errors.Is(err, domain.ErrNotFound):
		a.writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrConflict):
		a.writeError(w, http.StatusConflict, detailedMessage(err, domain.ErrConflict, "conflict"))
	default:
		a.logger.WithError(err).Error("unhandled service error")
		a.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// detailedMessage strips the sentinel suffix from a wrapped error.
func detailedMessage(err, sentinel error, fallback string) string {
	detailed := strings.TrimSpace(err.Error())
	detailed = strings.TrimSuffix(detailed, ": "+sentinel.Error())
	if detailed == "" || detailed == sentinel.Error() {
		return fallback
	}
	return detailed
}

func setCORS(w http.ResponseWriter, r *http.Request, policy corsPolicy) {
	if policy.allowAnyOrigin {
		w.Header().Set("Access-Control-Allow-Headers", policy.allowHeaders)
		w.Header().Set("Access-Control-Allow-Methods", policy.allowMethods)
		w.Header().Set("Access-Control-Allow-Origin", "*")
		return
	}

	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return
	}
	if _, allowed := policy.allowedOrigins[origin]; !allowed {
		return
	}

	w.Header().Set("Access-Control-Allow-Headers", policy.allowHeaders)
	w.Header().Set("Access-Control-Allow-Methods", policy.allowMethods)
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Set("Vary", "Origin")
}

func (a *API) healthz(w http.ResponseWriter, _ *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
