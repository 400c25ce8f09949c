package auth

import (
	"errors"
	"net/http"
	"os"
	"strings"

	"bizzytrack/backend/internal/domain"
	"bizzytrack/backend/internal/ports"
)

const (
	headerUserID     = "X-User-ID"
	headerBusinessID = "X-Business-ID"
	headerRoles      = "X-Role"
)

// DevAuthProvider trusts identity headers and falls back to BIZZY_DEV_*
// defaults. It is only wired in development mode.
type DevAuthProvider struct {
	defaultUserID     string
	defaultBusinessID string
	defaultRoles      []string
}

func NewDevAuthProvider() *DevAuthProvider {
	userID := getenv("BIZZY_DEV_USER_ID", "dev-user")
	businessID := getenv("BIZZY_DEV_BUSINESS_ID", "")
	roles := parseRoles(getenv("BIZZY_DEV_ROLES", domain.RoleOwner))
	if len(roles) == 0 {
		roles = []string{domain.RoleOwner}
	}

	return &DevAuthProvider{
		defaultUserID:     userID,
		defaultBusinessID: businessID,
		defaultRoles:      roles,
	}
}

func (p *DevAuthProvider) FromRequest(r *http.Request) (ports.AuthContext, error) {
	if p == nil {
		return ports.AuthContext{}, errors.New("auth provider is nil")
	}

	userID := strings.TrimSpace(r.Header.Get(headerUserID))
	if userID == "" {
		userID = p.defaultUserID
	}

	businessID := strings.TrimSpace(r.Header.Get(headerBusinessID))
	if businessID == "" {
		businessID = p.defaultBusinessID
	}

	roles := parseRoles(r.Header.Get(headerRoles))
	if len(roles) == 0 {
		roles = append([]string{}, p.defaultRoles...)
	}

	return ports.AuthContext{
		UserID:     userID,
		BusinessID: businessID,
		Roles:      roles,
	}, nil
}

func parseRoles(raw string) []string {
	parts := strings.Split(raw, ",")
	roles := make([]string, 0, len(parts))
	for _, part := range parts {
		role := strings.TrimSpace(part)
		if role == "" {
			continue
		}
		roles = append(roles, role)
	}
	return roles
}

func getenv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}
