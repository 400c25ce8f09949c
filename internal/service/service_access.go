package service

import (
	"errors"
	"strings"

	"bizzytrack/backend/internal/domain"
	"bizzytrack/backend/internal/ports"
)

var (
	anyRole      = []string{domain.RoleOwner, domain.RoleManager, domain.RoleStaff}
	managerRoles = []string{domain.RoleOwner, domain.RoleManager}
)

func requiredBusinessID(auth ports.AuthContext) (string, error) {
	businessID := strings.TrimSpace(auth.BusinessID)
	if businessID == "" {
		return "", domain.ErrForbidden
	}
	return businessID, nil
}

func requireAnyRole(auth ports.AuthContext, roles ...string) error {
	if len(roles) == 0 {
		return domain.ErrForbidden
	}
	for _, role := range roles {
		if auth.HasRole(role) {
			return nil
		}
	}
	return domain.ErrForbidden
}

// tenantScope checks the role and returns the caller's business.
func tenantScope(auth ports.AuthContext, roles ...string) (string, error) {
	if err := requireAnyRole(auth, roles...); err != nil {
		return "", err
	}
	return requiredBusinessID(auth)
}

func enforceTenant(auth ports.AuthContext, targetBusinessID string) error {
	businessID := strings.TrimSpace(auth.BusinessID)
	if businessID == "" {
		return nil
	}
	if businessID != strings.TrimSpace(targetBusinessID) {
		return domain.ErrForbidden
	}
	return nil
}

func IsValidationError(err error) bool {
	return errors.Is(err, domain.ErrValidation)
}

func IsForbiddenError(err error) bool {
	return errors.Is(err, domain.ErrForbidden)
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}

func IsConflictError(err error) bool {
	return errors.Is(err, domain.ErrConflict)
}
