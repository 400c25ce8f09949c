package service

import (
	"context"
	"strings"

	"bizzytrack/backend/internal/domain"
	"bizzytrack/backend/internal/ports"
)

func (s *Service) ListBusinesses(ctx context.Context, auth ports.AuthContext) ([]domain.Business, error) {
	if err := requireAnyRole(auth, anyRole...); err != nil {
		return nil, err
	}

	businesses, err := s.repo.ListBusinesses(ctx)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(auth.BusinessID) == "" {
		return businesses, nil
	}

	for _, business := range businesses {
		if business.ID == auth.BusinessID {
			return []domain.Business{business}, nil
		}
	}

	return []domain.Business{}, nil
}

func (s *Service) GetBusiness(ctx context.Context, auth ports.AuthContext, businessID string) (domain.Business, error) {
	if err := requireAnyRole(auth, anyRole...); err != nil {
		return domain.Business{}, err
	}
	if err := enforceTenant(auth, businessID); err != nil {
		return domain.Business{}, err
	}

	return s.repo.GetBusiness(ctx, businessID)
}

// CreateBusiness stores the business and seeds its system chart in one unit.
// Only platform operators, owners not bound to a business, may call it.
func (s *Service) CreateBusiness(ctx context.Context, auth ports.AuthContext, input domain.Business) (domain.Business, error) {
	if err := requireAnyRole(auth, domain.RoleOwner); err != nil {
		return domain.Business{}, err
	}
	if !auth.PlatformOperator() {
		return domain.Business{}, domain.ErrForbidden
	}
	input = normalizeBusiness(input)
	if err := domain.Validate(input); err != nil {
		return domain.Business{}, err
	}

	var created domain.Business
	err := s.repo.Atomic(ctx, func(ctx context.Context, tx ports.Repository) error {
		var err error
		created, err = tx.CreateBusiness(ctx, domain.Business{
			Name:       input.Name,
			Currency:   input.Currency,
			Timezone:   input.Timezone,
			TaxRatePct: input.TaxRatePct,
		})
		if err != nil {
			return err
		}
		for _, account := range domain.SystemAccounts() {
			account.BusinessID = created.ID
			if _, err := tx.CreateAccount(ctx, account); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Business{}, err
	}

	s.telemetry.Record("business.created", map[string]string{"business_id": created.ID})
	return created, nil
}

func (s *Service) UpdateBusiness(ctx context.Context, auth ports.AuthContext, businessID string, input domain.Business) (domain.Business, error) {
	if err := requireAnyRole(auth, managerRoles...); err != nil {
		return domain.Business{}, err
	}
	if err := enforceTenant(auth, businessID); err != nil {
		return domain.Business{}, err
	}
	input = normalizeBusiness(input)
	if err := domain.Validate(input); err != nil {
		return domain.Business{}, err
	}

	current, err := s.repo.GetBusiness(ctx, businessID)
	if err != nil {
		return domain.Business{}, err
	}

	current.Name = input.Name
	current.Currency = input.Currency
	current.Timezone = input.Timezone
	current.TaxRatePct = input.TaxRatePct

	updated, err := s.repo.UpdateBusiness(ctx, current)
	if err != nil {
		return domain.Business{}, err
	}

	s.telemetry.Record("business.updated", map[string]string{"business_id": updated.ID})
	return updated, nil
}

func (s *Service) DeleteBusiness(ctx context.Context, auth ports.AuthContext, businessID string) error {
	if err := requireAnyRole(auth, managerRoles...); err != nil {
		return err
	}
	if err := enforceTenant(auth, businessID); err != nil {
		return err
	}

	if err := s.repo.DeleteBusiness(ctx, businessID); err != nil {
		return err
	}

	s.telemetry.Record("business.deleted", map[string]string{"business_id": businessID})
	return nil
}
