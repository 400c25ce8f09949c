package service

import (
	"context"
	"fmt"

	"bizzytrack/backend/internal/domain"
	"bizzytrack/backend/internal/ports"
)

func (s *Service) ListCustomers(ctx context.Context, auth ports.AuthContext) ([]domain.Customer, error) {
	businessID, err := tenantScope(auth, anyRole...)
	if err != nil {
		return nil, err
	}
	return s.repo.ListCustomers(ctx, businessID)
}

func (s *Service) GetCustomer(ctx context.Context, auth ports.AuthContext, customerID string) (domain.Customer, error) {
	businessID, err := tenantScope(auth, anyRole...)
	if err != nil {
		return domain.Customer{}, err
	}
	return s.repo.GetCustomer(ctx, businessID, customerID)
}

func (s *Service) CreateCustomer(ctx context.Context, auth ports.AuthContext, input domain.Customer) (domain.Customer, error) {
	businessID, err := tenantScope(auth, anyRole...)
	if err != nil {
		return domain.Customer{}, err
	}
	input = normalizeCustomer(input)
	if err := domain.Validate(input); err != nil {
		return domain.Customer{}, err
	}

	input.ID = ""
	input.BusinessID = businessID
	created, err := s.repo.CreateCustomer(ctx, input)
	if err != nil {
		return domain.Customer{}, err
	}

	s.telemetry.Record("customer.created", map[string]string{"customer_id": created.ID})
	return created, nil
}

func (s *Service) UpdateCustomer(ctx context.Context, auth ports.AuthContext, customerID string, input domain.Customer) (domain.Customer, error) {
	businessID, err := tenantScope(auth, anyRole...)
	if err != nil {
		return domain.Customer{}, err
	}
	input = normalizeCustomer(input)
	if err := domain.Validate(input); err != nil {
		return domain.Customer{}, err
	}

	customer, err := s.repo.GetCustomer(ctx, businessID, customerID)
	if err != nil {
		return domain.Customer{}, err
	}
	customer.Name = input.Name
	customer.Email = input.Email
	customer.Phone = input.Phone
	customer.Address = input.Address
	customer.Notes = input.Notes

	updated, err := s.repo.UpdateCustomer(ctx, customer)
	if err != nil {
		return domain.Customer{}, err
	}

	s.telemetry.Record("customer.updated", map[string]string{"customer_id": updated.ID})
	return updated, nil
}

// DeleteCustomer refuses while invoices or jobs still reference the customer.
func (s *Service) DeleteCustomer(ctx context.Context, auth ports.AuthContext, customerID string) error {
	businessID, err := tenantScope(auth, managerRoles...)
	if err != nil {
		return err
	}

	err = s.repo.Atomic(ctx, func(ctx context.Context, tx ports.Repository) error {
		invoices, err := tx.ListInvoices(ctx, businessID)
		if err != nil {
			return err
		}
		for _, invoice := range invoices {
			if invoice.CustomerID == customerID {
				return fmt.Errorf("customer has invoice %s: %w", invoice.Number, domain.ErrConflict)
			}
		}
		jobs, err := tx.ListJobs(ctx, businessID)
		if err != nil {
			return err
		}
		for _, job := range jobs {
			if job.CustomerID == customerID {
				return fmt.Errorf("customer has job %s: %w", job.ID, domain.ErrConflict)
			}
		}
		return tx.DeleteCustomer(ctx, businessID, customerID)
	})
	if err != nil {
		return err
	}

	s.telemetry.Record("customer.deleted", map[string]string{"customer_id": customerID})
	return nil
}
