package service

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"bizzytrack/backend/internal/domain"
	"bizzytrack/backend/internal/ports"
)

func (s *Service) ListStaff(ctx context.Context, auth ports.AuthContext) ([]domain.StaffProfile, error) {
	businessID, err := tenantScope(auth, anyRole...)
	if err != nil {
		return nil, err
	}
	return s.repo.ListStaff(ctx, businessID)
}

func (s *Service) GetStaff(ctx context.Context, auth ports.AuthContext, staffID string) (domain.StaffProfile, error) {
	businessID, err := tenantScope(auth, anyRole...)
	if err != nil {
		return domain.StaffProfile{}, err
	}
	return s.repo.GetStaff(ctx, businessID, staffID)
}

func (s *Service) CreateStaff(ctx context.Context, auth ports.AuthContext, input domain.StaffProfile) (domain.StaffProfile, error) {
	businessID, err := tenantScope(auth, managerRoles...)
	if err != nil {
		return domain.StaffProfile{}, err
	}
	input = normalizeStaff(input)
	if err := domain.Validate(input); err != nil {
		return domain.StaffProfile{}, err
	}
	if err := s.ensureDepartmentExists(ctx, s.repo, businessID, input.DepartmentID); err != nil {
		return domain.StaffProfile{}, err
	}

	created, err := s.repo.CreateStaff(ctx, domain.StaffProfile{
		BusinessID:      businessID,
		Name:            input.Name,
		Email:           input.Email,
		Phone:           input.Phone,
		JobTitle:        input.JobTitle,
		DepartmentID:    input.DepartmentID,
		HourlyRateCents: input.HourlyRateCents,
		Active:          input.Active,
	})
	if err != nil {
		return domain.StaffProfile{}, err
	}

	s.telemetry.Record("staff.created", map[string]string{"staff_id": created.ID})
	return created, nil
}

func (s *Service) UpdateStaff(ctx context.Context, auth ports.AuthContext, staffID string, input domain.StaffProfile) (domain.StaffProfile, error) {
	businessID, err := tenantScope(auth, managerRoles...)
	if err != nil {
		return domain.StaffProfile{}, err
	}
	input = normalizeStaff(input)
	if err := domain.Validate(input); err != nil {
		return domain.StaffProfile{}, err
	}
	if err := s.ensureDepartmentExists(ctx, s.repo, businessID, input.DepartmentID); err != nil {
		return domain.StaffProfile{}, err
	}

	staff, err := s.repo.GetStaff(ctx, businessID, staffID)
	if err != nil {
		return domain.StaffProfile{}, err
	}
	staff.Name = input.Name
	staff.Email = input.Email
	staff.Phone = input.Phone
	staff.JobTitle = input.JobTitle
	staff.DepartmentID = input.DepartmentID
	staff.HourlyRateCents = input.HourlyRateCents
	staff.Active = input.Active

	updated, err := s.repo.UpdateStaff(ctx, staff)
	if err != nil {
		return domain.StaffProfile{}, err
	}

	s.telemetry.Record("staff.updated", map[string]string{"staff_id": updated.ID})
	return updated, nil
}

// DeleteStaff also drops the member from departments and jobs.
func (s *Service) DeleteStaff(ctx context.Context, auth ports.AuthContext, staffID string) error {
	businessID, err := tenantScope(auth, managerRoles...)
	if err != nil {
		return err
	}

	err = s.repo.Atomic(ctx, func(ctx context.Context, tx ports.Repository) error {
		if err := tx.DeleteStaff(ctx, businessID, staffID); err != nil {
			return err
		}

		departments, err := tx.ListDepartments(ctx, businessID)
		if err != nil {
			return err
		}
		for _, department := range departments {
			members := withoutID(department.MemberIDs, staffID)
			if len(members) == len(department.MemberIDs) && department.ManagerID != staffID {
				continue
			}
			department.MemberIDs = members
			if department.ManagerID == staffID {
				department.ManagerID = ""
			}
			if _, err := tx.UpdateDepartment(ctx, department); err != nil {
				return err
			}
		}

		jobs, err := tx.ListJobs(ctx, businessID)
		if err != nil {
			return err
		}
		for _, job := range jobs {
			assignees := withoutID(job.AssigneeIDs, staffID)
			if len(assignees) == len(job.AssigneeIDs) {
				continue
			}
			job.AssigneeIDs = assignees
			if _, err := tx.UpdateJob(ctx, job); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.telemetry.Record("staff.deleted", map[string]string{"staff_id": staffID})
	return nil
}

func (s *Service) SetStaffPIN(ctx context.Context, auth ports.AuthContext, staffID string, input domain.PINRequest) error {
	businessID, err := tenantScope(auth, managerRoles...)
	if err != nil {
		return err
	}
	if err := domain.Validate(input); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.PIN), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.repo.SetStaffPINHash(ctx, businessID, staffID, string(hash)); err != nil {
		return err
	}

	s.telemetry.Record("staff.pin_set", map[string]string{"staff_id": staffID})
	return nil
}

// VerifyStaffPIN reports false for inactive staff and staff without a PIN.
func (s *Service) VerifyStaffPIN(ctx context.Context, auth ports.AuthContext, staffID string, input domain.PINRequest) (bool, error) {
	businessID, err := tenantScope(auth, anyRole...)
	if err != nil {
		return false, err
	}
	if err := domain.Validate(input); err != nil {
		return false, err
	}

	staff, err := s.repo.GetStaff(ctx, businessID, staffID)
	if err != nil {
		return false, err
	}
	if !staff.Active {
		return false, nil
	}
	hash, err := s.repo.GetStaffPINHash(ctx, businessID, staffID)
	if err != nil {
		return false, err
	}
	if hash == "" {
		return false, nil
	}

	err = bcrypt.CompareHashAndPassword([]byte(hash), []byte(input.PIN))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		s.telemetry.Record("staff.pin_rejected", map[string]string{"staff_id": staffID})
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) ensureStaffBelongToBusiness(ctx context.Context, repo ports.Repository, businessID, field string, staffIDs []string) error {
	for idx, staffID := range staffIDs {
		if _, err := repo.GetStaff(ctx, businessID, staffID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.NewFieldError(indexedField(field, idx), "must reference staff of this business")
			}
			return err
		}
	}
	return nil
}

func (s *Service) ensureDepartmentExists(ctx context.Context, repo ports.Repository, businessID, departmentID string) error {
	if departmentID == "" {
		return nil
	}
	if _, err := repo.GetDepartment(ctx, businessID, departmentID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NewFieldError("department_id", "must reference a department of this business")
		}
		return err
	}
	return nil
}

func withoutID(ids []string, id string) []string {
	result := make([]string, 0, len(ids))
	for _, entry := range ids {
		if entry != id {
			result = append(result, entry)
		}
	}
	return result
}

func containsID(ids []string, id string) bool {
	for _, entry := range ids {
		if entry == id {
			return true
		}
	}
	return false
}
