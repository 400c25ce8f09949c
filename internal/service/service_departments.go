package service

import (
	"context"
	"fmt"

	"bizzytrack/backend/internal/domain"
	"bizzytrack/backend/internal/ports"
)

func (s *Service) ListDepartments(ctx context.Context, auth ports.AuthContext) ([]domain.Department, error) {
	businessID, err := tenantScope(auth, anyRole...)
	if err != nil {
		return nil, err
	}
	return s.repo.ListDepartments(ctx, businessID)
}

func (s *Service) GetDepartment(ctx context.Context, auth ports.AuthContext, departmentID string) (domain.Department, error) {
	businessID, err := tenantScope(auth, anyRole...)
	if err != nil {
		return domain.Department{}, err
	}
	return s.repo.GetDepartment(ctx, businessID, departmentID)
}

func (s *Service) CreateDepartment(ctx context.Context, auth ports.AuthContext, input domain.Department) (domain.Department, error) {
	businessID, err := tenantScope(auth, managerRoles...)
	if err != nil {
		return domain.Department{}, err
	}
	input = normalizeDepartment(input)
	if err := s.validateDepartment(ctx, businessID, input); err != nil {
		return domain.Department{}, err
	}

	created, err := s.repo.CreateDepartment(ctx, domain.Department{
		BusinessID:  businessID,
		Name:        input.Name,
		Description: input.Description,
		ManagerID:   input.ManagerID,
		MemberIDs:   input.MemberIDs,
	})
	if err != nil {
		return domain.Department{}, err
	}

	s.telemetry.Record("department.created", map[string]string{"department_id": created.ID})
	return created, nil
}

func (s *Service) UpdateDepartment(ctx context.Context, auth ports.AuthContext, departmentID string, input domain.Department) (domain.Department, error) {
	businessID, err := tenantScope(auth, managerRoles...)
	if err != nil {
		return domain.Department{}, err
	}
	input = normalizeDepartment(input)
	if err := s.validateDepartment(ctx, businessID, input); err != nil {
		return domain.Department{}, err
	}

	department, err := s.repo.GetDepartment(ctx, businessID, departmentID)
	if err != nil {
		return domain.Department{}, err
	}
	department.Name = input.Name
	department.Description = input.Description
	department.ManagerID = input.ManagerID
	department.MemberIDs = input.MemberIDs

	updated, err := s.repo.UpdateDepartment(ctx, department)
	if err != nil {
		return domain.Department{}, err
	}

	s.telemetry.Record("department.updated", map[string]string{"department_id": updated.ID})
	return updated, nil
}

// DeleteDepartment refuses while active jobs still sit in the department or
// pending handoffs wait in its inbox, and clears staff references to it.
func (s *Service) DeleteDepartment(ctx context.Context, auth ports.AuthContext, departmentID string) error {
	businessID, err := tenantScope(auth, managerRoles...)
	if err != nil {
		return err
	}

	err = s.repo.Atomic(ctx, func(ctx context.Context, tx ports.Repository) error {
		if _, err := tx.GetDepartment(ctx, businessID, departmentID); err != nil {
			return err
		}

		jobs, err := tx.ListJobs(ctx, businessID)
		if err != nil {
			return err
		}
		for _, job := range jobs {
			if job.DepartmentID == departmentID && domain.JobActive(job.Status) {
				return fmt.Errorf("department still holds active job %s: %w", job.ID, domain.ErrConflict)
			}
		}

		handoffs, err := tx.ListHandoffs(ctx, businessID)
		if err != nil {
			return err
		}
		for _, handoff := range handoffs {
			if handoff.ToDepartmentID == departmentID && handoff.Status == domain.HandoffPending {
				return fmt.Errorf("department has pending handoff %s: %w", handoff.ID, domain.ErrConflict)
			}
		}

		staff, err := tx.ListStaff(ctx, businessID)
		if err != nil {
			return err
		}
		for _, member := range staff {
			if member.DepartmentID != departmentID {
				continue
			}
			member.DepartmentID = ""
			if _, err := tx.UpdateStaff(ctx, member); err != nil {
				return err
			}
		}

		return tx.DeleteDepartment(ctx, businessID, departmentID)
	})
	if err != nil {
		return err
	}

	s.telemetry.Record("department.deleted", map[string]string{"department_id": departmentID})
	return nil
}

func (s *Service) AddDepartmentMember(ctx context.Context, auth ports.AuthContext, departmentID, staffID string) (domain.Department, error) {
	businessID, err := tenantScope(auth, managerRoles...)
	if err != nil {
		return domain.Department{}, err
	}
	if _, err := s.repo.GetStaff(ctx, businessID, staffID); err != nil {
		return domain.Department{}, err
	}

	var (
		department domain.Department
		changed    bool
	)
	err = s.repo.Atomic(ctx, func(ctx context.Context, tx ports.Repository) error {
		current, err := tx.GetDepartment(ctx, businessID, departmentID)
		if err != nil {
			return err
		}
		changed = !containsID(current.MemberIDs, staffID)
		if !changed {
			department = current
			return nil
		}
		current.MemberIDs = append(current.MemberIDs, staffID)
		department, err = tx.UpdateDepartment(ctx, current)
		return err
	})
	if err != nil {
		return domain.Department{}, err
	}

	if changed {
		s.telemetry.Record("department.member_added", map[string]string{"department_id": departmentID, "staff_id": staffID})
	}
	return department, nil
}

func (s *Service) RemoveDepartmentMember(ctx context.Context, auth ports.AuthContext, departmentID, staffID string) (domain.Department, error) {
	businessID, err := tenantScope(auth, managerRoles...)
	if err != nil {
		return domain.Department{}, err
	}

	var (
		department domain.Department
		changed    bool
	)
	err = s.repo.Atomic(ctx, func(ctx context.Context, tx ports.Repository) error {
		current, err := tx.GetDepartment(ctx, businessID, departmentID)
		if err != nil {
			return err
		}
		changed = containsID(current.MemberIDs, staffID)
		if !changed {
			department = current
			return nil
		}
		current.MemberIDs = withoutID(current.MemberIDs, staffID)
		department, err = tx.UpdateDepartment(ctx, current)
		return err
	})
	if err != nil {
		return domain.Department{}, err
	}

	if changed {
		s.telemetry.Record("department.member_removed", map[string]string{"department_id": departmentID, "staff_id": staffID})
	}
	return department, nil
}

func (s *Service) validateDepartment(ctx context.Context, businessID string, department domain.Department) error {
	if err := domain.Validate(department); err != nil {
		return err
	}
	if department.ManagerID != "" {
		if err := s.ensureStaffBelongToBusiness(ctx, s.repo, businessID, "manager_id", []string{department.ManagerID}); err != nil {
			if IsValidationError(err) {
				return domain.NewFieldError("manager_id", "must reference staff of this business")
			}
			return err
		}
	}
	return s.ensureStaffBelongToBusiness(ctx, s.repo, businessID, "member_ids", department.MemberIDs)
}
