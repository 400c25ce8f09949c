package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bizzytrack/backend/internal/domain"
	"bizzytrack/backend/internal/ports"
)

func (s *Service) ListJobs(ctx context.Context, auth ports.AuthContext) ([]domain.Job, error) {
	businessID, err := tenantScope(auth, anyRole...)
	if err != nil {
		return nil, err
	}
	return s.repo.ListJobs(ctx, businessID)
}

func (s *Service) GetJob(ctx context.Context, auth ports.AuthContext, jobID string) (domain.Job, error) {
	businessID, err := tenantScope(auth, anyRole...)
	if err != nil {
		return domain.Job{}, err
	}
	return s.repo.GetJob(ctx, businessID, jobID)
}

// CreateJob always opens the job in the given department.
func (s *Service) CreateJob(ctx context.Context, auth ports.AuthContext, input domain.Job) (domain.Job, error) {
	businessID, err := tenantScope(auth, anyRole...)
	if err != nil {
		return domain.Job{}, err
	}
	input = normalizeJob(input)
	if err := s.validateJob(ctx, businessID, input); err != nil {
		return domain.Job{}, err
	}
	if input.Status != "" && input.Status != domain.JobStatusOpen {
		return domain.Job{}, domain.NewFieldError("status", "must be open for new jobs")
	}

	created, err := s.repo.CreateJob(ctx, domain.Job{
		BusinessID:   businessID,
		CustomerID:   input.CustomerID,
		Title:        input.Title,
		Description:  input.Description,
		DepartmentID: input.DepartmentID,
		AssigneeIDs:  input.AssigneeIDs,
		Status:       domain.JobStatusOpen,
		DueDate:      input.DueDate,
		QuotedCents:  input.QuotedCents,
	})
	if err != nil {
		return domain.Job{}, err
	}

	s.telemetry.Record("job.created", map[string]string{"job_id": created.ID, "department_id": created.DepartmentID})
	return created, nil
}

// UpdateJob applies field changes and status transitions. The department only
// moves through accepted handoffs.
func (s *Service) UpdateJob(ctx context.Context, auth ports.AuthContext, jobID string, input domain.Job) (domain.Job, error) {
	businessID, err := tenantScope(auth, anyRole...)
	if err != nil {
		return domain.Job{}, err
	}
	input = normalizeJob(input)
	if err := s.validateJob(ctx, businessID, input); err != nil {
		return domain.Job{}, err
	}

	var (
		updated  domain.Job
		previous string
	)
	err = s.repo.Atomic(ctx, func(ctx context.Context, tx ports.Repository) error {
		job, err := tx.GetJob(ctx, businessID, jobID)
		if err != nil {
			return err
		}
		if input.DepartmentID != job.DepartmentID {
			return domain.NewFieldError("department_id", "changes through department handoffs")
		}

		status := input.Status
		if status == "" {
			status = job.Status
		}
		if err := domain.CheckJobTransition(job.Status, status); err != nil {
			return err
		}

		previous = job.Status
		job.CustomerID = input.CustomerID
		job.Title = input.Title
		job.Description = input.Description
		job.AssigneeIDs = input.AssigneeIDs
		job.Status = status
		job.DueDate = input.DueDate
		job.QuotedCents = input.QuotedCents

		updated, err = tx.UpdateJob(ctx, job)
		return err
	})
	if err != nil {
		return domain.Job{}, err
	}

	s.telemetry.Record("job.updated", map[string]string{"job_id": updated.ID})
	if previous != updated.Status {
		s.telemetry.Record("job.status_changed", map[string]string{"job_id": updated.ID, "from": previous, "to": updated.Status})
	}
	return updated, nil
}

func (s *Service) DeleteJob(ctx context.Context, auth ports.AuthContext, jobID string) error {
	businessID, err := tenantScope(auth, managerRoles...)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteJob(ctx, businessID, jobID); err != nil {
		return err
	}

	s.telemetry.Record("job.deleted", map[string]string{"job_id": jobID})
	return nil
}

// RequestHandoff asks another department to take over an active job.
func (s *Service) RequestHandoff(ctx context.Context, auth ports.AuthContext, jobID string, input domain.HandoffRequest) (domain.Handoff, error) {
	businessID, err := tenantScope(auth, anyRole...)
	if err != nil {
		return domain.Handoff{}, err
	}
	input.ToDepartmentID = strings.TrimSpace(input.ToDepartmentID)
	input.Note = strings.TrimSpace(input.Note)
	if err := domain.Validate(input); err != nil {
		return domain.Handoff{}, err
	}

	var created domain.Handoff
	err = s.repo.Atomic(ctx, func(ctx context.Context, tx ports.Repository) error {
		job, err := tx.GetJob(ctx, businessID, jobID)
		if err != nil {
			return err
		}
		if !domain.JobActive(job.Status) {
			return fmt.Errorf("job is %s: %w", job.Status, domain.ErrConflict)
		}
		if input.ToDepartmentID == job.DepartmentID {
			return domain.NewFieldError("to_department_id", "must differ from the current department")
		}
		if _, err := tx.GetDepartment(ctx, businessID, input.ToDepartmentID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.NewFieldError("to_department_id", "must reference a department of this business")
			}
			return err
		}

		handoffs, err := tx.ListHandoffs(ctx, businessID)
		if err != nil {
			return err
		}
		for _, handoff := range handoffs {
			if handoff.JobID == jobID && handoff.Status == domain.HandoffPending {
				return fmt.Errorf("job already has pending handoff %s: %w", handoff.ID, domain.ErrConflict)
			}
		}

		created, err = tx.CreateHandoff(ctx, domain.Handoff{
			BusinessID:       businessID,
			JobID:            jobID,
			FromDepartmentID: job.DepartmentID,
			ToDepartmentID:   input.ToDepartmentID,
			Status:           domain.HandoffPending,
			Note:             input.Note,
			RequestedBy:      auth.UserID,
		})
		return err
	})
	if err != nil {
		return domain.Handoff{}, err
	}

	s.telemetry.Record("handoff.requested", map[string]string{"handoff_id": created.ID, "job_id": jobID})
	return created, nil
}

func (s *Service) AcceptHandoff(ctx context.Context, auth ports.AuthContext, handoffID string, input domain.HandoffDecision) (domain.Handoff, error) {
	return s.decideHandoff(ctx, auth, handoffID, input, true)
}

func (s *Service) RejectHandoff(ctx context.Context, auth ports.AuthContext, handoffID string, input domain.HandoffDecision) (domain.Handoff, error) {
	return s.decideHandoff(ctx, auth, handoffID, input, false)
}

// decideHandoff lets managers, and staff of the receiving department, settle a
// pending handoff. Acceptance moves the job.
func (s *Service) decideHandoff(ctx context.Context, auth ports.AuthContext, handoffID string, input domain.HandoffDecision, accept bool) (domain.Handoff, error) {
	businessID, err := tenantScope(auth, anyRole...)
	if err != nil {
		return domain.Handoff{}, err
	}
	if err := domain.Validate(input); err != nil {
		return domain.Handoff{}, err
	}

	var decided domain.Handoff
	err = s.repo.Atomic(ctx, func(ctx context.Context, tx ports.Repository) error {
		handoff, err := tx.GetHandoff(ctx, businessID, handoffID)
		if err != nil {
			return err
		}
		target, err := tx.GetDepartment(ctx, businessID, handoff.ToDepartmentID)
		if err != nil {
			return err
		}
		if requireAnyRole(auth, managerRoles...) != nil && target.ManagerID != auth.UserID && !containsID(target.MemberIDs, auth.UserID) {
			return domain.ErrForbidden
		}

		if err := domain.DecideHandoff(&handoff, accept, auth.UserID, input.Note, s.now()); err != nil {
			return err
		}

		if accept {
			job, err := tx.GetJob(ctx, businessID, handoff.JobID)
			if err != nil {
				return err
			}
			if !domain.JobActive(job.Status) {
				return fmt.Errorf("job is %s: %w", job.Status, domain.ErrConflict)
			}
			job.DepartmentID = handoff.ToDepartmentID
			if _, err := tx.UpdateJob(ctx, job); err != nil {
				return err
			}
		}

		decided, err = tx.UpdateHandoff(ctx, handoff)
		return err
	})
	if err != nil {
		return domain.Handoff{}, err
	}

	s.telemetry.Record("handoff."+decided.Status, map[string]string{"handoff_id": decided.ID, "job_id": decided.JobID})
	return decided, nil
}

func (s *Service) ListJobHandoffs(ctx context.Context, auth ports.AuthContext, jobID string) ([]domain.Handoff, error) {
	businessID, err := tenantScope(auth, anyRole...)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.GetJob(ctx, businessID, jobID); err != nil {
		return nil, err
	}

	handoffs, err := s.repo.ListHandoffs(ctx, businessID)
	if err != nil {
		return nil, err
	}
	result := make([]domain.Handoff, 0)
	for _, handoff := range handoffs {
		if handoff.JobID == jobID {
			result = append(result, handoff)
		}
	}
	return result, nil
}

// ListPendingHandoffs is the inbox of a receiving department.
func (s *Service) ListPendingHandoffs(ctx context.Context, auth ports.AuthContext, departmentID string) ([]domain.Handoff, error) {
	businessID, err := tenantScope(auth, anyRole...)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.GetDepartment(ctx, businessID, departmentID); err != nil {
		return nil, err
	}

	handoffs, err := s.repo.ListHandoffs(ctx, businessID)
	if err != nil {
		return nil, err
	}
	result := make([]domain.Handoff, 0)
	for _, handoff := range handoffs {
		if handoff.ToDepartmentID == departmentID && handoff.Status == domain.HandoffPending {
			result = append(result, handoff)
		}
	}
	return result, nil
}

func (s *Service) validateJob(ctx context.Context, businessID string, job domain.Job) error {
	if err := domain.Validate(job); err != nil {
		return err
	}
	if _, err := s.repo.GetCustomer(ctx, businessID, job.CustomerID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NewFieldError("customer_id", "must reference a customer of this business")
		}
		return err
	}
	if err := s.ensureDepartmentExists(ctx, s.repo, businessID, job.DepartmentID); err != nil {
		return err
	}
	return s.ensureStaffBelongToBusiness(ctx, s.repo, businessID, "assignee_ids", job.AssigneeIDs)
}
