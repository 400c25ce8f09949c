package persistence

import (
	"context"
	"sort"
	"time"

	"bizzytrack/backend/internal/domain"
)

func (r *FileRepository) ListBusinesses(ctx context.Context) ([]domain.Business, error) {
	defer r.rlock(ctx)()

	result := make([]domain.Business, 0, len(r.state.Businesses))
	for _, business := range r.state.Businesses {
		result = append(result, business)
	}
	sortByName(result, func(b domain.Business) string { return b.Name }, func(b domain.Business) string { return b.ID })
	return result, nil
}

func (r *FileRepository) GetBusiness(ctx context.Context, id string) (domain.Business, error) {
	defer r.rlock(ctx)()

	business, ok := r.state.Businesses[id]
	if !ok {
		return domain.Business{}, domain.ErrNotFound
	}
	return business, nil
}

func (r *FileRepository) CreateBusiness(ctx context.Context, business domain.Business) (domain.Business, error) {
	defer r.lock(ctx)()

	now := time.Now().UTC()
	business.ID = r.nextIDLocked("biz")
	business.CreatedAt = now
	business.UpdatedAt = now
	r.state.Businesses[business.ID] = business

	if err := r.commitLocked(ctx); err != nil {
		return domain.Business{}, err
	}
	return business, nil
}

func (r *FileRepository) UpdateBusiness(ctx context.Context, business domain.Business) (domain.Business, error) {
	defer r.lock(ctx)()

	current, ok := r.state.Businesses[business.ID]
	if !ok {
		return domain.Business{}, domain.ErrNotFound
	}

	business.CreatedAt = current.CreatedAt
	business.UpdatedAt = time.Now().UTC()
	r.state.Businesses[business.ID] = business

	if err := r.commitLocked(ctx); err != nil {
		return domain.Business{}, err
	}
	return business, nil
}

// DeleteBusiness removes the business and every record it owns.
func (r *FileRepository) DeleteBusiness(ctx context.Context, id string) error {
	defer r.lock(ctx)()

	if _, ok := r.state.Businesses[id]; !ok {
		return domain.ErrNotFound
	}

	delete(r.state.Businesses, id)
	for staffID, staff := range r.state.Staff {
		if staff.BusinessID == id {
			delete(r.state.Staff, staffID)
			delete(r.state.StaffPINs, staffID)
		}
	}
	deleteOwned(r.state.Departments, id, func(v domain.Department) string { return v.BusinessID })
	deleteOwned(r.state.Customers, id, func(v domain.Customer) string { return v.BusinessID })
	deleteOwned(r.state.Jobs, id, func(v domain.Job) string { return v.BusinessID })
	deleteOwned(r.state.Handoffs, id, func(v domain.Handoff) string { return v.BusinessID })
	deleteOwned(r.state.InventoryItems, id, func(v domain.InventoryItem) string { return v.BusinessID })
	deleteOwned(r.state.StockAdjustments, id, func(v domain.StockAdjustment) string { return v.BusinessID })
	deleteOwned(r.state.PricingRules, id, func(v domain.PricingRule) string { return v.BusinessID })
	deleteOwned(r.state.Sales, id, func(v domain.Sale) string { return v.BusinessID })
	deleteOwned(r.state.Invoices, id, func(v domain.Invoice) string { return v.BusinessID })
	deleteOwned(r.state.Accounts, id, func(v domain.Account) string { return v.BusinessID })
	deleteOwned(r.state.JournalEntries, id, func(v domain.JournalEntry) string { return v.BusinessID })

	return r.commitLocked(ctx)
}

func deleteOwned[T any](records map[string]T, businessID string, owner func(T) string) {
	for id, record := range records {
		if owner(record) == businessID {
			delete(records, id)
		}
	}
}

func (r *FileRepository) ListStaff(ctx context.Context, businessID string) ([]domain.StaffProfile, error) {
	defer r.rlock(ctx)()

	result := make([]domain.StaffProfile, 0)
	for _, staff := range r.state.Staff {
		if staff.BusinessID == businessID {
			result = append(result, staff)
		}
	}
	sortByName(result, func(s domain.StaffProfile) string { return s.Name }, func(s domain.StaffProfile) string { return s.ID })
	return result, nil
}

func (r *FileRepository) GetStaff(ctx context.Context, businessID, id string) (domain.StaffProfile, error) {
	defer r.rlock(ctx)()

	staff, ok := r.state.Staff[id]
	if !ok || staff.BusinessID != businessID {
		return domain.StaffProfile{}, domain.ErrNotFound
	}
	return staff, nil
}

func (r *FileRepository) CreateStaff(ctx context.Context, staff domain.StaffProfile) (domain.StaffProfile, error) {
	defer r.lock(ctx)()

	now := time.Now().UTC()
	staff.ID = r.nextIDLocked("staff")
	staff.HasPIN = false
	staff.CreatedAt = now
	staff.UpdatedAt = now
	r.state.Staff[staff.ID] = staff

	if err := r.commitLocked(ctx); err != nil {
		return domain.StaffProfile{}, err
	}
	return staff, nil
}

func (r *FileRepository) UpdateStaff(ctx context.Context, staff domain.StaffProfile) (domain.StaffProfile, error) {
	defer r.lock(ctx)()

	current, ok := r.state.Staff[staff.ID]
	if !ok || current.BusinessID != staff.BusinessID {
		return domain.StaffProfile{}, domain.ErrNotFound
	}

	staff.HasPIN = current.HasPIN
	staff.CreatedAt = current.CreatedAt
	staff.UpdatedAt = time.Now().UTC()
	r.state.Staff[staff.ID] = staff

	if err := r.commitLocked(ctx); err != nil {
		return domain.StaffProfile{}, err
	}
	return staff, nil
}

func (r *FileRepository) DeleteStaff(ctx context.Context, businessID, id string) error {
	defer r.lock(ctx)()

	staff, ok := r.state.Staff[id]
	if !ok || staff.BusinessID != businessID {
		return domain.ErrNotFound
	}
	delete(r.state.Staff, id)
	delete(r.state.StaffPINs, id)
	return r.commitLocked(ctx)
}

func (r *FileRepository) SetStaffPINHash(ctx context.Context, businessID, staffID, hash string) error {
	defer r.lock(ctx)()

	staff, ok := r.state.Staff[staffID]
	if !ok || staff.BusinessID != businessID {
		return domain.ErrNotFound
	}
	r.state.StaffPINs[staffID] = hash
	staff.HasPIN = hash != ""
	staff.UpdatedAt = time.Now().UTC()
	r.state.Staff[staffID] = staff
	return r.commitLocked(ctx)
}

// GetStaffPINHash returns an empty hash for staff without a PIN.
func (r *FileRepository) GetStaffPINHash(ctx context.Context, businessID, staffID string) (string, error) {
	defer r.rlock(ctx)()

	staff, ok := r.state.Staff[staffID]
	if !ok || staff.BusinessID != businessID {
		return "", domain.ErrNotFound
	}
	return r.state.StaffPINs[staffID], nil
}

func (r *FileRepository) ListDepartments(ctx context.Context, businessID string) ([]domain.Department, error) {
	defer r.rlock(ctx)()

	result := make([]domain.Department, 0)
	for _, department := range r.state.Departments {
		if department.BusinessID == businessID {
			result = append(result, copyDepartment(department))
		}
	}
	sortByName(result, func(d domain.Department) string { return d.Name }, func(d domain.Department) string { return d.ID })
	return result, nil
}

func (r *FileRepository) GetDepartment(ctx context.Context, businessID, id string) (domain.Department, error) {
	defer r.rlock(ctx)()

	department, ok := r.state.Departments[id]
	if !ok || department.BusinessID != businessID {
		return domain.Department{}, domain.ErrNotFound
	}
	return copyDepartment(department), nil
}

func (r *FileRepository) CreateDepartment(ctx context.Context, department domain.Department) (domain.Department, error) {
	defer r.lock(ctx)()

	now := time.Now().UTC()
	department.ID = r.nextIDLocked("dept")
	department.MemberIDs = uniqueStrings(department.MemberIDs)
	department.CreatedAt = now
	department.UpdatedAt = now
	r.state.Departments[department.ID] = copyDepartment(department)

	if err := r.commitLocked(ctx); err != nil {
		return domain.Department{}, err
	}
	return department, nil
}

func (r *FileRepository) UpdateDepartment(ctx context.Context, department domain.Department) (domain.Department, error) {
	defer r.lock(ctx)()

	current, ok := r.state.Departments[department.ID]
	if !ok || current.BusinessID != department.BusinessID {
		return domain.Department{}, domain.ErrNotFound
	}

	department.MemberIDs = uniqueStrings(department.MemberIDs)
	department.CreatedAt = current.CreatedAt
	department.UpdatedAt = time.Now().UTC()
	r.state.Departments[department.ID] = copyDepartment(department)

	if err := r.commitLocked(ctx); err != nil {
		return domain.Department{}, err
	}
	return department, nil
}

func (r *FileRepository) DeleteDepartment(ctx context.Context, businessID, id string) error {
	defer r.lock(ctx)()

	department, ok := r.state.Departments[id]
	if !ok || department.BusinessID != businessID {
		return domain.ErrNotFound
	}
	delete(r.state.Departments, id)
	return r.commitLocked(ctx)
}

func (r *FileRepository) ListCustomers(ctx context.Context, businessID string) ([]domain.Customer, error) {
	defer r.rlock(ctx)()

	result := make([]domain.Customer, 0)
	for _, customer := range r.state.Customers {
		if customer.BusinessID == businessID {
			result = append(result, customer)
		}
	}
	sortByName(result, func(c domain.Customer) string { return c.Name }, func(c domain.Customer) string { return c.ID })
	return result, nil
}

func (r *FileRepository) GetCustomer(ctx context.Context, businessID, id string) (domain.Customer, error) {
	defer r.rlock(ctx)()

	customer, ok := r.state.Customers[id]
	if !ok || customer.BusinessID != businessID {
		return domain.Customer{}, domain.ErrNotFound
	}
	return customer, nil
}

func (r *FileRepository) CreateCustomer(ctx context.Context, customer domain.Customer) (domain.Customer, error) {
	defer r.lock(ctx)()

	now := time.Now().UTC()
	customer.ID = r.nextIDLocked("cust")
	customer.CreatedAt = now
	customer.UpdatedAt = now
	r.state.Customers[customer.ID] = customer

	if err := r.commitLocked(ctx); err != nil {
		return domain.Customer{}, err
	}
	return customer, nil
}

func (r *FileRepository) UpdateCustomer(ctx context.Context, customer domain.Customer) (domain.Customer, error) {
	defer r.lock(ctx)()

	current, ok := r.state.Customers[customer.ID]
	if !ok || current.BusinessID != customer.BusinessID {
		return domain.Customer{}, domain.ErrNotFound
	}

	customer.CreatedAt = current.CreatedAt
	customer.UpdatedAt = time.Now().UTC()
	r.state.Customers[customer.ID] = customer

	if err := r.commitLocked(ctx); err != nil {
		return domain.Customer{}, err
	}
	return customer, nil
}

func (r *FileRepository) DeleteCustomer(ctx context.Context, businessID, id string) error {
	defer r.lock(ctx)()

	customer, ok := r.state.Customers[id]
	if !ok || customer.BusinessID != businessID {
		return domain.ErrNotFound
	}
	delete(r.state.Customers, id)
	return r.commitLocked(ctx)
}

func (r *FileRepository) ListJobs(ctx context.Context, businessID string) ([]domain.Job, error) {
	defer r.rlock(ctx)()

	result := make([]domain.Job, 0)
	for _, job := range r.state.Jobs {
		if job.BusinessID == businessID {
			result = append(result, copyJob(job))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r *FileRepository) GetJob(ctx context.Context, businessID, id string) (domain.Job, error) {
	defer r.rlock(ctx)()

	job, ok := r.state.Jobs[id]
	if !ok || job.BusinessID != businessID {
		return domain.Job{}, domain.ErrNotFound
	}
	return copyJob(job), nil
}

func (r *FileRepository) CreateJob(ctx context.Context, job domain.Job) (domain.Job, error) {
	defer r.lock(ctx)()

	now := time.Now().UTC()
	job.ID = r.nextIDLocked("job")
	job.AssigneeIDs = uniqueStrings(job.AssigneeIDs)
	job.CreatedAt = now
	job.UpdatedAt = now
	r.state.Jobs[job.ID] = copyJob(job)

	if err := r.commitLocked(ctx); err != nil {
		return domain.Job{}, err
	}
	return job, nil
}

func (r *FileRepository) UpdateJob(ctx context.Context, job domain.Job) (domain.Job, error) {
	defer r.lock(ctx)()

	current, ok := r.state.Jobs[job.ID]
	if !ok || current.BusinessID != job.BusinessID {
		return domain.Job{}, domain.ErrNotFound
	}

	job.AssigneeIDs = uniqueStrings(job.AssigneeIDs)
	job.CreatedAt = current.CreatedAt
	job.UpdatedAt = time.Now().UTC()
	r.state.Jobs[job.ID] = copyJob(job)

	if err := r.commitLocked(ctx); err != nil {
		return domain.Job{}, err
	}
	return job, nil
}

// DeleteJob also drops the job's handoff history.
func (r *FileRepository) DeleteJob(ctx context.Context, businessID, id string) error {
	defer r.lock(ctx)()

	job, ok := r.state.Jobs[id]
	if !ok || job.BusinessID != businessID {
		return domain.ErrNotFound
	}
	delete(r.state.Jobs, id)
	for handoffID, handoff := range r.state.Handoffs {
		if handoff.BusinessID == businessID && handoff.JobID == id {
			delete(r.state.Handoffs, handoffID)
		}
	}
	return r.commitLocked(ctx)
}

func (r *FileRepository) ListHandoffs(ctx context.Context, businessID string) ([]domain.Handoff, error) {
	defer r.rlock(ctx)()

	result := make([]domain.Handoff, 0)
	for _, handoff := range r.state.Handoffs {
		if handoff.BusinessID == businessID {
			result = append(result, copyHandoff(handoff))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r *FileRepository) GetHandoff(ctx context.Context, businessID, id string) (domain.Handoff, error) {
	defer r.rlock(ctx)()

	handoff, ok := r.state.Handoffs[id]
	if !ok || handoff.BusinessID != businessID {
		return domain.Handoff{}, domain.ErrNotFound
	}
	return copyHandoff(handoff), nil
}

func (r *FileRepository) CreateHandoff(ctx context.Context, handoff domain.Handoff) (domain.Handoff, error) {
	defer r.lock(ctx)()

	now := time.Now().UTC()
	handoff.ID = r.nextIDLocked("handoff")
	handoff.CreatedAt = now
	handoff.UpdatedAt = now
	r.state.Handoffs[handoff.ID] = copyHandoff(handoff)

	if err := r.commitLocked(ctx); err != nil {
		return domain.Handoff{}, err
	}
	return handoff, nil
}

func (r *FileRepository) UpdateHandoff(ctx context.Context, handoff domain.Handoff) (domain.Handoff, error) {
	defer r.lock(ctx)()

	current, ok := r.state.Handoffs[handoff.ID]
	if !ok || current.BusinessID != handoff.BusinessID {
		return domain.Handoff{}, domain.ErrNotFound
	}

	handoff.CreatedAt = current.CreatedAt
	handoff.UpdatedAt = time.Now().UTC()
	r.state.Handoffs[handoff.ID] = copyHandoff(handoff)

	if err := r.commitLocked(ctx); err != nil {
		return domain.Handoff{}, err
	}
	return handoff, nil
}
