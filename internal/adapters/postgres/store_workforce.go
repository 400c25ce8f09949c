package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"bizzytrack/backend/internal/domain"
)

type businessRow struct {
	ID         string    `db:"id"`
	Name       string    `db:"name"`
	Currency   string    `db:"currency"`
	Timezone   string    `db:"timezone"`
	TaxRatePct float64   `db:"tax_rate_pct"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func (r businessRow) domain() domain.Business {
	return domain.Business{
		ID:         r.ID,
		Name:       r.Name,
		Currency:   r.Currency,
		Timezone:   r.Timezone,
		TaxRatePct: r.TaxRatePct,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
}

const businessColumns = `id, name, currency, timezone, tax_rate_pct, created_at, updated_at`

func (s *Store) ListBusinesses(ctx context.Context) ([]domain.Business, error) {
	var rows []businessRow
	if err := s.list(ctx, &rows, `SELECT `+businessColumns+` FROM businesses ORDER BY created_at, id`); err != nil {
		return nil, err
	}
	result := make([]domain.Business, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.domain())
	}
	return result, nil
}

func (s *Store) GetBusiness(ctx context.Context, id string) (domain.Business, error) {
	var row businessRow
	if err := s.get(ctx, &row, `SELECT `+businessColumns+` FROM businesses WHERE id = $1`+s.forUpdate(), id); err != nil {
		return domain.Business{}, err
	}
	return row.domain(), nil
}

func (s *Store) CreateBusiness(ctx context.Context, business domain.Business) (domain.Business, error) {
	business.ID = newID()
	business.CreatedAt = now()
	business.UpdatedAt = business.CreatedAt

	err := s.insert(ctx, `
		INSERT INTO businesses (`+businessColumns+`)
		VALUES (:id, :name, :currency, :timezone, :tax_rate_pct, :created_at, :updated_at)
	`, businessRow{
		ID:         business.ID,
		Name:       business.Name,
		Currency:   business.Currency,
		Timezone:   business.Timezone,
		TaxRatePct: business.TaxRatePct,
		CreatedAt:  business.CreatedAt,
		UpdatedAt:  business.UpdatedAt,
	})
	if err != nil {
		return domain.Business{}, err
	}
	return business, nil
}

func (s *Store) UpdateBusiness(ctx context.Context, business domain.Business) (domain.Business, error) {
	business.UpdatedAt = now()
	err := s.get(ctx, &business.CreatedAt, `
		UPDATE businesses
		SET name = $2, currency = $3, timezone = $4, tax_rate_pct = $5, updated_at = $6
		WHERE id = $1
		RETURNING created_at
	`, business.ID, business.Name, business.Currency, business.Timezone, business.TaxRatePct, business.UpdatedAt)
	if err != nil {
		return domain.Business{}, err
	}
	business.CreatedAt = business.CreatedAt.UTC()
	return business, nil
}

// DeleteBusiness relies on ON DELETE CASCADE to remove owned records.
func (s *Store) DeleteBusiness(ctx context.Context, id string) error {
	return s.exec(ctx, `DELETE FROM businesses WHERE id = $1`, id)
}

type staffRow struct {
	ID              string    `db:"id"`
	BusinessID      string    `db:"business_id"`
	Name            string    `db:"name"`
	Email           string    `db:"email"`
	Phone           string    `db:"phone"`
	JobTitle        string    `db:"job_title"`
	DepartmentID    string    `db:"department_id"`
	HourlyRateCents int64     `db:"hourly_rate_cents"`
	Active          bool      `db:"active"`
	HasPIN          bool      `db:"has_pin"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func (r staffRow) domain() domain.StaffProfile {
	return domain.StaffProfile{
		ID:              r.ID,
		BusinessID:      r.BusinessID,
		Name:            r.Name,
		Email:           r.Email,
		Phone:           r.Phone,
		JobTitle:        r.JobTitle,
		DepartmentID:    r.DepartmentID,
		HourlyRateCents: r.HourlyRateCents,
		Active:          r.Active,
		HasPIN:          r.HasPIN,
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
}

const staffColumns = `id, business_id, name, email, phone, job_title, department_id, hourly_rate_cents, active,
	pin_hash <> '' AS has_pin, created_at, updated_at`

func (s *Store) ListStaff(ctx context.Context, businessID string) ([]domain.StaffProfile, error) {
	var rows []staffRow
	err := s.list(ctx, &rows, `SELECT `+staffColumns+` FROM staff WHERE business_id = $1 ORDER BY name COLLATE "C", id`, businessID)
	if err != nil {
		return nil, err
	}
	result := make([]domain.StaffProfile, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.domain())
	}
	return result, nil
}

func (s *Store) GetStaff(ctx context.Context, businessID, id string) (domain.StaffProfile, error) {
	var row staffRow
	if err := s.get(ctx, &row, `SELECT `+staffColumns+` FROM staff WHERE business_id = $1 AND id = $2`, businessID, id); err != nil {
		return domain.StaffProfile{}, err
	}
	return row.domain(), nil
}

func (s *Store) CreateStaff(ctx context.Context, staff domain.StaffProfile) (domain.StaffProfile, error) {
	staff.ID = newID()
	staff.HasPIN = false
	staff.CreatedAt = now()
	staff.UpdatedAt = staff.CreatedAt

	err := s.insert(ctx, `
		INSERT INTO staff (id, business_id, name, email, phone, job_title, department_id, hourly_rate_cents, active, created_at, updated_at)
		VALUES (:id, :business_id, :name, :email, :phone, :job_title, :department_id, :hourly_rate_cents, :active, :created_at, :updated_at)
	`, staffRow{
		ID:              staff.ID,
		BusinessID:      staff.BusinessID,
		Name:            staff.Name,
		Email:           staff.Email,
		Phone:           staff.Phone,
		JobTitle:        staff.JobTitle,
		DepartmentID:    staff.DepartmentID,
		HourlyRateCents: staff.HourlyRateCents,
		Active:          staff.Active,
		CreatedAt:       staff.CreatedAt,
		UpdatedAt:       staff.UpdatedAt,
	})
	if err != nil {
		return domain.StaffProfile{}, err
	}
	return staff, nil
}

// UpdateStaff leaves the PIN untouched.
func (s *Store) UpdateStaff(ctx context.Context, staff domain.StaffProfile) (domain.StaffProfile, error) {
	staff.UpdatedAt = now()
	var kept struct {
		HasPIN    bool      `db:"has_pin"`
		CreatedAt time.Time `db:"created_at"`
	}
	err := s.get(ctx, &kept, `
		UPDATE staff
		SET name = $3, email = $4, phone = $5, job_title = $6, department_id = $7,
			hourly_rate_cents = $8, active = $9, updated_at = $10
		WHERE business_id = $1 AND id = $2
		RETURNING pin_hash <> '' AS has_pin, created_at
	`, staff.BusinessID, staff.ID, staff.Name, staff.Email, staff.Phone, staff.JobTitle, staff.DepartmentID,
		staff.HourlyRateCents, staff.Active, staff.UpdatedAt)
	if err != nil {
		return domain.StaffProfile{}, err
	}
	staff.HasPIN = kept.HasPIN
	staff.CreatedAt = kept.CreatedAt.UTC()
	return staff, nil
}

func (s *Store) DeleteStaff(ctx context.Context, businessID, id string) error {
	return s.exec(ctx, `DELETE FROM staff WHERE business_id = $1 AND id = $2`, businessID, id)
}

func (s *Store) SetStaffPINHash(ctx context.Context, businessID, staffID, hash string) error {
	return s.exec(ctx, `UPDATE staff SET pin_hash = $3, updated_at = $4 WHERE business_id = $1 AND id = $2`,
		businessID, staffID, hash, now())
}

// GetStaffPINHash returns an empty hash for staff without a PIN.
func (s *Store) GetStaffPINHash(ctx context.Context, businessID, staffID string) (string, error) {
	var hash string
	if err := s.get(ctx, &hash, `SELECT pin_hash FROM staff WHERE business_id = $1 AND id = $2`, businessID, staffID); err != nil {
		return "", err
	}
	return hash, nil
}

type departmentRow struct {
	ID          string         `db:"id"`
	BusinessID  string         `db:"business_id"`
	Name        string         `db:"name"`
	Description string         `db:"description"`
	ManagerID   string         `db:"manager_id"`
	MemberIDs   pq.StringArray `db:"member_ids"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func (r departmentRow) domain() domain.Department {
	return domain.Department{
		ID:          r.ID,
		BusinessID:  r.BusinessID,
		Name:        r.Name,
		Description: r.Description,
		ManagerID:   r.ManagerID,
		MemberIDs:   append([]string{}, r.MemberIDs...),
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

const departmentColumns = `id, business_id, name, description, manager_id, member_ids, created_at, updated_at`

func (s *Store) ListDepartments(ctx context.Context, businessID string) ([]domain.Department, error) {
	var rows []departmentRow
	err := s.list(ctx, &rows, `SELECT `+departmentColumns+` FROM departments WHERE business_id = $1 ORDER BY name COLLATE "C", id`, businessID)
	if err != nil {
		return nil, err
	}
	result := make([]domain.Department, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.domain())
	}
	return result, nil
}

func (s *Store) GetDepartment(ctx context.Context, businessID, id string) (domain.Department, error) {
	var row departmentRow
	if err := s.get(ctx, &row, `SELECT `+departmentColumns+` FROM departments WHERE business_id = $1 AND id = $2`+s.forUpdate(), businessID, id); err != nil {
		return domain.Department{}, err
	}
	return row.domain(), nil
}

func (s *Store) CreateDepartment(ctx context.Context, department domain.Department) (domain.Department, error) {
	department.ID = newID()
	department.MemberIDs = uniqueStrings(department.MemberIDs)
	department.CreatedAt = now()
	department.UpdatedAt = department.CreatedAt

	err := s.insert(ctx, `
		INSERT INTO departments (`+departmentColumns+`)
		VALUES (:id, :business_id, :name, :description, :manager_id, :member_ids, :created_at, :updated_at)
	`, departmentRow{
		ID:          department.ID,
		BusinessID:  department.BusinessID,
		Name:        department.Name,
		Description: department.Description,
		ManagerID:   department.ManagerID,
		MemberIDs:   stringArray(department.MemberIDs),
		CreatedAt:   department.CreatedAt,
		UpdatedAt:   department.UpdatedAt,
	})
	if err != nil {
		return domain.Department{}, err
	}
	return department, nil
}

func (s *Store) UpdateDepartment(ctx context.Context, department domain.Department) (domain.Department, error) {
	department.MemberIDs = uniqueStrings(department.MemberIDs)
	department.UpdatedAt = now()
	err := s.get(ctx, &department.CreatedAt, `
		UPDATE departments
		SET name = $3, description = $4, manager_id = $5, member_ids = $6, updated_at = $7
		WHERE business_id = $1 AND id = $2
		RETURNING created_at
	`, department.BusinessID, department.ID, department.Name, department.Description, department.ManagerID,
		stringArray(department.MemberIDs), department.UpdatedAt)
	if err != nil {
		return domain.Department{}, err
	}
	department.CreatedAt = department.CreatedAt.UTC()
	return department, nil
}

func (s *Store) DeleteDepartment(ctx context.Context, businessID, id string) error {
	return s.exec(ctx, `DELETE FROM departments WHERE business_id = $1 AND id = $2`, businessID, id)
}

type customerRow struct {
	ID         string    `db:"id"`
	BusinessID string    `db:"business_id"`
	Name       string    `db:"name"`
	Email      string    `db:"email"`
	Phone      string    `db:"phone"`
	Address    string    `db:"address"`
	Notes      string    `db:"notes"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func (r customerRow) domain() domain.Customer {
	return domain.Customer{
		ID:         r.ID,
		BusinessID: r.BusinessID,
		Name:       r.Name,
		Email:      r.Email,
		Phone:      r.Phone,
		Address:    r.Address,
		Notes:      r.Notes,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
}

const customerColumns = `id, business_id, name, email, phone, address, notes, created_at, updated_at`

func (s *Store) ListCustomers(ctx context.Context, businessID string) ([]domain.Customer, error) {
	var rows []customerRow
	err := s.list(ctx, &rows, `SELECT `+customerColumns+` FROM customers WHERE business_id = $1 ORDER BY name COLLATE "C", id`, businessID)
	if err != nil {
		return nil, err
	}
	result := make([]domain.Customer, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.domain())
	}
	return result, nil
}

func (s *Store) GetCustomer(ctx context.Context, businessID, id string) (domain.Customer, error) {
	var row customerRow
	if err := s.get(ctx, &row, `SELECT `+customerColumns+` FROM customers WHERE business_id = $1 AND id = $2`, businessID, id); err != nil {
		return domain.Customer{}, err
	}
	return row.domain(), nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (domain.Customer, error) {
	customer.ID = newID()
	customer.CreatedAt = now()
	customer.UpdatedAt = customer.CreatedAt

	err := s.insert(ctx, `
		INSERT INTO customers (`+customerColumns+`)
		VALUES (:id, :business_id, :name, :email, :phone, :address, :notes, :created_at, :updated_at)
	`, customerRow{
		ID:         customer.ID,
		BusinessID: customer.BusinessID,
		Name:       customer.Name,
		Email:      customer.Email,
		Phone:      customer.Phone,
		Address:    customer.Address,
		Notes:      customer.Notes,
		CreatedAt:  customer.CreatedAt,
		UpdatedAt:  customer.UpdatedAt,
	})
	if err != nil {
		return domain.Customer{}, err
	}
	return customer, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) (domain.Customer, error) {
	customer.UpdatedAt = now()
	err := s.get(ctx, &customer.CreatedAt, `
		UPDATE customers
		SET name = $3, email = $4, phone = $5, address = $6, notes = $7, updated_at = $8
		WHERE business_id = $1 AND id = $2
		RETURNING created_at
	`, customer.BusinessID, customer.ID, customer.Name, customer.Email, customer.Phone, customer.Address,
		customer.Notes, customer.UpdatedAt)
	if err != nil {
		return domain.Customer{}, err
	}
	customer.CreatedAt = customer.CreatedAt.UTC()
	return customer, nil
}

func (s *Store) DeleteCustomer(ctx context.Context, businessID, id string) error {
	return s.exec(ctx, `DELETE FROM customers WHERE business_id = $1 AND id = $2`, businessID, id)
}

type jobRow struct {
	ID           string         `db:"id"`
	BusinessID   string         `db:"business_id"`
	CustomerID   string         `db:"customer_id"`
	Title        string         `db:"title"`
	Description  string         `db:"description"`
	DepartmentID string         `db:"department_id"`
	AssigneeIDs  pq.StringArray `db:"assignee_ids"`
	Status       string         `db:"status"`
	DueDate      string         `db:"due_date"`
	QuotedCents  int64          `db:"quoted_cents"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func (r jobRow) domain() domain.Job {
	return domain.Job{
		ID:           r.ID,
		BusinessID:   r.BusinessID,
		CustomerID:   r.CustomerID,
		Title:        r.Title,
		Description:  r.Description,
		DepartmentID: r.DepartmentID,
		AssigneeIDs:  append([]string{}, r.AssigneeIDs...),
		Status:       r.Status,
		DueDate:      r.DueDate,
		QuotedCents:  r.QuotedCents,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

const jobColumns = `id, business_id, customer_id, title, description, department_id, assignee_ids, status, due_date,
	quoted_cents, created_at, updated_at`

func (s *Store) ListJobs(ctx context.Context, businessID string) ([]domain.Job, error) {
	var rows []jobRow
	err := s.list(ctx, &rows, `SELECT `+jobColumns+` FROM jobs WHERE business_id = $1 ORDER BY created_at, id`, businessID)
	if err != nil {
		return nil, err
	}
	result := make([]domain.Job, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.domain())
	}
	return result, nil
}

func (s *Store) GetJob(ctx context.Context, businessID, id string) (domain.Job, error) {
	var row jobRow
	if err := s.get(ctx, &row, `SELECT `+jobColumns+` FROM jobs WHERE business_id = $1 AND id = $2`+s.forUpdate(), businessID, id); err != nil {
		return domain.Job{}, err
	}
	return row.domain(), nil
}

func (s *Store) CreateJob(ctx context.Context, job domain.Job) (domain.Job, error) {
	job.ID = newID()
	job.AssigneeIDs = uniqueStrings(job.AssigneeIDs)
	job.CreatedAt = now()
	job.UpdatedAt = job.CreatedAt

	err := s.insert(ctx, `
		INSERT INTO jobs (`+jobColumns+`)
		VALUES (:id, :business_id, :customer_id, :title, :description, :department_id, :assignee_ids, :status,
			:due_date, :quoted_cents, :created_at, :updated_at)
	`, jobRow{
		ID:           job.ID,
		BusinessID:   job.BusinessID,
		CustomerID:   job.CustomerID,
		Title:        job.Title,
		Description:  job.Description,
		DepartmentID: job.DepartmentID,
		AssigneeIDs:  stringArray(job.AssigneeIDs),
		Status:       job.Status,
		DueDate:      job.DueDate,
		QuotedCents:  job.QuotedCents,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
	})
	if err != nil {
		return domain.Job{}, err
	}
	return job, nil
}

func (s *Store) UpdateJob(ctx context.Context, job domain.Job) (domain.Job, error) {
	job.AssigneeIDs = uniqueStrings(job.AssigneeIDs)
	job.UpdatedAt = now()
	err := s.get(ctx, &job.CreatedAt, `
		UPDATE jobs
		SET customer_id = $3, title = $4, description = $5, department_id = $6, assignee_ids = $7,
			status = $8, due_date = $9, quoted_cents = $10, updated_at = $11
		WHERE business_id = $1 AND id = $2
		RETURNING created_at
	`, job.BusinessID, job.ID, job.CustomerID, job.Title, job.Description, job.DepartmentID,
		stringArray(job.AssigneeIDs), job.Status, job.DueDate, job.QuotedCents, job.UpdatedAt)
	if err != nil {
		return domain.Job{}, err
	}
	job.CreatedAt = job.CreatedAt.UTC()
	return job, nil
}

// DeleteJob drops the handoff history through the handoffs foreign key.
func (s *Store) DeleteJob(ctx context.Context, businessID, id string) error {
	return s.exec(ctx, `DELETE FROM jobs WHERE business_id = $1 AND id = $2`, businessID, id)
}

type handoffRow struct {
	ID               string       `db:"id"`
	BusinessID       string       `db:"business_id"`
	JobID            string       `db:"job_id"`
	FromDepartmentID string       `db:"from_department_id"`
	ToDepartmentID   string       `db:"to_department_id"`
	Status           string       `db:"status"`
	Note             string       `db:"note"`
	RequestedBy      string       `db:"requested_by"`
	DecidedBy        string       `db:"decided_by"`
	DecisionNote     string       `db:"decision_note"`
	DecidedAt        sql.NullTime `db:"decided_at"`
	CreatedAt        time.Time    `db:"created_at"`
	UpdatedAt        time.Time    `db:"updated_at"`
}

func (r handoffRow) domain() domain.Handoff {
	return domain.Handoff{
		ID:               r.ID,
		BusinessID:       r.BusinessID,
		JobID:            r.JobID,
		FromDepartmentID: r.FromDepartmentID,
		ToDepartmentID:   r.ToDepartmentID,
		Status:           r.Status,
		Note:             r.Note,
		RequestedBy:      r.RequestedBy,
		DecidedBy:        r.DecidedBy,
		DecisionNote:     r.DecisionNote,
		DecidedAt:        timePtr(r.DecidedAt),
		CreatedAt:        r.CreatedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
	}
}

const handoffColumns = `id, business_id, job_id, from_department_id, to_department_id, status, note, requested_by,
	decided_by, decision_note, decided_at, created_at, updated_at`

func (s *Store) ListHandoffs(ctx context.Context, businessID string) ([]domain.Handoff, error) {
	var rows []handoffRow
	err := s.list(ctx, &rows, `SELECT `+handoffColumns+` FROM handoffs WHERE business_id = $1 ORDER BY created_at, id`, businessID)
	if err != nil {
		return nil, err
	}
	result := make([]domain.Handoff, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.domain())
	}
	return result, nil
}

func (s *Store) GetHandoff(ctx context.Context, businessID, id string) (domain.Handoff, error) {
	var row handoffRow
	if err := s.get(ctx, &row, `SELECT `+handoffColumns+` FROM handoffs WHERE business_id = $1 AND id = $2`+s.forUpdate(), businessID, id); err != nil {
		return domain.Handoff{}, err
	}
	return row.domain(), nil
}

func (s *Store) CreateHandoff(ctx context.Context, handoff domain.Handoff) (domain.Handoff, error) {
	handoff.ID = newID()
	handoff.CreatedAt = now()
	handoff.UpdatedAt = handoff.CreatedAt

	err := s.insert(ctx, `
		INSERT INTO handoffs (`+handoffColumns+`)
		VALUES (:id, :business_id, :job_id, :from_department_id, :to_department_id, :status, :note, :requested_by,
			:decided_by, :decision_note, :decided_at, :created_at, :updated_at)
	`, handoffRow{
		ID:               handoff.ID,
		BusinessID:       handoff.BusinessID,
		JobID:            handoff.JobID,
		FromDepartmentID: handoff.FromDepartmentID,
		ToDepartmentID:   handoff.ToDepartmentID,
		Status:           handoff.Status,
		Note:             handoff.Note,
		RequestedBy:      handoff.RequestedBy,
		DecidedBy:        handoff.DecidedBy,
		DecisionNote:     handoff.DecisionNote,
		DecidedAt:        nullTime(handoff.DecidedAt),
		CreatedAt:        handoff.CreatedAt,
		UpdatedAt:        handoff.UpdatedAt,
	})
	if err != nil {
		return domain.Handoff{}, err
	}
	return handoff, nil
}

func (s *Store) UpdateHandoff(ctx context.Context, handoff domain.Handoff) (domain.Handoff, error) {
	handoff.UpdatedAt = now()
	err := s.get(ctx, &handoff.CreatedAt, `
		UPDATE handoffs
		SET status = $3, note = $4, decided_by = $5, decision_note = $6, decided_at = $7, updated_at = $8
		WHERE business_id = $1 AND id = $2
		RETURNING created_at
	`, handoff.BusinessID, handoff.ID, handoff.Status, handoff.Note, handoff.DecidedBy, handoff.DecisionNote,
		nullTime(handoff.DecidedAt), handoff.UpdatedAt)
	if err != nil {
		return domain.Handoff{}, err
	}
	handoff.CreatedAt = handoff.CreatedAt.UTC()
	return handoff, nil
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, value := range values {
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		result = append(result, value)
	}
	return result
}
