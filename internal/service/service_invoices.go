package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"bizzytrack/backend/internal/domain"
	"bizzytrack/backend/internal/ports"
)

const invoiceNumberPrefix = "INV-"

func (s *Service) ListInvoices(ctx context.Context, auth ports.AuthContext) ([]domain.Invoice, error) {
	businessID, err := tenantScope(auth, anyRole...)
	if err != nil {
		return nil, err
	}
	return s.repo.ListInvoices(ctx, businessID)
}

func (s *Service) GetInvoice(ctx context.Context, auth ports.AuthContext, invoiceID string) (domain.Invoice, error) {
	businessID, err := tenantScope(auth, anyRole...)
	if err != nil {
		return domain.Invoice{}, err
	}
	return s.repo.GetInvoice(ctx, businessID, invoiceID)
}

// CreateInvoice stores a draft under the next number of the business.
func (s *Service) CreateInvoice(ctx context.Context, auth ports.AuthContext, input domain.Invoice) (domain.Invoice, error) {
	businessID, err := tenantScope(auth, managerRoles...)
	if err != nil {
		return domain.Invoice{}, err
	}
	input = normalizeInvoice(input)
	if err := s.validateInvoice(ctx, businessID, input); err != nil {
		return domain.Invoice{}, err
	}
	business, err := s.repo.GetBusiness(ctx, businessID)
	if err != nil {
		return domain.Invoice{}, err
	}

	var created domain.Invoice
	err = s.repo.Atomic(ctx, func(ctx context.Context, tx ports.Repository) error {
		existing, err := tx.ListInvoices(ctx, businessID)
		if err != nil {
			return err
		}
		draft := domain.Invoice{
			BusinessID: businessID,
			Number:     nextInvoiceNumber(existing),
			CustomerID: input.CustomerID,
			JobID:      input.JobID,
			Lines:      input.Lines,
			Notes:      input.Notes,
			DueDate:    input.DueDate,
			Status:     domain.InvoiceDraft,
		}
		created, err = tx.CreateInvoice(ctx, priceInvoice(draft, business.TaxRatePct))
		return err
	})
	if err != nil {
		return domain.Invoice{}, err
	}

	s.telemetry.Record("invoice.created", map[string]string{"invoice_id": created.ID, "number": created.Number})
	return created, nil
}

func (s *Service) UpdateInvoice(ctx context.Context, auth ports.AuthContext, invoiceID string, input domain.Invoice) (domain.Invoice, error) {
	businessID, err := tenantScope(auth, managerRoles...)
	if err != nil {
		return domain.Invoice{}, err
	}
	input = normalizeInvoice(input)
	if err := s.validateInvoice(ctx, businessID, input); err != nil {
		return domain.Invoice{}, err
	}
	business, err := s.repo.GetBusiness(ctx, businessID)
	if err != nil {
		return domain.Invoice{}, err
	}

	var updated domain.Invoice
	err = s.repo.Atomic(ctx, func(ctx context.Context, tx ports.Repository) error {
		invoice, err := tx.GetInvoice(ctx, businessID, invoiceID)
		if err != nil {
			return err
		}
		if invoice.Status != domain.InvoiceDraft {
			return fmt.Errorf("invoice %s is %s: %w", invoice.Number, invoice.Status, domain.ErrConflict)
		}
		invoice.CustomerID = input.CustomerID
		invoice.JobID = input.JobID
		invoice.Lines = input.Lines
		invoice.Notes = input.Notes
		invoice.DueDate = input.DueDate

		updated, err = tx.UpdateInvoice(ctx, priceInvoice(invoice, business.TaxRatePct))
		return err
	})
	if err != nil {
		return domain.Invoice{}, err
	}

	s.telemetry.Record("invoice.updated", map[string]string{"invoice_id": updated.ID})
	return updated, nil
}

func (s *Service) DeleteInvoice(ctx context.Context, auth ports.AuthContext, invoiceID string) error {
	businessID, err := tenantScope(auth, managerRoles...)
	if err != nil {
		return err
	}

	err = s.repo.Atomic(ctx, func(ctx context.Context, tx ports.Repository) error {
		invoice, err := tx.GetInvoice(ctx, businessID, invoiceID)
		if err != nil {
			return err
		}
		if invoice.Status != domain.InvoiceDraft {
			return fmt.Errorf("invoice %s is %s: %w", invoice.Number, invoice.Status, domain.ErrConflict)
		}
		return tx.DeleteInvoice(ctx, businessID, invoiceID)
	})
	if err != nil {
		return err
	}

	s.telemetry.Record("invoice.deleted", map[string]string{"invoice_id": invoiceID})
	return nil
}

// IssueInvoice moves a draft to issued and books the receivable.
func (s *Service) IssueInvoice(ctx context.Context, auth ports.AuthContext, invoiceID string, input domain.IssueInvoiceRequest) (domain.Invoice, error) {
	businessID, err := tenantScope(auth, managerRoles...)
	if err != nil {
		return domain.Invoice{}, err
	}
	if err := domain.Validate(input); err != nil {
		return domain.Invoice{}, err
	}

	var issued domain.Invoice
	err = s.atomicLedger(ctx, func(ctx context.Context, tx ports.Repository, unit *ledgerUnit) error {
		invoice, err := tx.GetInvoice(ctx, businessID, invoiceID)
		if err != nil {
			return err
		}
		if invoice.Status != domain.InvoiceDraft {
			return fmt.Errorf("invoice %s is %s: %w", invoice.Number, invoice.Status, domain.ErrConflict)
		}
		if invoice.TotalCents <= 0 {
			return domain.NewFieldError("lines", "must total more than zero before issuing")
		}
		if input.DueDate != "" {
			invoice.DueDate = input.DueDate
		}
		if invoice.DueDate != "" && invoice.DueDate < input.IssueDate {
			return domain.NewFieldError("due_date", "must not be before issue_date")
		}

		codes, err := loadChart(ctx, tx, businessID)
		if err != nil {
			return err
		}
		entry, err := unit.post(ctx, tx, domain.JournalEntry{
			BusinessID: businessID,
			EntryDate:  input.IssueDate,
			Memo:       "Invoice " + invoice.Number,
			Source:     domain.SourceInvoice,
			SourceID:   invoice.ID,
			CreatedBy:  auth.UserID,
			Lines: domain.CompactLines(
				domain.Debit(codes.id(domain.AccountCodeReceivable), invoice.TotalCents, ""),
				domain.Credit(codes.id(domain.AccountCodeServiceRevenue), invoice.SubtotalCents, ""),
				domain.Credit(codes.id(domain.AccountCodeSalesTax), invoice.TaxCents, ""),
			),
		})
		if err != nil {
			return err
		}

		invoice.Status = domain.InvoiceIssued
		invoice.IssueDate = input.IssueDate
		invoice.IssueEntryID = entry.ID
		issued, err = tx.UpdateInvoice(ctx, invoice)
		return err
	})
	if err != nil {
		return domain.Invoice{}, err
	}

	s.telemetry.Record("invoice.issued", map[string]string{"invoice_id": issued.ID, "number": issued.Number})
	return issued, nil
}

// RecordInvoicePayment books cash against the receivable. The invoice is paid
// once nothing is outstanding.
func (s *Service) RecordInvoicePayment(ctx context.Context, auth ports.AuthContext, invoiceID string, input domain.InvoicePaymentRequest) (domain.Invoice, error) {
	businessID, err := tenantScope(auth, managerRoles...)
	if err != nil {
		return domain.Invoice{}, err
	}
	if err := domain.Validate(input); err != nil {
		return domain.Invoice{}, err
	}

	var updated domain.Invoice
	err = s.atomicLedger(ctx, func(ctx context.Context, tx ports.Repository, unit *ledgerUnit) error {
		invoice, err := tx.GetInvoice(ctx, businessID, invoiceID)
		if err != nil {
			return err
		}
		if invoice.Status != domain.InvoiceIssued {
			return fmt.Errorf("invoice %s is %s: %w", invoice.Number, invoice.Status, domain.ErrConflict)
		}
		if input.AmountCents > invoice.OutstandingCents() {
			return domain.NewFieldError("amount_cents", fmt.Sprintf("must not exceed the outstanding %d", invoice.OutstandingCents()))
		}

		codes, err := loadChart(ctx, tx, businessID)
		if err != nil {
			return err
		}
		entry, err := unit.post(ctx, tx, domain.JournalEntry{
			BusinessID: businessID,
			EntryDate:  input.Date,
			Memo:       "Payment on invoice " + invoice.Number,
			Source:     domain.SourceInvoicePayment,
			SourceID:   invoice.ID,
			CreatedBy:  auth.UserID,
			Lines: []domain.JournalLine{
				domain.Debit(codes.id(domain.AccountCodeCash), input.AmountCents, ""),
				domain.Credit(codes.id(domain.AccountCodeReceivable), input.AmountCents, ""),
			},
		})
		if err != nil {
			return err
		}

		invoice.PaidCents += input.AmountCents
		invoice.PaymentEntryIDs = append(invoice.PaymentEntryIDs, entry.ID)
		if invoice.OutstandingCents() == 0 {
			invoice.Status = domain.InvoicePaid
		}
		updated, err = tx.UpdateInvoice(ctx, invoice)
		return err
	})
	if err != nil {
		return domain.Invoice{}, err
	}

	s.telemetry.Record("invoice.payment_recorded", map[string]string{"invoice_id": updated.ID, "status": updated.Status})
	return updated, nil
}

// VoidInvoice reverses the issue entry of an unpaid invoice.
func (s *Service) VoidInvoice(ctx context.Context, auth ports.AuthContext, invoiceID string) (domain.Invoice, error) {
	businessID, err := tenantScope(auth, managerRoles...)
	if err != nil {
		return domain.Invoice{}, err
	}
	business, err := s.repo.GetBusiness(ctx, businessID)
	if err != nil {
		return domain.Invoice{}, err
	}

	var voided domain.Invoice
	err = s.atomicLedger(ctx, func(ctx context.Context, tx ports.Repository, unit *ledgerUnit) error {
		invoice, err := tx.GetInvoice(ctx, businessID, invoiceID)
		if err != nil {
			return err
		}
		if invoice.Status != domain.InvoiceIssued {
			return fmt.Errorf("invoice %s is %s: %w", invoice.Number, invoice.Status, domain.ErrConflict)
		}
		if invoice.PaidCents > 0 {
			return fmt.Errorf("invoice %s has payments: %w", invoice.Number, domain.ErrConflict)
		}

		original, err := tx.GetJournalEntry(ctx, businessID, invoice.IssueEntryID)
		if err != nil {
			return err
		}
		reversal, err := unit.reverse(ctx, tx, original, s.localToday(business), "Void of invoice "+invoice.Number, auth.UserID, domain.SourceInvoiceVoid)
		if err != nil {
			return err
		}

		invoice.Status = domain.InvoiceVoid
		invoice.VoidEntryID = reversal.ID
		voided, err = tx.UpdateInvoice(ctx, invoice)
		return err
	})
	if err != nil {
		return domain.Invoice{}, err
	}

	s.telemetry.Record("invoice.voided", map[string]string{"invoice_id": voided.ID})
	return voided, nil
}

func (s *Service) validateInvoice(ctx context.Context, businessID string, invoice domain.Invoice) error {
	if err := domain.Validate(invoice); err != nil {
		return err
	}
	if _, err := s.repo.GetCustomer(ctx, businessID, invoice.CustomerID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NewFieldError("customer_id", "must reference a customer of this business")
		}
		return err
	}
	if invoice.JobID == "" {
		return nil
	}
	job, err := s.repo.GetJob(ctx, businessID, invoice.JobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NewFieldError("job_id", "must reference a job of this business")
		}
		return err
	}
	if job.CustomerID != invoice.CustomerID {
		return domain.NewFieldError("job_id", "must belong to the invoiced customer")
	}
	return nil
}

// priceInvoice fills line totals, the subtotal, tax and total.
func priceInvoice(invoice domain.Invoice, taxRatePct float64) domain.Invoice {
	var subtotal int64
	for idx := range invoice.Lines {
		invoice.Lines[idx].LineTotalCents = invoice.Lines[idx].Quantity * invoice.Lines[idx].UnitPriceCents
		subtotal += invoice.Lines[idx].LineTotalCents
	}
	invoice.SubtotalCents = subtotal
	invoice.TaxCents = domain.TaxCents(subtotal, taxRatePct)
	invoice.TotalCents = subtotal + invoice.TaxCents
	return invoice
}

func nextInvoiceNumber(existing []domain.Invoice) string {
	highest := 0
	for _, invoice := range existing {
		value, err := strconv.Atoi(strings.TrimPrefix(invoice.Number, invoiceNumberPrefix))
		if err == nil && value > highest {
			highest = value
		}
	}
	return fmt.Sprintf("%s%06d", invoiceNumberPrefix, highest+1)
}
