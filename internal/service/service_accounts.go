package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bizzytrack/backend/internal/domain"
	"bizzytrack/backend/internal/ports"
)

func (s *Service) ListAccounts(ctx context.Context, auth ports.AuthContext) ([]domain.Account, error) {
	businessID, err := tenantScope(auth, anyRole...)
	if err != nil {
		return nil, err
	}
	return s.repo.ListAccounts(ctx, businessID)
}

func (s *Service) GetAccount(ctx context.Context, auth ports.AuthContext, accountID string) (domain.Account, error) {
	businessID, err := tenantScope(auth, anyRole...)
	if err != nil {
		return domain.Account{}, err
	}
	return s.repo.GetAccount(ctx, businessID, accountID)
}

func (s *Service) CreateAccount(ctx context.Context, auth ports.AuthContext, input domain.Account) (domain.Account, error) {
	businessID, err := tenantScope(auth, managerRoles...)
	if err != nil {
		return domain.Account{}, err
	}
	input.Code = strings.TrimSpace(input.Code)
	input.Name = strings.TrimSpace(input.Name)
	if err := domain.Validate(input); err != nil {
		return domain.Account{}, err
	}

	created, err := s.repo.CreateAccount(ctx, domain.Account{
		BusinessID: businessID,
		Code:       input.Code,
		Name:       input.Name,
		Type:       input.Type,
	})
	if err != nil {
		return domain.Account{}, err
	}

	s.telemetry.Record("account.created", map[string]string{"account_id": created.ID, "code": created.Code})
	return created, nil
}

// UpdateAccount only renames system accounts.
func (s *Service) UpdateAccount(ctx context.Context, auth ports.AuthContext, accountID string, input domain.Account) (domain.Account, error) {
	businessID, err := tenantScope(auth, managerRoles...)
	if err != nil {
		return domain.Account{}, err
	}
	input.Code = strings.TrimSpace(input.Code)
	input.Name = strings.TrimSpace(input.Name)
	if err := domain.Validate(input); err != nil {
		return domain.Account{}, err
	}

	account, err := s.repo.GetAccount(ctx, businessID, accountID)
	if err != nil {
		return domain.Account{}, err
	}
	if account.System {
		result := &domain.ValidationError{}
		if input.Code != account.Code {
			result.Add("code", "cannot change on a system account")
		}
		if input.Type != account.Type {
			result.Add("type", "cannot change on a system account")
		}
		if err := result.Err(); err != nil {
			return domain.Account{}, err
		}
	}
	account.Code = input.Code
	account.Name = input.Name
	account.Type = input.Type

	updated, err := s.repo.UpdateAccount(ctx, account)
	if err != nil {
		return domain.Account{}, err
	}

	s.telemetry.Record("account.updated", map[string]string{"account_id": updated.ID})
	return updated, nil
}

func (s *Service) DeleteAccount(ctx context.Context, auth ports.AuthContext, accountID string) error {
	businessID, err := tenantScope(auth, managerRoles...)
	if err != nil {
		return err
	}

	err = s.repo.Atomic(ctx, func(ctx context.Context, tx ports.Repository) error {
		account, err := tx.GetAccount(ctx, businessID, accountID)
		if err != nil {
			return err
		}
		if account.System {
			return fmt.Errorf("account %s is a system account: %w", account.Code, domain.ErrConflict)
		}
		entries, err := tx.ListJournalEntries(ctx, businessID)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			for _, line := range entry.Lines {
				if line.AccountID == accountID {
					return fmt.Errorf("account %s has journal lines: %w", account.Code, domain.ErrConflict)
				}
			}
		}
		return tx.DeleteAccount(ctx, businessID, accountID)
	})
	if err != nil {
		return err
	}

	s.telemetry.Record("account.deleted", map[string]string{"account_id": accountID})
	return nil
}

func (s *Service) ListJournalEntries(ctx context.Context, auth ports.AuthContext) ([]domain.JournalEntry, error) {
	businessID, err := tenantScope(auth, anyRole...)
	if err != nil {
		return nil, err
	}
	return s.repo.ListJournalEntries(ctx, businessID)
}

func (s *Service) GetJournalEntry(ctx context.Context, auth ports.AuthContext, entryID string) (domain.JournalEntry, error) {
	businessID, err := tenantScope(auth, anyRole...)
	if err != nil {
		return domain.JournalEntry{}, err
	}
	return s.repo.GetJournalEntry(ctx, businessID, entryID)
}

// PostJournalEntry records a balanced manual entry.
func (s *Service) PostJournalEntry(ctx context.Context, auth ports.AuthContext, input domain.JournalEntry) (domain.JournalEntry, error) {
	businessID, err := tenantScope(auth, managerRoles...)
	if err != nil {
		return domain.JournalEntry{}, err
	}
	if err := domain.ValidateJournalEntry(input); err != nil {
		return domain.JournalEntry{}, err
	}

	var posted domain.JournalEntry
	err = s.atomicLedger(ctx, func(ctx context.Context, tx ports.Repository, unit *ledgerUnit) error {
		for idx, line := range input.Lines {
			if _, err := tx.GetAccount(ctx, businessID, line.AccountID); err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					return domain.NewFieldError(lineField(idx, "account_id"), "must reference an account of this business")
				}
				return err
			}
		}
		var err error
		posted, err = unit.post(ctx, tx, domain.JournalEntry{
			BusinessID: businessID,
			EntryDate:  input.EntryDate,
			Memo:       strings.TrimSpace(input.Memo),
			Source:     domain.SourceManual,
			CreatedBy:  auth.UserID,
			Lines:      input.Lines,
		})
		return err
	})
	if err != nil {
		return domain.JournalEntry{}, err
	}
	return posted, nil
}

// ReverseJournalEntry posts the mirror of a manual or opening entry. Entries
// owned by sales and invoices are reversed through their documents.
func (s *Service) ReverseJournalEntry(ctx context.Context, auth ports.AuthContext, entryID string, input domain.ReverseRequest) (domain.JournalEntry, error) {
	businessID, err := tenantScope(auth, managerRoles...)
	if err != nil {
		return domain.JournalEntry{}, err
	}
	if err := domain.Validate(input); err != nil {
		return domain.JournalEntry{}, err
	}

	var reversal domain.JournalEntry
	err = s.atomicLedger(ctx, func(ctx context.Context, tx ports.Repository, unit *ledgerUnit) error {
		original, err := tx.GetJournalEntry(ctx, businessID, entryID)
		if err != nil {
			return err
		}
		if original.ReversedByID != "" {
			return fmt.Errorf("journal entry already reversed by %s: %w", original.ReversedByID, domain.ErrConflict)
		}
		if original.Source != domain.SourceManual && original.Source != domain.SourceOpeningBalance {
			return fmt.Errorf("%s entries are reversed through their source document: %w", original.Source, domain.ErrConflict)
		}
		reversal, err = unit.reverse(ctx, tx, original, input.Date, input.Memo, auth.UserID, domain.SourceReversal)
		return err
	})
	if err != nil {
		return domain.JournalEntry{}, err
	}

	s.telemetry.Record("journal.reversed", map[string]string{"entry_id": entryID, "reversal_id": reversal.ID})
	return reversal, nil
}

func (s *Service) AccountLedger(ctx context.Context, auth ports.AuthContext, accountID, from, to string) (domain.AccountLedger, error) {
	businessID, err := tenantScope(auth, anyRole...)
	if err != nil {
		return domain.AccountLedger{}, err
	}
	if err := validateDateRange(from, to); err != nil {
		return domain.AccountLedger{}, err
	}

	account, err := s.repo.GetAccount(ctx, businessID, accountID)
	if err != nil {
		return domain.AccountLedger{}, err
	}
	entries, err := s.repo.ListJournalEntries(ctx, businessID)
	if err != nil {
		return domain.AccountLedger{}, err
	}
	return domain.BuildAccountLedger(account, entries, from, to), nil
}

// chart maps system account codes to account ids of one business.
type chart map[string]string

func loadChart(ctx context.Context, repo ports.Repository, businessID string) (chart, error) {
	accounts, err := repo.ListAccounts(ctx, businessID)
	if err != nil {
		return nil, err
	}
	codes := chart{}
	for _, account := range accounts {
		codes[account.Code] = account.ID
	}
	for _, system := range domain.SystemAccounts() {
		if codes[system.Code] == "" {
			return nil, fmt.Errorf("system account %s missing: %w", system.Code, domain.ErrConflict)
		}
	}
	return codes, nil
}

func (c chart) id(code string) string {
	return c[code]
}

// ledgerUnit collects the journal entries posted inside one atomic unit.
// Their telemetry is recorded only after the unit commits.
type ledgerUnit struct {
	posted []domain.JournalEntry
}

// atomicLedger runs fn as one atomic unit. Every attempt starts with an empty
// ledgerUnit, so a rerun unit never reports postings twice.
func (s *Service) atomicLedger(ctx context.Context, fn func(ctx context.Context, tx ports.Repository, unit *ledgerUnit) error) error {
	var unit *ledgerUnit
	err := s.repo.Atomic(ctx, func(ctx context.Context, tx ports.Repository) error {
		unit = &ledgerUnit{}
		return fn(ctx, tx, unit)
	})
	if err != nil {
		return err
	}
	for _, entry := range unit.posted {
		s.telemetry.Record("journal.posted", map[string]string{"entry_id": entry.ID, "source": entry.Source})
	}
	return nil
}

func (u *ledgerUnit) post(ctx context.Context, tx ports.Repository, entry domain.JournalEntry) (domain.JournalEntry, error) {
	if err := domain.ValidateJournalEntry(entry); err != nil {
		return domain.JournalEntry{}, err
	}
	posted, err := tx.CreateJournalEntry(ctx, entry)
	if err != nil {
		return domain.JournalEntry{}, err
	}
	u.posted = append(u.posted, posted)
	return posted, nil
}

func (u *ledgerUnit) reverse(ctx context.Context, tx ports.Repository, original domain.JournalEntry, date, memo, userID, source string) (domain.JournalEntry, error) {
	if strings.TrimSpace(memo) == "" {
		memo = "Reversal of " + original.ID
	}
	reversal, err := u.post(ctx, tx, domain.JournalEntry{
		BusinessID: original.BusinessID,
		EntryDate:  date,
		Memo:       strings.TrimSpace(memo),
		Source:     source,
		SourceID:   original.SourceID,
		CreatedBy:  userID,
		ReversesID: original.ID,
		Lines:      domain.ReversalLines(original.Lines),
	})
	if err != nil {
		return domain.JournalEntry{}, err
	}
	if err := tx.MarkJournalEntryReversed(ctx, original.BusinessID, original.ID, reversal.ID); err != nil {
		return domain.JournalEntry{}, err
	}
	return reversal, nil
}

// localToday is the current date in the business timezone.
func (s *Service) localToday(business domain.Business) string {
	return s.now().In(business.Location()).Format(domain.DateLayout)
}
