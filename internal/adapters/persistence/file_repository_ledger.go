package persistence

import (
	"context"
	"fmt"
	"time"

	"bizzytrack/backend/internal/domain"
)

func (r *FileRepository) ListAccounts(ctx context.Context, businessID string) ([]domain.Account, error) {
	defer r.rlock(ctx)()

	result := make([]domain.Account, 0)
	for _, account := range r.state.Accounts {
		if account.BusinessID == businessID {
			result = append(result, account)
		}
	}
	sortByName(result, func(a domain.Account) string { return a.Code }, func(a domain.Account) string { return a.ID })
	return result, nil
}

func (r *FileRepository) GetAccount(ctx context.Context, businessID, id string) (domain.Account, error) {
	defer r.rlock(ctx)()

	account, ok := r.state.Accounts[id]
	if !ok || account.BusinessID != businessID {
		return domain.Account{}, domain.ErrNotFound
	}
	return account, nil
}

func (r *FileRepository) GetAccountByCode(ctx context.Context, businessID, code string) (domain.Account, error) {
	defer r.rlock(ctx)()

	for _, account := range r.state.Accounts {
		if account.BusinessID == businessID && account.Code == code {
			return account, nil
		}
	}
	return domain.Account{}, domain.ErrNotFound
}

func (r *FileRepository) codeTakenLocked(businessID, code, exceptID string) bool {
	for id, account := range r.state.Accounts {
		if id != exceptID && account.BusinessID == businessID && account.Code == code {
			return true
		}
	}
	return false
}

func (r *FileRepository) CreateAccount(ctx context.Context, account domain.Account) (domain.Account, error) {
	defer r.lock(ctx)()

	if r.codeTakenLocked(account.BusinessID, account.Code, "") {
		return domain.Account{}, fmt.Errorf("account code %s already exists: %w", account.Code, domain.ErrConflict)
	}

	now := time.Now().UTC()
	account.ID = r.nextIDLocked("acct")
	account.CreatedAt = now
	account.UpdatedAt = now
	r.state.Accounts[account.ID] = account

	if err := r.commitLocked(ctx); err != nil {
		return domain.Account{}, err
	}
	return account, nil
}

func (r *FileRepository) UpdateAccount(ctx context.Context, account domain.Account) (domain.Account, error) {
	defer r.lock(ctx)()

	current, ok := r.state.Accounts[account.ID]
	if !ok || current.BusinessID != account.BusinessID {
		return domain.Account{}, domain.ErrNotFound
	}
	if r.codeTakenLocked(account.BusinessID, account.Code, account.ID) {
		return domain.Account{}, fmt.Errorf("account code %s already exists: %w", account.Code, domain.ErrConflict)
	}

	account.System = current.System
	account.CreatedAt = current.CreatedAt
	account.UpdatedAt = time.Now().UTC()
	r.state.Accounts[account.ID] = account

	if err := r.commitLocked(ctx); err != nil {
		return domain.Account{}, err
	}
	return account, nil
}

func (r *FileRepository) DeleteAccount(ctx context.Context, businessID, id string) error {
	defer r.lock(ctx)()

	account, ok := r.state.Accounts[id]
	if !ok || account.BusinessID != businessID {
		return domain.ErrNotFound
	}
	delete(r.state.Accounts, id)
	return r.commitLocked(ctx)
}

func (r *FileRepository) ListJournalEntries(ctx context.Context, businessID string) ([]domain.JournalEntry, error) {
	defer r.rlock(ctx)()

	result := make([]domain.JournalEntry, 0)
	for _, entry := range r.state.JournalEntries {
		if entry.BusinessID == businessID {
			result = append(result, copyJournalEntry(entry))
		}
	}
	return domain.SortEntries(result), nil
}

func (r *FileRepository) GetJournalEntry(ctx context.Context, businessID, id string) (domain.JournalEntry, error) {
	defer r.rlock(ctx)()

	entry, ok := r.state.JournalEntries[id]
	if !ok || entry.BusinessID != businessID {
		return domain.JournalEntry{}, domain.ErrNotFound
	}
	return copyJournalEntry(entry), nil
}

func (r *FileRepository) CreateJournalEntry(ctx context.Context, entry domain.JournalEntry) (domain.JournalEntry, error) {
	defer r.lock(ctx)()

	for _, line := range entry.Lines {
		account, ok := r.state.Accounts[line.AccountID]
		if !ok || account.BusinessID != entry.BusinessID {
			return domain.JournalEntry{}, fmt.Errorf("account %s: %w", line.AccountID, domain.ErrNotFound)
		}
	}

	entry.ID = r.nextIDLocked("je")
	entry.CreatedAt = time.Now().UTC()
	r.state.JournalEntries[entry.ID] = copyJournalEntry(entry)

	if err := r.commitLocked(ctx); err != nil {
		return domain.JournalEntry{}, err
	}
	return entry, nil
}

// MarkJournalEntryReversed is the only change a posted entry accepts.
func (r *FileRepository) MarkJournalEntryReversed(ctx context.Context, businessID, id, reversedByID string) error {
	defer r.lock(ctx)()

	entry, ok := r.state.JournalEntries[id]
	if !ok || entry.BusinessID != businessID {
		return domain.ErrNotFound
	}
	if entry.ReversedByID != "" {
		return fmt.Errorf("journal entry %s already reversed: %w", id, domain.ErrConflict)
	}
	entry.ReversedByID = reversedByID
	r.state.JournalEntries[id] = entry
	return r.commitLocked(ctx)
}
