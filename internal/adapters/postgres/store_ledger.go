package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"bizzytrack/backend/internal/domain"
)

type accountRow struct {
	ID         string    `db:"id"`
	BusinessID string    `db:"business_id"`
	Code       string    `db:"code"`
	Name       string    `db:"name"`
	Type       string    `db:"type"`
	System     bool      `db:"system"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func (r accountRow) domain() domain.Account {
	return domain.Account{
		ID:         r.ID,
		BusinessID: r.BusinessID,
		Code:       r.Code,
		Name:       r.Name,
		Type:       r.Type,
		System:     r.System,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
}

const accountColumns = `id, business_id, code, name, type, system, created_at, updated_at`

func (s *Store) ListAccounts(ctx context.Context, businessID string) ([]domain.Account, error) {
	var rows []accountRow
	err := s.list(ctx, &rows, `SELECT `+accountColumns+` FROM accounts WHERE business_id = $1 ORDER BY code COLLATE "C", id`, businessID)
	if err != nil {
		return nil, err
	}
	result := make([]domain.Account, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.domain())
	}
	return result, nil
}

func (s *Store) GetAccount(ctx context.Context, businessID, id string) (domain.Account, error) {
	var row accountRow
	if err := s.get(ctx, &row, `SELECT `+accountColumns+` FROM accounts WHERE business_id = $1 AND id = $2`, businessID, id); err != nil {
		return domain.Account{}, err
	}
	return row.domain(), nil
}

func (s *Store) GetAccountByCode(ctx context.Context, businessID, code string) (domain.Account, error) {
	var row accountRow
	if err := s.get(ctx, &row, `SELECT `+accountColumns+` FROM accounts WHERE business_id = $1 AND code = $2`, businessID, code); err != nil {
		return domain.Account{}, err
	}
	return row.domain(), nil
}

func (s *Store) CreateAccount(ctx context.Context, account domain.Account) (domain.Account, error) {
	account.ID = newID()
	account.CreatedAt = now()
	account.UpdatedAt = account.CreatedAt

	err := s.insert(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (:id, :business_id, :code, :name, :type, :system, :created_at, :updated_at)
	`, accountRow{
		ID:         account.ID,
		BusinessID: account.BusinessID,
		Code:       account.Code,
		Name:       account.Name,
		Type:       account.Type,
		System:     account.System,
		CreatedAt:  account.CreatedAt,
		UpdatedAt:  account.UpdatedAt,
	})
	if err != nil {
		return domain.Account{}, err
	}
	return account, nil
}

// UpdateAccount keeps the system flag of the stored account.
func (s *Store) UpdateAccount(ctx context.Context, account domain.Account) (domain.Account, error) {
	account.UpdatedAt = now()
	var kept struct {
		System    bool      `db:"system"`
		CreatedAt time.Time `db:"created_at"`
	}
	err := s.get(ctx, &kept, `
		UPDATE accounts
		SET code = $3, name = $4, type = $5, updated_at = $6
		WHERE business_id = $1 AND id = $2
		RETURNING system, created_at
	`, account.BusinessID, account.ID, account.Code, account.Name, account.Type, account.UpdatedAt)
	if err != nil {
		return domain.Account{}, err
	}
	account.System = kept.System
	account.CreatedAt = kept.CreatedAt.UTC()
	return account, nil
}

func (s *Store) DeleteAccount(ctx context.Context, businessID, id string) error {
	return s.exec(ctx, `DELETE FROM accounts WHERE business_id = $1 AND id = $2`, businessID, id)
}

type journalEntryRow struct {
	ID           string                      `db:"id"`
	BusinessID   string                      `db:"business_id"`
	EntryDate    string                      `db:"entry_date"`
	Memo         string                      `db:"memo"`
	Source       string                      `db:"source"`
	SourceID     string                      `db:"source_id"`
	CreatedBy    string                      `db:"created_by"`
	ReversesID   string                      `db:"reverses_id"`
	ReversedByID string                      `db:"reversed_by_id"`
	Lines        jsonb[[]domain.JournalLine] `db:"lines"`
	CreatedAt    time.Time                   `db:"created_at"`
}

func (r journalEntryRow) domain() domain.JournalEntry {
	return domain.JournalEntry{
		ID:           r.ID,
		BusinessID:   r.BusinessID,
		EntryDate:    r.EntryDate,
		Memo:         r.Memo,
		Source:       r.Source,
		SourceID:     r.SourceID,
		CreatedBy:    r.CreatedBy,
		ReversesID:   r.ReversesID,
		ReversedByID: r.ReversedByID,
		Lines:        r.Lines.V,
		CreatedAt:    r.CreatedAt.UTC(),
	}
}

const journalEntryColumns = `id, business_id, entry_date, memo, source, source_id, created_by, reverses_id, reversed_by_id,
	lines, created_at`

func (s *Store) ListJournalEntries(ctx context.Context, businessID string) ([]domain.JournalEntry, error) {
	var rows []journalEntryRow
	err := s.list(ctx, &rows, `
		SELECT `+journalEntryColumns+` FROM journal_entries
		WHERE business_id = $1
		ORDER BY entry_date, created_at, id
	`, businessID)
	if err != nil {
		return nil, err
	}
	result := make([]domain.JournalEntry, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.domain())
	}
	return domain.SortEntries(result), nil
}

func (s *Store) GetJournalEntry(ctx context.Context, businessID, id string) (domain.JournalEntry, error) {
	var row journalEntryRow
	if err := s.get(ctx, &row, `SELECT `+journalEntryColumns+` FROM journal_entries WHERE business_id = $1 AND id = $2`+s.forUpdate(), businessID, id); err != nil {
		return domain.JournalEntry{}, err
	}
	return row.domain(), nil
}

// CreateJournalEntry rejects lines that reference accounts of another
// business. Balance is the caller's concern.
func (s *Store) CreateJournalEntry(ctx context.Context, entry domain.JournalEntry) (domain.JournalEntry, error) {
	accountIDs := uniqueStrings(lineAccountIDs(entry.Lines))
	var known []string
	err := s.list(ctx, &known, `SELECT id FROM accounts WHERE business_id = $1 AND id = ANY($2)`,
		entry.BusinessID, pq.StringArray(accountIDs))
	if err != nil {
		return domain.JournalEntry{}, err
	}
	if missing := firstMissing(accountIDs, known); missing != "" {
		return domain.JournalEntry{}, fmt.Errorf("account %s: %w", missing, domain.ErrNotFound)
	}

	entry.ID = newID()
	entry.CreatedAt = now()
	err = s.insert(ctx, `
		INSERT INTO journal_entries (`+journalEntryColumns+`)
		VALUES (:id, :business_id, :entry_date, :memo, :source, :source_id, :created_by, :reverses_id,
			:reversed_by_id, :lines, :created_at)
	`, journalEntryRow{
		ID:           entry.ID,
		BusinessID:   entry.BusinessID,
		EntryDate:    entry.EntryDate,
		Memo:         entry.Memo,
		Source:       entry.Source,
		SourceID:     entry.SourceID,
		CreatedBy:    entry.CreatedBy,
		ReversesID:   entry.ReversesID,
		ReversedByID: entry.ReversedByID,
		Lines:        jsonb[[]domain.JournalLine]{V: entry.Lines},
		CreatedAt:    entry.CreatedAt,
	})
	if err != nil {
		return domain.JournalEntry{}, err
	}
	return entry, nil
}

// MarkJournalEntryReversed is the only change a posted entry accepts.
func (s *Store) MarkJournalEntryReversed(ctx context.Context, businessID, id, reversedByID string) error {
	err := s.exec(ctx, `
		UPDATE journal_entries SET reversed_by_id = $3
		WHERE business_id = $1 AND id = $2 AND reversed_by_id = ''
	`, businessID, id, reversedByID)
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	var current string
	if err := s.get(ctx, &current, `SELECT reversed_by_id FROM journal_entries WHERE business_id = $1 AND id = $2`, businessID, id); err != nil {
		return err
	}
	return fmt.Errorf("journal entry %s already reversed: %w", id, domain.ErrConflict)
}

func lineAccountIDs(lines []domain.JournalLine) []string {
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.AccountID)
	}
	return ids
}

func firstMissing(want, have []string) string {
	present := make(map[string]struct{}, len(have))
	for _, id := range have {
		present[id] = struct{}{}
	}
	for _, id := range want {
		if _, ok := present[id]; !ok {
			return id
		}
	}
	return ""
}
