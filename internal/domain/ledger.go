package domain

import (
	"fmt"
	"sort"
	"time"
)

const (
	AccountAsset     = "asset"
	AccountLiability = "liability"
	AccountEquity    = "equity"
	AccountRevenue   = "revenue"
	AccountExpense   = "expense"
)

// System chart codes seeded for every business.
const (
	AccountCodeCash               = "1000"
	AccountCodeReceivable         = "1100"
	AccountCodeInventory          = "1200"
	AccountCodePayable            = "2000"
	AccountCodeSalesTax           = "2100"
	AccountCodeOwnerEquity        = "3000"
	AccountCodeOpeningEquity      = "3100"
	AccountCodeSalesRevenue       = "4000"
	AccountCodeServiceRevenue     = "4100"
	AccountCodeCostOfGoods        = "5000"
	AccountCodeInventoryShrinkage = "5100"
)

const (
	SourceManual          = "manual"
	SourceSale            = "sale"
	SourceSaleVoid        = "sale_void"
	SourceInvoice         = "invoice"
	SourceInvoicePayment  = "invoice_payment"
	SourceInvoiceVoid     = "invoice_void"
	SourceStockAdjustment = "stock_adjustment"
	SourceOpeningBalance  = "opening_balance"
	SourceReversal        = "reversal"
)

type Account struct {
	ID         string    `json:"id"`
	BusinessID string    `json:"business_id"`
	Code       string    `json:"code" validate:"required,numeric,min=3,max=10"`
	Name       string    `json:"name" validate:"required,max=120"`
	Type       string    `json:"type" validate:"required,oneof=asset liability equity revenue expense"`
	System     bool      `json:"system"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type JournalLine struct {
	AccountID   string `json:"account_id" validate:"required"`
	DebitCents  int64  `json:"debit_cents" validate:"gte=0"`
	CreditCents int64  `json:"credit_cents" validate:"gte=0"`
	Memo        string `json:"memo,omitempty" validate:"max=300"`
}

type JournalEntry struct {
	ID           string        `json:"id"`
	BusinessID   string        `json:"business_id"`
	EntryDate    string        `json:"entry_date" validate:"required,ymd"`
	Memo         string        `json:"memo,omitempty" validate:"max=500"`
	Source       string        `json:"source"`
	SourceID     string        `json:"source_id,omitempty"`
	CreatedBy    string        `json:"created_by"`
	ReversesID   string        `json:"reverses_id,omitempty"`
	ReversedByID string        `json:"reversed_by_id,omitempty"`
	Lines        []JournalLine `json:"lines" validate:"required,min=2,dive"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Totals sums both sides of the entry.
func (e JournalEntry) Totals() (debit, credit int64) {
	for _, line := range e.Lines {
		debit += line.DebitCents
		credit += line.CreditCents
	}
	return debit, credit
}

type ReverseRequest struct {
	Date string `json:"date" validate:"required,ymd"`
	Memo string `json:"memo,omitempty" validate:"max=500"`
}

type LedgerLine struct {
	EntryID      string `json:"entry_id"`
	EntryDate    string `json:"entry_date"`
	Memo         string `json:"memo,omitempty"`
	Source       string `json:"source"`
	DebitCents   int64  `json:"debit_cents"`
	CreditCents  int64  `json:"credit_cents"`
	BalanceCents int64  `json:"balance_cents"`
}

type AccountLedger struct {
	Account      Account      `json:"account"`
	From         string       `json:"from,omitempty"`
	To           string       `json:"to,omitempty"`
	OpeningCents int64        `json:"opening_cents"`
	ClosingCents int64        `json:"closing_cents"`
	Lines        []LedgerLine `json:"lines"`
}

type TrialBalanceRow struct {
	AccountID    string `json:"account_id"`
	Code         string `json:"code"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	DebitCents   int64  `json:"debit_cents"`
	CreditCents  int64  `json:"credit_cents"`
	BalanceCents int64  `json:"balance_cents"`
}

type TrialBalance struct {
	AsOf             string            `json:"as_of,omitempty"`
	Rows             []TrialBalanceRow `json:"rows"`
	TotalDebitCents  int64             `json:"total_debit_cents"`
	TotalCreditCents int64             `json:"total_credit_cents"`
	Balanced         bool              `json:"balanced"`
}

const (
	OpeningInventory   = "inventory"
	OpeningReceivables = "receivables"
	OpeningCash        = "cash"
	OpeningSalesTax    = "sales_tax"
)

type OpeningBalanceLine struct {
	Kind        string `json:"kind"`
	AmountCents int64  `json:"amount_cents"`
	EntryID     string `json:"entry_id,omitempty"`
	Skipped     bool   `json:"skipped,omitempty"`
}

type OpeningBalanceResult struct {
	BusinessID       string               `json:"business_id"`
	EntryDate        string               `json:"entry_date"`
	Entries          []OpeningBalanceLine `json:"entries"`
	TotalDebitCents  int64                `json:"total_debit_cents"`
	TotalCreditCents int64                `json:"total_credit_cents"`
	Balanced         bool                 `json:"balanced"`
}

type LedgerVerification struct {
	BusinessID         string   `json:"business_id"`
	EntryCount         int      `json:"entry_count"`
	TotalDebitCents    int64    `json:"total_debit_cents"`
	TotalCreditCents   int64    `json:"total_credit_cents"`
	Balanced           bool     `json:"balanced"`
	UnbalancedEntryIDs []string `json:"unbalanced_entry_ids"`
}

// SystemAccounts is the chart seeded when a business is created.
func SystemAccounts() []Account {
	return []Account{
		{Code: AccountCodeCash, Name: "Cash on Hand", Type: AccountAsset, System: true},
		{Code: AccountCodeReceivable, Name: "Accounts Receivable", Type: AccountAsset, System: true},
		{Code: AccountCodeInventory, Name: "Inventory", Type: AccountAsset, System: true},
		{Code: AccountCodePayable, Name: "Accounts Payable", Type: AccountLiability, System: true},
		{Code: AccountCodeSalesTax, Name: "Sales Tax Payable", Type: AccountLiability, System: true},
		{Code: AccountCodeOwnerEquity, Name: "Owner's Equity", Type: AccountEquity, System: true},
		{Code: AccountCodeOpeningEquity, Name: "Opening Balance Equity", Type: AccountEquity, System: true},
		{Code: AccountCodeSalesRevenue, Name: "Sales Revenue", Type: AccountRevenue, System: true},
		{Code: AccountCodeServiceRevenue, Name: "Service Revenue", Type: AccountRevenue, System: true},
		{Code: AccountCodeCostOfGoods, Name: "Cost of Goods Sold", Type: AccountExpense, System: true},
		{Code: AccountCodeInventoryShrinkage, Name: "Inventory Shrinkage", Type: AccountExpense, System: true},
	}
}

// DebitNormal reports whether the account type grows with debits.
func DebitNormal(accountType string) bool {
	return accountType == AccountAsset || accountType == AccountExpense
}

// NormalBalance expresses a debit/credit pair on the account's normal side.
func NormalBalance(accountType string, debit, credit int64) int64 {
	if DebitNormal(accountType) {
		return debit - credit
	}
	return credit - debit
}

func Debit(accountID string, cents int64, memo string) JournalLine {
	return JournalLine{AccountID: accountID, DebitCents: cents, Memo: memo}
}

func Credit(accountID string, cents int64, memo string) JournalLine {
	return JournalLine{AccountID: accountID, CreditCents: cents, Memo: memo}
}

// CompactLines drops lines with nothing on either side.
func CompactLines(lines ...JournalLine) []JournalLine {
	out := make([]JournalLine, 0, len(lines))
	for _, line := range lines {
		if line.DebitCents == 0 && line.CreditCents == 0 {
			continue
		}
		out = append(out, line)
	}
	return out
}

// ReversalLines swaps the sides of every line.
func ReversalLines(lines []JournalLine) []JournalLine {
	out := make([]JournalLine, 0, len(lines))
	for _, line := range lines {
		out = append(out, JournalLine{
			AccountID:   line.AccountID,
			DebitCents:  line.CreditCents,
			CreditCents: line.DebitCents,
			Memo:        line.Memo,
		})
	}
	return out
}

// ValidateJournalEntry checks the schema, that each line carries exactly one
// positive side, and that the entry balances.
func ValidateJournalEntry(entry JournalEntry) error {
	if err := Validate(entry); err != nil {
		return err
	}

	result := &ValidationError{}
	for idx, line := range entry.Lines {
		if (line.DebitCents > 0) == (line.CreditCents > 0) {
			result.Add(fmt.Sprintf("lines[%d]", idx), "must have exactly one of debit_cents or credit_cents")
		}
	}
	if err := result.Err(); err != nil {
		return err
	}

	debit, credit := entry.Totals()
	if debit != credit || debit == 0 {
		return fmt.Errorf("debits %d, credits %d: %w", debit, credit, ErrUnbalanced)
	}
	return nil
}

// SortEntries orders entries by date, then creation time, then id.
func SortEntries(entries []JournalEntry) []JournalEntry {
	sorted := append([]JournalEntry{}, entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].EntryDate != sorted[j].EntryDate {
			return sorted[i].EntryDate < sorted[j].EntryDate
		}
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}

// BuildTrialBalance totals every account over entries dated on or before
// asOf. An empty asOf includes all entries.
func BuildTrialBalance(accounts []Account, entries []JournalEntry, asOf string) TrialBalance {
	type totals struct{ debit, credit int64 }
	byAccount := make(map[string]*totals, len(accounts))
	for _, account := range accounts {
		byAccount[account.ID] = &totals{}
	}

	for _, entry := range entries {
		if asOf != "" && entry.EntryDate > asOf {
			continue
		}
		for _, line := range entry.Lines {
			accountTotals, ok := byAccount[line.AccountID]
			if !ok {
				continue
			}
			accountTotals.debit += line.DebitCents
			accountTotals.credit += line.CreditCents
		}
	}

	ordered := append([]Account{}, accounts...)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Code == ordered[j].Code {
			return ordered[i].ID < ordered[j].ID
		}
		return ordered[i].Code < ordered[j].Code
	})

	report := TrialBalance{AsOf: asOf, Rows: make([]TrialBalanceRow, 0, len(ordered))}
	for _, account := range ordered {
		accountTotals := byAccount[account.ID]
		report.Rows = append(report.Rows, TrialBalanceRow{
			AccountID:    account.ID,
			Code:         account.Code,
			Name:         account.Name,
			Type:         account.Type,
			DebitCents:   accountTotals.debit,
			CreditCents:  accountTotals.credit,
			BalanceCents: NormalBalance(account.Type, accountTotals.debit, accountTotals.credit),
		})
		report.TotalDebitCents += accountTotals.debit
		report.TotalCreditCents += accountTotals.credit
	}
	report.Balanced = report.TotalDebitCents == report.TotalCreditCents
	return report
}

// BuildAccountLedger lists the account's lines dated within [from, to] with a
// running balance. Lines before from roll into the opening balance.
func BuildAccountLedger(account Account, entries []JournalEntry, from, to string) AccountLedger {
	ledger := AccountLedger{Account: account, From: from, To: to, Lines: make([]LedgerLine, 0)}
	balance := int64(0)

	for _, entry := range SortEntries(entries) {
		if to != "" && entry.EntryDate > to {
			continue
		}
		for _, line := range entry.Lines {
			if line.AccountID != account.ID {
				continue
			}
			balance += NormalBalance(account.Type, line.DebitCents, line.CreditCents)
			if from != "" && entry.EntryDate < from {
				ledger.OpeningCents = balance
				continue
			}
			memo := line.Memo
			if memo == "" {
				memo = entry.Memo
			}
			ledger.Lines = append(ledger.Lines, LedgerLine{
				EntryID:      entry.ID,
				EntryDate:    entry.EntryDate,
				Memo:         memo,
				Source:       entry.Source,
				DebitCents:   line.DebitCents,
				CreditCents:  line.CreditCents,
				BalanceCents: balance,
			})
		}
	}

	ledger.ClosingCents = balance
	return ledger
}

// VerifyEntries checks every entry's own balance and the grand totals.
func VerifyEntries(businessID string, entries []JournalEntry) LedgerVerification {
	report := LedgerVerification{BusinessID: businessID, EntryCount: len(entries), UnbalancedEntryIDs: make([]string, 0)}
	for _, entry := range entries {
		debit, credit := entry.Totals()
		report.TotalDebitCents += debit
		report.TotalCreditCents += credit
		if debit != credit || debit == 0 {
			report.UnbalancedEntryIDs = append(report.UnbalancedEntryIDs, entry.ID)
		}
	}
	sort.Strings(report.UnbalancedEntryIDs)
	report.Balanced = report.TotalDebitCents == report.TotalCreditCents && len(report.UnbalancedEntryIDs) == 0
	return report
}
