package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type JournalEntry struct {
	ID            int             `gorm:"primary_key" json:"id"`
	EntryNumber   string          `gorm:"size:255;not null;uniqueIndex" json:"entry_number"`
	EntryDate     time.Time       `gorm:"index;not null" json:"entry_date"`
	Description   string          `gorm:"type:text" json:"description"`
	ReferenceType ReferenceType   `gorm:"type:enum('JN','IV','BL','PM','OB','IVA','FA','RP');default:'JN';index:idx_je_ref,priority:1" json:"reference_type"`
	ReferenceId   int             `gorm:"index:idx_je_ref,priority:2" json:"reference_id"`
	TotalDebit    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_debit"`
	TotalCredit   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_credit"`
	// Ledger immutability & reversals (append-only):
	// posted entries are never deleted; changes are made by inserting a
	// reversal entry and linking the pair.
	IsReversal        bool          `gorm:"not null;default:false;index" json:"is_reversal"`
	ReversesEntryId   *int          `gorm:"index" json:"reverses_entry_id"`
	ReversedByEntryId *int          `gorm:"index" json:"reversed_by_entry_id"`
	ReversedAt        *time.Time    `gorm:"index" json:"reversed_at"`
	CorrelationId     string        `gorm:"size:64;index" json:"correlation_id"`
	Lines             []JournalLine `gorm:"foreignKey:EntryId" json:"lines"`
	CreatedAt         time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

type JournalLine struct {
	ID          int             `gorm:"primary_key" json:"id"`
	EntryId     int             `gorm:"index;not null" json:"entry_id"`
	AccountId   int             `gorm:"index;not null" json:"account_id"`
	Description string          `gorm:"size:255" json:"description"`
	Debit       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"debit"`
	Credit      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"credit"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewJournalEntry struct {
	EntryDate     time.Time        `json:"entry_date"`
	Description   string           `json:"description"`
	ReferenceType ReferenceType    `json:"reference_type"`
	ReferenceId   int              `json:"reference_id"`
	Lines         []NewJournalLine `json:"lines"`
}

type NewJournalLine struct {
	AccountCode string          `json:"account_code"`
	Description string          `json:"description"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
}

func (j *JournalEntry) GetId() int {
	return j.ID
}

// Ledger immutability guardrails:
// - journal_lines are append-only (no updates/deletes).
// - journal_entries must never be deleted; limited updates are allowed only
//   for reversal linkage fields.

func (l *JournalLine) BeforeUpdate(tx *gorm.DB) error {
	return errors.New("immutable ledger: journal_lines cannot be updated")
}

func (l *JournalLine) BeforeDelete(tx *gorm.DB) error {
	return errors.New("immutable ledger: journal_lines cannot be deleted")
}

func (j *JournalEntry) BeforeDelete(tx *gorm.DB) error {
	return errors.New("immutable ledger: journal_entries cannot be deleted")
}

func (j *JournalEntry) BeforeUpdate(tx *gorm.DB) error {
	// Allow only reversal linkage fields to be updated.
	allowed := map[string]bool{
		"ReversedByEntryId": true,
		"ReversedAt":        true,
		"UpdatedAt":         true,
	}
	if tx == nil || tx.Statement == nil || tx.Statement.Schema == nil {
		return nil
	}
	for _, f := range tx.Statement.Schema.Fields {
		if tx.Statement.Changed(f.Name) && !allowed[f.Name] {
			return errors.New("immutable ledger: only reversal linkage fields may be updated on journal_entries")
		}
	}
	return nil
}

// ValidateLineAmounts checks each line carries exactly one positive side.
func ValidateLineAmounts(lines []NewJournalLine) error {
	if len(lines) == 0 {
		return InvalidLineError{Reason: "entry has no lines"}
	}
	for _, l := range lines {
		if l.Debit.IsNegative() {
			return InvalidQuantityError{Field: "debit", Value: l.Debit}
		}
		if l.Credit.IsNegative() {
			return InvalidQuantityError{Field: "credit", Value: l.Credit}
		}
		hasDebit := l.Debit.IsPositive()
		hasCredit := l.Credit.IsPositive()
		if hasDebit == hasCredit {
			return InvalidLineError{AccountCode: l.AccountCode, Reason: "line must have exactly one of debit or credit"}
		}
	}
	return nil
}

// EntryTotals sums the debit and credit sides of the requested lines.
func EntryTotals(lines []NewJournalLine) (decimal.Decimal, decimal.Decimal) {
	totalDebit := decimal.Zero
	totalCredit := decimal.Zero
	for _, l := range lines {
		totalDebit = totalDebit.Add(l.Debit)
		totalCredit = totalCredit.Add(l.Credit)
	}
	return totalDebit, totalCredit
}

// ValidateEntryBalanced enforces sum(debit) == sum(credit), tolerance zero.
func ValidateEntryBalanced(lines []NewJournalLine) error {
	totalDebit, totalCredit := EntryTotals(lines)
	if !totalDebit.Equal(totalCredit) {
		return UnbalancedEntryError{TotalDebit: totalDebit, TotalCredit: totalCredit}
	}
	return nil
}
