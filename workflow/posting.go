package workflow

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mmdatafocus/ledger_engine/models"
	"github.com/mmdatafocus/ledger_engine/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// PostJournalEntry validates and posts a multi-line entry as one atomic
// unit: either all lines persist and every affected balance updates, or
// nothing does.
//
// Validation order:
//  1. every account code resolves to an existing leaf account
//  2. every line has exactly one positive side
//  3. sum(debit) == sum(credit) exactly
func PostJournalEntry(ctx context.Context, logger *logrus.Logger, input *models.NewJournalEntry) (*models.JournalEntry, error) {
	var entry *models.JournalEntry

	err := runPostingTx(ctx, logger, "journal", func(tx *gorm.DB) error {
		posted, err := postEntryTx(tx, ctx, input, false, nil)
		if err != nil {
			return err
		}
		entry = posted
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// postEntryTx does the actual posting inside an open transaction. Shared by
// PostJournalEntry and ReverseJournalEntry.
func postEntryTx(tx *gorm.DB, ctx context.Context, input *models.NewJournalEntry, isReversal bool, reversesEntryId *int) (*models.JournalEntry, error) {
	if len(input.Lines) == 0 {
		return nil, models.InvalidLineError{Reason: "entry has no lines"}
	}

	lines := make([]models.JournalLine, 0, len(input.Lines))
	accounts := make([]*models.Account, 0, len(input.Lines))
	for _, l := range input.Lines {
		account, err := models.ResolveAccountTx(tx, l.AccountCode)
		if err != nil {
			return nil, err
		}
		if account.IsGroup != nil && *account.IsGroup {
			return nil, models.GroupAccountPostingError{AccountCode: l.AccountCode}
		}
		accounts = append(accounts, account)
		lines = append(lines, models.JournalLine{
			AccountId:   account.ID,
			Description: l.Description,
			Debit:       l.Debit,
			Credit:      l.Credit,
		})
	}

	if err := models.ValidateLineAmounts(input.Lines); err != nil {
		return nil, err
	}
	if err := models.ValidateEntryBalanced(input.Lines); err != nil {
		return nil, err
	}
	totalDebit, totalCredit := models.EntryTotals(input.Lines)

	seqNo, err := nextEntrySequence(tx)
	if err != nil {
		return nil, err
	}
	correlationId, ok := utils.GetCorrelationIdFromContext(ctx)
	if !ok || correlationId == "" {
		correlationId = uuid.NewString()
	}
	referenceType := input.ReferenceType
	if referenceType == "" {
		referenceType = models.ReferenceTypeJournal
	}

	entry := models.JournalEntry{
		EntryNumber:     fmt.Sprintf("JE-%d", seqNo),
		EntryDate:       input.EntryDate,
		Description:     input.Description,
		ReferenceType:   referenceType,
		ReferenceId:     input.ReferenceId,
		TotalDebit:      totalDebit,
		TotalCredit:     totalCredit,
		IsReversal:      isReversal,
		ReversesEntryId: reversesEntryId,
		CorrelationId:   correlationId,
		Lines:           lines,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, err
	}

	for i, l := range input.Lines {
		delta := signedDelta(accounts[i].NormalBalance, l.Debit, l.Credit)
		if err := applyBalanceDelta(tx, accounts[i], delta); err != nil {
			return nil, err
		}
	}
	return &entry, nil
}

// nextEntrySequence allocates under the journal posting lock. The lock is
// released just before commit, so a second poster can still read a stale
// MAX(id) in that window; the unique index on entry_number rejects the
// collision and runPostingTx retries it.
func nextEntrySequence(tx *gorm.DB) (int64, error) {
	var seqNo int64
	err := tx.Model(&models.JournalEntry{}).
		Select("COALESCE(MAX(id), 0) + 1").
		Scan(&seqNo).Error
	return seqNo, err
}

// GetJournalEntry loads an entry with its lines.
func GetJournalEntry(ctx context.Context, id int) (*models.JournalEntry, error) {
	entry, err := utils.FetchModel[models.JournalEntry](ctx, id, "Lines")
	if err != nil {
		return nil, fmt.Errorf("journal entry %d: %w", id, models.ErrNotFound)
	}
	return entry, nil
}
