package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/ledger_engine/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ReverseJournalEntry creates a mirror entry that negates the original.
//
// Design:
// - Posted entries are never deleted.
// - A reversal entry (is_reversal=true) is inserted with every line's
//   debit/credit swapped, and the original is marked
//   reversed_by_entry_id=<reversal>, leaving net balances equal to the
//   pre-posting state.
// - An entry that does not exist or was already reversed fails with
//   ErrNotFound; there is no idempotent re-reversal.
func ReverseJournalEntry(ctx context.Context, logger *logrus.Logger, entryId int, reason string) (*models.JournalEntry, error) {
	var reversal *models.JournalEntry

	err := runPostingTx(ctx, logger, "journal", func(tx *gorm.DB) error {
		var original models.JournalEntry
		if err := tx.Preload("Lines").First(&original, entryId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("journal entry %d: %w", entryId, models.ErrNotFound)
			}
			return err
		}
		if original.ReversedByEntryId != nil && *original.ReversedByEntryId > 0 {
			return fmt.Errorf("journal entry %d already reversed: %w", entryId, models.ErrNotFound)
		}

		mirror, err := mirrorEntryRequest(tx, &original, reason)
		if err != nil {
			return err
		}
		posted, err := postEntryTx(tx, ctx, mirror, true, &original.ID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if err := tx.Model(&models.JournalEntry{}).
			Where("id = ?", original.ID).
			Updates(map[string]interface{}{
				"reversed_by_entry_id": posted.ID,
				"reversed_at":          &now,
			}).Error; err != nil {
			return err
		}
		reversal = posted
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reversal, nil
}

// mirrorEntryRequest builds the swapped-side entry request for a reversal.
func mirrorEntryRequest(tx *gorm.DB, original *models.JournalEntry, reason string) (*models.NewJournalEntry, error) {
	description := "Reversal of " + original.EntryNumber
	if reason != "" {
		description += ": " + reason
	}

	mirror := &models.NewJournalEntry{
		EntryDate:     original.EntryDate,
		Description:   description,
		ReferenceType: original.ReferenceType,
		ReferenceId:   original.ReferenceId,
	}
	for _, line := range original.Lines {
		var account models.Account
		if err := tx.First(&account, line.AccountId).Error; err != nil {
			return nil, err
		}
		mirror.Lines = append(mirror.Lines, models.NewJournalLine{
			AccountCode: account.Code,
			Description: line.Description,
			Debit:       line.Credit,
			Credit:      line.Debit,
		})
	}
	return mirror, nil
}
