package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/mmdatafocus/ledger_engine/config"
	"github.com/mmdatafocus/ledger_engine/models"
	"github.com/mmdatafocus/ledger_engine/utils"
	"github.com/sirupsen/logrus"
)

// RunDepreciationPeriod posts the straight-line depreciation entry for the
// asset through periodEnd: debit the expense account, credit the
// accumulated depreciation account. The amount covers the whole months
// elapsed since the last run (or acquisition), capped so accumulated
// depreciation never exceeds cost minus salvage. A fully depreciated asset
// or a period with no full month elapsed is a no-op returning nil.
//
// The entry goes through the normal posting path, so every depreciation
// charge gets the same validation and balance propagation as a manual one.
func RunDepreciationPeriod(ctx context.Context, logger *logrus.Logger, assetId int, periodEnd time.Time) (*models.JournalEntry, error) {
	asset, err := utils.FetchModel[models.FixedAsset](ctx, assetId)
	if err != nil {
		return nil, fmt.Errorf("fixed asset %d: %w", assetId, models.ErrNotFound)
	}

	amount := asset.PeriodDepreciation(periodEnd)
	if amount.IsZero() {
		return nil, nil
	}

	db := config.GetDB().WithContext(ctx)
	var expense, accumulated models.Account
	if err := db.First(&expense, asset.ExpenseAccountId).Error; err != nil {
		return nil, fmt.Errorf("expense account %d: %w", asset.ExpenseAccountId, models.ErrNotFound)
	}
	if err := db.First(&accumulated, asset.AccumulatedAccountId).Error; err != nil {
		return nil, fmt.Errorf("accumulated account %d: %w", asset.AccumulatedAccountId, models.ErrNotFound)
	}

	input := &models.NewJournalEntry{
		EntryDate:     periodEnd,
		Description:   fmt.Sprintf("Depreciation: %s through %s", asset.Name, periodEnd.Format("2006-01-02")),
		ReferenceType: models.ReferenceTypeFixedAsset,
		ReferenceId:   asset.ID,
		Lines: []models.NewJournalLine{
			{AccountCode: expense.Code, Debit: amount},
			{AccountCode: accumulated.Code, Credit: amount},
		},
	}
	entry, err := PostJournalEntry(ctx, logger, input)
	if err != nil {
		return nil, err
	}

	// Optimistic check against a concurrent run for the same asset. The
	// posting above is append only, so a lost race leaves a reversible
	// duplicate entry rather than corrupted balances.
	result := db.Model(&models.FixedAsset{}).
		Where("id = ? AND accumulated_depreciation = ?", asset.ID, asset.AccumulatedDepreciation).
		Updates(map[string]interface{}{
			"accumulated_depreciation": asset.AccumulatedDepreciation.Add(amount),
			"last_depreciated_at":      periodEnd,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		if _, revErr := ReverseJournalEntry(ctx, logger, entry.ID, "concurrent depreciation run"); revErr != nil {
			config.LogError(logger, "depreciation.go", "RunDepreciationPeriod", "reversal", entry.ID, revErr)
		}
		return nil, fmt.Errorf("%w (asset=%d): depreciation state changed during run", models.ErrConcurrentModification, asset.ID)
	}

	logger.WithFields(logrus.Fields{
		"asset":      asset.ID,
		"amount":     amount,
		"period_end": periodEnd.Format("2006-01-02"),
		"entry":      entry.EntryNumber,
	}).Info("depreciation posted")
	return entry, nil
}
