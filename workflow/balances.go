package workflow

import (
	"context"
	"errors"

	"github.com/mmdatafocus/ledger_engine/config"
	"github.com/mmdatafocus/ledger_engine/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// signedDelta converts a line's debit/credit into a signed balance delta:
// a debit increases a debit-normal account and decreases a credit-normal
// one, symmetric for credit.
func signedDelta(normal models.NormalBalance, debit, credit decimal.Decimal) decimal.Decimal {
	delta := debit.Sub(credit)
	if normal == models.NormalBalanceCredit {
		return delta.Neg()
	}
	return delta
}

// applyBalanceDelta updates the leaf's cached balance and applies the same
// delta to every ancestor group account, so a group balance always equals
// the signed sum of its descendant leaf set without a recomputation scan.
// Ancestors come from the materialized path, not a tree walk.
func applyBalanceDelta(tx *gorm.DB, account *models.Account, delta decimal.Decimal) error {
	if delta.IsZero() {
		return nil
	}
	ids := append(account.AncestorIds(), account.ID)
	return tx.Model(&models.Account{}).Where("id IN ?", ids).
		UpdateColumn("current_balance", gorm.Expr("current_balance + ?", delta)).Error
}

// BalanceOf returns the current cached balance of the account.
func BalanceOf(ctx context.Context, code string) (decimal.Decimal, error) {
	db := config.GetDB()
	var account models.Account
	if err := db.WithContext(ctx).Where("code = ?", code).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, models.UnknownAccountError{AccountCode: code}
		}
		return decimal.Zero, err
	}
	return account.CurrentBalance, nil
}

// BalanceDrift reports a leaf whose cached balance disagreed with the
// posted-line history at recompute time.
type BalanceDrift struct {
	AccountCode string          `json:"account_code"`
	Cached      decimal.Decimal `json:"cached"`
	Recomputed  decimal.Decimal `json:"recomputed"`
}

// RecomputeAccountBalance recomputes leaf balances from the full posted-line
// history and reconciles ancestors by applying the drift. For a group
// account every descendant leaf is recomputed. Maintenance operation, not
// the hot path.
func RecomputeAccountBalance(ctx context.Context, logger *logrus.Logger, code string) ([]BalanceDrift, error) {
	var drifts []BalanceDrift

	err := runPostingTx(ctx, logger, "journal", func(tx *gorm.DB) error {
		account, err := models.ResolveAccountTx(tx, code)
		if err != nil {
			return err
		}
		leafIds, err := models.FindAccountDescendantLeafIds(tx, account)
		if err != nil {
			return err
		}

		for _, leafId := range leafIds {
			var leaf models.Account
			if err := tx.First(&leaf, leafId).Error; err != nil {
				return err
			}

			var sums struct {
				TotalDebit  decimal.Decimal
				TotalCredit decimal.Decimal
			}
			if err := tx.Model(&models.JournalLine{}).
				Select("COALESCE(SUM(debit), 0) AS total_debit, COALESCE(SUM(credit), 0) AS total_credit").
				Where("account_id = ?", leafId).
				Scan(&sums).Error; err != nil {
				return err
			}

			recomputed := signedDelta(leaf.NormalBalance, sums.TotalDebit, sums.TotalCredit)
			drift := recomputed.Sub(leaf.CurrentBalance)
			if drift.IsZero() {
				continue
			}

			logger.WithFields(logrus.Fields{
				"account":    leaf.Code,
				"cached":     leaf.CurrentBalance,
				"recomputed": recomputed,
			}).Warn("balance drift detected; reconciling")

			if err := applyBalanceDelta(tx, &leaf, drift); err != nil {
				return err
			}
			drifts = append(drifts, BalanceDrift{
				AccountCode: leaf.Code,
				Cached:      leaf.CurrentBalance,
				Recomputed:  recomputed,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return drifts, nil
}
