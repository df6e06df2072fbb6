package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type FixedAsset struct {
	ID           int             `gorm:"primary_key" json:"id"`
	Name         string          `gorm:"size:100;not null" json:"name"`
	Cost         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"cost"`
	SalvageValue decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"salvage_value"`
	// Straight-line life in months.
	UsefulLifeMonths        int             `gorm:"not null" json:"useful_life_months"`
	AcquiredAt              time.Time       `gorm:"not null" json:"acquired_at"`
	AccumulatedDepreciation decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"accumulated_depreciation"`
	LastDepreciatedAt       *time.Time      `json:"last_depreciated_at"`
	AssetAccountId          int             `gorm:"index;not null" json:"asset_account_id"`
	AccumulatedAccountId    int             `gorm:"index;not null" json:"accumulated_account_id"`
	ExpenseAccountId        int             `gorm:"index;not null" json:"expense_account_id"`
	IsActive                *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt               time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt               time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (a *FixedAsset) GetId() int {
	return a.ID
}

// DepreciableBase is cost minus salvage; accumulated depreciation never
// exceeds it.
func (a *FixedAsset) DepreciableBase() decimal.Decimal {
	return a.Cost.Sub(a.SalvageValue)
}

func (a *FixedAsset) BookValue() decimal.Decimal {
	return a.Cost.Sub(a.AccumulatedDepreciation)
}

func (a *FixedAsset) RemainingDepreciation() decimal.Decimal {
	remaining := a.DepreciableBase().Sub(a.AccumulatedDepreciation)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// MonthlyDepreciation is the straight-line allocation per month, at the
// ledger's 4 decimal places.
func (a *FixedAsset) MonthlyDepreciation() decimal.Decimal {
	if a.UsefulLifeMonths <= 0 {
		return decimal.Zero
	}
	return a.DepreciableBase().Div(decimal.NewFromInt(int64(a.UsefulLifeMonths))).Round(4)
}

// depreciationStart is the date the next allocation period begins.
func (a *FixedAsset) depreciationStart() time.Time {
	if a.LastDepreciatedAt != nil {
		return *a.LastDepreciatedAt
	}
	return a.AcquiredAt
}

// PeriodDepreciation computes the allocation for the whole months elapsed
// between the last depreciation (or acquisition) and periodEnd, capped so
// accumulated depreciation never exceeds cost minus salvage. Returns zero
// for a fully depreciated asset or when no full month has elapsed.
func (a *FixedAsset) PeriodDepreciation(periodEnd time.Time) decimal.Decimal {
	months := wholeMonthsBetween(a.depreciationStart(), periodEnd)
	if months <= 0 {
		return decimal.Zero
	}
	amount := a.MonthlyDepreciation().Mul(decimal.NewFromInt(int64(months)))
	remaining := a.RemainingDepreciation()
	if amount.GreaterThan(remaining) {
		return remaining
	}
	return amount
}

func wholeMonthsBetween(start, end time.Time) int {
	if !end.After(start) {
		return 0
	}
	months := (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month())
	if end.Day() < start.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}
