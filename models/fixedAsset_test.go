package models_test

import (
	"testing"
	"time"

	"github.com/mmdatafocus/ledger_engine/models"
)

func TestMonthlyDepreciation(t *testing.T) {
	asset := models.FixedAsset{
		Cost:             d("12000"),
		SalvageValue:     d("0"),
		UsefulLifeMonths: 60,
	}
	if got := asset.MonthlyDepreciation(); !got.Equal(d("200")) {
		t.Fatalf("monthly = %s, want 200", got)
	}

	withSalvage := models.FixedAsset{
		Cost:             d("12000"),
		SalvageValue:     d("1200"),
		UsefulLifeMonths: 36,
	}
	if got := withSalvage.MonthlyDepreciation(); !got.Equal(d("300")) {
		t.Fatalf("monthly with salvage = %s, want 300", got)
	}

	zeroLife := models.FixedAsset{Cost: d("12000"), UsefulLifeMonths: 0}
	if got := zeroLife.MonthlyDepreciation(); !got.IsZero() {
		t.Fatalf("zero life monthly = %s, want 0", got)
	}
}

func TestPeriodDepreciation(t *testing.T) {
	acquired := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	asset := models.FixedAsset{
		Cost:             d("12000"),
		SalvageValue:     d("0"),
		UsefulLifeMonths: 60,
		AcquiredAt:       acquired,
	}

	// Not a full month yet.
	if got := asset.PeriodDepreciation(time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)); !got.IsZero() {
		t.Fatalf("partial month = %s, want 0", got)
	}

	// Three whole months.
	if got := asset.PeriodDepreciation(time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)); !got.Equal(d("600")) {
		t.Fatalf("three months = %s, want 600", got)
	}

	// Continues from the last depreciated date, not acquisition.
	last := time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)
	asset.LastDepreciatedAt = &last
	asset.AccumulatedDepreciation = d("600")
	if got := asset.PeriodDepreciation(time.Date(2026, 5, 15, 0, 0, 0, 0, time.UTC)); !got.Equal(d("200")) {
		t.Fatalf("one further month = %s, want 200", got)
	}
}

func TestPeriodDepreciationCapsAtRemaining(t *testing.T) {
	acquired := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	asset := models.FixedAsset{
		Cost:                    d("1000"),
		SalvageValue:            d("100"),
		UsefulLifeMonths:        12,
		AcquiredAt:              acquired,
		AccumulatedDepreciation: d("825"),
	}
	// Monthly is 75; many months elapsed, but only 75 remains of the 900 base.
	if got := asset.PeriodDepreciation(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)); !got.Equal(d("75")) {
		t.Fatalf("capped amount = %s, want 75", got)
	}

	asset.AccumulatedDepreciation = d("900")
	if got := asset.PeriodDepreciation(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)); !got.IsZero() {
		t.Fatalf("fully depreciated amount = %s, want 0", got)
	}
}
