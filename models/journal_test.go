package models_test

import (
	"errors"
	"testing"

	"github.com/mmdatafocus/ledger_engine/models"
	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestValidateLineAmounts(t *testing.T) {
	valid := []models.NewJournalLine{
		{AccountCode: "1000", Debit: d("100")},
		{AccountCode: "4000", Credit: d("100")},
	}
	if err := models.ValidateLineAmounts(valid); err != nil {
		t.Fatalf("valid lines rejected: %v", err)
	}

	if err := models.ValidateLineAmounts(nil); err == nil {
		t.Fatal("empty line set accepted")
	}

	bothSides := []models.NewJournalLine{
		{AccountCode: "1000", Debit: d("50"), Credit: d("50")},
	}
	var lineErr models.InvalidLineError
	if err := models.ValidateLineAmounts(bothSides); !errors.As(err, &lineErr) {
		t.Fatalf("expected InvalidLineError for both sides set, got %v", err)
	}
	if lineErr.AccountCode != "1000" {
		t.Fatalf("expected account code 1000 in error, got %q", lineErr.AccountCode)
	}

	neitherSide := []models.NewJournalLine{
		{AccountCode: "1000"},
	}
	if err := models.ValidateLineAmounts(neitherSide); !errors.As(err, &lineErr) {
		t.Fatalf("expected InvalidLineError for zero line, got %v", err)
	}

	negative := []models.NewJournalLine{
		{AccountCode: "1000", Debit: d("-10")},
	}
	var qtyErr models.InvalidQuantityError
	if err := models.ValidateLineAmounts(negative); !errors.As(err, &qtyErr) {
		t.Fatalf("expected InvalidQuantityError for negative debit, got %v", err)
	}
}

func TestValidateEntryBalanced(t *testing.T) {
	balanced := []models.NewJournalLine{
		{AccountCode: "1000", Debit: d("70.5")},
		{AccountCode: "1100", Debit: d("29.5")},
		{AccountCode: "4000", Credit: d("100")},
	}
	if err := models.ValidateEntryBalanced(balanced); err != nil {
		t.Fatalf("balanced entry rejected: %v", err)
	}

	unbalanced := []models.NewJournalLine{
		{AccountCode: "1000", Debit: d("100")},
		{AccountCode: "4000", Credit: d("99.9999")},
	}
	var balErr models.UnbalancedEntryError
	if err := models.ValidateEntryBalanced(unbalanced); !errors.As(err, &balErr) {
		t.Fatalf("expected UnbalancedEntryError, got %v", err)
	}
	if !balErr.TotalDebit.Equal(d("100")) || !balErr.TotalCredit.Equal(d("99.9999")) {
		t.Fatalf("unexpected totals in error: %v", balErr)
	}
}

func TestEntryTotals(t *testing.T) {
	lines := []models.NewJournalLine{
		{AccountCode: "1000", Debit: d("12.25")},
		{AccountCode: "1100", Debit: d("7.75")},
		{AccountCode: "2000", Credit: d("20")},
	}
	totalDebit, totalCredit := models.EntryTotals(lines)
	if !totalDebit.Equal(d("20")) {
		t.Fatalf("total debit = %s, want 20", totalDebit)
	}
	if !totalCredit.Equal(d("20")) {
		t.Fatalf("total credit = %s, want 20", totalCredit)
	}
}
