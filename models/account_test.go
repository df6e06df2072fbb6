package models_test

import (
	"testing"

	"github.com/mmdatafocus/ledger_engine/models"
)

func TestNormalBalanceForMainType(t *testing.T) {
	cases := []struct {
		mainType models.AccountMainType
		want     models.NormalBalance
	}{
		{models.AccountMainTypeAsset, models.NormalBalanceDebit},
		{models.AccountMainTypeExpense, models.NormalBalanceDebit},
		{models.AccountMainTypeLiability, models.NormalBalanceCredit},
		{models.AccountMainTypeEquity, models.NormalBalanceCredit},
		{models.AccountMainTypeIncome, models.NormalBalanceCredit},
	}
	for _, c := range cases {
		if got := models.NormalBalanceForMainType(c.mainType); got != c.want {
			t.Errorf("NormalBalanceForMainType(%s) = %s, want %s", c.mainType, got, c.want)
		}
	}
}

func TestNormalBalanceSign(t *testing.T) {
	if models.NormalBalanceDebit.Sign() != 1 {
		t.Error("debit-normal sign should be +1")
	}
	if models.NormalBalanceCredit.Sign() != -1 {
		t.Error("credit-normal sign should be -1")
	}
}

func TestAncestorIds(t *testing.T) {
	cases := []struct {
		path string
		want []int
	}{
		{"/", nil},
		{"", nil},
		{"/1/", []int{1}},
		{"/1/4/9/", []int{1, 4, 9}},
	}
	for _, c := range cases {
		account := models.Account{AncestorPath: c.path}
		got := account.AncestorIds()
		if len(got) != len(c.want) {
			t.Errorf("AncestorIds(%q) = %v, want %v", c.path, got, c.want)
			continue
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Errorf("AncestorIds(%q) = %v, want %v", c.path, got, c.want)
				break
			}
		}
	}
}
