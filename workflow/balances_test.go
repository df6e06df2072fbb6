package workflow

import (
	"testing"

	"github.com/mmdatafocus/ledger_engine/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestSignedDelta(t *testing.T) {
	cases := []struct {
		name   string
		normal models.NormalBalance
		debit  string
		credit string
		want   string
	}{
		{"debit to debit-normal increases", models.NormalBalanceDebit, "100", "0", "100"},
		{"credit to debit-normal decreases", models.NormalBalanceDebit, "0", "40", "-40"},
		{"credit to credit-normal increases", models.NormalBalanceCredit, "0", "100", "100"},
		{"debit to credit-normal decreases", models.NormalBalanceCredit, "25", "0", "-25"},
		{"zero line is zero", models.NormalBalanceDebit, "0", "0", "0"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := signedDelta(c.normal, d(c.debit), d(c.credit))
			assert.True(t, got.Equal(d(c.want)), "got %s, want %s", got, c.want)
		})
	}
}

func TestSignedDeltaOffsettingLinesNetToZero(t *testing.T) {
	// A debit and an equal credit against the same account cancel.
	up := signedDelta(models.NormalBalanceDebit, d("75.5"), decimal.Zero)
	down := signedDelta(models.NormalBalanceDebit, decimal.Zero, d("75.5"))
	assert.True(t, up.Add(down).IsZero())
}
