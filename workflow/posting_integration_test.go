package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/ledger_engine/config"
	"github.com/mmdatafocus/ledger_engine/models"
	"github.com/mmdatafocus/ledger_engine/utils"
	"github.com/mmdatafocus/ledger_engine/workflow"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func integrationSetup(t *testing.T) context.Context {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires a MySQL instance via DB_* env)")
	}

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		t.Fatal("database not initialized")
	}
	models.MigrateTable()

	ctx := context.Background()
	ctx = utils.SetUserNameInContext(ctx, "integration")
	ctx = utils.SetCorrelationIdInContext(ctx, uuid.NewString())
	return ctx
}

// uniqueCode avoids collisions across repeated runs against the same DB.
func uniqueCode(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString()[:8])
}

func mustCreateAccount(t *testing.T, ctx context.Context, input *models.NewAccount) *models.Account {
	t.Helper()
	account, err := models.CreateAccount(ctx, input)
	if err != nil {
		t.Fatalf("CreateAccount(%s): %v", input.Code, err)
	}
	return account
}

func mustDecimal(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestPostingPropagatesBalancesAndReversalRestoresThem(t *testing.T) {
	ctx := integrationSetup(t)
	logger := logrus.New()

	assets := mustCreateAccount(t, ctx, &models.NewAccount{
		Code: uniqueCode("1000"), Name: "Assets", MainType: models.AccountMainTypeAsset, IsGroup: true,
	})
	cash := mustCreateAccount(t, ctx, &models.NewAccount{
		Code: uniqueCode("1010"), Name: "Cash", MainType: models.AccountMainTypeAsset, ParentCode: assets.Code,
	})
	revenue := mustCreateAccount(t, ctx, &models.NewAccount{
		Code: uniqueCode("4000"), Name: "Revenue", MainType: models.AccountMainTypeIncome,
	})

	entry, err := workflow.PostJournalEntry(ctx, logger, &models.NewJournalEntry{
		EntryDate:   time.Now().UTC(),
		Description: "Cash sale",
		Lines: []models.NewJournalLine{
			{AccountCode: cash.Code, Debit: mustDecimal("150")},
			{AccountCode: revenue.Code, Credit: mustDecimal("150")},
		},
	})
	if err != nil {
		t.Fatalf("PostJournalEntry: %v", err)
	}
	if len(entry.Lines) != 2 {
		t.Fatalf("posted entry has %d lines, want 2", len(entry.Lines))
	}

	for _, check := range []struct {
		code string
		want string
	}{
		{cash.Code, "150"},
		{assets.Code, "150"},
		{revenue.Code, "150"},
	} {
		balance, err := workflow.BalanceOf(ctx, check.code)
		if err != nil {
			t.Fatalf("BalanceOf(%s): %v", check.code, err)
		}
		if !balance.Equal(mustDecimal(check.want)) {
			t.Fatalf("balance of %s = %s, want %s", check.code, balance, check.want)
		}
	}

	// Resolution carries no balance; BalanceOf is the balance read path.
	resolved, err := models.ResolveAccount(ctx, cash.Code)
	if err != nil {
		t.Fatalf("ResolveAccount: %v", err)
	}
	if !resolved.CurrentBalance.IsZero() {
		t.Fatalf("resolved account carries balance %s, want none", resolved.CurrentBalance)
	}

	reversal, err := workflow.ReverseJournalEntry(ctx, logger, entry.ID, "test reversal")
	if err != nil {
		t.Fatalf("ReverseJournalEntry: %v", err)
	}
	if !reversal.IsReversal || reversal.ReversesEntryId == nil || *reversal.ReversesEntryId != entry.ID {
		t.Fatalf("reversal linkage wrong: %+v", reversal)
	}

	for _, code := range []string{cash.Code, assets.Code, revenue.Code} {
		balance, err := workflow.BalanceOf(ctx, code)
		if err != nil {
			t.Fatalf("BalanceOf(%s) after reversal: %v", code, err)
		}
		if !balance.IsZero() {
			t.Fatalf("balance of %s after reversal = %s, want 0", code, balance)
		}
	}

	// Reversing again must fail; the entry is already reversed.
	if _, err := workflow.ReverseJournalEntry(ctx, logger, entry.ID, "again"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("second reversal: got %v, want ErrNotFound", err)
	}
}

func TestPostingRejectsUnbalancedAndGroupTargets(t *testing.T) {
	ctx := integrationSetup(t)
	logger := logrus.New()

	group := mustCreateAccount(t, ctx, &models.NewAccount{
		Code: uniqueCode("5000"), Name: "Expenses", MainType: models.AccountMainTypeExpense, IsGroup: true,
	})
	leaf := mustCreateAccount(t, ctx, &models.NewAccount{
		Code: uniqueCode("5010"), Name: "Rent", MainType: models.AccountMainTypeExpense, ParentCode: group.Code,
	})
	cash := mustCreateAccount(t, ctx, &models.NewAccount{
		Code: uniqueCode("1020"), Name: "Petty Cash", MainType: models.AccountMainTypeAsset,
	})

	var balErr models.UnbalancedEntryError
	_, err := workflow.PostJournalEntry(ctx, logger, &models.NewJournalEntry{
		EntryDate: time.Now().UTC(),
		Lines: []models.NewJournalLine{
			{AccountCode: leaf.Code, Debit: mustDecimal("100")},
			{AccountCode: cash.Code, Credit: mustDecimal("90")},
		},
	})
	if !errors.As(err, &balErr) {
		t.Fatalf("unbalanced entry: got %v, want UnbalancedEntryError", err)
	}

	var groupErr models.GroupAccountPostingError
	_, err = workflow.PostJournalEntry(ctx, logger, &models.NewJournalEntry{
		EntryDate: time.Now().UTC(),
		Lines: []models.NewJournalLine{
			{AccountCode: group.Code, Debit: mustDecimal("100")},
			{AccountCode: cash.Code, Credit: mustDecimal("100")},
		},
	})
	if !errors.As(err, &groupErr) {
		t.Fatalf("group posting: got %v, want GroupAccountPostingError", err)
	}

	var unknownErr models.UnknownAccountError
	_, err = workflow.PostJournalEntry(ctx, logger, &models.NewJournalEntry{
		EntryDate: time.Now().UTC(),
		Lines: []models.NewJournalLine{
			{AccountCode: "no-such-code", Debit: mustDecimal("100")},
			{AccountCode: cash.Code, Credit: mustDecimal("100")},
		},
	})
	if !errors.As(err, &unknownErr) {
		t.Fatalf("unknown account: got %v, want UnknownAccountError", err)
	}

	// Nothing may have been written by the rejected entries.
	balance, err := workflow.BalanceOf(ctx, cash.Code)
	if err != nil {
		t.Fatalf("BalanceOf: %v", err)
	}
	if !balance.IsZero() {
		t.Fatalf("balance of %s after rejected entries = %s, want 0", cash.Code, balance)
	}
}

func TestFifoOutboundConsumesOldestLayersFirst(t *testing.T) {
	ctx := integrationSetup(t)
	logger := logrus.New()

	itemId := int(time.Now().UnixNano() % 1_000_000_000)

	day1 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)
	if _, err := workflow.RecordInbound(ctx, logger, &models.NewInventoryMovement{
		ItemId: itemId, Qty: mustDecimal("10"), UnitCost: mustDecimal("5"), MovementDate: day1,
	}); err != nil {
		t.Fatalf("RecordInbound #1: %v", err)
	}
	if _, err := workflow.RecordInbound(ctx, logger, &models.NewInventoryMovement{
		ItemId: itemId, Qty: mustDecimal("8"), UnitCost: mustDecimal("6"), MovementDate: day2,
	}); err != nil {
		t.Fatalf("RecordInbound #2: %v", err)
	}

	first, err := workflow.RecordOutbound(ctx, logger, &models.NewInventoryMovement{
		ItemId: itemId, Qty: mustDecimal("6"),
	})
	if err != nil {
		t.Fatalf("RecordOutbound #1: %v", err)
	}
	if !first.UnitCost.Equal(mustDecimal("5")) {
		t.Fatalf("first outbound cost = %s, want 5", first.UnitCost)
	}

	second, err := workflow.RecordOutbound(ctx, logger, &models.NewInventoryMovement{
		ItemId: itemId, Qty: mustDecimal("10"),
	})
	if err != nil {
		t.Fatalf("RecordOutbound #2: %v", err)
	}
	// 4 left at 5 plus 6 at 6: weighted (4*5 + 6*6) / 10 = 5.6
	if !second.UnitCost.Equal(mustDecimal("5.6")) {
		t.Fatalf("second outbound cost = %s, want 5.6", second.UnitCost)
	}
	if len(second.Consumptions) != 2 {
		t.Fatalf("second outbound consumed %d layers, want 2", len(second.Consumptions))
	}

	var shortErr models.InsufficientLayerQuantityError
	_, err = workflow.RecordOutbound(ctx, logger, &models.NewInventoryMovement{
		ItemId: itemId, Qty: mustDecimal("5"),
	})
	if !errors.As(err, &shortErr) {
		t.Fatalf("overdraw: got %v, want InsufficientLayerQuantityError", err)
	}
	if !shortErr.Available.Equal(mustDecimal("2")) {
		t.Fatalf("overdraw available = %s, want 2", shortErr.Available)
	}

	findings, err := workflow.CheckInventoryIntegrity(ctx, &itemId)
	if err != nil {
		t.Fatalf("CheckInventoryIntegrity: %v", err)
	}
	if len(findings) != 0 {
		t.Fatalf("unexpected integrity findings: %+v", findings)
	}
}

func TestDepreciationPostsThroughTheJournal(t *testing.T) {
	ctx := integrationSetup(t)
	logger := logrus.New()
	db := config.GetDB()

	assetAccount := mustCreateAccount(t, ctx, &models.NewAccount{
		Code: uniqueCode("1500"), Name: "Equipment", MainType: models.AccountMainTypeAsset,
	})
	accumulated := mustCreateAccount(t, ctx, &models.NewAccount{
		Code: uniqueCode("1510"), Name: "Accumulated Depreciation", MainType: models.AccountMainTypeAsset,
	})
	expense := mustCreateAccount(t, ctx, &models.NewAccount{
		Code: uniqueCode("6000"), Name: "Depreciation Expense", MainType: models.AccountMainTypeExpense,
	})

	asset := models.FixedAsset{
		Name:                 "Press",
		Cost:                 mustDecimal("12000"),
		UsefulLifeMonths:     60,
		AcquiredAt:           time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		AssetAccountId:       assetAccount.ID,
		AccumulatedAccountId: accumulated.ID,
		ExpenseAccountId:     expense.ID,
		IsActive:             utils.NewTrue(),
	}
	if err := db.WithContext(ctx).Create(&asset).Error; err != nil {
		t.Fatalf("create asset: %v", err)
	}

	entry, err := workflow.RunDepreciationPeriod(ctx, logger, asset.ID, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("RunDepreciationPeriod: %v", err)
	}
	if entry == nil {
		t.Fatal("expected a posted entry for three elapsed months")
	}
	if !entry.TotalDebit.Equal(mustDecimal("600")) {
		t.Fatalf("depreciation total = %s, want 600", entry.TotalDebit)
	}

	// Same period again is a no-op.
	again, err := workflow.RunDepreciationPeriod(ctx, logger, asset.ID, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("RunDepreciationPeriod repeat: %v", err)
	}
	if again != nil {
		t.Fatalf("repeat run posted %s, want no-op", again.EntryNumber)
	}

	balance, err := workflow.BalanceOf(ctx, expense.Code)
	if err != nil {
		t.Fatalf("BalanceOf(expense): %v", err)
	}
	if !balance.Equal(mustDecimal("600")) {
		t.Fatalf("expense balance = %s, want 600", balance)
	}
}

func TestConcurrentPostingsLoseNoUpdates(t *testing.T) {
	ctx := integrationSetup(t)
	logger := logrus.New()

	cash := mustCreateAccount(t, ctx, &models.NewAccount{
		Code: uniqueCode("1040"), Name: "Race Cash", MainType: models.AccountMainTypeAsset,
	})
	revenue := mustCreateAccount(t, ctx, &models.NewAccount{
		Code: uniqueCode("4020"), Name: "Race Revenue", MainType: models.AccountMainTypeIncome,
	})

	const posters = 8
	var wg sync.WaitGroup
	errs := make(chan error, posters)
	for i := 0; i < posters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := workflow.PostJournalEntry(ctx, logger, &models.NewJournalEntry{
				EntryDate: time.Now().UTC(),
				Lines: []models.NewJournalLine{
					{AccountCode: cash.Code, Debit: mustDecimal("10")},
					{AccountCode: revenue.Code, Credit: mustDecimal("10")},
				},
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent posting: %v", err)
		}
	}

	// Final balances must equal the arithmetic sum of all deltas.
	for _, code := range []string{cash.Code, revenue.Code} {
		balance, err := workflow.BalanceOf(ctx, code)
		if err != nil {
			t.Fatalf("BalanceOf(%s): %v", code, err)
		}
		if !balance.Equal(mustDecimal("80")) {
			t.Fatalf("balance of %s = %s, want 80", code, balance)
		}
	}
}

func TestRecomputeReconcilesDriftedBalance(t *testing.T) {
	ctx := integrationSetup(t)
	logger := logrus.New()
	db := config.GetDB()

	cash := mustCreateAccount(t, ctx, &models.NewAccount{
		Code: uniqueCode("1030"), Name: "Drift Cash", MainType: models.AccountMainTypeAsset,
	})
	income := mustCreateAccount(t, ctx, &models.NewAccount{
		Code: uniqueCode("4010"), Name: "Drift Income", MainType: models.AccountMainTypeIncome,
	})

	if _, err := workflow.PostJournalEntry(ctx, logger, &models.NewJournalEntry{
		EntryDate: time.Now().UTC(),
		Lines: []models.NewJournalLine{
			{AccountCode: cash.Code, Debit: mustDecimal("200")},
			{AccountCode: income.Code, Credit: mustDecimal("200")},
		},
	}); err != nil {
		t.Fatalf("PostJournalEntry: %v", err)
	}

	// Corrupt the cached balance directly; recompute must restore it from
	// the posted lines.
	if err := db.Model(&models.Account{}).Where("id = ?", cash.ID).
		UpdateColumn("current_balance", mustDecimal("999")).Error; err != nil {
		t.Fatalf("corrupt balance: %v", err)
	}

	drifts, err := workflow.RecomputeAccountBalance(ctx, logger, cash.Code)
	if err != nil {
		t.Fatalf("RecomputeAccountBalance: %v", err)
	}
	if len(drifts) != 1 {
		t.Fatalf("drifts = %d, want 1", len(drifts))
	}
	if !drifts[0].Recomputed.Equal(mustDecimal("200")) {
		t.Fatalf("recomputed = %s, want 200", drifts[0].Recomputed)
	}

	balance, err := workflow.BalanceOf(ctx, cash.Code)
	if err != nil {
		t.Fatalf("BalanceOf: %v", err)
	}
	if !balance.Equal(mustDecimal("200")) {
		t.Fatalf("balance after recompute = %s, want 200", balance)
	}
}
