package workflow_test

import (
	"testing"
	"time"

	"github.com/mmdatafocus/ledger_engine/config"
	"github.com/mmdatafocus/ledger_engine/models"
	"github.com/mmdatafocus/ledger_engine/workflow"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func TestRepairRestoresLostConsumptionRowsWithoutRedraining(t *testing.T) {
	ctx := integrationSetup(t)
	logger := logrus.New()
	db := config.GetDB()

	itemId := int(time.Now().UnixNano() % 1_000_000_000)

	day1 := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
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
	outbound, err := workflow.RecordOutbound(ctx, logger, &models.NewInventoryMovement{
		ItemId: itemId, Qty: mustDecimal("6"),
	})
	if err != nil {
		t.Fatalf("RecordOutbound: %v", err)
	}

	// Simulate lost linkage: the layers stay decremented but the rows
	// explaining the outbound disappear.
	if err := db.Exec("DELETE FROM layer_consumptions WHERE transaction_id = ?", outbound.ID).Error; err != nil {
		t.Fatalf("drop consumption rows: %v", err)
	}

	findings, err := workflow.CheckInventoryIntegrity(ctx, &itemId)
	if err != nil {
		t.Fatalf("CheckInventoryIntegrity: %v", err)
	}
	if len(findings) == 0 {
		t.Fatal("expected findings after dropping consumption rows")
	}

	remainingBefore := totalRemaining(t, itemId)
	if !remainingBefore.Equal(mustDecimal("12")) {
		t.Fatalf("remaining before repair = %s, want 12", remainingBefore)
	}

	run, err := workflow.RepairLayerLinks(ctx, logger, itemId)
	if err != nil {
		t.Fatalf("RepairLayerLinks: %v", err)
	}
	if run.FindingsFixed == 0 {
		t.Fatal("repair fixed nothing")
	}

	// Repair synthesizes the missing rows only; layer quantities are not
	// drained a second time.
	remainingAfter := totalRemaining(t, itemId)
	if !remainingAfter.Equal(remainingBefore) {
		t.Fatalf("remaining changed by repair: %s -> %s", remainingBefore, remainingAfter)
	}

	findings, err = workflow.CheckInventoryIntegrity(ctx, &itemId)
	if err != nil {
		t.Fatalf("CheckInventoryIntegrity after repair: %v", err)
	}
	if len(findings) != 0 {
		t.Fatalf("findings remain after repair: %+v", findings)
	}
}

func totalRemaining(t *testing.T, itemId int) decimal.Decimal {
	t.Helper()
	var remaining decimal.Decimal
	if err := config.GetDB().Model(&models.InventoryLayer{}).
		Where("item_id = ?", itemId).
		Select("COALESCE(SUM(qty_remaining), 0)").
		Scan(&remaining).Error; err != nil {
		t.Fatalf("sum remaining: %v", err)
	}
	return remaining
}
