package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/ledger_engine/config"
	"github.com/mmdatafocus/ledger_engine/models"
	"github.com/mmdatafocus/ledger_engine/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// IntegrityFinding is one violation detected by a check pass.
type IntegrityFinding struct {
	Kind          string `json:"kind"`
	ItemId        int    `json:"item_id,omitempty"`
	AccountId     int    `json:"account_id,omitempty"`
	LayerId       int    `json:"layer_id,omitempty"`
	TransactionId int    `json:"transaction_id,omitempty"`
	Detail        string `json:"detail"`
}

const (
	FindingOrphanLayer          = "ORPHAN_LAYER"
	FindingUnlinkedTransaction  = "UNLINKED_TRANSACTION"
	FindingConsumptionMismatch  = "LAYER_CONSUMPTION_MISMATCH"
	FindingGroupFlagMismatch    = "GROUP_FLAG_MISMATCH"
	FindingLevelDrift           = "LEVEL_DRIFT"
	FindingGroupAccountPostings = "GROUP_ACCOUNT_POSTINGS"
)

// CheckInventoryIntegrity scans the layer and transaction tables for
// inconsistencies without changing anything. Pass itemId=nil for all items.
//
// Detected kinds:
//   - ORPHAN_LAYER: a layer no inbound transaction links to
//   - UNLINKED_TRANSACTION: an outbound transaction whose consumption rows
//     do not sum to its quantity
//   - LAYER_CONSUMPTION_MISMATCH: a layer whose consumed quantity
//     (qty - qty_remaining) disagrees with the sum of its consumption rows
func CheckInventoryIntegrity(ctx context.Context, itemId *int) ([]IntegrityFinding, error) {
	db := config.GetDB().WithContext(ctx)
	var findings []IntegrityFinding

	layerQuery := db.Model(&models.InventoryLayer{}).
		Select("inventory_layers.id, inventory_layers.item_id").
		Joins("LEFT JOIN inventory_transactions ON inventory_transactions.layer_id = inventory_layers.id").
		Where("inventory_transactions.id IS NULL")
	if itemId != nil {
		layerQuery = layerQuery.Where("inventory_layers.item_id = ?", *itemId)
	}
	var orphans []struct {
		Id     int
		ItemId int
	}
	if err := layerQuery.Scan(&orphans).Error; err != nil {
		return nil, err
	}
	for _, o := range orphans {
		findings = append(findings, IntegrityFinding{
			Kind:    FindingOrphanLayer,
			ItemId:  o.ItemId,
			LayerId: o.Id,
			Detail:  "layer has no inbound transaction",
		})
	}

	txnQuery := db.Model(&models.InventoryTransaction{}).
		Select("inventory_transactions.id, inventory_transactions.item_id, inventory_transactions.qty, COALESCE(SUM(layer_consumptions.qty), 0) AS consumed").
		Joins("LEFT JOIN layer_consumptions ON layer_consumptions.transaction_id = inventory_transactions.id").
		Where("inventory_transactions.movement_type IN ?", []models.InventoryMovementType{
			models.InventoryMovementTypeSale,
			models.InventoryMovementTypeAdjustmentOut,
		}).
		Group("inventory_transactions.id")
	if itemId != nil {
		txnQuery = txnQuery.Where("inventory_transactions.item_id = ?", *itemId)
	}
	var outbounds []struct {
		Id       int
		ItemId   int
		Qty      decimal.Decimal
		Consumed decimal.Decimal
	}
	if err := txnQuery.Scan(&outbounds).Error; err != nil {
		return nil, err
	}
	for _, t := range outbounds {
		if t.Consumed.Equal(t.Qty) {
			continue
		}
		findings = append(findings, IntegrityFinding{
			Kind:          FindingUnlinkedTransaction,
			ItemId:        t.ItemId,
			TransactionId: t.Id,
			Detail:        fmt.Sprintf("consumption rows sum to %s, transaction qty is %s", t.Consumed, t.Qty),
		})
	}

	consumedQuery := db.Model(&models.InventoryLayer{}).
		Select("inventory_layers.id, inventory_layers.item_id, inventory_layers.qty, inventory_layers.qty_remaining, COALESCE(SUM(layer_consumptions.qty), 0) AS consumed").
		Joins("LEFT JOIN layer_consumptions ON layer_consumptions.layer_id = inventory_layers.id").
		Group("inventory_layers.id")
	if itemId != nil {
		consumedQuery = consumedQuery.Where("inventory_layers.item_id = ?", *itemId)
	}
	var layers []struct {
		Id           int
		ItemId       int
		Qty          decimal.Decimal
		QtyRemaining decimal.Decimal
		Consumed     decimal.Decimal
	}
	if err := consumedQuery.Scan(&layers).Error; err != nil {
		return nil, err
	}
	for _, l := range layers {
		expected := l.Qty.Sub(l.QtyRemaining)
		if l.Consumed.Equal(expected) {
			continue
		}
		findings = append(findings, IntegrityFinding{
			Kind:    FindingConsumptionMismatch,
			ItemId:  l.ItemId,
			LayerId: l.Id,
			Detail:  fmt.Sprintf("layer shows %s consumed but consumption rows sum to %s", expected, l.Consumed),
		})
	}

	return findings, nil
}

// CheckAccountTreeIntegrity scans the chart of accounts for structural
// inconsistencies. Read only.
func CheckAccountTreeIntegrity(ctx context.Context) ([]IntegrityFinding, error) {
	db := config.GetDB().WithContext(ctx)
	var findings []IntegrityFinding

	var accounts []models.Account
	if err := db.Order("id").Find(&accounts).Error; err != nil {
		return nil, err
	}
	byId := make(map[int]*models.Account, len(accounts))
	childCount := make(map[int]int, len(accounts))
	for i := range accounts {
		byId[accounts[i].ID] = &accounts[i]
		if accounts[i].ParentAccountId > 0 {
			childCount[accounts[i].ParentAccountId]++
		}
	}

	for i := range accounts {
		account := &accounts[i]
		isGroup := account.IsGroup != nil && *account.IsGroup
		if !isGroup && childCount[account.ID] > 0 {
			findings = append(findings, IntegrityFinding{
				Kind:      FindingGroupFlagMismatch,
				AccountId: account.ID,
				Detail:    fmt.Sprintf("account %s has children but is not flagged as a group", account.Code),
			})
		}
		if account.ParentAccountId > 0 {
			parent, ok := byId[account.ParentAccountId]
			if ok && account.Level != parent.Level+1 {
				findings = append(findings, IntegrityFinding{
					Kind:      FindingLevelDrift,
					AccountId: account.ID,
					Detail:    fmt.Sprintf("account %s is level %d under a level %d parent", account.Code, account.Level, parent.Level),
				})
			}
		} else if account.Level != 1 {
			findings = append(findings, IntegrityFinding{
				Kind:      FindingLevelDrift,
				AccountId: account.ID,
				Detail:    fmt.Sprintf("root account %s has level %d", account.Code, account.Level),
			})
		}
		if isGroup {
			var posted int64
			if err := db.Model(&models.JournalLine{}).
				Where("account_id = ?", account.ID).
				Count(&posted).Error; err != nil {
				return nil, err
			}
			if posted > 0 {
				findings = append(findings, IntegrityFinding{
					Kind:      FindingGroupAccountPostings,
					AccountId: account.ID,
					Detail:    fmt.Sprintf("group account %s has %d posted lines", account.Code, posted),
				})
			}
		}
	}

	return findings, nil
}

// RepairLayerLinks repairs the linkage findings for one item and records a
// RepairRun audit row. Orphan layers get a synthesized inbound adjustment
// transaction; outbound transactions missing consumption rows get them
// re-derived in FIFO order from the layers as they stood. Runs only when
// explicitly invoked.
func RepairLayerLinks(ctx context.Context, logger *logrus.Logger, itemId int) (*models.RepairRun, error) {
	correlationId, ok := utils.GetCorrelationIdFromContext(ctx)
	if !ok || correlationId == "" {
		correlationId = uuid.NewString()
	}
	userName, _ := utils.GetUserNameFromContext(ctx)

	var run *models.RepairRun
	err := runPostingTx(ctx, logger, itemScope(itemId), func(tx *gorm.DB) error {
		fixed := 0
		summary := ""

		var orphanLayers []models.InventoryLayer
		if err := tx.
			Joins("LEFT JOIN inventory_transactions ON inventory_transactions.layer_id = inventory_layers.id").
			Where("inventory_layers.item_id = ? AND inventory_transactions.id IS NULL", itemId).
			Find(&orphanLayers).Error; err != nil {
			return err
		}
		for _, layer := range orphanLayers {
			synthesized := models.InventoryTransaction{
				ItemId:        itemId,
				MovementType:  models.InventoryMovementTypeAdjustmentIn,
				Qty:           layer.Qty,
				UnitCost:      layer.UnitCost,
				LayerId:       layer.ID,
				SourceType:    models.ReferenceTypeRepair,
				SourceId:      layer.ID,
				CorrelationId: correlationId,
			}
			if err := tx.Create(&synthesized).Error; err != nil {
				return err
			}
			logger.WithFields(logrus.Fields{
				"item":  itemId,
				"layer": layer.ID,
			}).Info("synthesized inbound transaction for orphan layer")
			fixed++
			summary += fmt.Sprintf("linked layer %d; ", layer.ID)
		}

		var unlinked []models.InventoryTransaction
		if err := tx.
			Select("inventory_transactions.*").
			Joins("LEFT JOIN layer_consumptions ON layer_consumptions.transaction_id = inventory_transactions.id").
			Where("inventory_transactions.item_id = ? AND inventory_transactions.movement_type IN ?", itemId, []models.InventoryMovementType{
				models.InventoryMovementTypeSale,
				models.InventoryMovementTypeAdjustmentOut,
			}).
			Group("inventory_transactions.id").
			Having("COALESCE(SUM(layer_consumptions.qty), 0) <> inventory_transactions.qty").
			Find(&unlinked).Error; err != nil {
			return err
		}
		for _, txn := range unlinked {
			var linked decimal.Decimal
			if err := tx.Model(&models.LayerConsumption{}).
				Where("transaction_id = ?", txn.ID).
				Select("COALESCE(SUM(qty), 0)").
				Scan(&linked).Error; err != nil {
				return err
			}
			missing := txn.Qty.Sub(linked)
			if !missing.IsPositive() {
				continue
			}

			var layers []*models.InventoryLayer
			if err := tx.
				Where("item_id = ? AND layer_date <= ?", itemId, txn.CreatedAt).
				Order("layer_date, id").
				Find(&layers).Error; err != nil {
				return err
			}
			var sums []struct {
				LayerId  int
				Consumed decimal.Decimal
			}
			if err := tx.Model(&models.LayerConsumption{}).
				Select("layer_consumptions.layer_id, COALESCE(SUM(layer_consumptions.qty), 0) AS consumed").
				Joins("JOIN inventory_layers ON inventory_layers.id = layer_consumptions.layer_id").
				Where("inventory_layers.item_id = ?", itemId).
				Group("layer_consumptions.layer_id").
				Scan(&sums).Error; err != nil {
				return err
			}
			recorded := make(map[int]decimal.Decimal, len(sums))
			for _, s := range sums {
				recorded[s.LayerId] = s.Consumed
			}

			rows, decrements, ok := planLinkageRepair(layers, recorded, missing)
			if !ok {
				logger.WithFields(logrus.Fields{
					"item":        itemId,
					"transaction": txn.ID,
					"missing":     missing,
				}).Warn("cannot re-derive consumptions; insufficient layer quantity")
				continue
			}

			byLayerId := make(map[int]*models.InventoryLayer, len(layers))
			for _, l := range layers {
				byLayerId[l.ID] = l
			}
			for _, c := range rows {
				c.TransactionId = txn.ID
				if err := tx.Create(&c).Error; err != nil {
					return err
				}
			}
			for _, c := range decrements {
				c.TransactionId = txn.ID
				if err := tx.Create(&c).Error; err != nil {
					return err
				}
				layer := byLayerId[c.LayerId]
				layer.QtyRemaining = layer.QtyRemaining.Sub(c.Qty)
				if err := tx.Save(layer).Error; err != nil {
					return err
				}
			}
			fixed++
			summary += fmt.Sprintf("re-derived consumptions for transaction %d; ", txn.ID)
		}

		created := models.RepairRun{
			Operation:     "inventory_layer_links",
			ItemId:        itemId,
			UserName:      userName,
			CorrelationId: correlationId,
			Summary:       summary,
			FindingsFixed: fixed,
			CreatedAt:     time.Now().UTC(),
		}
		if err := tx.Create(&created).Error; err != nil {
			return err
		}
		run = &created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}

// planLinkageRepair allocates an outbound transaction's missing consumption
// quantity across FIFO-ordered layers. Quantity a layer has physically lost
// beyond its recorded consumption rows is explained with rows only; the
// layer was already drained and must not be drained again. Only what cannot
// be explained that way becomes a fresh decrement. Pure: no state changes.
func planLinkageRepair(layers []*models.InventoryLayer, recorded map[int]decimal.Decimal, missing decimal.Decimal) (rows, decrements []models.LayerConsumption, ok bool) {
	remaining := missing
	for _, layer := range layers {
		if !remaining.IsPositive() {
			break
		}
		unexplained := layer.Qty.Sub(layer.QtyRemaining).Sub(recorded[layer.ID])
		if !unexplained.IsPositive() {
			continue
		}
		take := unexplained
		if take.GreaterThan(remaining) {
			take = remaining
		}
		rows = append(rows, models.LayerConsumption{
			LayerId:  layer.ID,
			Qty:      take,
			UnitCost: layer.UnitCost,
		})
		remaining = remaining.Sub(take)
	}
	for _, layer := range layers {
		if !remaining.IsPositive() {
			break
		}
		if !layer.QtyRemaining.IsPositive() {
			continue
		}
		take := layer.QtyRemaining
		if take.GreaterThan(remaining) {
			take = remaining
		}
		decrements = append(decrements, models.LayerConsumption{
			LayerId:  layer.ID,
			Qty:      take,
			UnitCost: layer.UnitCost,
		})
		remaining = remaining.Sub(take)
	}
	return rows, decrements, remaining.IsZero()
}
