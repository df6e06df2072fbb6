package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/mmdatafocus/ledger_engine/config"
	"github.com/mmdatafocus/ledger_engine/models"
	"github.com/mmdatafocus/ledger_engine/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RecordInbound creates a cost layer for an inbound movement and the
// transaction that explains it.
func RecordInbound(ctx context.Context, logger *logrus.Logger, input *models.NewInventoryMovement) (*models.InventoryTransaction, error) {
	if !input.Qty.IsPositive() {
		return nil, models.InvalidQuantityError{Field: "quantity", Value: input.Qty}
	}
	if !input.UnitCost.IsPositive() {
		return nil, models.InvalidQuantityError{Field: "unit cost", Value: input.UnitCost}
	}
	movementType := input.MovementType
	if movementType == "" {
		movementType = models.InventoryMovementTypePurchase
	}
	if !movementType.IsInbound() {
		return nil, fmt.Errorf("movement type %s is not inbound", movementType)
	}
	movementDate := input.MovementDate
	if movementDate.IsZero() {
		movementDate = time.Now().UTC()
	}

	var txn *models.InventoryTransaction
	err := runPostingTx(ctx, logger, itemScope(input.ItemId), func(tx *gorm.DB) error {
		layer := models.InventoryLayer{
			ItemId:       input.ItemId,
			LayerDate:    movementDate,
			Qty:          input.Qty,
			QtyRemaining: input.Qty,
			UnitCost:     input.UnitCost,
			SourceType:   input.SourceType,
			SourceId:     input.SourceId,
		}
		if err := tx.Create(&layer).Error; err != nil {
			return err
		}

		created := models.InventoryTransaction{
			ItemId:        input.ItemId,
			MovementType:  movementType,
			Qty:           input.Qty,
			UnitCost:      input.UnitCost,
			LayerId:       layer.ID,
			SourceType:    input.SourceType,
			SourceId:      input.SourceId,
			CorrelationId: movementCorrelationId(ctx),
		}
		if err := tx.Create(&created).Error; err != nil {
			return err
		}
		txn = &created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// RecordOutbound consumes layers for the item in strict FIFO order, oldest
// first, splitting the last layer when it has more remaining than needed.
// Fails with InsufficientLayerQuantityError when total remaining quantity
// is short, with no partial state change. The transaction's unit cost is
// the quantity-weighted average of the consumed layers.
func RecordOutbound(ctx context.Context, logger *logrus.Logger, input *models.NewInventoryMovement) (*models.InventoryTransaction, error) {
	if !input.Qty.IsPositive() {
		return nil, models.InvalidQuantityError{Field: "quantity", Value: input.Qty}
	}
	movementType := input.MovementType
	if movementType == "" {
		movementType = models.InventoryMovementTypeSale
	}
	if movementType.IsInbound() {
		return nil, fmt.Errorf("movement type %s is not outbound", movementType)
	}

	// Serialize outbound consumption per item across instances. The DB
	// advisory lock inside runPostingTx still guards single-instance
	// deployments without redis.
	if locker := config.GetRedisLock(); locker != nil {
		lock, err := locker.Obtain(ctx, fmt.Sprintf("inventory:item:%d", input.ItemId), 30*time.Second, &redislock.Options{
			RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 10),
		})
		if err != nil {
			if errors.Is(err, redislock.ErrNotObtained) {
				return nil, fmt.Errorf("%w (item=%d): outbound lock not obtained", models.ErrConcurrentModification, input.ItemId)
			}
			return nil, err
		}
		defer lock.Release(ctx)
	}

	var txn *models.InventoryTransaction
	err := runPostingTx(ctx, logger, itemScope(input.ItemId), func(tx *gorm.DB) error {
		var layers []*models.InventoryLayer
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("item_id = ? AND qty_remaining > 0", input.ItemId).
			Order("layer_date, id").
			Find(&layers).Error; err != nil {
			return err
		}

		plan, available, ok := planLayerConsumption(layers, input.Qty)
		if !ok {
			return models.InsufficientLayerQuantityError{
				ItemId:    input.ItemId,
				Requested: input.Qty,
				Available: available,
			}
		}

		consumedValue := decimal.Zero
		byLayerId := make(map[int]*models.InventoryLayer, len(layers))
		for _, layer := range layers {
			byLayerId[layer.ID] = layer
		}
		for _, c := range plan {
			layer := byLayerId[c.LayerId]
			layer.QtyRemaining = layer.QtyRemaining.Sub(c.Qty)
			if err := tx.Save(layer).Error; err != nil {
				return err
			}
			consumedValue = consumedValue.Add(c.Qty.Mul(c.UnitCost))
		}

		created := models.InventoryTransaction{
			ItemId:        input.ItemId,
			MovementType:  movementType,
			Qty:           input.Qty,
			UnitCost:      consumedValue.Div(input.Qty).Round(4),
			SourceType:    input.SourceType,
			SourceId:      input.SourceId,
			Consumptions:  plan,
			CorrelationId: movementCorrelationId(ctx),
		}
		if err := tx.Create(&created).Error; err != nil {
			return err
		}
		txn = &created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// planLayerConsumption selects from the FIFO-ordered layers until qty is
// satisfied. Pure: no state changes. Returns the consumption plan, the
// total available quantity, and whether the request can be satisfied.
func planLayerConsumption(layers []*models.InventoryLayer, qty decimal.Decimal) ([]models.LayerConsumption, decimal.Decimal, bool) {
	available := decimal.Zero
	for _, layer := range layers {
		available = available.Add(layer.QtyRemaining)
	}
	if available.LessThan(qty) {
		return nil, available, false
	}

	plan := make([]models.LayerConsumption, 0, len(layers))
	remaining := qty
	for _, layer := range layers {
		if remaining.IsZero() {
			break
		}
		if !layer.QtyRemaining.IsPositive() {
			continue
		}
		take := layer.QtyRemaining
		if take.GreaterThan(remaining) {
			take = remaining
		}
		plan = append(plan, models.LayerConsumption{
			LayerId:  layer.ID,
			Qty:      take,
			UnitCost: layer.UnitCost,
		})
		remaining = remaining.Sub(take)
	}
	return plan, available, true
}

// WeightedOutboundCost is the quantity-weighted average unit cost of a
// consumption plan.
func WeightedOutboundCost(plan []models.LayerConsumption) decimal.Decimal {
	totalQty := decimal.Zero
	totalValue := decimal.Zero
	for _, c := range plan {
		totalQty = totalQty.Add(c.Qty)
		totalValue = totalValue.Add(c.Qty.Mul(c.UnitCost))
	}
	if totalQty.IsZero() {
		return decimal.Zero
	}
	return totalValue.Div(totalQty).Round(4)
}

func movementCorrelationId(ctx context.Context) string {
	if correlationId, ok := utils.GetCorrelationIdFromContext(ctx); ok && correlationId != "" {
		return correlationId
	}
	return uuid.NewString()
}
