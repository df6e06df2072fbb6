package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InventoryLayer is one inbound batch: its original quantity, unit cost and
// how much of it is still unconsumed. Layers are consumed oldest first and
// retained after full consumption for audit.
type InventoryLayer struct {
	ID           int             `gorm:"primary_key" json:"id"`
	ItemId       int             `gorm:"index;not null;index:idx_layer_item_date,priority:1" json:"item_id"`
	LayerDate    time.Time       `gorm:"not null;index:idx_layer_item_date,priority:2" json:"layer_date"`
	Qty          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"qty"`
	QtyRemaining decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"qty_remaining"`
	UnitCost     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`
	SourceType   ReferenceType   `gorm:"type:enum('JN','IV','BL','PM','OB','IVA','FA','RP')" json:"source_type"`
	SourceId     int             `gorm:"index" json:"source_id"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeSave enforces the layer invariant: quantity remaining stays within
// [0, original quantity]. Consumption code must never push a layer outside
// that range; refusing the save here catches a bad write before commit.
func (l *InventoryLayer) BeforeSave(tx *gorm.DB) error {
	_ = tx // signature required by gorm; tx may be nil in tests
	if l == nil {
		return nil
	}
	if l.QtyRemaining.IsNegative() {
		return errors.New("inventory layer: quantity remaining cannot be negative")
	}
	if l.QtyRemaining.GreaterThan(l.Qty) {
		return errors.New("inventory layer: quantity remaining cannot exceed original quantity")
	}
	return nil
}

// InventoryTransaction records one movement. Inbound movements link the
// layer they created; outbound movements are explained by their
// LayerConsumption rows, whose quantities must sum to Qty.
type InventoryTransaction struct {
	ID           int                   `gorm:"primary_key" json:"id"`
	ItemId       int                   `gorm:"index;not null" json:"item_id"`
	MovementType InventoryMovementType `gorm:"type:enum('PUR','SAL','ADI','ADO');not null;index" json:"movement_type"`
	Qty          decimal.Decimal       `gorm:"type:decimal(20,4);default:0" json:"qty"`
	// UnitCost is the purchase cost for inbound movements and the
	// quantity-weighted average cost of consumed layers for outbound ones.
	UnitCost      decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`
	LayerId       int                `gorm:"index" json:"layer_id"`
	SourceType    ReferenceType      `gorm:"type:enum('JN','IV','BL','PM','OB','IVA','FA','RP')" json:"source_type"`
	SourceId      int                `gorm:"index" json:"source_id"`
	Consumptions  []LayerConsumption `gorm:"foreignKey:TransactionId" json:"consumptions"`
	CorrelationId string             `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time          `gorm:"autoCreateTime" json:"created_at"`
}

// LayerConsumption links an outbound transaction to a layer it consumed.
type LayerConsumption struct {
	ID            int             `gorm:"primary_key" json:"id"`
	TransactionId int             `gorm:"index;not null" json:"transaction_id"`
	LayerId       int             `gorm:"index;not null" json:"layer_id"`
	Qty           decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"qty"`
	UnitCost      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewInventoryMovement struct {
	ItemId       int                   `json:"item_id"`
	MovementType InventoryMovementType `json:"movement_type"`
	MovementDate time.Time             `json:"movement_date"`
	Qty          decimal.Decimal       `json:"qty"`
	UnitCost     decimal.Decimal       `json:"unit_cost"`
	SourceType   ReferenceType         `json:"source_type"`
	SourceId     int                   `json:"source_id"`
}

func (t *InventoryTransaction) GetId() int {
	return t.ID
}
