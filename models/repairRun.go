package models

import "time"

// RepairRun is the audit record left by every explicitly invoked repair
// operation. Repairs never happen as a side effect of normal posting.
type RepairRun struct {
	ID            int       `gorm:"primary_key" json:"id"`
	Operation     string    `gorm:"size:100;not null;index" json:"operation"`
	ItemId        int       `gorm:"index" json:"item_id"`
	AccountId     int       `gorm:"index" json:"account_id"`
	UserName      string    `gorm:"size:100" json:"user_name"`
	CorrelationId string    `gorm:"size:64;index" json:"correlation_id"`
	Summary       string    `gorm:"type:text" json:"summary"`
	FindingsFixed int       `gorm:"default:0" json:"findings_fixed"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}
