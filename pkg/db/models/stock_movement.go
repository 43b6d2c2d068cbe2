package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/madaparts/backoffice-backend/pkg/enums"
)

// StockMovement is one append-only ledger entry. Rows are never updated or
// deleted; corrections happen through compensating entries.
type StockMovement struct {
	ID         uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	ProductID  uuid.UUID          `gorm:"column:product_id;type:uuid;not null;index:idx_stock_movements_product_created"`
	EntrepotID *uuid.UUID         `gorm:"column:entrepot_id;type:uuid"`
	Type       enums.MovementType `gorm:"column:type;not null;index:idx_stock_movements_type"`
	Quantite   int                `gorm:"column:quantite;not null"`
	Source     *string            `gorm:"column:source"`
	Reason     *string            `gorm:"column:reason"`
	CreatedAt  time.Time          `gorm:"column:created_at;index:idx_stock_movements_product_created"`
}

func (m *StockMovement) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
