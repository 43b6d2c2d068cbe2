package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StockEntrepot allocates part of a product's stock to one warehouse.
type StockEntrepot struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	StockID    uuid.UUID `gorm:"column:stock_id;type:uuid;not null;uniqueIndex:idx_stock_entrepots_stock_entrepot"`
	EntrepotID uuid.UUID `gorm:"column:entrepot_id;type:uuid;not null;uniqueIndex:idx_stock_entrepots_stock_entrepot"`
	Quantite   int       `gorm:"column:quantite;not null;default:0"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (se *StockEntrepot) BeforeCreate(tx *gorm.DB) error {
	if se.ID == uuid.Nil {
		se.ID = uuid.New()
	}
	return nil
}
