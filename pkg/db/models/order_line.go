package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderLine references either a catalog product or a custom product, never
// both. EntrepotID is the caller's preferred warehouse; FulfilledEntrepotID
// records which allocation was actually debited at validation so a later
// cancellation can restore it symmetrically.
type OrderLine struct {
	ID                  uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	OrderID             uuid.UUID  `gorm:"column:order_id;type:uuid;not null;index:idx_order_lines_order"`
	ProductID           *uuid.UUID `gorm:"column:product_id;type:uuid"`
	CustomProductID     *uuid.UUID `gorm:"column:custom_product_id;type:uuid"`
	Quantite            int        `gorm:"column:quantite;not null"`
	PrixArticle         float64    `gorm:"column:prix_article;not null;default:0"`
	EntrepotID          *uuid.UUID `gorm:"column:entrepot_id;type:uuid"`
	FulfilledEntrepotID *uuid.UUID `gorm:"column:fulfilled_entrepot_id;type:uuid"`
	CreatedAt           time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (l *OrderLine) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
