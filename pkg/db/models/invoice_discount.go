package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/madaparts/backoffice-backend/pkg/enums"
)

// InvoiceDiscount applies either a percentage (Taux) or a fixed amount
// (Montant) to the invoice total, depending on Type.
type InvoiceDiscount struct {
	ID          uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	InvoiceID   uuid.UUID          `gorm:"column:invoice_id;type:uuid;not null"`
	Description *string            `gorm:"column:description"`
	Type        enums.DiscountType `gorm:"column:type;not null"`
	Taux        *float64           `gorm:"column:taux"`
	Montant     *float64           `gorm:"column:montant"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime"`
}

func (d *InvoiceDiscount) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
