package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/madaparts/backoffice-backend/pkg/enums"
)

// Payment is one settlement row. Refunds are negative amounts pointing at
// the original payment through RefundOf; rows are never deleted.
type Payment struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	InvoiceID uuid.UUID         `gorm:"column:invoice_id;type:uuid;not null;index:idx_payments_invoice"`
	Montant   float64           `gorm:"column:montant;not null"`
	Mode      enums.PaymentMode `gorm:"column:mode;not null;default:ESPECES"`
	Reference *string           `gorm:"column:reference"`
	ManagerID *uuid.UUID        `gorm:"column:manager_id;type:uuid"`
	RefundOf  *uuid.UUID        `gorm:"column:refund_of;type:uuid"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
