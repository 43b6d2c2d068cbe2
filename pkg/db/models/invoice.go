package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/madaparts/backoffice-backend/pkg/enums"
)

// Invoice bills one sales order. MontantPaye and ResteAPayer are maintained
// by the payment ledger; Status is derived from them.
type Invoice struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Reference   string              `gorm:"column:reference;not null;uniqueIndex"`
	OrderID     uuid.UUID           `gorm:"column:order_id;type:uuid;not null;uniqueIndex:idx_invoices_order"`
	PrixTotal   float64             `gorm:"column:prix_total;not null;default:0"`
	MontantPaye float64             `gorm:"column:montant_paye;not null;default:0"`
	ResteAPayer float64             `gorm:"column:reste_a_payer;not null;default:0"`
	Status      enums.InvoiceStatus `gorm:"column:status;not null;default:NON_PAYEE"`
	PaidAt      *time.Time          `gorm:"column:paid_at"`
	CreatedBy   *uuid.UUID          `gorm:"column:created_by;type:uuid"`
	Discounts   []InvoiceDiscount   `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
	Payments    []Payment           `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
