package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/madaparts/backoffice-backend/pkg/enums"
)

// SalesOrder is a customer order. Libelle holds the walk-in label when no
// customer row exists.
type SalesOrder struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	Reference   string            `gorm:"column:reference;not null;uniqueIndex"`
	CustomerID  *uuid.UUID        `gorm:"column:customer_id;type:uuid"`
	ManagerID   *uuid.UUID        `gorm:"column:manager_id;type:uuid"`
	Libelle     *string           `gorm:"column:libelle"`
	TotalAmount float64           `gorm:"column:total_amount;not null;default:0"`
	Kind        enums.OrderKind   `gorm:"column:kind;not null;default:COMMANDE"`
	Status      enums.OrderStatus `gorm:"column:status;not null;default:EN_ATTENTE;index:idx_sales_orders_status"`
	Lines       []OrderLine       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *SalesOrder) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
