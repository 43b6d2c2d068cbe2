package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Customer is a billing counterpart. Walk-in sales carry no customer row,
// only a label on the order.
type Customer struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Nom       string    `gorm:"column:nom;not null"`
	Type      string    `gorm:"column:type;not null;default:PARTICULIER"`
	Telephone *string   `gorm:"column:telephone;index:idx_customers_telephone"`
	Email     *string   `gorm:"column:email;index:idx_customers_email"`
	Siret     *string   `gorm:"column:siret"`
	Adresse   *string   `gorm:"column:adresse"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Customer) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
