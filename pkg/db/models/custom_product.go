package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CustomProduct is an ad-hoc line item sold outside the catalog. It carries
// no stock and never touches the ledger.
type CustomProduct struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Nom          string    `gorm:"column:nom;not null"`
	Reference    *string   `gorm:"column:reference"`
	PrixUnitaire float64   `gorm:"column:prix_unitaire;not null;default:0"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (cp *CustomProduct) BeforeCreate(tx *gorm.DB) error {
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	return nil
}
