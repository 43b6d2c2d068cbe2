package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product is the canonical auto-parts catalog entry.
type Product struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CodeArt       string    `gorm:"column:code_art;not null;uniqueIndex:idx_products_code_art"`
	ReferenceCode *string   `gorm:"column:reference_code"`
	OEM           *string   `gorm:"column:oem"`
	Marque        *string   `gorm:"column:marque"`
	Libelle       string    `gorm:"column:libelle;not null"`
	Categorie     *string   `gorm:"column:categorie"`
	Stock         *Stock    `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
