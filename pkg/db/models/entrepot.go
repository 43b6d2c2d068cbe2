package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Entrepot is a physical warehouse.
type Entrepot struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Libelle   string    `gorm:"column:libelle;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (e *Entrepot) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
