package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is the operator recorded on orders, invoices and payments.
type User struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Nom       string    `gorm:"column:nom;not null"`
	Email     string    `gorm:"column:email;not null;uniqueIndex"`
	Role      string    `gorm:"column:role;not null;default:GESTIONNAIRE"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
