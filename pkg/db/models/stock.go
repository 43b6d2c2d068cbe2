package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/madaparts/backoffice-backend/pkg/enums"
)

// Stock carries the global counters for one product. QttSansEntrepot is the
// unassigned bucket: Quantite equals the sum of warehouse allocations plus
// QttSansEntrepot at all times.
type Stock struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	ProductID       uuid.UUID         `gorm:"column:product_id;type:uuid;not null;uniqueIndex:idx_stocks_product"`
	Quantite        int               `gorm:"column:quantite;not null;default:0"`
	QuantiteVendu   int               `gorm:"column:quantite_vendu;not null;default:0"`
	QttSansEntrepot int               `gorm:"column:qtt_sans_entrepot;not null;default:0"`
	PrixUnitaire    float64           `gorm:"column:prix_unitaire;not null;default:0"`
	Status          enums.StockStatus `gorm:"column:status;not null;default:RUPTURE"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Stock) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
