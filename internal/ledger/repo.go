package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/madaparts/backoffice-backend/pkg/db/models"
	"github.com/madaparts/backoffice-backend/pkg/enums"
	"github.com/madaparts/backoffice-backend/pkg/pagination"
)

// Filter narrows a movement listing.
type Filter struct {
	Types []enums.MovementType
	From  *time.Time
	To    *time.Time
}

// Repository manages persistence for stock movements. Movements are
// append-only; there is deliberately no update or delete.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, movement *models.StockMovement) error
	ListByProduct(ctx context.Context, productID uuid.UUID, filter Filter, page pagination.Params) ([]models.StockMovement, int64, error)
	// SumCounterAffecting totals the signed quantities of product-level
	// movements whose type mutates the global counter. Warehouse-scoped rows
	// and advisory COMMANDE entries are excluded.
	SumCounterAffecting(ctx context.Context, productID uuid.UUID) (int, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a movement repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, movement *models.StockMovement) error {
	return r.db.WithContext(ctx).Create(movement).Error
}

func (r *repository) ListByProduct(ctx context.Context, productID uuid.UUID, filter Filter, page pagination.Params) ([]models.StockMovement, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.StockMovement{}).
		Where("product_id = ?", productID)

	if len(filter.Types) > 0 {
		query = query.Where("type IN ?", filter.Types)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at <= ?", *filter.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	normalized := pagination.Normalize(page)
	var movements []models.StockMovement
	if err := query.
		Order("created_at DESC").
		Limit(normalized.Limit).
		Offset(page.Offset()).
		Find(&movements).Error; err != nil {
		return nil, 0, err
	}
	return movements, total, nil
}

func (r *repository) SumCounterAffecting(ctx context.Context, productID uuid.UUID) (int, error) {
	affecting := []enums.MovementType{
		enums.MovementTypeImport,
		enums.MovementTypeSale,
		enums.MovementTypeReturn,
		enums.MovementTypeAdjustment,
		enums.MovementTypeLoss,
	}

	var sum *int
	if err := r.db.WithContext(ctx).
		Model(&models.StockMovement{}).
		Select("SUM(quantite)").
		Where("product_id = ? AND entrepot_id IS NULL AND type IN ?", productID, affecting).
		Scan(&sum).Error; err != nil {
		return 0, err
	}
	if sum == nil {
		return 0, nil
	}
	return *sum, nil
}
