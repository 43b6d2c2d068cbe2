package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/madaparts/backoffice-backend/pkg/db/models"
	"github.com/madaparts/backoffice-backend/pkg/enums"
)

// CounterDelta is a signed mutation of the stock counters. The guarded
// update refuses any delta that would drive Quantite or QttSansEntrepot
// negative, which is what keeps concurrent debits from overdrawing.
type CounterDelta struct {
	Quantite        int
	QuantiteVendu   int
	QttSansEntrepot int
}

// StockRepository manages the per-product counters.
type StockRepository interface {
	WithTx(tx *gorm.DB) StockRepository
	Create(ctx context.Context, stock *models.Stock) error
	GetByProductID(ctx context.Context, productID uuid.UUID) (*models.Stock, error)
	// ApplyDelta mutates the counters atomically. It returns false without
	// error when the guard rejected the delta.
	ApplyDelta(ctx context.Context, stockID uuid.UUID, delta CounterDelta) (bool, error)
	// SetUnassigned rewrites the unassigned bucket as quantite minus the
	// allocated total, re-asserting in the same statement that the global
	// counter still covers the allocation. False means the stock moved.
	SetUnassigned(ctx context.Context, stockID uuid.UUID, allocated int) (bool, error)
	SetUnitPrice(ctx context.Context, stockID uuid.UUID, price float64) error
	SetStatus(ctx context.Context, stockID uuid.UUID, status enums.StockStatus) error
	// RefreshStatus re-derives DISPONIBLE/RUPTURE from the quantity while
	// preserving a manual EN_COMMANDE flag on empty stock.
	RefreshStatus(ctx context.Context, stockID uuid.UUID) error
}

type stockRepository struct {
	db *gorm.DB
}

// NewStockRepository returns a stock repository bound to the database.
func NewStockRepository(db *gorm.DB) StockRepository {
	return &stockRepository{db: db}
}

func (r *stockRepository) WithTx(tx *gorm.DB) StockRepository {
	if tx == nil {
		return r
	}
	return &stockRepository{db: tx}
}

func (r *stockRepository) Create(ctx context.Context, stock *models.Stock) error {
	return r.db.WithContext(ctx).Create(stock).Error
}

func (r *stockRepository) GetByProductID(ctx context.Context, productID uuid.UUID) (*models.Stock, error) {
	var stock models.Stock
	if err := r.db.WithContext(ctx).First(&stock, "product_id = ?", productID).Error; err != nil {
		return nil, err
	}
	return &stock, nil
}

func (r *stockRepository) ApplyDelta(ctx context.Context, stockID uuid.UUID, delta CounterDelta) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Stock{}).
		Where("id = ? AND quantite + ? >= 0 AND qtt_sans_entrepot + ? >= 0 AND quantite_vendu + ? >= 0",
			stockID, delta.Quantite, delta.QttSansEntrepot, delta.QuantiteVendu).
		Updates(map[string]any{
			"quantite":          gorm.Expr("quantite + ?", delta.Quantite),
			"quantite_vendu":    gorm.Expr("quantite_vendu + ?", delta.QuantiteVendu),
			"qtt_sans_entrepot": gorm.Expr("qtt_sans_entrepot + ?", delta.QttSansEntrepot),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *stockRepository) SetUnassigned(ctx context.Context, stockID uuid.UUID, allocated int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Stock{}).
		Where("id = ? AND quantite >= ?", stockID, allocated).
		Update("qtt_sans_entrepot", gorm.Expr("quantite - ?", allocated))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *stockRepository) SetUnitPrice(ctx context.Context, stockID uuid.UUID, price float64) error {
	return r.db.WithContext(ctx).
		Model(&models.Stock{}).
		Where("id = ?", stockID).
		Update("prix_unitaire", price).Error
}

func (r *stockRepository) SetStatus(ctx context.Context, stockID uuid.UUID, status enums.StockStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Stock{}).
		Where("id = ?", stockID).
		Update("status", status).Error
}

func (r *stockRepository) RefreshStatus(ctx context.Context, stockID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Stock{}).
		Where("id = ?", stockID).
		Update("status", gorm.Expr(
			"CASE WHEN quantite > 0 THEN ? WHEN status = ? THEN ? ELSE ? END",
			enums.StockStatusAvailable,
			enums.StockStatusOnOrder, enums.StockStatusOnOrder,
			enums.StockStatusOutOfStock,
		)).Error
}
