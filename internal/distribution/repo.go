package distribution

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/madaparts/backoffice-backend/pkg/db/models"
)

// EntrepotRepository manages warehouses.
type EntrepotRepository interface {
	WithTx(tx *gorm.DB) EntrepotRepository
	Create(ctx context.Context, entrepot *models.Entrepot) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Entrepot, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type entrepotRepository struct {
	db *gorm.DB
}

// NewEntrepotRepository returns a warehouse repository bound to the database.
func NewEntrepotRepository(db *gorm.DB) EntrepotRepository {
	return &entrepotRepository{db: db}
}

func (r *entrepotRepository) WithTx(tx *gorm.DB) EntrepotRepository {
	if tx == nil {
		return r
	}
	return &entrepotRepository{db: tx}
}

func (r *entrepotRepository) Create(ctx context.Context, entrepot *models.Entrepot) error {
	return r.db.WithContext(ctx).Create(entrepot).Error
}

func (r *entrepotRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Entrepot, error) {
	var entrepot models.Entrepot
	if err := r.db.WithContext(ctx).First(&entrepot, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &entrepot, nil
}

func (r *entrepotRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Entrepot{}, "id = ?", id).Error
}

// AllocationRepository manages the per-warehouse stock allocations.
type AllocationRepository interface {
	WithTx(tx *gorm.DB) AllocationRepository
	ListByStock(ctx context.Context, stockID uuid.UUID) ([]models.StockEntrepot, error)
	ListByEntrepot(ctx context.Context, entrepotID uuid.UUID) ([]models.StockEntrepot, error)
	Get(ctx context.Context, stockID, entrepotID uuid.UUID) (*models.StockEntrepot, error)
	Upsert(ctx context.Context, stockID, entrepotID uuid.UUID, quantite int) error
	DeleteAbsent(ctx context.Context, stockID uuid.UUID, keepEntrepotIDs []uuid.UUID) error
	DeleteByEntrepot(ctx context.Context, entrepotID uuid.UUID) error
	// Debit subtracts quantity from one allocation, guarded against
	// overdraw. Returns false when the guard rejected the debit.
	Debit(ctx context.Context, stockID, entrepotID uuid.UUID, quantite int) (bool, error)
	Credit(ctx context.Context, stockID, entrepotID uuid.UUID, quantite int) error
}

type allocationRepository struct {
	db *gorm.DB
}

// NewAllocationRepository returns an allocation repository bound to the database.
func NewAllocationRepository(db *gorm.DB) AllocationRepository {
	return &allocationRepository{db: db}
}

func (r *allocationRepository) WithTx(tx *gorm.DB) AllocationRepository {
	if tx == nil {
		return r
	}
	return &allocationRepository{db: tx}
}

func (r *allocationRepository) ListByStock(ctx context.Context, stockID uuid.UUID) ([]models.StockEntrepot, error) {
	var allocations []models.StockEntrepot
	if err := r.db.WithContext(ctx).
		Where("stock_id = ?", stockID).
		Order("created_at ASC").
		Find(&allocations).Error; err != nil {
		return nil, err
	}
	return allocations, nil
}

func (r *allocationRepository) ListByEntrepot(ctx context.Context, entrepotID uuid.UUID) ([]models.StockEntrepot, error) {
	var allocations []models.StockEntrepot
	if err := r.db.WithContext(ctx).
		Where("entrepot_id = ?", entrepotID).
		Find(&allocations).Error; err != nil {
		return nil, err
	}
	return allocations, nil
}

func (r *allocationRepository) Get(ctx context.Context, stockID, entrepotID uuid.UUID) (*models.StockEntrepot, error) {
	var allocation models.StockEntrepot
	if err := r.db.WithContext(ctx).
		First(&allocation, "stock_id = ? AND entrepot_id = ?", stockID, entrepotID).Error; err != nil {
		return nil, err
	}
	return &allocation, nil
}

func (r *allocationRepository) Upsert(ctx context.Context, stockID, entrepotID uuid.UUID, quantite int) error {
	// an empty allocation has no row
	if quantite == 0 {
		return r.db.WithContext(ctx).
			Where("stock_id = ? AND entrepot_id = ?", stockID, entrepotID).
			Delete(&models.StockEntrepot{}).Error
	}
	res := r.db.WithContext(ctx).
		Model(&models.StockEntrepot{}).
		Where("stock_id = ? AND entrepot_id = ?", stockID, entrepotID).
		Update("quantite", quantite)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&models.StockEntrepot{
		StockID:    stockID,
		EntrepotID: entrepotID,
		Quantite:   quantite,
	}).Error
}

func (r *allocationRepository) DeleteAbsent(ctx context.Context, stockID uuid.UUID, keepEntrepotIDs []uuid.UUID) error {
	query := r.db.WithContext(ctx).Where("stock_id = ?", stockID)
	if len(keepEntrepotIDs) > 0 {
		query = query.Where("entrepot_id NOT IN ?", keepEntrepotIDs)
	}
	return query.Delete(&models.StockEntrepot{}).Error
}

func (r *allocationRepository) DeleteByEntrepot(ctx context.Context, entrepotID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("entrepot_id = ?", entrepotID).
		Delete(&models.StockEntrepot{}).Error
}

func (r *allocationRepository) Debit(ctx context.Context, stockID, entrepotID uuid.UUID, quantite int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.StockEntrepot{}).
		Where("stock_id = ? AND entrepot_id = ? AND quantite >= ?", stockID, entrepotID, quantite).
		Update("quantite", gorm.Expr("quantite - ?", quantite))
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected != 1 {
		return false, nil
	}
	// a fully drained allocation disappears instead of lingering at zero
	return true, r.db.WithContext(ctx).
		Where("stock_id = ? AND entrepot_id = ? AND quantite = 0", stockID, entrepotID).
		Delete(&models.StockEntrepot{}).Error
}

func (r *allocationRepository) Credit(ctx context.Context, stockID, entrepotID uuid.UUID, quantite int) error {
	res := r.db.WithContext(ctx).
		Model(&models.StockEntrepot{}).
		Where("stock_id = ? AND entrepot_id = ?", stockID, entrepotID).
		Update("quantite", gorm.Expr("quantite + ?", quantite))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&models.StockEntrepot{
		StockID:    stockID,
		EntrepotID: entrepotID,
		Quantite:   quantite,
	}).Error
}
