package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/madaparts/backoffice-backend/pkg/db/models"
)

// ProductRepository manages persistence for catalog products.
type ProductRepository interface {
	WithTx(tx *gorm.DB) ProductRepository
	Create(ctx context.Context, product *models.Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type productRepository struct {
	db *gorm.DB
}

// NewProductRepository returns a product repository bound to the database.
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) WithTx(tx *gorm.DB) ProductRepository {
	if tx == nil {
		return r
	}
	return &productRepository{db: tx}
}

func (r *productRepository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *productRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// CustomProductRepository manages ad-hoc sale items.
type CustomProductRepository interface {
	WithTx(tx *gorm.DB) CustomProductRepository
	Create(ctx context.Context, item *models.CustomProduct) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.CustomProduct, error)
}

type customProductRepository struct {
	db *gorm.DB
}

// NewCustomProductRepository returns a custom product repository bound to the database.
func NewCustomProductRepository(db *gorm.DB) CustomProductRepository {
	return &customProductRepository{db: db}
}

func (r *customProductRepository) WithTx(tx *gorm.DB) CustomProductRepository {
	if tx == nil {
		return r
	}
	return &customProductRepository{db: tx}
}

func (r *customProductRepository) Create(ctx context.Context, item *models.CustomProduct) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *customProductRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.CustomProduct, error) {
	var item models.CustomProduct
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}
