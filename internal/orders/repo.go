package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/madaparts/backoffice-backend/pkg/db/models"
	"github.com/madaparts/backoffice-backend/pkg/enums"
)

// Repository manages sales orders and their lines.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.SalesOrder) error
	GetWithLines(ctx context.Context, orderID uuid.UUID) (*models.SalesOrder, error)
	SetStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error
	SetLineFulfilledEntrepot(ctx context.Context, lineID uuid.UUID, entrepotID *uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an order repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.SalesOrder) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) GetWithLines(ctx context.Context, orderID uuid.UUID) (*models.SalesOrder, error) {
	var order models.SalesOrder
	if err := r.db.WithContext(ctx).
		Preload("Lines").
		First(&order, "id = ?", orderID).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) SetStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.SalesOrder{}).
		Where("id = ?", orderID).
		Update("status", status).Error
}

func (r *repository) SetLineFulfilledEntrepot(ctx context.Context, lineID uuid.UUID, entrepotID *uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.OrderLine{}).
		Where("id = ?", lineID).
		Update("fulfilled_entrepot_id", entrepotID).Error
}
