package customers

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/madaparts/backoffice-backend/pkg/db/models"
)

// Repository manages billing counterparts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, customer *models.Customer) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	// FindByContact matches on exact phone or email. Returns nil when no
	// customer matches.
	FindByContact(ctx context.Context, telephone, email string) (*models.Customer, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a customer repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, customer *models.Customer) error {
	return r.db.WithContext(ctx).Create(customer).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	if err := r.db.WithContext(ctx).First(&customer, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *repository) FindByContact(ctx context.Context, telephone, email string) (*models.Customer, error) {
	query := r.db.WithContext(ctx).Model(&models.Customer{})
	switch {
	case telephone != "" && email != "":
		query = query.Where("telephone = ? OR email = ?", telephone, email)
	case telephone != "":
		query = query.Where("telephone = ?", telephone)
	case email != "":
		query = query.Where("email = ?", email)
	default:
		return nil, nil
	}

	var customer models.Customer
	err := query.Order("created_at ASC").First(&customer).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}
