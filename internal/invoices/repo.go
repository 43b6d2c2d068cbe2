package invoices

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/madaparts/backoffice-backend/pkg/db/models"
	"github.com/madaparts/backoffice-backend/pkg/enums"
)

// Settlement is the target state of a settlement write.
type Settlement struct {
	MontantPaye float64
	ResteAPayer float64
	Status      enums.InvoiceStatus
	PaidAt      *time.Time
}

// Repository manages invoices, their discounts and their payments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, invoice *models.Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	CreateDiscount(ctx context.Context, discount *models.InvoiceDiscount) error
	CreatePayment(ctx context.Context, payment *models.Payment) error
	ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]models.Payment, error)
	// UpdateSettlement writes the paid/due counters and derived status in
	// one statement. The prior status and paid amount act as an optimistic
	// lock: false means a concurrent writer moved the invoice first.
	UpdateSettlement(ctx context.Context, prior *models.Invoice, next Settlement) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an invoice repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).
		Preload("Discounts").
		Preload("Payments").
		First(&invoice, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) CreateDiscount(ctx context.Context, discount *models.InvoiceDiscount) error {
	return r.db.WithContext(ctx).Create(discount).Error
}

func (r *repository) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]models.Payment, error) {
	var payments []models.Payment
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("created_at ASC").
		Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *repository) UpdateSettlement(ctx context.Context, prior *models.Invoice, next Settlement) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("id = ? AND status = ? AND montant_paye = ?", prior.ID, prior.Status, prior.MontantPaye).
		Updates(map[string]any{
			"montant_paye":  next.MontantPaye,
			"reste_a_payer": next.ResteAPayer,
			"status":        next.Status,
			"paid_at":       next.PaidAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// OrderReader is the slice of order persistence the billing engine needs.
// Keeping it local avoids a dependency on the fulfillment package.
type OrderReader interface {
	WithTx(tx *gorm.DB) OrderReader
	GetWithLines(ctx context.Context, orderID uuid.UUID) (*models.SalesOrder, error)
	SetStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error
}

type orderReader struct {
	db *gorm.DB
}

// NewOrderReader returns the minimal order accessor used by cancellation.
func NewOrderReader(db *gorm.DB) OrderReader {
	return &orderReader{db: db}
}

func (r *orderReader) WithTx(tx *gorm.DB) OrderReader {
	if tx == nil {
		return r
	}
	return &orderReader{db: tx}
}

func (r *orderReader) GetWithLines(ctx context.Context, orderID uuid.UUID) (*models.SalesOrder, error) {
	var order models.SalesOrder
	if err := r.db.WithContext(ctx).
		Preload("Lines").
		First(&order, "id = ?", orderID).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderReader) SetStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.SalesOrder{}).
		Where("id = ?", orderID).
		Update("status", status).Error
}
