package invoices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/madaparts/backoffice-backend/internal/catalog"
	"github.com/madaparts/backoffice-backend/internal/distribution"
	"github.com/madaparts/backoffice-backend/internal/ledger"
	"github.com/madaparts/backoffice-backend/pkg/clock"
	"github.com/madaparts/backoffice-backend/pkg/db"
	"github.com/madaparts/backoffice-backend/pkg/db/models"
	"github.com/madaparts/backoffice-backend/pkg/enums"
	pkgerrors "github.com/madaparts/backoffice-backend/pkg/errors"
	"github.com/madaparts/backoffice-backend/pkg/logger"
	"github.com/madaparts/backoffice-backend/pkg/metrics"
	"github.com/madaparts/backoffice-backend/pkg/refs"
	"github.com/madaparts/backoffice-backend/pkg/validate"
)

// Service is the invoice and payment ledger.
type Service interface {
	// CreateForOrder opens the invoice inside the order validation
	// transaction. Discounts are additive against the order total, and an
	// initial payment may settle the invoice immediately.
	CreateForOrder(ctx context.Context, tx *gorm.DB, input CreateForOrderInput) (*models.Invoice, error)
	GetInvoice(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error)
	RecordPayment(ctx context.Context, input RecordPaymentInput) (*models.Invoice, error)
	CancelInvoice(ctx context.Context, input CancelInput) (*models.Invoice, error)
}

// DiscountInput is one reduction applied at invoicing time.
type DiscountInput struct {
	Description string
	Type        enums.DiscountType
	Taux        *float64
	Montant     *float64
}

// PaymentInput is a settlement handed in together with validation.
type PaymentInput struct {
	Montant   float64
	Mode      enums.PaymentMode
	Reference *string
	ManagerID *uuid.UUID
}

// CreateForOrderInput opens an invoice for a validated order.
type CreateForOrderInput struct {
	OrderID   uuid.UUID `validate:"required"`
	Total     float64   `validate:"gte=0"`
	Discounts []DiscountInput
	Payment   *PaymentInput
	CreatedBy *uuid.UUID
}

// RecordPaymentInput appends one settlement to an invoice.
type RecordPaymentInput struct {
	InvoiceID uuid.UUID         `validate:"required"`
	Montant   float64           `validate:"required,gt=0"`
	Mode      enums.PaymentMode `validate:"required"`
	Reference *string
	ManagerID *uuid.UUID
}

// CancelInput voids an invoice, refunds its payments and restores stock.
type CancelInput struct {
	InvoiceID uuid.UUID `validate:"required"`
	Raison    string    `validate:"required"`
	ManagerID *uuid.UUID
}

type service struct {
	client      *db.Client
	repo        Repository
	orders      OrderReader
	stocks      catalog.StockRepository
	allocations distribution.AllocationRepository
	movements   ledger.Service
	metrics     *metrics.EngineMetrics
	log         *logger.Logger
	clk         clock.Clock
	epsilon     float64
}

// NewService wires the billing service. Epsilon is the paid-in-full
// tolerance; float payment arithmetic never lands exactly on zero.
func NewService(client *db.Client, repo Repository, orders OrderReader, stocks catalog.StockRepository, allocations distribution.AllocationRepository, movements ledger.Service, m *metrics.EngineMetrics, log *logger.Logger, clk clock.Clock, epsilon float64) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if repo == nil || orders == nil || stocks == nil || allocations == nil {
		return nil, fmt.Errorf("repositories required")
	}
	if movements == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if log == nil {
		log = logger.New(logger.Options{ServiceName: "invoices"})
	}
	if clk == nil {
		clk = clock.System()
	}
	if epsilon <= 0 {
		epsilon = 0.01
	}
	return &service{
		client:      client,
		repo:        repo,
		orders:      orders,
		stocks:      stocks,
		allocations: allocations,
		movements:   movements,
		metrics:     m,
		log:         log,
		clk:         clk,
		epsilon:     epsilon,
	}, nil
}

func (s *service) CreateForOrder(ctx context.Context, tx *gorm.DB, input CreateForOrderInput) (*models.Invoice, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}

	total, err := applyDiscounts(input.Total, input.Discounts)
	if err != nil {
		return nil, err
	}

	paid := 0.0
	if input.Payment != nil {
		if input.Payment.Montant <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
		}
		if !input.Payment.Mode.IsValid() {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid payment mode %q", input.Payment.Mode)
		}
		if input.Payment.Montant > total+s.epsilon {
			return nil, pkgerrors.
				Newf(pkgerrors.CodeValidation, "payment %.2f exceeds the invoice total %.2f", input.Payment.Montant, total).
				WithDetails(map[string]any{"montant": input.Payment.Montant, "prix_total": total})
		}
		paid = input.Payment.Montant
	}

	montantPaye := round2(paid)
	reste := round2(total - montantPaye)
	status := enums.InvoiceStatusUnpaid
	var paidAt *time.Time
	switch {
	case montantPaye == 0:
	case reste < s.epsilon:
		// anything left below the tolerance, overshoot included, settles
		reste = 0
		status = enums.InvoiceStatusPaid
		now := s.clk.Now()
		paidAt = &now
	default:
		status = enums.InvoiceStatusPartiallyPaid
	}

	repo := s.repo.WithTx(tx)
	invoice := &models.Invoice{
		Reference:   refs.Invoice(s.clk.Now()),
		OrderID:     input.OrderID,
		PrixTotal:   total,
		MontantPaye: montantPaye,
		ResteAPayer: reste,
		Status:      status,
		PaidAt:      paidAt,
		CreatedBy:   input.CreatedBy,
	}
	if err := repo.Create(ctx, invoice); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Newf(pkgerrors.CodeConflict, "order %s is already invoiced", input.OrderID)
		}
		return nil, err
	}

	if paid > 0 {
		payment := &models.Payment{
			InvoiceID: invoice.ID,
			Montant:   paid,
			Mode:      input.Payment.Mode,
			Reference: input.Payment.Reference,
			ManagerID: input.Payment.ManagerID,
			CreatedAt: s.clk.Now(),
		}
		if err := repo.CreatePayment(ctx, payment); err != nil {
			return nil, err
		}
	}

	for _, d := range input.Discounts {
		discount := &models.InvoiceDiscount{
			InvoiceID: invoice.ID,
			Type:      d.Type,
			Taux:      d.Taux,
			Montant:   d.Montant,
		}
		if d.Description != "" {
			discount.Description = &d.Description
		}
		if err := repo.CreateDiscount(ctx, discount); err != nil {
			return nil, err
		}
	}
	return invoice, nil
}

func (s *service) GetInvoice(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error) {
	if invoiceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice id is required")
	}
	invoice, err := s.repo.GetByID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "invoice %s does not exist", invoiceID)
		}
		return nil, err
	}
	return invoice, nil
}

func (s *service) RecordPayment(ctx context.Context, input RecordPaymentInput) (*models.Invoice, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	if !input.Mode.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid payment mode %q", input.Mode)
	}

	// the invoice is read and settled inside one transaction so a
	// concurrent payment cannot base its write on the same balance
	var reference string
	start := time.Now()
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		invoice, err := repo.GetByID(ctx, input.InvoiceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Newf(pkgerrors.CodeNotFound, "invoice %s does not exist", input.InvoiceID)
			}
			return err
		}
		reference = invoice.Reference

		switch invoice.Status {
		case enums.InvoiceStatusCancelled:
			return pkgerrors.Newf(pkgerrors.CodeAlreadyCancelled, "invoice %s is cancelled", invoice.Reference)
		case enums.InvoiceStatusPaid:
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "invoice %s is already settled", invoice.Reference)
		}

		if input.Montant > invoice.ResteAPayer+s.epsilon {
			return pkgerrors.
				Newf(pkgerrors.CodeValidation, "payment %.2f exceeds the %.2f still due", input.Montant, invoice.ResteAPayer).
				WithDetails(map[string]any{"montant": input.Montant, "reste_a_payer": invoice.ResteAPayer})
		}

		payment := &models.Payment{
			InvoiceID: invoice.ID,
			Montant:   input.Montant,
			Mode:      input.Mode,
			Reference: input.Reference,
			ManagerID: input.ManagerID,
			CreatedAt: s.clk.Now(),
		}
		if err := repo.CreatePayment(ctx, payment); err != nil {
			return err
		}

		paye := round2(invoice.MontantPaye + input.Montant)
		reste := round2(invoice.PrixTotal - paye)

		status := enums.InvoiceStatusPartiallyPaid
		var paidAt *time.Time
		if reste < s.epsilon {
			// anything left below the tolerance, overshoot included, settles
			reste = 0
			status = enums.InvoiceStatusPaid
			now := s.clk.Now()
			paidAt = &now
		}
		ok, err := repo.UpdateSettlement(ctx, invoice, Settlement{
			MontantPaye: paye,
			ResteAPayer: reste,
			Status:      status,
			PaidAt:      paidAt,
		})
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.Newf(pkgerrors.CodeConflict, "invoice %s changed during payment", invoice.Reference)
		}
		// full settlement cascades to the order lifecycle
		if status == enums.InvoiceStatusPaid {
			return s.orders.WithTx(tx).SetStatus(ctx, invoice.OrderID, enums.OrderStatusDelivered)
		}
		return nil
	})
	s.metrics.ObserveTx("record_payment", time.Since(start))
	if err != nil {
		s.metrics.IncFailure("record_payment")
		return nil, err
	}
	s.metrics.IncSuccess("record_payment")
	s.log.Info(s.log.WithInvoiceRef(ctx, reference), "payment recorded")

	return s.GetInvoice(ctx, input.InvoiceID)
}

// CancelInvoice voids the invoice and its order. Every positive payment is
// reversed by a negative refund row, and stock debited at validation flows
// back to the exact bucket it came from.
func (s *service) CancelInvoice(ctx context.Context, input CancelInput) (*models.Invoice, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}

	// state is read inside the transaction and the cancellation itself is
	// a guarded write, so two concurrent cancellations cannot both apply
	// the refund rows and stock restoration
	var reference string
	start := time.Now()
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		invoice, err := repo.GetByID(ctx, input.InvoiceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Newf(pkgerrors.CodeNotFound, "invoice %s does not exist", input.InvoiceID)
			}
			return err
		}
		reference = invoice.Reference
		if invoice.Status == enums.InvoiceStatusCancelled {
			return pkgerrors.Newf(pkgerrors.CodeAlreadyCancelled, "invoice %s is already cancelled", invoice.Reference)
		}

		order, err := s.orders.WithTx(tx).GetWithLines(ctx, invoice.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Newf(pkgerrors.CodeNotFound, "order %s does not exist", invoice.OrderID)
			}
			return err
		}

		refundRef := refs.Refund(invoice.Reference)
		reason := fmt.Sprintf("Annulation facture %s: %s", invoice.Reference, input.Raison)
		// validation debits stock before the order is fully paid, so both
		// TRAITEMENT and LIVREE orders need their counters restored
		stockDebited := order.Status == enums.OrderStatusDelivered || order.Status == enums.OrderStatusProcessing

		ok, err := repo.UpdateSettlement(ctx, invoice, Settlement{Status: enums.InvoiceStatusCancelled})
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.Newf(pkgerrors.CodeConflict, "invoice %s changed during cancellation", invoice.Reference)
		}

		for i := range invoice.Payments {
			payment := invoice.Payments[i]
			if payment.Montant <= 0 || payment.RefundOf != nil {
				continue
			}
			refund := &models.Payment{
				InvoiceID: invoice.ID,
				Montant:   -payment.Montant,
				Mode:      payment.Mode,
				Reference: &refundRef,
				ManagerID: input.ManagerID,
				RefundOf:  &payment.ID,
				CreatedAt: s.clk.Now(),
			}
			if err := repo.CreatePayment(ctx, refund); err != nil {
				return err
			}
			s.metrics.IncRefund()
		}

		if err := s.orders.WithTx(tx).SetStatus(ctx, order.ID, enums.OrderStatusCancelled); err != nil {
			return err
		}

		for i := range order.Lines {
			if err := s.restoreLine(ctx, tx, order, &order.Lines[i], stockDebited, reason); err != nil {
				return err
			}
		}
		return nil
	})
	s.metrics.ObserveTx("cancel_invoice", time.Since(start))
	if err != nil {
		s.metrics.IncFailure("cancel_invoice")
		return nil, err
	}
	s.metrics.IncSuccess("cancel_invoice")
	s.log.Info(s.log.WithInvoiceRef(ctx, reference), "invoice cancelled")

	return s.GetInvoice(ctx, input.InvoiceID)
}

// restoreLine reverses one order line. Fulfilled lines give their quantity
// back to the counters and the bucket recorded at validation; lines of a
// never-validated order only release the advisory reservation.
func (s *service) restoreLine(ctx context.Context, tx *gorm.DB, order *models.SalesOrder, line *models.OrderLine, stockDebited bool, reason string) error {
	if line.ProductID == nil || line.Quantite == 0 {
		return nil
	}
	productID := *line.ProductID
	source := "Commande: " + order.Reference

	if !stockDebited {
		_, err := s.movements.Record(ctx, tx, ledger.RecordInput{
			ProductID: productID,
			Type:      enums.MovementTypeCommande,
			Quantite:  line.Quantite,
			Source:    &source,
			Reason:    &reason,
		})
		return err
	}

	stock, err := s.stocks.WithTx(tx).GetByProductID(ctx, productID)
	if err != nil {
		return err
	}

	delta := catalog.CounterDelta{
		Quantite:      line.Quantite,
		QuantiteVendu: -line.Quantite,
	}
	if line.FulfilledEntrepotID == nil {
		delta.QttSansEntrepot = line.Quantite
	}
	ok, err := s.stocks.WithTx(tx).ApplyDelta(ctx, stock.ID, delta)
	if err != nil {
		return err
	}
	if !ok {
		return pkgerrors.Newf(pkgerrors.CodeConflict, "counters for product %s moved during cancellation", productID)
	}
	if line.FulfilledEntrepotID != nil {
		if err := s.allocations.WithTx(tx).Credit(ctx, stock.ID, *line.FulfilledEntrepotID, line.Quantite); err != nil {
			return err
		}
	}
	if err := s.stocks.WithTx(tx).RefreshStatus(ctx, stock.ID); err != nil {
		return err
	}

	if _, err := s.movements.Record(ctx, tx, ledger.RecordInput{
		ProductID: productID,
		Type:      enums.MovementTypeReturn,
		Quantite:  line.Quantite,
		Source:    &source,
		Reason:    &reason,
	}); err != nil {
		return err
	}
	if line.FulfilledEntrepotID != nil {
		if _, err := s.movements.Record(ctx, tx, ledger.RecordInput{
			ProductID:  productID,
			EntrepotID: line.FulfilledEntrepotID,
			Type:       enums.MovementTypeReturn,
			Quantite:   line.Quantite,
			Source:     &source,
			Reason:     &reason,
		}); err != nil {
			return err
		}
	}
	return nil
}

// applyDiscounts computes the invoiced total. Discounts are additive, never
// compounding: every percentage applies to the original order total.
func applyDiscounts(total float64, discounts []DiscountInput) (float64, error) {
	base := decimal.NewFromFloat(total)
	hundred := decimal.NewFromInt(100)
	reduction := decimal.Zero

	for _, d := range discounts {
		switch d.Type {
		case enums.DiscountTypePercentage:
			if d.Taux == nil || *d.Taux <= 0 || *d.Taux > 100 {
				return 0, pkgerrors.New(pkgerrors.CodeValidation, "percentage discount needs a rate between 0 and 100")
			}
			reduction = reduction.Add(base.Mul(decimal.NewFromFloat(*d.Taux)).Div(hundred))
		case enums.DiscountTypeFixedAmount:
			if d.Montant == nil || *d.Montant <= 0 {
				return 0, pkgerrors.New(pkgerrors.CodeValidation, "fixed discount needs a positive amount")
			}
			reduction = reduction.Add(decimal.NewFromFloat(*d.Montant))
		default:
			return 0, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid discount type %q", d.Type)
		}
	}

	final := base.Sub(reduction)
	if final.IsNegative() {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "discounts exceed the order total")
	}
	result, _ := final.Round(2).Float64()
	return result, nil
}

func round2(value float64) float64 {
	result, _ := decimal.NewFromFloat(value).Round(2).Float64()
	return result
}
