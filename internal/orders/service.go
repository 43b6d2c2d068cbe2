package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/madaparts/backoffice-backend/internal/catalog"
	"github.com/madaparts/backoffice-backend/internal/customers"
	"github.com/madaparts/backoffice-backend/internal/distribution"
	"github.com/madaparts/backoffice-backend/internal/invoices"
	"github.com/madaparts/backoffice-backend/internal/ledger"
	"github.com/madaparts/backoffice-backend/pkg/clock"
	"github.com/madaparts/backoffice-backend/pkg/db"
	"github.com/madaparts/backoffice-backend/pkg/db/models"
	"github.com/madaparts/backoffice-backend/pkg/enums"
	pkgerrors "github.com/madaparts/backoffice-backend/pkg/errors"
	"github.com/madaparts/backoffice-backend/pkg/logger"
	"github.com/madaparts/backoffice-backend/pkg/metrics"
	"github.com/madaparts/backoffice-backend/pkg/refs"
)

// Service runs the order fulfillment transaction: creation reserves stock in
// an advisory way, validation invoices the order and actually debits stock.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*models.SalesOrder, error)
	ValidateOrder(ctx context.Context, orderID uuid.UUID, input ValidateOrderInput) (*Result, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*models.SalesOrder, error)
}

// CustomProductInput describes an ad-hoc item sold outside the catalog.
type CustomProductInput struct {
	Nom          string
	Reference    *string
	PrixUnitaire float64
}

// LineInput is one order line. Exactly one of ProductID or CustomProduct
// must be set. EntrepotID is a fulfillment hint, not a hard reservation.
type LineInput struct {
	ProductID     *uuid.UUID
	CustomProduct *CustomProductInput
	Quantite      int
	PrixArticle   *float64
	EntrepotID    *uuid.UUID
}

// CreateOrderInput opens an order. No invoice exists until validation.
type CreateOrderInput struct {
	Customer    customers.ResolveInput
	Lines       []LineInput
	Kind        enums.OrderKind
	ManagerID   *uuid.UUID
	VehicleInfo string
}

// ValidateOrderInput drives the fulfillment transaction. ConfirmedLineIDs
// must name every line of the order; a stale client working from an outdated
// line list is rejected before anything moves.
type ValidateOrderInput struct {
	ConfirmedLineIDs []uuid.UUID
	Discounts        []invoices.DiscountInput
	Payment          *invoices.PaymentInput
}

// Result is the pair produced by order validation.
type Result struct {
	Order   *models.SalesOrder
	Invoice *models.Invoice
}

type service struct {
	client      *db.Client
	repo        Repository
	products    catalog.ProductRepository
	customItems catalog.CustomProductRepository
	stocks      catalog.StockRepository
	allocations distribution.AllocationRepository
	resolver    customers.Service
	billing     invoices.Service
	movements   ledger.Service
	metrics     *metrics.EngineMetrics
	log         *logger.Logger
	clk         clock.Clock
}

// NewService wires the fulfillment service.
func NewService(
	client *db.Client,
	repo Repository,
	products catalog.ProductRepository,
	customItems catalog.CustomProductRepository,
	stocks catalog.StockRepository,
	allocations distribution.AllocationRepository,
	resolver customers.Service,
	billing invoices.Service,
	movements ledger.Service,
	m *metrics.EngineMetrics,
	log *logger.Logger,
	clk clock.Clock,
) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if repo == nil || products == nil || customItems == nil || stocks == nil || allocations == nil {
		return nil, fmt.Errorf("repositories required")
	}
	if resolver == nil || billing == nil || movements == nil {
		return nil, fmt.Errorf("services required")
	}
	if log == nil {
		log = logger.New(logger.Options{ServiceName: "orders"})
	}
	if clk == nil {
		clk = clock.System()
	}
	return &service{
		client:      client,
		repo:        repo,
		products:    products,
		customItems: customItems,
		stocks:      stocks,
		allocations: allocations,
		resolver:    resolver,
		billing:     billing,
		movements:   movements,
		metrics:     m,
		log:         log,
		clk:         clk,
	}, nil
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.SalesOrder, error) {
	if input.ManagerID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "manager id is required")
	}
	if len(input.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "an order needs at least one line")
	}
	for i, line := range input.Lines {
		// zero is tolerated as a no-op line, negatives are not
		if line.Quantite < 0 {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "line %d: quantity cannot be negative", i)
		}
		if (line.ProductID == nil) == (line.CustomProduct == nil) {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "line %d: exactly one of product or custom product is required", i)
		}
		if line.CustomProduct != nil && line.CustomProduct.Nom == "" {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "line %d: custom product needs a name", i)
		}
	}
	kind := input.Kind
	if kind == "" {
		kind = enums.OrderKindCommande
	}
	if !kind.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid order kind %q", kind)
	}

	var created *models.SalesOrder
	start := time.Now()
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		resolution, err := s.resolver.Resolve(ctx, tx, input.Customer)
		if err != nil {
			return err
		}

		orderRef := refs.Order(s.clk.Now())
		total := decimal.Zero
		lines := make([]models.OrderLine, 0, len(input.Lines))

		for i, line := range input.Lines {
			built := models.OrderLine{
				Quantite:   line.Quantite,
				EntrepotID: line.EntrepotID,
			}

			switch {
			case line.ProductID != nil:
				if _, err := s.products.WithTx(tx).GetByID(ctx, *line.ProductID); err != nil {
					if errors.Is(err, gorm.ErrRecordNotFound) {
						return pkgerrors.Newf(pkgerrors.CodeNotFound, "line %d: product %s does not exist", i, *line.ProductID)
					}
					return err
				}
				stock, err := s.stocks.WithTx(tx).GetByProductID(ctx, *line.ProductID)
				if err != nil {
					if errors.Is(err, gorm.ErrRecordNotFound) {
						return pkgerrors.Newf(pkgerrors.CodeNotFound, "line %d: product %s has no stock record", i, *line.ProductID)
					}
					return err
				}
				built.ProductID = line.ProductID
				built.PrixArticle = stock.PrixUnitaire
			case line.CustomProduct != nil:
				item := &models.CustomProduct{
					Nom:          line.CustomProduct.Nom,
					Reference:    line.CustomProduct.Reference,
					PrixUnitaire: line.CustomProduct.PrixUnitaire,
				}
				if err := s.customItems.WithTx(tx).Create(ctx, item); err != nil {
					return err
				}
				built.CustomProductID = &item.ID
				built.PrixArticle = item.PrixUnitaire
			}

			if line.PrixArticle != nil {
				if *line.PrixArticle < 0 {
					return pkgerrors.Newf(pkgerrors.CodeValidation, "line %d: price cannot be negative", i)
				}
				built.PrixArticle = *line.PrixArticle
			}

			total = total.Add(decimal.NewFromFloat(built.PrixArticle).Mul(decimal.NewFromInt(int64(line.Quantite))))
			lines = append(lines, built)
		}

		totalAmount, _ := total.Round(2).Float64()
		order := &models.SalesOrder{
			Reference:   orderRef,
			CustomerID:  resolution.CustomerID,
			Libelle:     resolution.Libelle,
			ManagerID:   input.ManagerID,
			TotalAmount: totalAmount,
			Kind:        kind,
			Status:      enums.OrderStatusPending,
			Lines:       lines,
		}
		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Newf(pkgerrors.CodeConflict, "order reference %s already exists", orderRef)
			}
			return err
		}

		// advisory reservations: the ledger shows demand, counters move
		// only at validation
		source := "Commande: " + orderRef
		var reason *string
		if input.VehicleInfo != "" {
			r := "Vehicule: " + input.VehicleInfo
			reason = &r
		}
		for _, line := range order.Lines {
			if line.ProductID == nil || line.Quantite == 0 {
				continue
			}
			if _, err := s.movements.Record(ctx, tx, ledger.RecordInput{
				ProductID: *line.ProductID,
				Type:      enums.MovementTypeCommande,
				Quantite:  -line.Quantite,
				Source:    &source,
				Reason:    reason,
			}); err != nil {
				return err
			}
		}

		created = order
		return nil
	})
	s.metrics.ObserveTx("create_order", time.Since(start))
	if err != nil {
		s.metrics.IncFailure("create_order")
		return nil, err
	}
	s.metrics.IncSuccess("create_order")
	s.log.Info(s.log.WithOrderRef(ctx, created.Reference), "order created")
	return created, nil
}

// ValidateOrder turns a pending order into an invoice: stock is debited for
// every catalog line, the invoice with its discounts and optional initial
// payment is created, and the order moves to TRAITEMENT, or LIVREE when the
// payment settles the invoice in full. Either everything commits or nothing
// moves.
func (s *service) ValidateOrder(ctx context.Context, orderID uuid.UUID, input ValidateOrderInput) (*Result, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	switch order.Status {
	case enums.OrderStatusCancelled:
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "order %s is cancelled", order.Reference)
	case enums.OrderStatusProcessing, enums.OrderStatusDelivered:
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "order %s is already validated", order.Reference)
	}

	// guards against a client holding a stale copy of the order
	if len(input.ConfirmedLineIDs) != len(order.Lines) {
		return nil, pkgerrors.
			Newf(pkgerrors.CodeValidation, "confirmed %d lines but order %s has %d", len(input.ConfirmedLineIDs), order.Reference, len(order.Lines)).
			WithDetails(map[string]any{"confirmed": len(input.ConfirmedLineIDs), "lines": len(order.Lines)})
	}
	known := make(map[uuid.UUID]struct{}, len(order.Lines))
	for i := range order.Lines {
		known[order.Lines[i].ID] = struct{}{}
	}
	for _, id := range input.ConfirmedLineIDs {
		if _, ok := known[id]; !ok {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "line %s is not part of order %s", id, order.Reference)
		}
	}

	source := "Vente: " + order.Reference
	var result Result

	start := time.Now()
	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		for i := range order.Lines {
			line := &order.Lines[i]
			if line.ProductID == nil || line.Quantite == 0 {
				continue
			}
			if err := s.fulfillLine(ctx, tx, line, source); err != nil {
				return err
			}
		}

		// the status check above ran outside this transaction; the unique
		// index on invoices.order_id arbitrates concurrent validations of
		// the same order, whichever lands second fails here and rolls back
		invoice, err := s.billing.CreateForOrder(ctx, tx, invoices.CreateForOrderInput{
			OrderID:   order.ID,
			Total:     order.TotalAmount,
			Discounts: input.Discounts,
			Payment:   input.Payment,
			CreatedBy: order.ManagerID,
		})
		if err != nil {
			return err
		}

		status := enums.OrderStatusProcessing
		if invoice.Status == enums.InvoiceStatusPaid {
			status = enums.OrderStatusDelivered
		}
		if err := s.repo.WithTx(tx).SetStatus(ctx, order.ID, status); err != nil {
			return err
		}

		result.Invoice = invoice
		return nil
	})
	s.metrics.ObserveTx("validate_order", time.Since(start))
	if err != nil {
		s.metrics.IncFailure("validate_order")
		return nil, err
	}
	s.metrics.IncSuccess("validate_order")
	s.log.Info(s.log.WithOrderRef(ctx, order.Reference), "order validated")

	result.Order, err = s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// fulfillLine debits one catalog line. The guarded updates make concurrent
// validations safe: whichever transaction loses the guard gets an
// insufficient stock error and rolls back whole.
func (s *service) fulfillLine(ctx context.Context, tx *gorm.DB, line *models.OrderLine, source string) error {
	productID := *line.ProductID

	stock, err := s.stocks.WithTx(tx).GetByProductID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Newf(pkgerrors.CodeNotFound, "product %s has no stock record", productID)
		}
		return err
	}

	delta := catalog.CounterDelta{
		Quantite:      -line.Quantite,
		QuantiteVendu: line.Quantite,
	}

	if line.EntrepotID != nil {
		ok, err := s.allocations.WithTx(tx).Debit(ctx, stock.ID, *line.EntrepotID, line.Quantite)
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.
				Newf(pkgerrors.CodeInsufficientStock, "warehouse %s holds less than %d of product %s", *line.EntrepotID, line.Quantite, productID).
				WithDetails(map[string]any{"product_id": productID, "entrepot_id": *line.EntrepotID, "requested": line.Quantite})
		}
	} else {
		delta.QttSansEntrepot = -line.Quantite
	}

	ok, err := s.stocks.WithTx(tx).ApplyDelta(ctx, stock.ID, delta)
	if err != nil {
		return err
	}
	if !ok {
		return pkgerrors.
			Newf(pkgerrors.CodeInsufficientStock, "stock of product %s is below %d", productID, line.Quantite).
			WithDetails(map[string]any{"product_id": productID, "requested": line.Quantite, "available": stock.Quantite})
	}
	if err := s.stocks.WithTx(tx).RefreshStatus(ctx, stock.ID); err != nil {
		return err
	}

	if err := s.repo.WithTx(tx).SetLineFulfilledEntrepot(ctx, line.ID, line.EntrepotID); err != nil {
		return err
	}
	line.FulfilledEntrepotID = line.EntrepotID

	if _, err := s.movements.Record(ctx, tx, ledger.RecordInput{
		ProductID: productID,
		Type:      enums.MovementTypeSale,
		Quantite:  -line.Quantite,
		Source:    &source,
	}); err != nil {
		return err
	}
	if line.EntrepotID != nil {
		if _, err := s.movements.Record(ctx, tx, ledger.RecordInput{
			ProductID:  productID,
			EntrepotID: line.EntrepotID,
			Type:       enums.MovementTypeSale,
			Quantite:   -line.Quantite,
			Source:     &source,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.SalesOrder, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	order, err := s.repo.GetWithLines(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "order %s does not exist", orderID)
		}
		return nil, err
	}
	return order, nil
}
