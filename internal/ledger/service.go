package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/madaparts/backoffice-backend/internal/catalog"
	"github.com/madaparts/backoffice-backend/pkg/clock"
	"github.com/madaparts/backoffice-backend/pkg/db"
	"github.com/madaparts/backoffice-backend/pkg/db/models"
	"github.com/madaparts/backoffice-backend/pkg/enums"
	pkgerrors "github.com/madaparts/backoffice-backend/pkg/errors"
	"github.com/madaparts/backoffice-backend/pkg/metrics"
	"github.com/madaparts/backoffice-backend/pkg/pagination"
)

// Service exposes the stock ledger: append, query, reconcile, adjust.
type Service interface {
	Record(ctx context.Context, tx *gorm.DB, input RecordInput) (*models.StockMovement, error)
	MovementsForProduct(ctx context.Context, productID uuid.UUID, filter Filter, page pagination.Params) ([]models.StockMovement, pagination.Meta, error)
	Reconcile(ctx context.Context, productID uuid.UUID) (*ReconcileReport, error)
	Adjust(ctx context.Context, input AdjustInput) (*models.StockMovement, error)
}

// RecordInput captures one ledger entry. Quantite is signed: debits are
// negative, credits positive.
type RecordInput struct {
	ProductID  uuid.UUID
	EntrepotID *uuid.UUID
	Type       enums.MovementType
	Quantite   int
	Source     *string
	Reason     *string
}

// AdjustInput is a manual correction or loss declaration. The counter and
// the ledger entry move together in one transaction.
type AdjustInput struct {
	ProductID uuid.UUID
	Type      enums.MovementType
	Quantite  int
	Reason    string
}

// ReconcileReport compares the stored counter against the ledger sum.
type ReconcileReport struct {
	ProductID uuid.UUID `json:"product_id"`
	Counter   int       `json:"counter"`
	LedgerSum int       `json:"ledger_sum"`
	Delta     int       `json:"delta"`
	Balanced  bool      `json:"balanced"`
}

type service struct {
	client  *db.Client
	repo    Repository
	stocks  catalog.StockRepository
	metrics *metrics.EngineMetrics
	clk     clock.Clock
}

// NewService wires the ledger service.
func NewService(client *db.Client, repo Repository, stocks catalog.StockRepository, m *metrics.EngineMetrics, clk clock.Clock) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if repo == nil {
		return nil, fmt.Errorf("movement repository required")
	}
	if stocks == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	if clk == nil {
		clk = clock.System()
	}
	return &service{client: client, repo: repo, stocks: stocks, metrics: m, clk: clk}, nil
}

// Record appends one movement. When tx is non-nil the entry joins the
// caller's transaction; the engines rely on this to keep counters and
// ledger rows atomic.
func (s *service) Record(ctx context.Context, tx *gorm.DB, input RecordInput) (*models.StockMovement, error) {
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid movement type %q", input.Type)
	}
	if input.Quantite == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "movement quantity must be non-zero")
	}
	// every tracked product carries a stock row, so this doubles as the
	// product reference check ahead of the foreign key
	if _, err := s.stocks.WithTx(tx).GetByProductID(ctx, input.ProductID); err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "no stock for product %s", input.ProductID)
		}
		return nil, err
	}

	movement := &models.StockMovement{
		ProductID:  input.ProductID,
		EntrepotID: input.EntrepotID,
		Type:       input.Type,
		Quantite:   input.Quantite,
		Source:     input.Source,
		Reason:     input.Reason,
		CreatedAt:  s.clk.Now(),
	}

	if err := s.repo.WithTx(tx).Create(ctx, movement); err != nil {
		return nil, err
	}
	s.metrics.IncMovement(movement.Type.String())
	return movement, nil
}

func (s *service) MovementsForProduct(ctx context.Context, productID uuid.UUID, filter Filter, page pagination.Params) ([]models.StockMovement, pagination.Meta, error) {
	if productID == uuid.Nil {
		return nil, pagination.Meta{}, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	for _, mt := range filter.Types {
		if !mt.IsValid() {
			return nil, pagination.Meta{}, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid movement type %q", mt)
		}
	}

	movements, total, err := s.repo.ListByProduct(ctx, productID, filter, page)
	if err != nil {
		return nil, pagination.Meta{}, err
	}
	return movements, pagination.MetaFor(page, total), nil
}

// Reconcile checks the ledger law: the global counter must equal the signed
// sum of counter-affecting product-level movements.
func (s *service) Reconcile(ctx context.Context, productID uuid.UUID) (*ReconcileReport, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	stock, err := s.stocks.GetByProductID(ctx, productID)
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "no stock for product %s", productID)
		}
		return nil, err
	}

	sum, err := s.repo.SumCounterAffecting(ctx, productID)
	if err != nil {
		return nil, err
	}

	return &ReconcileReport{
		ProductID: productID,
		Counter:   stock.Quantite,
		LedgerSum: sum,
		Delta:     stock.Quantite - sum,
		Balanced:  stock.Quantite == sum,
	}, nil
}

func (s *service) Adjust(ctx context.Context, input AdjustInput) (*models.StockMovement, error) {
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if input.Type != enums.MovementTypeAdjustment && input.Type != enums.MovementTypeLoss {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "adjust accepts ADJUSTMENT or LOSS, got %q", input.Type)
	}
	if input.Quantite == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "adjustment quantity must be non-zero")
	}
	if input.Type == enums.MovementTypeLoss && input.Quantite > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a loss removes stock, quantity must be negative")
	}
	if input.Reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a reason is required for manual adjustments")
	}

	stock, err := s.stocks.GetByProductID(ctx, input.ProductID)
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "no stock for product %s", input.ProductID)
		}
		return nil, err
	}

	var movement *models.StockMovement
	start := time.Now()
	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := s.stocks.WithTx(tx).ApplyDelta(ctx, stock.ID, catalog.CounterDelta{
			Quantite:        input.Quantite,
			QttSansEntrepot: input.Quantite,
		})
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.
				Newf(pkgerrors.CodeInsufficientStock, "adjustment of %d would overdraw product %s", input.Quantite, input.ProductID).
				WithDetails(map[string]any{"product_id": input.ProductID, "available": stock.Quantite})
		}
		if err := s.stocks.WithTx(tx).RefreshStatus(ctx, stock.ID); err != nil {
			return err
		}

		movement, err = s.Record(ctx, tx, RecordInput{
			ProductID: input.ProductID,
			Type:      input.Type,
			Quantite:  input.Quantite,
			Reason:    &input.Reason,
		})
		return err
	})
	s.metrics.ObserveTx("adjust_stock", time.Since(start))
	if err != nil {
		s.metrics.IncFailure("adjust_stock")
		return nil, err
	}
	s.metrics.IncSuccess("adjust_stock")
	return movement, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
