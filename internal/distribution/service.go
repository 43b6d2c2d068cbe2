package distribution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/madaparts/backoffice-backend/internal/catalog"
	"github.com/madaparts/backoffice-backend/internal/ledger"
	"github.com/madaparts/backoffice-backend/pkg/db"
	"github.com/madaparts/backoffice-backend/pkg/db/models"
	"github.com/madaparts/backoffice-backend/pkg/enums"
	pkgerrors "github.com/madaparts/backoffice-backend/pkg/errors"
	"github.com/madaparts/backoffice-backend/pkg/metrics"
	"github.com/madaparts/backoffice-backend/pkg/validate"
)

// Service splits product stock across warehouses and keeps the invariant
// that warehouse allocations plus the unassigned bucket equal the global
// counter.
type Service interface {
	Distribute(ctx context.Context, input DistributeInput) (*Distribution, error)
	GetProductDistribution(ctx context.Context, productID uuid.UUID) (*Distribution, error)
	Transfer(ctx context.Context, input TransferInput) error
	DeleteEntrepot(ctx context.Context, entrepotID uuid.UUID) error
}

// AllocationInput assigns a quantity to one warehouse.
type AllocationInput struct {
	EntrepotID uuid.UUID `validate:"required"`
	Quantite   int       `validate:"gte=0"`
}

// DistributeInput replaces the full distribution of one product. Warehouses
// absent from the list lose their allocation; the remainder lands in the
// unassigned bucket.
type DistributeInput struct {
	ProductID   uuid.UUID         `validate:"required"`
	Allocations []AllocationInput `validate:"dive"`
}

// TransferInput moves quantity between two buckets of the same product.
// A nil warehouse id designates the unassigned bucket.
type TransferInput struct {
	ProductID      uuid.UUID `validate:"required"`
	FromEntrepotID *uuid.UUID
	ToEntrepotID   *uuid.UUID
	Quantite       int `validate:"required,gt=0"`
}

// Allocation is one warehouse slice of a distribution.
type Allocation struct {
	EntrepotID uuid.UUID `json:"entrepot_id"`
	Libelle    string    `json:"libelle"`
	Quantite   int       `json:"quantite"`
}

// Distribution is the full warehouse picture for one product.
type Distribution struct {
	ProductID   uuid.UUID    `json:"product_id"`
	Total       int          `json:"total"`
	Unassigned  int          `json:"unassigned"`
	Allocations []Allocation `json:"allocations"`
}

type service struct {
	client      *db.Client
	entrepots   EntrepotRepository
	allocations AllocationRepository
	stocks      catalog.StockRepository
	movements   ledger.Service
	metrics     *metrics.EngineMetrics
}

// NewService wires the distribution service.
func NewService(client *db.Client, entrepots EntrepotRepository, allocations AllocationRepository, stocks catalog.StockRepository, movements ledger.Service, m *metrics.EngineMetrics) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if entrepots == nil || allocations == nil || stocks == nil {
		return nil, fmt.Errorf("repositories required")
	}
	if movements == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	return &service{
		client:      client,
		entrepots:   entrepots,
		allocations: allocations,
		stocks:      stocks,
		movements:   movements,
		metrics:     m,
	}, nil
}

func (s *service) Distribute(ctx context.Context, input DistributeInput) (*Distribution, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}

	seen := map[uuid.UUID]bool{}
	requested := 0
	for _, alloc := range input.Allocations {
		if seen[alloc.EntrepotID] {
			return nil, pkgerrors.Newf(pkgerrors.CodeInvalidDistribution, "warehouse %s listed twice", alloc.EntrepotID)
		}
		seen[alloc.EntrepotID] = true
		requested += alloc.Quantite
	}

	// the stock row is read and rewritten inside the transaction; the
	// final guarded write re-asserts that the global counter still covers
	// the allocation, so a concurrent sale or import cannot leave the
	// buckets out of balance
	start := time.Now()
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		stock, err := s.stocks.WithTx(tx).GetByProductID(ctx, input.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Newf(pkgerrors.CodeNotFound, "no stock for product %s", input.ProductID)
			}
			return err
		}
		if requested > stock.Quantite {
			return pkgerrors.
				Newf(pkgerrors.CodeInvalidDistribution, "allocations total %d exceeds stock %d", requested, stock.Quantite).
				WithDetails(map[string]any{
					"product_id": input.ProductID,
					"requested":  requested,
					"available":  stock.Quantite,
				})
		}

		allocRepo := s.allocations.WithTx(tx)
		keep := make([]uuid.UUID, 0, len(input.Allocations))
		for _, alloc := range input.Allocations {
			if _, err := s.entrepots.WithTx(tx).GetByID(ctx, alloc.EntrepotID); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.Newf(pkgerrors.CodeNotFound, "warehouse %s does not exist", alloc.EntrepotID)
				}
				return err
			}
			if err := allocRepo.Upsert(ctx, stock.ID, alloc.EntrepotID, alloc.Quantite); err != nil {
				return err
			}
			keep = append(keep, alloc.EntrepotID)
		}
		if err := allocRepo.DeleteAbsent(ctx, stock.ID, keep); err != nil {
			return err
		}

		ok, err := s.stocks.WithTx(tx).SetUnassigned(ctx, stock.ID, requested)
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "stock counters changed during distribution")
		}
		return nil
	})
	s.metrics.ObserveTx("distribute", time.Since(start))
	if err != nil {
		s.metrics.IncFailure("distribute")
		return nil, err
	}
	s.metrics.IncSuccess("distribute")

	return s.GetProductDistribution(ctx, input.ProductID)
}

func (s *service) GetProductDistribution(ctx context.Context, productID uuid.UUID) (*Distribution, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	stock, err := s.stocks.GetByProductID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "no stock for product %s", productID)
		}
		return nil, err
	}

	rows, err := s.allocations.ListByStock(ctx, stock.ID)
	if err != nil {
		return nil, err
	}

	dist := &Distribution{
		ProductID:   productID,
		Total:       stock.Quantite,
		Unassigned:  stock.QttSansEntrepot,
		Allocations: make([]Allocation, 0, len(rows)),
	}
	for _, row := range rows {
		libelle := ""
		if entrepot, err := s.entrepots.GetByID(ctx, row.EntrepotID); err == nil {
			libelle = entrepot.Libelle
		}
		dist.Allocations = append(dist.Allocations, Allocation{
			EntrepotID: row.EntrepotID,
			Libelle:    libelle,
			Quantite:   row.Quantite,
		})
	}
	return dist, nil
}

func (s *service) Transfer(ctx context.Context, input TransferInput) error {
	if err := validate.Struct(input); err != nil {
		return err
	}
	if input.FromEntrepotID == nil && input.ToEntrepotID == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "transfer needs at least one warehouse side")
	}
	if input.FromEntrepotID != nil && input.ToEntrepotID != nil && *input.FromEntrepotID == *input.ToEntrepotID {
		return pkgerrors.New(pkgerrors.CodeValidation, "source and destination warehouses are identical")
	}

	stock, err := s.stocks.GetByProductID(ctx, input.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Newf(pkgerrors.CodeNotFound, "no stock for product %s", input.ProductID)
		}
		return err
	}

	start := time.Now()
	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		allocRepo := s.allocations.WithTx(tx)
		stockRepo := s.stocks.WithTx(tx)

		// debit the source bucket
		if input.FromEntrepotID != nil {
			ok, err := allocRepo.Debit(ctx, stock.ID, *input.FromEntrepotID, input.Quantite)
			if err != nil {
				return err
			}
			if !ok {
				return pkgerrors.
					Newf(pkgerrors.CodeInsufficientStock, "warehouse %s holds less than %d", *input.FromEntrepotID, input.Quantite).
					WithDetails(map[string]any{"entrepot_id": *input.FromEntrepotID, "requested": input.Quantite})
			}
		} else {
			ok, err := stockRepo.ApplyDelta(ctx, stock.ID, catalog.CounterDelta{QttSansEntrepot: -input.Quantite})
			if err != nil {
				return err
			}
			if !ok {
				return pkgerrors.
					Newf(pkgerrors.CodeInsufficientStock, "unassigned bucket holds less than %d", input.Quantite).
					WithDetails(map[string]any{"requested": input.Quantite, "available": stock.QttSansEntrepot})
			}
		}

		// credit the destination bucket
		if input.ToEntrepotID != nil {
			if _, err := s.entrepots.WithTx(tx).GetByID(ctx, *input.ToEntrepotID); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.Newf(pkgerrors.CodeNotFound, "warehouse %s does not exist", *input.ToEntrepotID)
				}
				return err
			}
			if err := allocRepo.Credit(ctx, stock.ID, *input.ToEntrepotID, input.Quantite); err != nil {
				return err
			}
		} else {
			if _, err := stockRepo.ApplyDelta(ctx, stock.ID, catalog.CounterDelta{QttSansEntrepot: input.Quantite}); err != nil {
				return err
			}
		}

		_, err := s.movements.Record(ctx, tx, ledger.RecordInput{
			ProductID:  input.ProductID,
			EntrepotID: input.ToEntrepotID,
			Type:       enums.MovementTypeTransfer,
			Quantite:   input.Quantite,
			Source:     transferSource(input.FromEntrepotID),
		})
		return err
	})
	s.metrics.ObserveTx("transfer", time.Since(start))
	if err != nil {
		s.metrics.IncFailure("transfer")
		return err
	}
	s.metrics.IncSuccess("transfer")
	return nil
}

// DeleteEntrepot removes a warehouse and folds its allocations back into
// each product's unassigned bucket so no quantity is lost.
func (s *service) DeleteEntrepot(ctx context.Context, entrepotID uuid.UUID) error {
	if entrepotID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "warehouse id is required")
	}

	entrepot, err := s.entrepots.GetByID(ctx, entrepotID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Newf(pkgerrors.CodeNotFound, "warehouse %s does not exist", entrepotID)
		}
		return err
	}

	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		allocRepo := s.allocations.WithTx(tx)
		allocations, err := allocRepo.ListByEntrepot(ctx, entrepotID)
		if err != nil {
			return err
		}

		reason := "Suppression entrepot " + entrepot.Libelle
		for _, alloc := range allocations {
			if alloc.Quantite == 0 {
				continue
			}
			if _, err := s.stocks.WithTx(tx).ApplyDelta(ctx, alloc.StockID, catalog.CounterDelta{QttSansEntrepot: alloc.Quantite}); err != nil {
				return err
			}
			stock, err := stockByID(ctx, tx, alloc.StockID)
			if err != nil {
				return err
			}
			if _, err := s.movements.Record(ctx, tx, ledger.RecordInput{
				ProductID: stock.ProductID,
				Type:      enums.MovementTypeTransfer,
				Quantite:  alloc.Quantite,
				Reason:    &reason,
			}); err != nil {
				return err
			}
		}

		if err := allocRepo.DeleteByEntrepot(ctx, entrepotID); err != nil {
			return err
		}
		return s.entrepots.WithTx(tx).Delete(ctx, entrepotID)
	})
	if err != nil {
		s.metrics.IncFailure("delete_entrepot")
		return err
	}
	s.metrics.IncSuccess("delete_entrepot")
	return nil
}

func stockByID(ctx context.Context, tx *gorm.DB, stockID uuid.UUID) (*models.Stock, error) {
	var stock models.Stock
	if err := tx.WithContext(ctx).First(&stock, "id = ?", stockID).Error; err != nil {
		return nil, err
	}
	return &stock, nil
}

func transferSource(from *uuid.UUID) *string {
	var source string
	if from == nil {
		source = "Transfert depuis stock non affecte"
	} else {
		source = "Transfert depuis entrepot " + from.String()
	}
	return &source
}
