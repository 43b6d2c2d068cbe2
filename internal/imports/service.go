package imports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/madaparts/backoffice-backend/internal/catalog"
	"github.com/madaparts/backoffice-backend/internal/ledger"
	"github.com/madaparts/backoffice-backend/pkg/db"
	"github.com/madaparts/backoffice-backend/pkg/enums"
	pkgerrors "github.com/madaparts/backoffice-backend/pkg/errors"
	"github.com/madaparts/backoffice-backend/pkg/metrics"
)

// Service receives supplier imports: quantities land in the unassigned
// bucket and the retained unit price never goes down.
type Service interface {
	Receive(ctx context.Context, input ReceiveInput) (*Receipt, error)
}

// ReceiveLine is one received product.
type ReceiveLine struct {
	ProductID uuid.UUID
	Quantite  int
	PrixAchat float64
	// Coefficient overrides the document-level freight coefficient.
	Coefficient *float64
}

// ReceiveInput is one supplier delivery.
type ReceiveInput struct {
	Source      string
	Coefficient *float64
	Lines       []ReceiveLine
}

// ReceiptLine reports what one received line did to the stock.
type ReceiptLine struct {
	ProductID   uuid.UUID `json:"product_id"`
	Quantite    int       `json:"quantite"`
	LandedPrice float64   `json:"landed_price"`
	UnitPrice   float64   `json:"unit_price"`
}

// Receipt summarizes a processed delivery.
type Receipt struct {
	Source string        `json:"source"`
	Lines  []ReceiptLine `json:"lines"`
}

type service struct {
	client      *db.Client
	stocks      catalog.StockRepository
	movements   ledger.Service
	metrics     *metrics.EngineMetrics
	coefficient float64
}

// NewService wires the import receiving service. defaultCoefficient turns a
// supplier purchase price into a landed price when the document has none.
func NewService(client *db.Client, stocks catalog.StockRepository, movements ledger.Service, m *metrics.EngineMetrics, defaultCoefficient float64) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if stocks == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	if movements == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if defaultCoefficient <= 0 {
		defaultCoefficient = 1.0
	}
	return &service{
		client:      client,
		stocks:      stocks,
		movements:   movements,
		metrics:     m,
		coefficient: defaultCoefficient,
	}, nil
}

func (s *service) Receive(ctx context.Context, input ReceiveInput) (*Receipt, error) {
	if len(input.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "an import needs at least one line")
	}
	if input.Coefficient != nil && *input.Coefficient <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "freight coefficient must be positive")
	}
	for i, line := range input.Lines {
		if line.ProductID == uuid.Nil {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "line %d: product id is required", i)
		}
		if line.Quantite <= 0 {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "line %d: quantity must be positive", i)
		}
		if line.PrixAchat < 0 {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "line %d: purchase price cannot be negative", i)
		}
		if line.Coefficient != nil && *line.Coefficient <= 0 {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "line %d: coefficient must be positive", i)
		}
	}

	receipt := &Receipt{Source: input.Source, Lines: make([]ReceiptLine, 0, len(input.Lines))}
	source := "Import"
	if input.Source != "" {
		source = "Import: " + input.Source
	}

	start := time.Now()
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		stockRepo := s.stocks.WithTx(tx)

		for i, line := range input.Lines {
			stock, err := stockRepo.GetByProductID(ctx, line.ProductID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.Newf(pkgerrors.CodeNotFound, "line %d: product %s has no stock record", i, line.ProductID)
				}
				return err
			}

			landed := s.landedPrice(line, input.Coefficient)
			// the retained price only moves up so a cheap batch never
			// discounts already priced shelf stock
			retained := stock.PrixUnitaire
			if landed > retained {
				retained = landed
				if err := stockRepo.SetUnitPrice(ctx, stock.ID, retained); err != nil {
					return err
				}
			}

			ok, err := stockRepo.ApplyDelta(ctx, stock.ID, catalog.CounterDelta{
				Quantite:        line.Quantite,
				QttSansEntrepot: line.Quantite,
			})
			if err != nil {
				return err
			}
			if !ok {
				return pkgerrors.Newf(pkgerrors.CodeConflict, "counters for product %s moved during receiving", line.ProductID)
			}
			if err := stockRepo.RefreshStatus(ctx, stock.ID); err != nil {
				return err
			}

			if _, err := s.movements.Record(ctx, tx, ledger.RecordInput{
				ProductID: line.ProductID,
				Type:      enums.MovementTypeImport,
				Quantite:  line.Quantite,
				Source:    &source,
			}); err != nil {
				return err
			}

			receipt.Lines = append(receipt.Lines, ReceiptLine{
				ProductID:   line.ProductID,
				Quantite:    line.Quantite,
				LandedPrice: landed,
				UnitPrice:   retained,
			})
		}
		return nil
	})
	s.metrics.ObserveTx("receive_import", time.Since(start))
	if err != nil {
		s.metrics.IncFailure("receive_import")
		return nil, err
	}
	s.metrics.IncSuccess("receive_import")
	return receipt, nil
}

func (s *service) landedPrice(line ReceiveLine, documentCoefficient *float64) float64 {
	coefficient := s.coefficient
	if documentCoefficient != nil {
		coefficient = *documentCoefficient
	}
	if line.Coefficient != nil {
		coefficient = *line.Coefficient
	}
	landed, _ := decimal.NewFromFloat(line.PrixAchat).
		Mul(decimal.NewFromFloat(coefficient)).
		Round(2).
		Float64()
	return landed
}
