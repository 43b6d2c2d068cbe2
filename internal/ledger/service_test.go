package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/madaparts/backoffice-backend/internal/catalog"
	"github.com/madaparts/backoffice-backend/pkg/clock"
	"github.com/madaparts/backoffice-backend/pkg/db"
	"github.com/madaparts/backoffice-backend/pkg/db/models"
	"github.com/madaparts/backoffice-backend/pkg/enums"
	pkgerrors "github.com/madaparts/backoffice-backend/pkg/errors"
	"github.com/madaparts/backoffice-backend/pkg/pagination"
)

func newTestService(t *testing.T) (Service, *gorm.DB, *clock.Fixed) {
	t.Helper()

	dsn := "file:ledger_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.Product{}, &models.Stock{}, &models.StockMovement{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	clk := clock.NewFixed(time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC))
	svc, err := NewService(db.NewWithConn(conn), NewRepository(conn), catalog.NewStockRepository(conn), nil, clk)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, conn, clk
}

func seedProduct(t *testing.T, conn *gorm.DB, quantity int) (*models.Product, *models.Stock) {
	t.Helper()

	product := &models.Product{CodeArt: "ART-" + uuid.NewString()[:8], Libelle: "Filtre a huile"}
	if err := conn.Create(product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	stock := &models.Stock{
		ProductID:       product.ID,
		Quantite:        quantity,
		QttSansEntrepot: quantity,
		Status:          enums.StockStatusForQuantity(quantity),
	}
	if err := conn.Create(stock).Error; err != nil {
		t.Fatalf("create stock: %v", err)
	}
	return product, stock
}

func TestRecordRejectsInvalidInput(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Record(ctx, nil, RecordInput{Type: enums.MovementTypeSale, Quantite: -1})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for missing product, got %v", err)
	}

	_, err = svc.Record(ctx, nil, RecordInput{ProductID: uuid.New(), Type: "BOGUS", Quantite: 1})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for bad type, got %v", err)
	}

	_, err = svc.Record(ctx, nil, RecordInput{ProductID: uuid.New(), Type: enums.MovementTypeSale, Quantite: 0})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for zero quantity, got %v", err)
	}
}

func TestRecordRejectsUnknownProduct(t *testing.T) {
	svc, conn, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Record(ctx, nil, RecordInput{ProductID: uuid.New(), Type: enums.MovementTypeImport, Quantite: 5})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found error for unknown product, got %v", err)
	}

	var count int64
	if err := conn.Model(&models.StockMovement{}).Count(&count).Error; err != nil {
		t.Fatalf("count movements: %v", err)
	}
	if count != 0 {
		t.Fatalf("no movement may be written for an unknown product, got %d", count)
	}
}

func TestMovementsForProductMostRecentFirst(t *testing.T) {
	svc, conn, clk := newTestService(t)
	ctx := context.Background()
	product, _ := seedProduct(t, conn, 10)

	for i, mt := range []enums.MovementType{enums.MovementTypeImport, enums.MovementTypeSale, enums.MovementTypeReturn} {
		qty := 5
		if mt == enums.MovementTypeSale {
			qty = -2
		}
		if _, err := svc.Record(ctx, nil, RecordInput{ProductID: product.ID, Type: mt, Quantite: qty}); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		clk.Advance(time.Minute)
	}

	movements, meta, err := svc.MovementsForProduct(ctx, product.ID, Filter{}, pagination.Params{Limit: 2})
	if err != nil {
		t.Fatalf("list movements: %v", err)
	}
	if meta.Total != 3 || meta.TotalPages != 2 {
		t.Fatalf("unexpected meta: %+v", meta)
	}
	if len(movements) != 2 {
		t.Fatalf("expected 2 movements, got %d", len(movements))
	}
	if movements[0].Type != enums.MovementTypeReturn {
		t.Fatalf("expected most recent first, got %s", movements[0].Type)
	}

	filtered, _, err := svc.MovementsForProduct(ctx, product.ID, Filter{Types: []enums.MovementType{enums.MovementTypeSale}}, pagination.Params{})
	if err != nil {
		t.Fatalf("filtered list: %v", err)
	}
	if len(filtered) != 1 || filtered[0].Type != enums.MovementTypeSale {
		t.Fatalf("expected only the SALE entry, got %+v", filtered)
	}
}

func TestReconcileIgnoresAdvisoryAndWarehouseRows(t *testing.T) {
	svc, conn, _ := newTestService(t)
	ctx := context.Background()
	product, _ := seedProduct(t, conn, 0)

	entrepotID := uuid.New()
	records := []RecordInput{
		{ProductID: product.ID, Type: enums.MovementTypeImport, Quantite: 10},
		{ProductID: product.ID, Type: enums.MovementTypeSale, Quantite: -4},
		{ProductID: product.ID, Type: enums.MovementTypeCommande, Quantite: -2},
		{ProductID: product.ID, Type: enums.MovementTypeSale, Quantite: -4, EntrepotID: &entrepotID},
		{ProductID: product.ID, Type: enums.MovementTypeTransfer, Quantite: 3},
	}
	for i, rec := range records {
		if _, err := svc.Record(ctx, nil, rec); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	if err := conn.Model(&models.Stock{}).Where("product_id = ?", product.ID).Update("quantite", 6).Error; err != nil {
		t.Fatalf("set counter: %v", err)
	}

	report, err := svc.Reconcile(ctx, product.ID)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if report.LedgerSum != 6 {
		t.Fatalf("expected ledger sum 6 (10-4), got %d", report.LedgerSum)
	}
	if !report.Balanced || report.Delta != 0 {
		t.Fatalf("expected balanced report, got %+v", report)
	}
}

func TestReconcileDetectsDrift(t *testing.T) {
	svc, conn, _ := newTestService(t)
	ctx := context.Background()
	product, _ := seedProduct(t, conn, 9)

	if _, err := svc.Record(ctx, nil, RecordInput{ProductID: product.ID, Type: enums.MovementTypeImport, Quantite: 10}); err != nil {
		t.Fatalf("record: %v", err)
	}

	report, err := svc.Reconcile(ctx, product.ID)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if report.Balanced {
		t.Fatal("expected drift to be reported")
	}
	if report.Delta != -1 {
		t.Fatalf("expected delta -1, got %d", report.Delta)
	}
}

func TestAdjustMutatesCounterAndAppendsMovement(t *testing.T) {
	svc, conn, _ := newTestService(t)
	ctx := context.Background()
	product, stock := seedProduct(t, conn, 5)

	movement, err := svc.Adjust(ctx, AdjustInput{
		ProductID: product.ID,
		Type:      enums.MovementTypeLoss,
		Quantite:  -2,
		Reason:    "casse en rayon",
	})
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if movement.Type != enums.MovementTypeLoss || movement.Quantite != -2 {
		t.Fatalf("unexpected movement: %+v", movement)
	}

	var reloaded models.Stock
	if err := conn.First(&reloaded, "id = ?", stock.ID).Error; err != nil {
		t.Fatalf("reload stock: %v", err)
	}
	if reloaded.Quantite != 3 || reloaded.QttSansEntrepot != 3 {
		t.Fatalf("expected counters 3/3, got %d/%d", reloaded.Quantite, reloaded.QttSansEntrepot)
	}
	if reloaded.Status != enums.StockStatusAvailable {
		t.Fatalf("expected DISPONIBLE, got %s", reloaded.Status)
	}
}

func TestAdjustRefusesOverdraw(t *testing.T) {
	svc, conn, _ := newTestService(t)
	ctx := context.Background()
	product, stock := seedProduct(t, conn, 2)

	_, err := svc.Adjust(ctx, AdjustInput{
		ProductID: product.ID,
		Type:      enums.MovementTypeAdjustment,
		Quantite:  -5,
		Reason:    "inventaire",
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}

	var reloaded models.Stock
	if err := conn.First(&reloaded, "id = ?", stock.ID).Error; err != nil {
		t.Fatalf("reload stock: %v", err)
	}
	if reloaded.Quantite != 2 {
		t.Fatalf("counter must be untouched after rollback, got %d", reloaded.Quantite)
	}

	var count int64
	if err := conn.Model(&models.StockMovement{}).Where("product_id = ?", product.ID).Count(&count).Error; err != nil {
		t.Fatalf("count movements: %v", err)
	}
	if count != 0 {
		t.Fatalf("no movement row may survive a rolled back adjustment, got %d", count)
	}
}

func TestAdjustRejectsPositiveLoss(t *testing.T) {
	svc, conn, _ := newTestService(t)
	ctx := context.Background()
	product, _ := seedProduct(t, conn, 2)

	_, err := svc.Adjust(ctx, AdjustInput{
		ProductID: product.ID,
		Type:      enums.MovementTypeLoss,
		Quantite:  3,
		Reason:    "erreur",
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
