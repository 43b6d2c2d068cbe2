package distribution

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/madaparts/backoffice-backend/internal/catalog"
	"github.com/madaparts/backoffice-backend/internal/ledger"
	"github.com/madaparts/backoffice-backend/pkg/clock"
	"github.com/madaparts/backoffice-backend/pkg/db"
	"github.com/madaparts/backoffice-backend/pkg/db/models"
	"github.com/madaparts/backoffice-backend/pkg/enums"
	pkgerrors "github.com/madaparts/backoffice-backend/pkg/errors"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()

	dsn := "file:distribution_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(
		&models.Product{}, &models.Stock{}, &models.Entrepot{},
		&models.StockEntrepot{}, &models.StockMovement{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	client := db.NewWithConn(conn)
	stocks := catalog.NewStockRepository(conn)
	clk := clock.NewFixed(time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC))
	movements, err := ledger.NewService(client, ledger.NewRepository(conn), stocks, nil, clk)
	if err != nil {
		t.Fatalf("ledger service: %v", err)
	}

	svc, err := NewService(client, NewEntrepotRepository(conn), NewAllocationRepository(conn), stocks, movements, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, conn
}

func seedStock(t *testing.T, conn *gorm.DB, quantity int) (*models.Product, *models.Stock) {
	t.Helper()

	product := &models.Product{CodeArt: "ART-" + uuid.NewString()[:8], Libelle: "Plaquette de frein"}
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

func seedEntrepot(t *testing.T, conn *gorm.DB, libelle string) *models.Entrepot {
	t.Helper()
	entrepot := &models.Entrepot{Libelle: libelle}
	if err := conn.Create(entrepot).Error; err != nil {
		t.Fatalf("create entrepot: %v", err)
	}
	return entrepot
}

func TestDistributeSetsAllocationsAndUnassigned(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	product, _ := seedStock(t, conn, 10)
	a := seedEntrepot(t, conn, "Depot A")
	b := seedEntrepot(t, conn, "Depot B")

	dist, err := svc.Distribute(ctx, DistributeInput{
		ProductID: product.ID,
		Allocations: []AllocationInput{
			{EntrepotID: a.ID, Quantite: 4},
			{EntrepotID: b.ID, Quantite: 3},
		},
	})
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if dist.Unassigned != 3 {
		t.Fatalf("expected unassigned 3, got %d", dist.Unassigned)
	}
	if len(dist.Allocations) != 2 {
		t.Fatalf("expected 2 allocations, got %d", len(dist.Allocations))
	}

	// re-distribute dropping warehouse B
	dist, err = svc.Distribute(ctx, DistributeInput{
		ProductID:   product.ID,
		Allocations: []AllocationInput{{EntrepotID: a.ID, Quantite: 6}},
	})
	if err != nil {
		t.Fatalf("redistribute: %v", err)
	}
	if len(dist.Allocations) != 1 || dist.Allocations[0].EntrepotID != a.ID {
		t.Fatalf("expected only warehouse A to remain: %+v", dist.Allocations)
	}
	if dist.Unassigned != 4 {
		t.Fatalf("expected unassigned 4 after redistribute, got %d", dist.Unassigned)
	}
}

func TestDistributeRejectsOverAllocation(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	product, _ := seedStock(t, conn, 5)
	a := seedEntrepot(t, conn, "Depot A")

	_, err := svc.Distribute(ctx, DistributeInput{
		ProductID:   product.ID,
		Allocations: []AllocationInput{{EntrepotID: a.ID, Quantite: 6}},
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInvalidDistribution {
		t.Fatalf("expected invalid distribution error, got %v", err)
	}
}

func TestDistributeRejectsDuplicateWarehouse(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	product, _ := seedStock(t, conn, 5)
	a := seedEntrepot(t, conn, "Depot A")

	_, err := svc.Distribute(ctx, DistributeInput{
		ProductID: product.ID,
		Allocations: []AllocationInput{
			{EntrepotID: a.ID, Quantite: 2},
			{EntrepotID: a.ID, Quantite: 2},
		},
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInvalidDistribution {
		t.Fatalf("expected invalid distribution error, got %v", err)
	}
}

func TestTransferBetweenWarehouses(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	product, stock := seedStock(t, conn, 10)
	a := seedEntrepot(t, conn, "Depot A")
	b := seedEntrepot(t, conn, "Depot B")

	if _, err := svc.Distribute(ctx, DistributeInput{
		ProductID:   product.ID,
		Allocations: []AllocationInput{{EntrepotID: a.ID, Quantite: 6}},
	}); err != nil {
		t.Fatalf("distribute: %v", err)
	}

	if err := svc.Transfer(ctx, TransferInput{
		ProductID:      product.ID,
		FromEntrepotID: &a.ID,
		ToEntrepotID:   &b.ID,
		Quantite:       4,
	}); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	dist, err := svc.GetProductDistribution(ctx, product.ID)
	if err != nil {
		t.Fatalf("get distribution: %v", err)
	}
	byID := map[uuid.UUID]int{}
	for _, alloc := range dist.Allocations {
		byID[alloc.EntrepotID] = alloc.Quantite
	}
	if byID[a.ID] != 2 || byID[b.ID] != 4 {
		t.Fatalf("unexpected allocations after transfer: %v", byID)
	}
	if dist.Total != 10 {
		t.Fatalf("global counter must not change on transfer, got %d", dist.Total)
	}

	var movement models.StockMovement
	if err := conn.First(&movement, "product_id = ? AND type = ?", product.ID, enums.MovementTypeTransfer).Error; err != nil {
		t.Fatalf("expected a TRANSFER movement: %v", err)
	}
	if movement.EntrepotID == nil || *movement.EntrepotID != b.ID {
		t.Fatalf("transfer movement should carry the destination warehouse")
	}
	_ = stock
}

func TestTransferFromUnassignedGuardsOverdraw(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	product, _ := seedStock(t, conn, 3)
	a := seedEntrepot(t, conn, "Depot A")

	err := svc.Transfer(ctx, TransferInput{
		ProductID:    product.ID,
		ToEntrepotID: &a.ID,
		Quantite:     5,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}

	dist, err := svc.GetProductDistribution(ctx, product.ID)
	if err != nil {
		t.Fatalf("get distribution: %v", err)
	}
	if dist.Unassigned != 3 || len(dist.Allocations) != 0 {
		t.Fatalf("failed transfer must leave the distribution intact: %+v", dist)
	}
}

func TestTransferDrainingAllocationRemovesRow(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	product, stock := seedStock(t, conn, 8)
	a := seedEntrepot(t, conn, "Depot A")

	if _, err := svc.Distribute(ctx, DistributeInput{
		ProductID:   product.ID,
		Allocations: []AllocationInput{{EntrepotID: a.ID, Quantite: 5}},
	}); err != nil {
		t.Fatalf("distribute: %v", err)
	}

	if err := svc.Transfer(ctx, TransferInput{
		ProductID:      product.ID,
		FromEntrepotID: &a.ID,
		Quantite:       5,
	}); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	var count int64
	if err := conn.Model(&models.StockEntrepot{}).
		Where("stock_id = ? AND entrepot_id = ?", stock.ID, a.ID).
		Count(&count).Error; err != nil {
		t.Fatalf("count allocations: %v", err)
	}
	if count != 0 {
		t.Fatalf("a drained allocation must not keep a zero row, got %d", count)
	}

	dist, err := svc.GetProductDistribution(ctx, product.ID)
	if err != nil {
		t.Fatalf("get distribution: %v", err)
	}
	if dist.Unassigned != 8 || len(dist.Allocations) != 0 {
		t.Fatalf("expected everything back unassigned: %+v", dist)
	}
}

func TestDistributeZeroAllocationLeavesNoRow(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	product, stock := seedStock(t, conn, 6)
	a := seedEntrepot(t, conn, "Depot A")
	b := seedEntrepot(t, conn, "Depot B")

	if _, err := svc.Distribute(ctx, DistributeInput{
		ProductID: product.ID,
		Allocations: []AllocationInput{
			{EntrepotID: a.ID, Quantite: 0},
			{EntrepotID: b.ID, Quantite: 4},
		},
	}); err != nil {
		t.Fatalf("distribute: %v", err)
	}

	var count int64
	if err := conn.Model(&models.StockEntrepot{}).
		Where("stock_id = ? AND entrepot_id = ?", stock.ID, a.ID).
		Count(&count).Error; err != nil {
		t.Fatalf("count allocations: %v", err)
	}
	if count != 0 {
		t.Fatalf("a zero allocation must not persist a row, got %d", count)
	}

	dist, err := svc.GetProductDistribution(ctx, product.ID)
	if err != nil {
		t.Fatalf("get distribution: %v", err)
	}
	if dist.Unassigned != 2 || len(dist.Allocations) != 1 {
		t.Fatalf("unexpected distribution: %+v", dist)
	}
}

func TestDeleteEntrepotFoldsAllocationsBack(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	product, _ := seedStock(t, conn, 10)
	a := seedEntrepot(t, conn, "Depot A")

	if _, err := svc.Distribute(ctx, DistributeInput{
		ProductID:   product.ID,
		Allocations: []AllocationInput{{EntrepotID: a.ID, Quantite: 7}},
	}); err != nil {
		t.Fatalf("distribute: %v", err)
	}

	if err := svc.DeleteEntrepot(ctx, a.ID); err != nil {
		t.Fatalf("delete entrepot: %v", err)
	}

	dist, err := svc.GetProductDistribution(ctx, product.ID)
	if err != nil {
		t.Fatalf("get distribution: %v", err)
	}
	if dist.Unassigned != 10 || dist.Total != 10 {
		t.Fatalf("expected all stock back in the unassigned bucket, got %+v", dist)
	}
	if len(dist.Allocations) != 0 {
		t.Fatalf("expected no allocations left, got %+v", dist.Allocations)
	}

	var count int64
	if err := conn.Model(&models.Entrepot{}).Where("id = ?", a.ID).Count(&count).Error; err != nil {
		t.Fatalf("count entrepots: %v", err)
	}
	if count != 0 {
		t.Fatal("warehouse row should be deleted")
	}
}
