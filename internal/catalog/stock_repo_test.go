package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/madaparts/backoffice-backend/pkg/db/models"
	"github.com/madaparts/backoffice-backend/pkg/enums"
)

func newTestRepo(t *testing.T) (StockRepository, *gorm.DB) {
	t.Helper()

	dsn := "file:catalog_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.Product{}, &models.Stock{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewStockRepository(conn), conn
}

func seedStock(t *testing.T, conn *gorm.DB, quantity int) *models.Stock {
	t.Helper()

	product := &models.Product{CodeArt: "ART-" + uuid.NewString()[:8], Libelle: "Courroie"}
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
	return stock
}

func TestApplyDeltaGuardsNegativeCounters(t *testing.T) {
	repo, conn := newTestRepo(t)
	ctx := context.Background()
	stock := seedStock(t, conn, 3)

	ok, err := repo.ApplyDelta(ctx, stock.ID, CounterDelta{Quantite: -2, QuantiteVendu: 2, QttSansEntrepot: -2})
	if err != nil || !ok {
		t.Fatalf("expected delta to apply, got ok=%v err=%v", ok, err)
	}

	// remaining quantity is 1, a debit of 2 must be refused whole
	ok, err = repo.ApplyDelta(ctx, stock.ID, CounterDelta{Quantite: -2, QuantiteVendu: 2, QttSansEntrepot: -2})
	if err != nil {
		t.Fatalf("apply delta: %v", err)
	}
	if ok {
		t.Fatal("guard must reject an overdraw")
	}

	var reloaded models.Stock
	if err := conn.First(&reloaded, "id = ?", stock.ID).Error; err != nil {
		t.Fatalf("reload stock: %v", err)
	}
	if reloaded.Quantite != 1 || reloaded.QttSansEntrepot != 1 || reloaded.QuantiteVendu != 2 {
		t.Fatalf("unexpected counters %d/%d/%d", reloaded.Quantite, reloaded.QttSansEntrepot, reloaded.QuantiteVendu)
	}
}

func TestSetUnassignedReassertsGlobalCounter(t *testing.T) {
	repo, conn := newTestRepo(t)
	ctx := context.Background()
	stock := seedStock(t, conn, 5)

	ok, err := repo.SetUnassigned(ctx, stock.ID, 3)
	if err != nil || !ok {
		t.Fatalf("expected write to apply, got ok=%v err=%v", ok, err)
	}
	var reloaded models.Stock
	if err := conn.First(&reloaded, "id = ?", stock.ID).Error; err != nil {
		t.Fatalf("reload stock: %v", err)
	}
	if reloaded.QttSansEntrepot != 2 {
		t.Fatalf("expected unassigned 2, got %d", reloaded.QttSansEntrepot)
	}

	// an allocation the counter no longer covers must be refused
	ok, err = repo.SetUnassigned(ctx, stock.ID, 9)
	if err != nil {
		t.Fatalf("set unassigned: %v", err)
	}
	if ok {
		t.Fatal("write must be refused when quantite < allocated")
	}
	if err := conn.First(&reloaded, "id = ?", stock.ID).Error; err != nil {
		t.Fatalf("reload stock: %v", err)
	}
	if reloaded.QttSansEntrepot != 2 {
		t.Fatalf("refused write must leave the bucket untouched, got %d", reloaded.QttSansEntrepot)
	}
}

func TestRefreshStatusPreservesManualOnOrder(t *testing.T) {
	repo, conn := newTestRepo(t)
	ctx := context.Background()
	stock := seedStock(t, conn, 2)

	if ok, err := repo.ApplyDelta(ctx, stock.ID, CounterDelta{Quantite: -2, QttSansEntrepot: -2}); err != nil || !ok {
		t.Fatalf("drain stock: ok=%v err=%v", ok, err)
	}
	if err := repo.RefreshStatus(ctx, stock.ID); err != nil {
		t.Fatalf("refresh status: %v", err)
	}
	var reloaded models.Stock
	if err := conn.First(&reloaded, "id = ?", stock.ID).Error; err != nil {
		t.Fatalf("reload stock: %v", err)
	}
	if reloaded.Status != enums.StockStatusOutOfStock {
		t.Fatalf("expected RUPTURE, got %s", reloaded.Status)
	}

	// a manual EN_COMMANDE flag on empty stock survives refreshes
	if err := repo.SetStatus(ctx, stock.ID, enums.StockStatusOnOrder); err != nil {
		t.Fatalf("set status: %v", err)
	}
	if err := repo.RefreshStatus(ctx, stock.ID); err != nil {
		t.Fatalf("refresh status: %v", err)
	}
	if err := conn.First(&reloaded, "id = ?", stock.ID).Error; err != nil {
		t.Fatalf("reload stock: %v", err)
	}
	if reloaded.Status != enums.StockStatusOnOrder {
		t.Fatalf("expected EN_COMMANDE to survive, got %s", reloaded.Status)
	}

	// restocking flips it back to DISPONIBLE
	if ok, err := repo.ApplyDelta(ctx, stock.ID, CounterDelta{Quantite: 5, QttSansEntrepot: 5}); err != nil || !ok {
		t.Fatalf("restock: ok=%v err=%v", ok, err)
	}
	if err := repo.RefreshStatus(ctx, stock.ID); err != nil {
		t.Fatalf("refresh status: %v", err)
	}
	if err := conn.First(&reloaded, "id = ?", stock.ID).Error; err != nil {
		t.Fatalf("reload stock: %v", err)
	}
	if reloaded.Status != enums.StockStatusAvailable {
		t.Fatalf("expected DISPONIBLE after restock, got %s", reloaded.Status)
	}
}
