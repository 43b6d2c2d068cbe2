package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStockMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_stock_tables.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no stock migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS stocks",
		"CREATE TABLE IF NOT EXISTS entrepots",
		"CREATE TABLE IF NOT EXISTS stock_entrepots",
		"CREATE TABLE IF NOT EXISTS stock_movements",
		"FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE CASCADE",
		"CHECK (quantite >= 0)",
		"CHECK (qtt_sans_entrepot >= 0)",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_stocks_product",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_stock_entrepots_stock_entrepot",
		"idx_stock_movements_product_created",
		"DROP TABLE IF EXISTS stock_movements",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}
