package database

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pos-ledger/internal/config"
)

const migrationsDir = "../../migrations"

func readMigration(t *testing.T, name string) string {
	t.Helper()
	content, err := os.ReadFile(filepath.Join(migrationsDir, name))
	if err != nil {
		t.Fatalf("Failed to read migration %s: %v", name, err)
	}
	return string(content)
}

func TestMigrationFilesExist(t *testing.T) {
	if _, err := os.Stat(migrationsDir); os.IsNotExist(err) {
		t.Fatal("Migrations directory does not exist")
	}

	expectedMigrations := []string{
		"00001_create_products_table.sql",
		"00002_create_records_table.sql",
		"00003_create_stock_movements_table.sql",
		"00004_create_expenses_table.sql",
		"00005_create_updated_at_trigger.sql",
	}

	for _, migration := range expectedMigrations {
		path := filepath.Join(migrationsDir, migration)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			t.Errorf("Migration file %s does not exist", migration)
		}
	}
}

func TestMigrationFilesHaveUpAndDown(t *testing.T) {
	files, err := os.ReadDir(migrationsDir)
	if err != nil {
		t.Fatalf("Failed to read migrations directory: %v", err)
	}

	sqlFileCount := 0
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".sql") {
			continue
		}

		sqlFileCount++
		contentStr := readMigration(t, file.Name())

		for _, directive := range []string{
			"-- +goose Up",
			"-- +goose Down",
			"-- +goose StatementBegin",
			"-- +goose StatementEnd",
		} {
			if !strings.Contains(contentStr, directive) {
				t.Errorf("Migration file %s missing '%s' directive", file.Name(), directive)
			}
		}
	}

	if sqlFileCount == 0 {
		t.Error("No SQL migration files found")
	}
}

func TestMigrationFilesCreateExpectedTables(t *testing.T) {
	expectedTables := map[string]string{
		"products":        "00001_create_products_table.sql",
		"records":         "00002_create_records_table.sql",
		"stock_movements": "00003_create_stock_movements_table.sql",
		"expenses":        "00004_create_expenses_table.sql",
	}

	for tableName, migrationFile := range expectedTables {
		contentStr := readMigration(t, migrationFile)

		if !strings.Contains(contentStr, "CREATE TABLE IF NOT EXISTS "+tableName) {
			t.Errorf("Migration file %s does not create table %s", migrationFile, tableName)
		}
		if !strings.Contains(contentStr, "DROP TABLE IF EXISTS "+tableName) {
			t.Errorf("Migration file %s does not drop table %s in down section", migrationFile, tableName)
		}
	}
}

func TestProductsTableHasRequiredColumns(t *testing.T) {
	contentStr := readMigration(t, "00001_create_products_table.sql")

	requiredColumns := []string{
		"id UUID PRIMARY KEY",
		"name VARCHAR",
		"code VARCHAR(64) UNIQUE",
		"sale_price NUMERIC",
		"cost_price NUMERIC",
		"stock_quantity INTEGER",
	}

	for _, column := range requiredColumns {
		if !strings.Contains(contentStr, column) {
			t.Errorf("Products table missing required column definition: %s", column)
		}
	}
}

func TestRecordsTableConstraints(t *testing.T) {
	contentStr := readMigration(t, "00002_create_records_table.sql")

	for _, fragment := range []string{
		"items JSONB NOT NULL",
		"kind IN ('sale', 'purchase')",
		"stock_status IN ('pending', 'applied', 'partial')",
		"discount_percent BETWEEN 0 AND 100",
	} {
		if !strings.Contains(contentStr, fragment) {
			t.Errorf("Records table missing %q", fragment)
		}
	}
}

func TestStockMovementsKeyedByIdempotencyKey(t *testing.T) {
	contentStr := readMigration(t, "00003_create_stock_movements_table.sql")

	if !strings.Contains(contentStr, "key VARCHAR(160) PRIMARY KEY") {
		t.Error("stock_movements must be keyed by the adjustment key")
	}
}

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{
		Host: "db", Port: "5432", User: "pos", Password: "pw", Database: "ledger", Schema: "public",
	})

	want := "postgres://pos:pw@db:5432/ledger?sslmode=disable&search_path=public"
	if dsn != want {
		t.Errorf("DSN() = %q, want %q", dsn, want)
	}
}
