package migrations

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nerrad567/gray-logic-slobs/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-slobs/internal/infrastructure/database"
)

func TestEmbeddedMigrationsApply(t *testing.T) {
	db, err := database.Open(config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "bridge.db"), WALMode: true, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // test cleanup

	ctx := context.Background()
	if err := db.Migrate(ctx, FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_logs").Scan(&n); err != nil {
		t.Fatalf("audit_logs not queryable: %v", err)
	}

	if err := db.MigrateDown(ctx, FS); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
}
