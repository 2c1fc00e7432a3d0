// Package database opens the bridge's SQLite database and applies its
// schema migrations.
//
// The database holds the command audit trail. Migrations are embedded in
// the binary by the migrations package and passed to Migrate as an fs.FS:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are additive: new columns are nullable or carry a default, and
// every .up.sql has a matching .down.sql.
package database
