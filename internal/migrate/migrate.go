package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/glebarez/go-sqlite"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

//go:embed migrations
var embedMigrations embed.FS

const DefaultDSN = "equotemanager.db"

func isPostgres(driver string) bool {
	return driver == "postgres" || driver == "pgx"
}

func configureGoose(driver string) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetTableName("schema_migrations")

	if driver == "sqlite" || driver == "sqlite3" {
		return goose.SetDialect("sqlite3")
	}
	if isPostgres(driver) {
		return goose.SetDialect("postgres")
	}
	return fmt.Errorf("unsupported driver for goose: %s", driver)
}

func getMigrationDir(driver string) string {
	if isPostgres(driver) {
		return "migrations/postgres"
	}
	return "migrations/sqlite"
}

func openDB(driver, dsn string) (*sql.DB, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	if isPostgres(driver) {
		return sql.Open("pgx", dsn)
	}
	return sql.Open("sqlite", dsn)
}

func prepare(driver, dsn string) (*sql.DB, string, error) {
	if driver == "" {
		driver = "sqlite"
	}
	if err := configureGoose(driver); err != nil {
		return nil, "", err
	}
	db, err := openDB(driver, dsn)
	if err != nil {
		return nil, "", eris.Wrapf(err, "open %s database", driver)
	}
	return db, getMigrationDir(driver), nil
}

// Up applies all pending migrations.
func Up(ctx context.Context, driver, dsn string) error {
	db, dir, err := prepare(driver, dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	zap.L().Info("applying migrations", zap.String("driver", driver), zap.String("dir", dir))
	return eris.Wrap(goose.UpContext(ctx, db, dir), "migrate up")
}

// Down rolls back the most recent migration.
func Down(ctx context.Context, driver, dsn string) error {
	db, dir, err := prepare(driver, dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return eris.Wrap(goose.DownContext(ctx, db, dir), "migrate down")
}

// Status prints the state of every migration.
func Status(ctx context.Context, driver, dsn string) error {
	db, dir, err := prepare(driver, dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return eris.Wrap(goose.StatusContext(ctx, db, dir), "migrate status")
}

// Version returns the current schema version.
func Version(ctx context.Context, driver, dsn string) (int64, error) {
	db, _, err := prepare(driver, dsn)
	if err != nil {
		return 0, err
	}
	defer db.Close()
	v, err := goose.GetDBVersionContext(ctx, db)
	return v, eris.Wrap(err, "migrate version")
}
