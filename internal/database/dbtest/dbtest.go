// Package dbtest starts a throwaway PostgreSQL container with the schema
// migrated, for integration tests.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"storefront/internal/database"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// StartPostgres runs postgres:15, applies the migrations and returns an open
// handle plus a teardown func.
func StartPostgres(ctx context.Context) (*sql.DB, func(), error) {
	var (
		dbName = "testdb"
		dbPwd  = "password"
		dbUser = "user"
	)

	dbContainer, err := postgres.Run(
		ctx,
		"postgres:15",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPwd),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, nil, err
	}
	terminate := func() { _ = dbContainer.Terminate(context.Background()) }

	connStr, err := dbContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		terminate()
		return nil, nil, fmt.Errorf("failed to build connection string: %w", err)
	}

	db, err := sql.Open("pgx", connStr)
	if err != nil {
		terminate()
		return nil, nil, err
	}

	if err := database.RunMigrations(db, zap.NewNop()); err != nil {
		db.Close()
		terminate()
		return nil, nil, err
	}

	return db, func() {
		db.Close()
		terminate()
	}, nil
}
