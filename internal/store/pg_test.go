package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	testDB      *gorm.DB
	pgContainer *postgres.PostgresContainer
)

func TestMain(m *testing.M) {
	ctx := context.Background()

	dsn, err := testDSN(ctx)
	if err != nil {
		fmt.Printf("Failed to prepare test database: %v\n", err)
		os.Exit(1)
	}

	testDB, err = gorm.Open(pgdriver.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err == nil {
		err = applySchema(testDB)
	}
	if err != nil {
		fmt.Printf("Failed to initialize test database: %v\n", err)
		terminateContainer(ctx)
		os.Exit(1)
	}

	code := m.Run()
	terminateContainer(ctx)
	os.Exit(code)
}

// testDSN points at TEST_DB_HOST when set, otherwise at a fresh postgres container
func testDSN(ctx context.Context) (string, error) {
	if host := os.Getenv("TEST_DB_HOST"); host != "" {
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			host,
			envOr("TEST_DB_PORT", "5432"),
			envOr("TEST_DB_USER", "postgres"),
			envOr("TEST_DB_PASSWORD", "postgres"),
			envOr("TEST_DB_NAME", "settlement_test"),
		), nil
	}

	var err error
	pgContainer, err = postgres.Run(ctx,
		"postgres:18-alpine",
		postgres.WithDatabase("settlement_test"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return "", fmt.Errorf("failed to start postgres container: %w", err)
	}

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		terminateContainer(ctx)
		return "", fmt.Errorf("failed to get connection string: %w", err)
	}
	return dsn, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func terminateContainer(ctx context.Context) {
	if pgContainer == nil {
		return
	}
	if err := pgContainer.Terminate(ctx); err != nil {
		fmt.Printf("Failed to terminate postgres container: %v\n", err)
	}
}

// applySchema executes db/init_pg_db.sql
func applySchema(db *gorm.DB) error {
	schemaSQL, err := os.ReadFile(filepath.Join("..", "..", "db", "init_pg_db.sql")) //nolint:gosec,G304
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	_, err = sqlDB.Exec(string(schemaSQL))
	return err
}

// initPGTestDB returns a store bound to a transaction rolled back when the test ends
func initPGTestDB(t *testing.T) Store {
	tx := testDB.Begin()
	require.NoError(t, tx.Error)
	t.Cleanup(func() {
		tx.Rollback()
	})

	return NewPGStore(tx)
}

// TestPostgreSQLStore runs all store tests against PostgreSQL
func TestPostgreSQLStore(t *testing.T) {
	if testDB == nil {
		t.Fatal("Test database not initialized")
	}

	t.Run("CreateOrder", func(t *testing.T) { testCreateOrder(t, initPGTestDB(t)) })
	t.Run("GetOrderByID", func(t *testing.T) { testGetOrderByID(t, initPGTestDB(t)) })
	t.Run("AttachOrderSignature", func(t *testing.T) { testAttachOrderSignature(t, initPGTestDB(t)) })
	t.Run("GetOrderBySignature", func(t *testing.T) { testGetOrderBySignature(t, initPGTestDB(t)) })
	t.Run("FinalizeOrder", func(t *testing.T) { testFinalizeOrder(t, initPGTestDB(t)) })
	t.Run("MarkOrderFailed", func(t *testing.T) { testMarkOrderFailed(t, initPGTestDB(t)) })
	t.Run("GetStaleOrders", func(t *testing.T) { testGetStaleOrders(t, initPGTestDB(t)) })
	t.Run("GetCompletedOrdersMissingGrants", func(t *testing.T) { testGetCompletedOrdersMissingGrants(t, initPGTestDB(t)) })
	t.Run("SettlementState", func(t *testing.T) { testSettlementState(t, initPGTestDB(t)) })
}
