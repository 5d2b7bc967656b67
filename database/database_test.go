package database

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResetIndexSchemaRejectsInvalidDimension(t *testing.T) {
	err := ResetIndexSchema(context.Background(), nil, 0)
	assert.ErrorContains(t, err, "dimension must be positive")
}

func TestDropIndexSchemaNilConnection(t *testing.T) {
	assert.Error(t, DropIndexSchema(context.Background(), nil))
}

func TestPostgresConnection(t *testing.T) {
	if os.Getenv("RUN_DB_INTEGRATION_TESTS") != "1" {
		t.Skip("set RUN_DB_INTEGRATION_TESTS=1 to run database connectivity checks")
	}

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		dsn = "postgres://localhost:5432/voicerag?sslmode=disable"
	}

	ctx := context.Background()
	pool, err := NewPostgresPool(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	var one int
	require.NoError(t, pool.QueryRow(ctx, "SELECT 1").Scan(&one))
	assert.Equal(t, 1, one)
}

func TestNeo4jConnection(t *testing.T) {
	if os.Getenv("RUN_DB_INTEGRATION_TESTS") != "1" {
		t.Skip("set RUN_DB_INTEGRATION_TESTS=1 to run database connectivity checks")
	}

	uri := os.Getenv("NEO4J_URI")
	if uri == "" {
		uri = "neo4j://localhost:7687"
	}

	ctx := context.Background()
	driver, err := NewNeo4jDriver(ctx, uri, os.Getenv("NEO4J_USERNAME"), os.Getenv("NEO4J_PASSWORD"))
	require.NoError(t, err)
	defer driver.Close(ctx)
}
