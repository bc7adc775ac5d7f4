package surrealdb

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/levfolio/levfolio/internal/common"
)

// newTestManager connects to the SurrealDB instance named by
// SURREALDB_TEST_ADDR, using a unique database per test so runs don't
// interfere. Tests are skipped when no instance is available.
func newTestManager(t *testing.T) *Manager {
	t.Helper()

	addr := os.Getenv("SURREALDB_TEST_ADDR")
	if addr == "" {
		t.Skip("SURREALDB_TEST_ADDR not set; skipping SurrealDB integration tests")
	}

	cfg := common.NewDefaultConfig()
	cfg.Storage.Address = addr
	cfg.Storage.Namespace = "levfolio_test"
	cfg.Storage.Database = fmt.Sprintf("t%d", time.Now().UnixNano())
	if user := os.Getenv("SURREALDB_TEST_USER"); user != "" {
		cfg.Storage.Username = user
	}
	if pass := os.Getenv("SURREALDB_TEST_PASS"); pass != "" {
		cfg.Storage.Password = pass
	}

	m, err := NewManager(common.NewSilentLogger(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

// et is US Eastern midnight for a calendar day in March 2024.
func et(day int) time.Time {
	return time.Date(2024, 3, day, 0, 0, 0, 0, common.Eastern())
}
