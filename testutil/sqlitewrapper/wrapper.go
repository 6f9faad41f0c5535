// Package sqlitewrapper bootstraps in-memory SQLite stores for tests.
package sqlitewrapper

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/docsnapkit/document-snapshots-go/docsnap/sqliteengine"
)

// GivenInMemoryStore opens a fresh in-memory store and closes it on cleanup.
// Each call returns an isolated database.
func GivenInMemoryStore(t testing.TB) *sqliteengine.Store {
	t.Helper()

	store, err := sqliteengine.Open(&sqliteengine.Config{DataSourceName: ":memory:", MaxOpenConns: 1})
	require.NoError(t, err, "error in arranging test store")

	t.Cleanup(func() { _ = store.Close() })

	return store
}
