package config

import (
	"os"

	"github.com/docsnapkit/document-snapshots-go/docsnap/sqliteengine"
)

const defaultSQLiteDSN = "file:docsnap.db"

// SQLiteDSN returns the SQLite data source name from DOCSNAP_SQLITE_DSN,
// falling back to a local file database.
func SQLiteDSN() string {
	if dsn := os.Getenv("DOCSNAP_SQLITE_DSN"); dsn != "" {
		return dsn
	}

	return defaultSQLiteDSN
}

// SQLiteConfig creates a sqliteengine.Config with production defaults for the
// configured DSN.
func SQLiteConfig() *sqliteengine.Config {
	return sqliteengine.DefaultConfig(SQLiteDSN())
}
