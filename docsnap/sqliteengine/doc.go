// Package sqliteengine implements document metadata, change log, and snapshot
// storage on SQLite.
//
// It satisfies the same engine contracts as the postgresengine package
// (MetadataStore, ChangeLog, SnapshotStore) and is intended for embedded and
// single-node deployments: local tooling, tests, and edge setups where running
// a Postgres server is not worth it. The store bootstraps its own schema on
// open.
//
// Unlike the Postgres store, which guards appends with a CTE inside a single
// insert statement, this store runs the version check and the insert inside
// one SQLite transaction. SQLite's writer lock makes that equivalent.
package sqliteengine
