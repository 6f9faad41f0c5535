// Demo wires the SQLite store, the schema registry and the reconstruction
// engine end to end: register a note, commit a few changes, then materialize
// snapshots at the latest and at a historic version.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/docsnapkit/document-snapshots-go/docsnap"
	"github.com/docsnapkit/document-snapshots-go/docsnap/engine"
	"github.com/docsnapkit/document-snapshots-go/docsnap/sqliteengine"
	"github.com/docsnapkit/document-snapshots-go/example/core"
	"github.com/docsnapkit/document-snapshots-go/example/shell"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "demo failed:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	store, openErr := sqliteengine.OpenWithDataSource(":memory:")
	if openErr != nil {
		return openErr
	}
	defer func() { _ = store.Close() }()

	registry := docsnap.NewSchemaRegistry().Register(core.NoteSchema{})

	snapshotEngine, engineErr := engine.New(store, store, registry,
		engine.WithSnapshotStore(store),
		engine.WithSnapshotFrequency(2),
		engine.WithLogger(logger))
	if engineErr != nil {
		return engineErr
	}

	workflow, workflowErr := shell.NewCommitWorkflow(store, snapshotEngine, shell.WithLogger(logger))
	if workflowErr != nil {
		return workflowErr
	}

	const noteID = "demo-note"

	if registerErr := workflow.RegisterDocument(ctx, noteID, core.NoteSchemaName); registerErr != nil {
		return registerErr
	}

	setTitle, _ := core.BuildSetTitleOp("Groceries")
	firstLine, _ := core.BuildInsertLineOp(0, "milk")
	secondLine, _ := core.BuildInsertLineOp(1, "bread")
	dropFirst, _ := core.BuildDeleteLineOp(0)

	for _, op := range []docsnap.Operation{setTitle, firstLine, secondLine, dropFirst} {
		version, commitErr := workflow.CommitChange(ctx, noteID, op)
		if commitErr != nil {
			return commitErr
		}

		logger.Info("committed", "version", version)
	}

	latest, latestErr := snapshotEngine.GetSnapshot(ctx, noteID)
	if latestErr != nil {
		return latestErr
	}

	fmt.Printf("latest (v%d): %s\n", latest.Version, latest.Data)

	historic, historicErr := snapshotEngine.GetSnapshotAt(ctx, noteID, 2)
	if historicErr != nil {
		return historicErr
	}

	fmt.Printf("historic (v%d): %s\n", historic.Version, historic.Data)

	return nil
}
