package doubles

import (
	"context"
	"sort"
	"sync"

	"github.com/docsnapkit/document-snapshots-go/docsnap"
)

// MetadataStoreDouble is an in-memory MetadataStore that counts lookups.
type MetadataStoreDouble struct {
	mu               sync.Mutex
	records          map[string]docsnap.DocumentRecord
	GetDocumentCalls int
	FailWith         error
}

// NewMetadataStoreDouble creates an empty metadata store double.
func NewMetadataStoreDouble() *MetadataStoreDouble {
	return &MetadataStoreDouble{records: make(map[string]docsnap.DocumentRecord)}
}

// SetRecord seeds or replaces a document record.
func (d *MetadataStoreDouble) SetRecord(record docsnap.DocumentRecord) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.records[record.DocumentID] = record
}

// GetDocument returns the seeded record or docsnap.ErrDocumentNotFound.
func (d *MetadataStoreDouble) GetDocument(_ context.Context, documentID string) (docsnap.DocumentRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.GetDocumentCalls++

	if d.FailWith != nil {
		return docsnap.DocumentRecord{}, d.FailWith
	}

	record, exists := d.records[documentID]
	if !exists {
		return docsnap.DocumentRecord{}, docsnap.ErrDocumentNotFound
	}

	return record, nil
}

// ChangeLogDouble is an in-memory ChangeLog that counts range queries.
type ChangeLogDouble struct {
	mu              sync.Mutex
	changes         map[string]docsnap.Changes
	GetChangesCalls int
	FailWith        error
}

// NewChangeLogDouble creates an empty change log double.
func NewChangeLogDouble() *ChangeLogDouble {
	return &ChangeLogDouble{changes: make(map[string]docsnap.Changes)}
}

// SeedChange appends a change to the in-memory log, keeping version order.
func (d *ChangeLogDouble) SeedChange(change docsnap.Change) {
	d.mu.Lock()
	defer d.mu.Unlock()

	log := append(d.changes[change.DocumentID], change)
	sort.Slice(log, func(i, j int) bool { return log[i].Version < log[j].Version })
	d.changes[change.DocumentID] = log
}

// GetChanges returns the changes with version in (sinceVersion, toVersion],
// ascending. docsnap.ToLatest as toVersion leaves the range open-ended.
func (d *ChangeLogDouble) GetChanges(
	_ context.Context,
	documentID string,
	sinceVersion docsnap.Version,
	toVersion docsnap.Version,
) (docsnap.Changes, error) {

	d.mu.Lock()
	defer d.mu.Unlock()

	d.GetChangesCalls++

	if d.FailWith != nil {
		return nil, d.FailWith
	}

	result := make(docsnap.Changes, 0)

	for _, change := range d.changes[documentID] {
		if change.Version <= sinceVersion {
			continue
		}

		if toVersion != docsnap.ToLatest && change.Version > toVersion {
			continue
		}

		result = append(result, change)
	}

	return result, nil
}

// SnapshotStoreDouble is an in-memory SnapshotStore that counts loads and saves.
type SnapshotStoreDouble struct {
	mu                sync.Mutex
	snapshots         map[string]map[docsnap.Version]docsnap.Snapshot
	LoadSnapshotCalls int
	SaveSnapshotCalls int
	FailLoadWith      error
	FailSaveWith      error
}

// NewSnapshotStoreDouble creates an empty snapshot store double.
func NewSnapshotStoreDouble() *SnapshotStoreDouble {
	return &SnapshotStoreDouble{snapshots: make(map[string]map[docsnap.Version]docsnap.Snapshot)}
}

// SeedSnapshot stores a snapshot without counting it as a save.
func (d *SnapshotStoreDouble) SeedSnapshot(snapshot docsnap.Snapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.put(snapshot)
}

// SavedSnapshot returns the stored snapshot for (documentID, version), or nil.
func (d *SnapshotStoreDouble) SavedSnapshot(documentID string, version docsnap.Version) *docsnap.Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	snapshot, exists := d.snapshots[documentID][version]
	if !exists {
		return nil
	}

	return &snapshot
}

// LoadSnapshot returns the exact or closest stored snapshot, (nil, nil) when absent.
func (d *SnapshotStoreDouble) LoadSnapshot(
	_ context.Context,
	documentID string,
	version docsnap.Version,
	findClosest bool,
) (*docsnap.Snapshot, error) {

	d.mu.Lock()
	defer d.mu.Unlock()

	d.LoadSnapshotCalls++

	if d.FailLoadWith != nil {
		return nil, d.FailLoadWith
	}

	byVersion := d.snapshots[documentID]

	if !findClosest {
		snapshot, exists := byVersion[version]
		if !exists {
			return nil, nil
		}

		return &snapshot, nil
	}

	var best *docsnap.Snapshot

	for v, snapshot := range byVersion {
		if version != docsnap.ToLatest && v > version {
			continue
		}

		if best == nil || v > best.Version {
			candidate := snapshot
			best = &candidate
		}
	}

	return best, nil
}

// SaveSnapshot stores the snapshot, last write winning per (documentID, version).
func (d *SnapshotStoreDouble) SaveSnapshot(_ context.Context, snapshot docsnap.Snapshot) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.SaveSnapshotCalls++

	if d.FailSaveWith != nil {
		return d.FailSaveWith
	}

	d.put(snapshot)

	return nil
}

func (d *SnapshotStoreDouble) put(snapshot docsnap.Snapshot) {
	byVersion, exists := d.snapshots[snapshot.DocumentID]
	if !exists {
		byVersion = make(map[docsnap.Version]docsnap.Snapshot)
		d.snapshots[snapshot.DocumentID] = byVersion
	}

	byVersion[snapshot.Version] = snapshot
}
