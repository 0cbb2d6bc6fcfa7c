package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/openshelf/openshelf/internal/entities"
	"github.com/openshelf/openshelf/internal/storage"
)

// ReconcileStorageTask sweeps object storage against the metadata table.
// Uploads and deletes touch storage and metadata non-transactionally, so
// a crash between the two can leave either side orphaned. Metadata rows
// whose object is gone are removed; objects without a metadata row are
// reported but kept, since the file itself is the user's data.
type ReconcileStorageTask struct{}

// Config returns the queue configuration for reconciliation sweeps.
func (t ReconcileStorageTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "reconcile_storage",
		MaxAttempts: 2,
		Backoff:     5 * time.Minute,
		Timeout:     10 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   7 * 24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// ReconcileDocumentStore is the metadata access the sweep needs.
type ReconcileDocumentStore interface {
	ListAllStoragePaths() (map[string]uint, error)
	DeleteByStoragePath(path string) (int64, error)
}

// ReconcileStatusStore records the outcome of the last sweep.
type ReconcileStatusStore interface {
	SetSetting(userID uint, key, value string) error
}

// ReconcileStorageProcessor creates the processor for reconciliation
// sweeps.
func ReconcileStorageProcessor(store storage.Client, documents ReconcileDocumentStore, status ReconcileStatusStore) backlite.QueueProcessor[ReconcileStorageTask] {
	return func(ctx context.Context, _ ReconcileStorageTask) error {
		removed, orphanedObjects, err := Reconcile(ctx, store, documents)

		if status != nil {
			outcome := "ok"
			if err != nil {
				outcome = "error: " + err.Error()
			}
			_ = status.SetSetting(0, entities.SettingKeyReconcileLastAt, time.Now().Format(time.RFC3339))
			_ = status.SetSetting(0, entities.SettingKeyReconcileLastStatus,
				fmt.Sprintf("%s (removed %d stale rows, %d orphaned objects)", outcome, removed, orphanedObjects))
		}

		return err
	}
}

// Reconcile runs one sweep. Exported for the synchronous CLI path.
func Reconcile(ctx context.Context, store storage.Client, documents ReconcileDocumentStore) (removed int64, orphanedObjects int, err error) {
	known, err := documents.ListAllStoragePaths()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list metadata paths: %w", err)
	}

	objects, err := store.List(ctx, "users/")
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list storage objects: %w", err)
	}

	present := make(map[string]bool, len(objects))
	for _, obj := range objects {
		present[obj.Path] = true
		if _, ok := known[obj.Path]; !ok {
			orphanedObjects++
			log.Printf("[RECONCILE] object %s has no metadata row", obj.Path)
		}
	}

	for path := range known {
		if present[path] {
			continue
		}
		n, err := documents.DeleteByStoragePath(path)
		if err != nil {
			log.Printf("[RECONCILE] failed to remove stale row for %s: %v", path, err)
			continue
		}
		removed += n
		log.Printf("[RECONCILE] removed %d stale metadata row(s) for %s", n, path)
	}

	log.Printf("[RECONCILE] sweep done: %d stale rows removed, %d orphaned objects", removed, orphanedObjects)
	return removed, orphanedObjects, nil
}

// NewReconcileStorageQueue creates the backlite queue for reconciliation
// sweeps.
func NewReconcileStorageQueue(store storage.Client, documents ReconcileDocumentStore, status ReconcileStatusStore) backlite.Queue {
	return backlite.NewQueue(ReconcileStorageProcessor(store, documents, status))
}
