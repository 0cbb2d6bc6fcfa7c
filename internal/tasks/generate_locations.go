package tasks

import (
	"context"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/openshelf/openshelf/internal/reader"
)

// GenerateLocationsTask runs the one-time location pass for an open
// reflowable reader session, making its total page count available.
type GenerateLocationsTask struct {
	SessionID  string `json:"session_id"`
	DocumentID uint   `json:"document_id"`
}

// Config returns the queue configuration for location generation.
func (t GenerateLocationsTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "generate_locations",
		MaxAttempts: 2,
		Backoff:     10 * time.Second,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// GenerateLocationsProcessor resolves the session through the registry.
// A session closed before the task runs makes it a no-op rather than a
// failure.
func GenerateLocationsProcessor(registry *reader.Registry) backlite.QueueProcessor[GenerateLocationsTask] {
	return func(ctx context.Context, task GenerateLocationsTask) error {
		session, ok := registry.Get(task.SessionID)
		if !ok {
			log.Printf("[TASK] session %s closed before location pass, skipping", task.SessionID)
			return nil
		}

		epub, ok := session.(*reader.EPUBSession)
		if !ok {
			log.Printf("[TASK] session %s is not reflowable, skipping location pass", task.SessionID)
			return nil
		}

		if err := epub.GenerateLocations(ctx); err != nil {
			return err
		}

		_, total, _ := epub.Locations()
		log.Printf("[TASK] generated %d locations for document %d", total, task.DocumentID)
		return nil
	}
}

// NewGenerateLocationsQueue creates the backlite queue for location
// generation tasks.
func NewGenerateLocationsQueue(registry *reader.Registry) backlite.Queue {
	return backlite.NewQueue(GenerateLocationsProcessor(registry))
}
