package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/openshelf/openshelf/internal/config"
	"github.com/openshelf/openshelf/internal/database"
	"github.com/openshelf/openshelf/internal/database/documents"
	"github.com/openshelf/openshelf/internal/database/settings"
	"github.com/openshelf/openshelf/internal/entities"
	s3provider "github.com/openshelf/openshelf/internal/storage/providers/s3"
	"github.com/openshelf/openshelf/internal/tasks"
)

// ReconcileCommand runs one storage reconciliation sweep synchronously,
// without the server or task queue.
type ReconcileCommand struct {
	DatabasePath string
	Timeout      time.Duration
}

func NewReconcileCommand() *ReconcileCommand {
	return &ReconcileCommand{}
}

func (cmd *ReconcileCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("reconcile", flag.ExitOnError)

	fs.StringVar(&cmd.DatabasePath, "db", config.DefaultDatabasePath, "Path to the database file")
	fs.DurationVar(&cmd.Timeout, "timeout", 10*time.Minute, "Sweep timeout")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s reconcile [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Remove metadata rows whose storage object has vanished and report\n")
		fmt.Fprintf(os.Stderr, "objects with no metadata row. Objects are never deleted.\n\n")
		fmt.Fprintf(os.Stderr, "Storage credentials are read from the environment, same as the server.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	return fs.Parse(args)
}

func (cmd *ReconcileCommand) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), cmd.Timeout)
	defer cancel()

	db, err := database.NewDatabase(cmd.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	cfg := config.NewConfig()
	storageClient, err := s3provider.NewClient(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize object storage: %w", err)
	}

	documentStore := documents.NewRepository(db.DB)
	settingsStore := settings.NewRepository(db.DB)

	removed, orphaned, err := tasks.Reconcile(ctx, storageClient, documentStore)
	if err != nil {
		settingsStore.SetSetting(0, entities.SettingKeyReconcileLastStatus, "error: "+err.Error())
		return fmt.Errorf("reconcile failed: %w", err)
	}

	now := time.Now().Format(time.RFC3339)
	settingsStore.SetSetting(0, entities.SettingKeyReconcileLastAt, now)
	settingsStore.SetSetting(0, entities.SettingKeyReconcileLastStatus,
		fmt.Sprintf("ok (removed %d stale rows, %d orphaned objects)", removed, orphaned))

	fmt.Printf("Reconciliation sweep completed: %d stale rows removed, %d orphaned objects\n", removed, orphaned)
	return nil
}
