// Package scheduler runs periodic background jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/openshelf/openshelf/internal/config"
	"github.com/openshelf/openshelf/internal/tasks"
)

// ReconcileScheduler enqueues a storage reconciliation sweep on a cron
// schedule. The sweep itself runs on the task queue so it shares the
// queue's retry and timeout handling.
type ReconcileScheduler struct {
	taskClient *tasks.Client
	config     config.Reconcile

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	cancelFunc context.CancelFunc
}

func NewReconcileScheduler(taskClient *tasks.Client, cfg config.Reconcile) *ReconcileScheduler {
	return &ReconcileScheduler{
		taskClient: taskClient,
		config:     cfg,
		cron:       cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow))),
	}
}

// Start begins the scheduler if reconciliation is enabled.
func (s *ReconcileScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	if !s.config.Enabled {
		log.Printf("Reconcile scheduler: disabled")
		return nil
	}

	entryID, err := s.cron.AddFunc(s.config.Schedule, func() {
		s.enqueueSweep()
	})
	if err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", s.config.Schedule, err)
	}
	s.entryID = entryID

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true

	log.Printf("Reconcile scheduler: started with schedule '%s'", s.config.Schedule)

	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop gracefully stops the scheduler, waiting for a running job.
func (s *ReconcileScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()

	s.isRunning = false
	s.cancelFunc = nil

	log.Printf("Reconcile scheduler: stopped")
}

// RunNow enqueues an immediate sweep, outside the schedule.
func (s *ReconcileScheduler) RunNow() error {
	_, err := s.taskClient.Add(tasks.ReconcileStorageTask{}).Save()
	return err
}

// IsRunning reports whether the scheduler is active.
func (s *ReconcileScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetNextRunTime returns when the next sweep will be enqueued.
func (s *ReconcileScheduler) GetNextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}

	for _, entry := range s.cron.Entries() {
		if entry.ID == s.entryID {
			t := entry.Next
			return &t
		}
	}
	return nil
}

func (s *ReconcileScheduler) enqueueSweep() {
	if _, err := s.taskClient.Add(tasks.ReconcileStorageTask{}).Save(); err != nil {
		log.Printf("Reconcile scheduler: failed to enqueue sweep: %v", err)
		return
	}
	log.Printf("Reconcile scheduler: sweep enqueued")
}
