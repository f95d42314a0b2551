package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"arena-platform/backend/internal/locks"
	"arena-platform/backend/internal/models"
	"arena-platform/backend/internal/tournament"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

const (
	// DefaultTickInterval is how often active sessions are enumerated.
	DefaultTickInterval = time.Minute

	// lockTTL must outlive one full catch-up batch; a crashed holder's lock
	// expires and the next tick retries the batch.
	lockTTL = 90 * time.Second

	tickTimeout = 5 * time.Minute
)

// Engine is the per-session processing the driver runs under the lock.
type Engine interface {
	Process(ctx context.Context, sessionID string) error
}

// Driver fires on a fixed period, lists active game sessions and advances
// each one's tournament under a per-session distributed lock. Sessions are
// processed concurrently with each other but never concurrently with
// themselves; a session whose lock is held elsewhere is skipped for the tick.
type Driver struct {
	db       *gorm.DB
	mutex    *locks.Mutex
	engine   Engine
	interval time.Duration
	sched    gocron.Scheduler
}

// New creates a driver. A non-positive interval falls back to the default.
func New(db *gorm.DB, mutex *locks.Mutex, engine Engine, interval time.Duration) *Driver {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Driver{
		db:       db,
		mutex:    mutex,
		engine:   engine,
		interval: interval,
	}
}

// Start schedules the periodic tick. The first tick runs immediately.
func (d *Driver) Start() error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(d.interval),
		gocron.NewTask(d.tick),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule tick job: %w", err)
	}
	sched.Start()
	d.sched = sched
	log.Printf("[SCHEDULER] started, tick interval %s", d.interval)
	return nil
}

// Stop shuts the scheduler down, waiting for a running tick to finish.
func (d *Driver) Stop() error {
	if d.sched == nil {
		return nil
	}
	return d.sched.Shutdown()
}

// tick runs one batch. Errors are logged and never propagated: one session's
// failure must not halt the rest of the batch or the daemon.
func (d *Driver) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
	defer cancel()

	var sessions []models.GameSession
	if err := d.db.WithContext(ctx).Where("active = ?", true).Find(&sessions).Error; err != nil {
		log.Printf("[SCHEDULER] failed to list active sessions: %v", err)
		return
	}

	var wg sync.WaitGroup
	for _, session := range sessions {
		wg.Add(1)
		go func(sessionID string) {
			defer wg.Done()
			d.processSession(ctx, sessionID)
		}(session.ID)
	}
	wg.Wait()
}

func (d *Driver) processSession(ctx context.Context, sessionID string) {
	ran, err := d.mutex.RunWithLock(ctx, lockKey(sessionID), locks.Options{TTL: lockTTL}, func() error {
		return d.engine.Process(ctx, sessionID)
	})
	if err != nil {
		log.Printf("[SCHEDULER] session %s: processing failed: %v", sessionID, err)
		return
	}
	if !ran {
		log.Printf("[SCHEDULER] session %s: lock held elsewhere, tick skipped", sessionID)
	}
}

func lockKey(sessionID string) string {
	return "tournament:" + sessionID
}

var _ Engine = (*tournament.Engine)(nil)
