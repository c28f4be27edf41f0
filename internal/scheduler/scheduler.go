package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"property-marketplace/internal/cleanup"
	"property-marketplace/internal/config"
	"property-marketplace/internal/metrics"
)

const (
	JobReconcile = "reconcile"
	JobCleanup   = "cleanup"
)

// Pruner drops idle per-user state
type Pruner interface {
	Prune() int
}

// Scheduler runs the periodic maintenance jobs
type Scheduler struct {
	cron      *cron.Cron
	cleanup   *cleanup.Service
	config    *config.Config
	quota     Pruner
	timeout   time.Duration
	mu        sync.Mutex
	isRunning bool
}

// NewScheduler creates a new scheduler. quota may be nil.
func NewScheduler(svc *cleanup.Service, cfg *config.Config, quota Pruner) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger{}),
			cron.SkipIfStillRunning(cronLogger{}),
		)),
		cleanup: svc,
		config:  cfg,
		quota:   quota,
		timeout: 10 * time.Minute,
	}
}

// Start registers the jobs and starts the cron loop
func (s *Scheduler) Start() error {
	if !s.config.Scheduler.Enabled {
		log.Println("[Scheduler] Disabled in configuration")
		return nil
	}

	jobs := []struct {
		name string
		spec string
		run  func(context.Context) error
	}{
		{JobReconcile, s.config.Scheduler.ReconcileCron, s.RunReconcile},
		{JobCleanup, s.config.Scheduler.CleanupCron, s.RunCleanup},
	}
	for _, job := range jobs {
		job := job
		if job.spec == "" {
			continue
		}
		if _, err := s.cron.AddFunc(job.spec, func() { s.runJob(job.name, job.run) }); err != nil {
			return fmt.Errorf("invalid cron spec %q for job %s: %w", job.spec, job.name, err)
		}
		log.Printf("[Scheduler] Registered %s job (cron: %s)", job.name, job.spec)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cron.Start()
	s.isRunning = true
	log.Println("[Scheduler] Started")
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		<-s.cron.Stop().Done()
		s.isRunning = false
		log.Println("[Scheduler] Stopped")
	}
}

func (s *Scheduler) runJob(name string, run func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	err := run(ctx)
	metrics.RecordJobRun(name, time.Since(start), err == nil)
	if err != nil {
		log.Printf("[Scheduler] Job %s failed: %v", name, err)
		return
	}
	log.Printf("[Scheduler] Job %s completed in %v", name, time.Since(start))
}

// RunReconcile repairs approval divergence once
func (s *Scheduler) RunReconcile(ctx context.Context) error {
	_, err := s.cleanup.Reconcile(ctx)
	return err
}

// RunCleanup deletes orphan properties once and prunes idle quota state
func (s *Scheduler) RunCleanup(ctx context.Context) error {
	if _, err := s.cleanup.DeleteOrphans(ctx, cleanup.NewCleanupConfig(s.config.Cleanup)); err != nil {
		return err
	}
	if s.quota != nil {
		if n := s.quota.Prune(); n > 0 {
			log.Printf("[Scheduler] Pruned quota state of %d idle users", n)
		}
	}
	return nil
}

// cronLogger adapts logrus to cron.Logger
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.WithFields(fields(keysAndValues)).Debugf("[Scheduler] %s", msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.WithFields(fields(keysAndValues)).Errorf("[Scheduler] %s: %v", msg, err)
}

func fields(keysAndValues []interface{}) log.Fields {
	f := log.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		f[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return f
}
