package cron

import (
	"context"
	"sync"

	cronv3 "github.com/robfig/cron/v3"

	"github.com/mailsink/mailsink/config"
	"github.com/mailsink/mailsink/internal/logger"
	"github.com/mailsink/mailsink/internal/tracing"
	syncservice "github.com/mailsink/mailsink/services/sync"
)

// syncJobLock serializes sync passes so a slow mailbox never overlaps with
// the next scheduled run.
var syncJobLock sync.Mutex

type CronManager struct {
	cfg         *config.Config
	log         logger.Logger
	cron        *cronv3.Cron
	stopCh      chan struct{}
	jobIDs      map[string]cronv3.EntryID
	syncService *syncservice.SyncService
}

func NewCronManager(cfg *config.Config, log logger.Logger, syncService *syncservice.SyncService) *CronManager {
	return &CronManager{
		cfg:         cfg,
		log:         log,
		stopCh:      make(chan struct{}),
		jobIDs:      make(map[string]cronv3.EntryID),
		syncService: syncService,
	}
}

// StartCron initializes and starts the cron scheduler
func (cm *CronManager) StartCron() error {
	cm.log.Info("Starting cron manager")
	cronOptions := []cronv3.Option{
		cronv3.WithChain(
			cronv3.SkipIfStillRunning(cronv3.DefaultLogger),
			cronv3.Recover(cronv3.DefaultLogger),
		),
	}
	c := cronv3.New(cronOptions...)
	if err := cm.registerJobs(c); err != nil {
		return err
	}
	c.Start()
	cm.cron = c
	return nil
}

// Stop gracefully stops the cron manager
func (cm *CronManager) Stop() {
	if cm.cron != nil {
		cm.log.Info("Stopping cron manager")
		ctx := cm.cron.Stop()
		// Wait for jobs to finish
		<-ctx.Done()
	}
	close(cm.stopCh)
}

// registerJobs adds all cron jobs to the scheduler
func (cm *CronManager) registerJobs(c *cronv3.Cron) error {
	schedule := cm.cfg.CronConfig.SyncSchedule
	if schedule == "" {
		cm.log.Warn("No sync schedule configured, scheduler will run no jobs")
		return nil
	}

	id, err := c.AddFunc(schedule, func() {
		defer tracing.RecoverAndLogToJaeger(cm.log)
		syncJobLock.Lock()
		defer syncJobLock.Unlock()
		cm.runSync()
	})
	if err != nil {
		return err
	}
	cm.jobIDs["sync"] = id
	cm.log.Infof("Registered sync job with schedule: %s", schedule)
	return nil
}

func (cm *CronManager) runSync() {
	ctx := context.Background()

	span, ctx := tracing.StartTracerSpan(ctx, "CronManager.runSync")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	stats, err := cm.syncService.Run(ctx, syncservice.RunOptions{})
	if err != nil {
		tracing.TraceErr(span, err)
		cm.log.Errorf("Scheduled sync failed: %v", err)
		return
	}

	cm.log.Infof("Scheduled sync completed: %s", stats.String())
}
