package services

import (
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/huangang/meridian/internal/config"
	"github.com/huangang/meridian/internal/models"
	"github.com/huangang/meridian/pkg/logger"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

const housekeepingLock = "housekeeping"

// Housekeeper periodically purges rows no operation can reach any more:
// old system logs and long-expired invitations.
type Housekeeper struct {
	db          *gorm.DB
	cfg         config.HousekeepingConfig
	purgeAfter  time.Duration
	logs        *SystemLogService
	invitations *InvitationService
	instance    string

	mu        sync.Mutex
	scheduler *cron.Cron
}

func NewHousekeeper(db *gorm.DB, cfg config.HousekeepingConfig, inv config.InvitationConfig) *Housekeeper {
	host, _ := os.Hostname()
	return &Housekeeper{
		db:          db,
		cfg:         cfg,
		purgeAfter:  time.Duration(inv.PurgeAfterDays) * 24 * time.Hour,
		logs:        NewSystemLogService(db),
		invitations: NewInvitationService(db, inv),
		instance:    host + "/" + uuid.NewString()[:8],
	}
}

// Start schedules a run on the configured cron expression.
func (h *Housekeeper) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.scheduler != nil {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(h.cfg.Schedule, func() { h.runScheduled(time.Now()) }); err != nil {
		return err
	}
	c.Start()
	h.scheduler = c
	logger.Info().Str("schedule", h.cfg.Schedule).Str("instance", h.instance).Msg("housekeeping scheduler started")
	return nil
}

// Stop halts the scheduler and waits for a running job to finish.
func (h *Housekeeper) Stop() {
	h.mu.Lock()
	c := h.scheduler
	h.scheduler = nil
	h.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
		logger.Info().Msg("housekeeping scheduler stopped")
	}
}

// runScheduled runs once per slot across all replicas sharing the database.
func (h *Housekeeper) runScheduled(now time.Time) bool {
	claimed, err := h.claimSlot(now)
	if err != nil {
		logger.Error().Err(err).Msg("failed to claim housekeeping slot")
		return false
	}
	if !claimed {
		logger.Debug().Str("instance", h.instance).Msg("housekeeping slot taken by another instance")
		return false
	}
	h.RunOnce()
	return true
}

func (h *Housekeeper) claimSlot(now time.Time) (bool, error) {
	lock := models.SchedulerLock{
		LockName:  housekeepingLock,
		LockKey:   now.UTC().Truncate(time.Minute).Format(time.RFC3339),
		LockedBy:  h.instance,
		LockedAt:  now,
		ExpiresAt: now.Add(24 * time.Hour),
	}
	if err := h.db.Create(&lock).Error; err != nil {
		if isDuplicate(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// HousekeepingResult counts what one run removed.
type HousekeepingResult struct {
	SystemLogs  int64
	Invitations int64
	Locks       int64
}

func (h *Housekeeper) RunOnce() HousekeepingResult {
	var res HousekeepingResult

	deleted, err := h.logs.PurgeOlderThan(h.cfg.LogRetentionDays)
	if err != nil {
		logger.Error().Err(err).Msg("failed to clean up system logs")
	} else {
		res.SystemLogs = deleted
	}

	if h.purgeAfter > 0 {
		purged, err := h.invitations.PurgeExpired(h.purgeAfter)
		if err != nil {
			logger.Error().Err(err).Msg("failed to purge expired invitations")
		} else {
			res.Invitations = purged
		}
	}

	locks := h.db.Where("expires_at < ?", time.Now()).Delete(&models.SchedulerLock{})
	if locks.Error != nil {
		logger.Error().Err(locks.Error).Msg("failed to drop expired scheduler locks")
	} else {
		res.Locks = locks.RowsAffected
	}

	if res.SystemLogs > 0 || res.Invitations > 0 {
		logger.Info().
			Int64("system_logs", res.SystemLogs).
			Int64("invitations", res.Invitations).
			Msg("housekeeping finished")
	}
	return res
}
