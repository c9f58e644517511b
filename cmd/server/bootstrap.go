package main

import (
	"github.com/huangang/meridian/internal/config"
	"github.com/huangang/meridian/internal/models"
	"github.com/huangang/meridian/internal/services"
	"github.com/huangang/meridian/internal/utils"
	"github.com/huangang/meridian/pkg/logger"
	"gorm.io/gorm"
)

// appServices holds the wired services shared by every route.
type appServices struct {
	cfg         *config.Config
	db          *gorm.DB
	users       *services.UserService
	meridians   *services.MeridianService
	statuses    *services.StatusService
	members     *services.MemberService
	invitations *services.InvitationService
	items       *services.WorkItemService
	activity    *services.ActivityService
	sprints     *services.SprintService
	board       *services.BoardService
	housekeeper *services.Housekeeper
}

// bootstrap opens the database, migrates it and starts background jobs.
func bootstrap(cfg *config.Config) *appServices {
	if cfg.Auth.Mode == config.AuthModeJWT {
		if cfg.Auth.JWTSecret == "" {
			logger.Fatalf("auth.jwt_secret is required when auth.mode is %q", config.AuthModeJWT)
		}
		utils.SetJWTSecret(cfg.Auth.JWTSecret)
	}
	if cfg.Auth.DevBypass {
		logger.Warn().Msg("Dev auth bypass is enabled; every request acts as the dev user")
	}

	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}
	services.InitSystemLogger(models.GetDB())

	svc := newAppServices(cfg, models.GetDB())
	if cfg.Housekeeping.Enabled {
		if err := svc.housekeeper.Start(); err != nil {
			logger.Warn().Err(err).Str("schedule", cfg.Housekeeping.Schedule).Msg("Failed to start housekeeping")
		}
	}
	return svc
}

func newAppServices(cfg *config.Config, db *gorm.DB) *appServices {
	return &appServices{
		cfg:         cfg,
		db:          db,
		users:       services.NewUserService(db),
		meridians:   services.NewMeridianService(db),
		statuses:    services.NewStatusService(db),
		members:     services.NewMemberService(db),
		invitations: services.NewInvitationService(db, cfg.Invitations),
		items:       services.NewWorkItemService(db),
		activity:    services.NewActivityService(db),
		sprints:     services.NewSprintService(db),
		board:       services.NewBoardService(db),
		housekeeper: services.NewHousekeeper(db, cfg.Housekeeping, cfg.Invitations),
	}
}

// shutdown stops background jobs and closes the database.
func (s *appServices) shutdown() {
	s.housekeeper.Stop()
	if sqlDB, err := s.db.DB(); err == nil {
		sqlDB.Close()
	}
}
