package models

import (
	"fmt"

	"github.com/huangang/meridian/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func InitDB(cfg *config.DatabaseConfig) error {
	db, err := Open(cfg, logger.Warn)
	if err != nil {
		return err
	}
	DB = db
	return nil
}

// Open connects to the configured database without touching the package
// level handle.
func Open(cfg *config.DatabaseConfig, level logger.LogLevel) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	return db, nil
}

func AutoMigrate() error {
	return Migrate(DB)
}

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Meridian{},
		&MeridianMember{},
		&Status{},
		&Sprint{},
		&WorkItem{},
		&ActivityLogEntry{},
		&Invitation{},
		&SystemLog{},
		&SchedulerLock{},
	)
}

func GetDB() *gorm.DB {
	return DB
}

// DefaultStatuses is the pipeline every new meridian starts with.
func DefaultStatuses(meridianID uint) []Status {
	return []Status{
		{MeridianID: meridianID, Name: "Adrift", Color: "#94A3B8", Position: 0, IsDefault: true},
		{MeridianID: meridianID, Name: "In Progress", Color: "#3B82F6", Position: 1},
		{MeridianID: meridianID, Name: "In Irons", Color: "#F59E0B", Position: 2, IsBlocked: true},
		{MeridianID: meridianID, Name: "Complete", Color: "#10B981", Position: 3, IsComplete: true},
	}
}
