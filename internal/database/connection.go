package database

import (
	"fmt"
	"time"

	"github.com/Bright-River-CGI/lifestyle-app/internal/logger"
	"github.com/Bright-River-CGI/lifestyle-app/internal/models"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Initialize opens the order database for the given driver. "postgres" is the
// production driver; "sqlite" serves local runs and tests.
func Initialize(driver, databaseURL string, log *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "", "postgres":
		dialector = postgres.Open(databaseURL)
	case "sqlite":
		dialector = sqlite.Open(databaseURL)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	config := &gorm.Config{
		Logger: logger.NewGormLogger(gormlogger.Warn, 200*time.Millisecond),
	}

	db, err := gorm.Open(dialector, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info("database connected", zap.String("driver", dialector.Name()))
	return db, nil
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Order{},
		&models.Prop{},
	)
}
