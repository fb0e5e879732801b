package migrations

import (
	"context"
	"fmt"

	"github.com/Bright-River-CGI/lifestyle-app/internal/database"
	"github.com/Bright-River-CGI/lifestyle-app/internal/models"
	"github.com/Bright-River-CGI/lifestyle-app/internal/services"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Options struct {
	// Reset drops every table before migrating. Only init-db sets it.
	Reset bool

	Users   services.UserService
	Library services.LibraryService

	EmployeeEmail    string
	EmployeePassword string
}

// RunMigrations brings the schema up to date and creates default data: the
// model library and, when configured, a first employee account.
func RunMigrations(ctx context.Context, db *gorm.DB, opts Options, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("migrations")

	if opts.Reset {
		log.Warn("dropping existing tables")
		if err := db.Migrator().DropTable(&models.Order{}, &models.Prop{}, &models.User{}); err != nil {
			return fmt.Errorf("drop tables: %w", err)
		}
	}

	log.Info("running database migrations")
	if err := database.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	if err := createDefaultData(ctx, opts, log); err != nil {
		return err
	}
	log.Info("database migrations completed")
	return nil
}

func createDefaultData(ctx context.Context, opts Options, log *zap.Logger) error {
	if opts.Library != nil {
		n, err := opts.Library.Seed(ctx, services.DefaultProps)
		if err != nil {
			return fmt.Errorf("seed model library: %w", err)
		}
		if n > 0 {
			log.Info("model library created", zap.Int("props", n))
		}
	}

	if opts.Users == nil || opts.EmployeeEmail == "" {
		return nil
	}
	if opts.EmployeePassword == "" {
		log.Warn("SEED_EMPLOYEE_EMAIL set without SEED_EMPLOYEE_PASSWORD; skipping employee seed")
		return nil
	}
	user, err := opts.Users.SeedEmployee(ctx, opts.EmployeeEmail, opts.EmployeePassword)
	if err != nil {
		return fmt.Errorf("seed employee: %w", err)
	}
	log.Info("employee account ready", zap.String("email", user.Email), zap.String("user_id", user.ID.String()))
	return nil
}
