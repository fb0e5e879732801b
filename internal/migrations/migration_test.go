package migrations

import (
	"context"
	"testing"

	"github.com/Bright-River-CGI/lifestyle-app/internal/access"
	"github.com/Bright-River-CGI/lifestyle-app/internal/models"
	"github.com/Bright-River-CGI/lifestyle-app/internal/repository"
	"github.com/Bright-River-CGI/lifestyle-app/internal/services"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestRunMigrationsSeedsOnce(t *testing.T) {
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	policy, err := access.New()
	require.NoError(t, err)
	log := zaptest.NewLogger(t)

	userRepo := repository.NewUserRepository(db)
	propRepo := repository.NewPropRepository(db)
	opts := Options{
		Users:            services.NewUserService(services.UserServiceParams{Users: userRepo, IDs: node, Logger: log}),
		Library:          services.NewLibraryService(propRepo, policy, node, log),
		EmployeeEmail:    "lead@studio.test",
		EmployeePassword: "changeme",
	}
	ctx := context.Background()

	require.NoError(t, RunMigrations(ctx, db, opts, log))
	require.NoError(t, RunMigrations(ctx, db, opts, log))

	n, err := propRepo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(len(services.DefaultProps)), n)

	lead, err := userRepo.GetByEmail(ctx, "lead@studio.test")
	require.NoError(t, err)
	assert.Equal(t, models.RoleEmployee, lead.Role)

	opts.Reset = true
	require.NoError(t, RunMigrations(ctx, db, opts, log))
	n, err = propRepo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(len(services.DefaultProps)), n)
}
