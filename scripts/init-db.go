package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/Bright-River-CGI/lifestyle-app/internal/access"
	"github.com/Bright-River-CGI/lifestyle-app/internal/config"
	"github.com/Bright-River-CGI/lifestyle-app/internal/database"
	"github.com/Bright-River-CGI/lifestyle-app/internal/logger"
	"github.com/Bright-River-CGI/lifestyle-app/internal/migrations"
	"github.com/Bright-River-CGI/lifestyle-app/internal/repository"
	"github.com/Bright-River-CGI/lifestyle-app/internal/services"
	"github.com/bwmarrin/snowflake"
)

func main() {
	reset := flag.Bool("reset", false, "drop all tables before migrating")
	flag.Parse()

	fmt.Println("Initializing database...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	zlog, err := logger.New(logger.Config{ServiceName: "init-db", Level: cfg.LogLevel, Format: "console"})
	if err != nil {
		log.Fatal("Failed to build logger:", err)
	}

	// Initialize database
	db, err := database.Initialize(cfg.DatabaseDriver, cfg.DatabaseURL, zlog)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	node, err := snowflake.NewNode(cfg.SnowflakeNode)
	if err != nil {
		log.Fatal("Invalid SNOWFLAKE_NODE:", err)
	}
	policy, err := access.New()
	if err != nil {
		log.Fatal("Failed to build access policy:", err)
	}

	// Seeding never touches sessions, so no session store is needed.
	userService := services.NewUserService(services.UserServiceParams{
		Users:  repository.NewUserRepository(db),
		IDs:    node,
		Logger: zlog,
	})
	libraryService := services.NewLibraryService(repository.NewPropRepository(db), policy, node, zlog)

	err = migrations.RunMigrations(context.Background(), db, migrations.Options{
		Reset:            *reset,
		Users:            userService,
		Library:          libraryService,
		EmployeeEmail:    cfg.SeedEmployeeEmail,
		EmployeePassword: cfg.SeedEmployeePassword,
	}, zlog)
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}

	fmt.Println("Database initialized successfully!")
	if cfg.SeedEmployeeEmail != "" {
		fmt.Println("Employee login:", cfg.SeedEmployeeEmail)
	}
}
