// Package cmd implements the CLI commands.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roboskills/skillhub/api"
	"github.com/roboskills/skillhub/config"
	"github.com/roboskills/skillhub/db"
	"github.com/roboskills/skillhub/license"
	"github.com/roboskills/skillhub/models"
	"github.com/roboskills/skillhub/pkgstore"
	"github.com/roboskills/skillhub/review"
	"github.com/roboskills/skillhub/worker"
	"github.com/roboskills/skillhub/workflow"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "skillhub",
		Short: "SkillHub marketplace backend",
		Long:  `The submission review backend for the robot skill marketplace.`,
		RunE:  run,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file path")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func run(_ *cobra.Command, _ []string) error {
	// Setup logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Load configuration.
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Info("loaded configuration", "listen_addr", cfg.Server.ListenAddr, "db_path", cfg.DB.Path)

	// Initialize database.
	database, err := db.New(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		_ = database.Close()
	}()

	if err := database.InitSchema(); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("database initialized")

	// Seed OEM organizations and their reviewer memberships from config.
	ctx := context.Background()
	for _, oem := range cfg.OEMs {
		org := &models.Organization{ID: oem.ID, Name: oem.Name, IsOEM: true}
		if err := database.UpsertOrganization(ctx, org); err != nil {
			logger.Error("failed to seed oem", "org_id", oem.ID, "error", err)
			continue
		}
		logger.Info("oem synced from config", "org_id", oem.ID, "name", oem.Name)

		for _, rev := range oem.Reviewers {
			user := &models.User{ID: rev.ID, Email: rev.Email}
			if err := database.UpsertUser(ctx, user); err != nil {
				logger.Error("failed to seed reviewer", "user_id", rev.ID, "error", err)
				continue
			}
			if err := database.AddMember(ctx, oem.ID, rev.ID); err != nil {
				logger.Error("failed to enroll reviewer", "user_id", rev.ID, "org_id", oem.ID, "error", err)
				continue
			}
			logger.Info("reviewer enrolled", "user_id", rev.ID, "org_id", oem.ID)
		}
	}

	// Initialize package storage.
	packages, err := pkgstore.New(cfg.Packages.Dir)
	if err != nil {
		return fmt.Errorf("failed to open package store: %w", err)
	}

	// Wire services.
	engine := review.NewEngine(packages)
	svc := workflow.NewService(database, database, engine, logger, cfg.Review.MaxResubmissions)
	licenses := license.NewService(database, logger)

	// Create API server.
	server := api.New(cfg, svc, licenses, packages, logger)

	// Create stranded-review sweeper.
	sweeper := worker.New(&cfg.Worker, svc, logger)

	// Setup signal handling.
	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Use errgroup to manage server and sweeper goroutines.
	g, gCtx := errgroup.WithContext(sigCtx)

	// Start API server.
	g.Go(func() error {
		if err := server.Run(gCtx); err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Start sweeper.
	g.Go(func() error {
		if err := sweeper.Start(gCtx); err != nil && err != context.Canceled {
			return fmt.Errorf("sweeper error: %w", err)
		}
		return nil
	})

	// Wait for all goroutines to complete or error.
	if err := g.Wait(); err != nil {
		logger.Error("service error", "error", err)
		return err
	}

	logger.Info("server stopped gracefully")
	return nil
}
