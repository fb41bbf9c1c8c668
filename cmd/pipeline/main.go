package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/brewstop/brewstop/internal/api/geoapify"
	"github.com/brewstop/brewstop/internal/api/nrel"
	"github.com/brewstop/brewstop/internal/api/overpass"
	"github.com/brewstop/brewstop/internal/config"
	"github.com/brewstop/brewstop/internal/repository"
	"github.com/brewstop/brewstop/internal/service"
	"github.com/brewstop/brewstop/internal/state"
	"github.com/brewstop/brewstop/internal/status"
)

// usStates 全量播种的州清单（含 DC）
var usStates = []string{
	"AL", "AK", "AZ", "AR", "CA", "CO", "CT", "DE", "DC", "FL",
	"GA", "HI", "ID", "IL", "IN", "IA", "KS", "KY", "LA", "ME",
	"MD", "MA", "MI", "MN", "MS", "MO", "MT", "NE", "NV", "NH",
	"NJ", "NM", "NY", "NC", "ND", "OH", "OK", "OR", "PA", "RI",
	"SC", "SD", "TN", "TX", "UT", "VT", "VA", "WA", "WV", "WI", "WY",
}

func main() {
	task := flag.String("task", "", "task to run: sync | seed-all | seed-amenities | refresh-scores | status")
	stateCode := flag.String("state", "", "two-letter state code for sync")
	offset := flag.Int("offset", 0, "start offset for resuming a sync")
	fullSeed := flag.Bool("full", false, "sync without modified_since (full seed)")
	flag.Parse()

	if *task == "" {
		fmt.Fprintln(os.Stderr, "usage: pipeline -task <sync|seed-all|seed-amenities|refresh-scores|status> [-state XX] [-offset N] [-full]")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Debug)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}

	stopRepo := repository.NewStopRepository(db)
	amenityRepo := repository.NewAmenityRepository(db)
	runs := state.NewManager(nil)

	switch *task {
	case "sync":
		if *stateCode == "" {
			logger.Fatal("sync requires -state")
		}
		svc := service.NewRegistrySyncService(logger, nrel.NewClient(cfg.NrelBaseURL, cfg.NrelAPIKey), stopRepo, runs, nil)
		svc.SetLookback(cfg.RegistryLookbackDays)
		svc.SetPageDelay(cfg.PageDelay)
		summary, err := svc.Sync(ctx, service.SyncOptions{
			State:       *stateCode,
			StartOffset: *offset,
			FullSeed:    *fullSeed,
		})
		exit(logger, "sync", summary, err)

	case "seed-all":
		svc := service.NewRegistrySyncService(logger, nrel.NewClient(cfg.NrelBaseURL, cfg.NrelAPIKey), stopRepo, runs, nil)
		svc.SetPageDelay(cfg.PageDelay)
		summary, err := svc.SyncAll(ctx, usStates)
		exit(logger, "seed-all", summary, err)

	case "seed-amenities":
		seeder := service.NewAmenitySeeder(logger, overpass.NewClient(cfg.OverpassURL), stopRepo, amenityRepo, runs, cfg.MatchRadiusMeters)
		summary, err := seeder.SeedBrands(ctx, service.DefaultBrands)
		exit(logger, "seed-amenities", summary, err)

	case "refresh-scores":
		refresher := service.NewScoreRefresher(logger,
			geoapify.NewClient("", cfg.GeoapifyAPIKey),
			stopRepo, amenityRepo, status.NewMockProvider(), runs)
		refresher.SetStaleness(cfg.ScoreStaleness, cfg.ScoreRefreshLimit)
		summary, err := refresher.Refresh(ctx)
		exit(logger, "refresh-scores", summary, err)

	case "status":
		reports := service.NewReportService(logger, stopRepo, amenityRepo)
		report, err := reports.SeedingStatus(ctx)
		if err != nil {
			logger.Fatal("Failed to build seeding report", zap.Error(err))
		}
		fmt.Printf("stops: %d  amenities: %d\n", report.TotalStops, report.TotalAmenities)
		for st, n := range report.StopsByState {
			fmt.Printf("  %s: %d\n", st, n)
		}

	default:
		logger.Fatal("Unknown task", zap.String("task", *task))
	}
}

func exit(logger *zap.Logger, task string, summary any, err error) {
	if err != nil {
		logger.Error("Task failed", zap.String("task", task), zap.Any("summary", summary), zap.Error(err))
		os.Exit(1)
	}
	logger.Info("Task complete", zap.String("task", task), zap.Any("summary", summary))
}

func initLogger(debug bool) *zap.Logger {
	var config zap.Config
	if debug {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
	}

	logger, _ := config.Build()
	return logger
}
