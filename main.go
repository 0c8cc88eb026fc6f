package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/loci-guide/internal/app/domain/tour"
	"github.com/FACorreiaa/loci-guide/internal/app/events"
	"github.com/FACorreiaa/loci-guide/internal/app/guide"
	"github.com/FACorreiaa/loci-guide/internal/app/location"
	"github.com/FACorreiaa/loci-guide/internal/app/models"
	"github.com/FACorreiaa/loci-guide/internal/pkg/config"
	"github.com/FACorreiaa/loci-guide/internal/pkg/database"
	"github.com/FACorreiaa/loci-guide/internal/pkg/observability"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file, using environment variables")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	otelShutdown, err := observability.InitOtelProviders("loci-guide", cfg.MetricsAddr, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			logger.Error("Failed to shutdown OpenTelemetry", zap.Error(err))
		}
	}()

	connURL, err := database.ConnectionURL(cfg)
	if err != nil {
		return err
	}
	pool, err := database.Init(connURL, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	if !database.WaitForDB(context.Background(), pool, logger) {
		return fmt.Errorf("database is not reachable")
	}
	if err := database.RunMigrations(connURL, logger); err != nil {
		return err
	}

	tourService := tour.NewServiceImpl(tour.NewRepository(pool), logger)

	tourID, err := uuid.Parse(cfg.TourID)
	if err != nil {
		return fmt.Errorf("TOUR_ID environment variable must be a tour UUID: %w", err)
	}
	activeTour, err := tourService.GetTourWithPOIs(context.Background(), tourID)
	if err != nil {
		return err
	}

	feed := location.NewReplayFeed()
	g := guide.New(feed, tourService, logger)

	if cfg.NATSURL != "" {
		nc, err := events.Connect(cfg.NATSURL, logger)
		if err != nil {
			return err
		}
		defer nc.Close()
		bridge := events.NewBridge(nc, g.Events(), logger)
		defer bridge.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	samples, err := loadSamples(cfg.SamplesFile)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return fmt.Errorf("SAMPLES_FILE %q holds no position samples", cfg.SamplesFile)
	}

	if err := g.StartMonitoring(ctx, activeTour, &samples[0]); err != nil {
		return err
	}
	defer g.StopMonitoring()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		sub := g.Events().Subscribe()
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return nil
			case e := <-sub.C:
				logEvent(logger, e.Region, e.Visit, e.Scheduler)
				if e.Visit != nil && e.Visit.Type == models.VisitCompleted {
					logTourProgress(ctx, logger, tourService, tourID)
				}
			}
		}
	})

	group.Go(func() error {
		return replay(ctx, feed, samples[1:])
	})

	if err := group.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// loadSamples reads recorded GPS positions from a JSON array file. Samples
// without a timestamp are stamped at read time.
func loadSamples(path string) ([]models.Position, error) {
	if path == "" {
		return nil, fmt.Errorf("SAMPLES_FILE environment variable is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read samples file: %w", err)
	}
	var samples []models.Position
	if err := json.Unmarshal(data, &samples); err != nil {
		return nil, fmt.Errorf("failed to parse samples file: %w", err)
	}
	now := time.Now()
	for i := range samples {
		if samples[i].Timestamp.IsZero() {
			samples[i].Timestamp = now.Add(time.Duration(i) * time.Second)
		}
	}
	return samples, nil
}

// replay pushes samples onto the feed, pacing them by their recorded
// timestamps.
func replay(ctx context.Context, feed *location.ReplayFeed, samples []models.Position) error {
	for i, s := range samples {
		if i > 0 {
			gap := s.Timestamp.Sub(samples[i-1].Timestamp)
			if gap > 0 {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(gap):
				}
			}
		}
		feed.Push(s)
	}
	// Keep monitoring until interrupted so late validation ticks still run.
	<-ctx.Done()
	return nil
}

// logTourProgress reports the remaining stops after a completed visit.
func logTourProgress(ctx context.Context, logger *zap.Logger, svc tour.Service, tourID uuid.UUID) {
	remaining, err := svc.ListUnvisitedPOIs(ctx, tourID)
	if err != nil {
		logger.Warn("failed to list remaining stops", zap.Error(err))
		return
	}
	if len(remaining) == 0 {
		logger.Info("tour complete, all stops visited")
		return
	}
	logger.Info("tour progress",
		zap.Int("remaining_stops", len(remaining)),
		zap.String("next_stop", remaining[0].Name))
}

func logEvent(logger *zap.Logger, region *models.RegionEvent, visit *models.VisitEvent, scheduler *models.SchedulerStatus) {
	switch {
	case region != nil:
		logger.Info("region event",
			zap.String("type", string(region.Type)),
			zap.String("poi", region.POI.Name))
	case visit != nil:
		logger.Info("visit event",
			zap.String("type", string(visit.Type)),
			zap.String("poi", visit.POI.Name),
			zap.String("reason", visit.Reason))
	case scheduler != nil:
		logger.Info("scheduler event",
			zap.String("state", string(scheduler.State)),
			zap.Int("regions", scheduler.RegionCount))
	}
}
