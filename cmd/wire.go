package main

import (
	"context"
	"fmt"

	"github.com/okian/rollcall/internal/adapters/detector"
	"github.com/okian/rollcall/internal/adapters/imagesrc"
	"github.com/okian/rollcall/internal/adapters/repository"
	app "github.com/okian/rollcall/internal/app"
	"github.com/okian/rollcall/internal/config"
	"github.com/okian/rollcall/internal/domain/dedupe"
	"github.com/okian/rollcall/internal/domain/extract"
	"github.com/okian/rollcall/internal/domain/matcher"
	"github.com/okian/rollcall/pkg/logger"
)

// newDetector builds the face detector from cfg. Replaced in tests.
var newDetector = buildDetector

// buildDetector returns nil when no cascade is configured or it cannot be
// loaded; the service then reports every image as faceless.
func buildDetector(ctx context.Context, cfg *config.Config, log logger.Logger) extract.Detector {
	if cfg.CascadePath == "" {
		log.Warn(ctx, "cascade_path not set; face detection disabled")
		return nil
	}
	d, err := detector.LoadPigo(cfg.CascadePath, detector.WithParams(detector.Params{
		MinSize:      cfg.DetectorMinSize,
		MaxSize:      cfg.DetectorMaxSize,
		ShiftFactor:  cfg.DetectorShiftFactor,
		ScaleFactor:  cfg.DetectorScaleFactor,
		IoUThreshold: cfg.DetectorIoU,
		MinQuality:   cfg.DetectorMinQuality,
	}))
	if err != nil {
		log.Error(ctx, "face detector unavailable", logger.String("cascade_path", cfg.CascadePath), logger.Error(err))
		return nil
	}
	return d
}

// buildService opens the store and composes the service from cfg. The
// returned service is started; callers must Stop it.
func buildService(ctx context.Context, cfg *config.Config, log logger.Logger) (*app.Service, error) {
	policy, err := matcher.ParsePolicy(cfg.MatchPolicy)
	if err != nil {
		return nil, err
	}

	store, err := repository.Open(ctx, cfg, repository.WithLogger(log.Named("store")))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	opts := []app.Option{
		app.WithLogger(log.Named("service")),
		app.WithStore(store),
		app.WithExtractor(extract.New(newDetector(ctx, cfg, log))),
		app.WithGuard(matcher.NewGuard(matcher.WithGuardThreshold(cfg.EnrollThreshold))),
		app.WithMatcher(matcher.New(matcher.WithThreshold(cfg.RecognizeThreshold), matcher.WithPolicy(policy))),
	}
	if cfg.UploadsDir != "" {
		opts = append(opts, app.WithArchive(imagesrc.NewArchive(cfg.UploadsDir)))
	}
	if w := cfg.DedupeWindow(); w > 0 {
		opts = append(opts, app.WithDeduper(dedupe.NewWindowDeduper(
			dedupe.WithWindow(w),
			dedupe.WithMaxSize(cfg.DedupeSize),
		)))
	}

	svc := app.New(opts...)
	if err := svc.Start(ctx); err != nil {
		_ = store.Close(ctx)
		return nil, fmt.Errorf("failed to start service: %w", err)
	}
	return svc, nil
}
