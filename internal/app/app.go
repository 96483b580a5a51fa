package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"privacyblur/internal/config"
	"privacyblur/internal/handler"
	"privacyblur/internal/logger"
	"privacyblur/internal/repository"
	"privacyblur/internal/repository/sqlite"
	"privacyblur/internal/repository/yamlstore"
	"privacyblur/internal/route"
	"privacyblur/internal/service"
	"privacyblur/internal/service/blur"
	"privacyblur/internal/service/detection"
	"privacyblur/internal/service/ocr"
	"privacyblur/internal/service/text"
	"privacyblur/internal/service/tracker"
	"privacyblur/internal/service/websocket"
)

// shutdownTimeout bounds the final session flushes and HTTP drain.
const shutdownTimeout = 10 * time.Second

type App struct {
	config   *config.Config
	logger   *logger.Logger
	db       *sqlite.DB
	profiles repository.ProfileStore
	yaml     *yamlstore.Store
	sessions *sqlite.SessionRepository
	hub      *websocket.HubService
	manager  *service.Manager
	closers  []io.Closer
}

// NewApp loads the configuration and wires every component.
func NewApp() (*App, error) {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	a := &App{
		config:   cfg,
		logger:   log,
		db:       db,
		sessions: sqlite.NewSessionRepository(db),
		hub:      websocket.NewHubService(log),
	}

	if err := a.openProfiles(); err != nil {
		a.close()
		return nil, err
	}

	fill, err := blur.ParseHexColor(cfg.Blur.FillColor)
	if err != nil {
		log.Warning("Invalid FILL_COLOR %q, using black: %v", cfg.Blur.FillColor, err)
		fill = blur.DefaultConfig().FillColor
	}

	detectors, closers := buildDetectors(cfg, log)
	a.closers = closers

	deps := service.Dependencies{
		Coordinator: detection.NewCoordinator(detection.Config{
			Timeout: cfg.Detection.Timeout,
			Workers: cfg.Detection.Workers,
			NMSIOU:  cfg.Detection.NMSIOU,
		}, log, detectors...),
		Tracker: tracker.New(tracker.Config{
			MatchIOU:      cfg.Tracker.MatchIOU,
			Smoothing:     cfg.Tracker.Smoothing,
			ConfirmFrames: cfg.Tracker.ConfirmFrames,
			FadeMisses:    cfg.Tracker.FadeMisses,
			ExpiryMisses:  cfg.Tracker.ExpiryMisses,
			Text: tracker.TextPolicy{
				Interval:     cfg.Text.Interval,
				HashDistance: cfg.Text.HashDistance,
				AreaDelta:    cfg.Text.AreaDelta,
			},
		}),
		Applier: blur.New(blur.Config{
			FeatherPx:     cfg.Blur.FeatherPx,
			PixelBlockMax: cfg.Blur.PixelBlockMax,
			BlurSigmaMax:  cfg.Blur.BlurSigmaMax,
			FillColor:     fill,
		}),
		Matcher:  text.NewMatcher(cfg.Text.Patterns),
		OCR:      tesseractFactory(cfg.Text.Language),
		Profiles: a.profiles,
		Sessions: a.sessions,
		Output:   a.hub,
		Logger:   log,
	}
	a.manager = service.NewManager(deps, service.OptionsFromConfig(cfg))
	return a, nil
}

func (a *App) openProfiles() error {
	switch a.config.ProfileSource {
	case "sqlite":
		repo := sqlite.NewProfileRepository(a.db)
		names, err := repo.ProfileNames()
		if err != nil {
			return fmt.Errorf("failed to read profiles: %w", err)
		}
		if len(names) == 0 {
			a.logger.Warning("No profiles in database, seeding stock profiles")
			if err := repository.Seed(repo, repository.DefaultProfiles(), repository.DefaultKeywordLists()); err != nil {
				return err
			}
		}
		a.profiles = repo
	case "", "yaml":
		store, err := yamlstore.Open(a.config.ProfilesPath, a.logger)
		if err != nil {
			return fmt.Errorf("failed to open profiles: %w", err)
		}
		store.OnChange(func() {
			a.logger.Info("Profiles reloaded from %s", a.config.ProfilesPath)
		})
		a.yaml = store
		a.profiles = store
	default:
		return fmt.Errorf("unknown PROFILE_SOURCE %q", a.config.ProfileSource)
	}
	return nil
}

func tesseractFactory(language string) text.EngineFactory {
	return func() (text.Engine, error) {
		engine, err := ocr.NewTesseract(language)
		if err != nil {
			return nil, err
		}
		return engine, nil
	}
}

// Run serves until ctx is cancelled, then stops every stream and flushes
// the open sessions.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	if a.yaml != nil {
		if err := a.yaml.Watch(ctx); err != nil {
			a.logger.Warning("Profile hot reload disabled: %v", err)
		}
	}
	go a.hub.Run(ctx)
	go handler.UDPCameraHandler(ctx, a.manager, a.logger, a.config)

	router := route.SetupRoutes(route.Services{
		Manager:  a.manager,
		Hub:      a.hub,
		Profiles: a.profiles,
		Sessions: a.sessions,
	}, a.config, a.logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.logger.Info("privacyblur listening on http://localhost:%d", a.config.Port)
	a.logger.Info("Camera frames on UDP :%d, active profile %q", a.config.CamerasPort, a.config.ActiveProfile)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warning("HTTP shutdown: %v", err)
	}
	a.manager.Stop(shutdownCtx)
	return nil
}

func (a *App) close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Warning("Failed to release detector: %v", err)
		}
	}
	if a.db != nil {
		a.db.Close()
	}
	a.logger.Close()
}
