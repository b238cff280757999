package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/globeoverlay/backend/internal/clock"
	"github.com/globeoverlay/backend/internal/delivery/http"
	"github.com/globeoverlay/backend/internal/domain"
	"github.com/globeoverlay/backend/internal/logging"
	"github.com/globeoverlay/backend/internal/observability"
	"github.com/globeoverlay/backend/internal/repository/postgres"
	"github.com/globeoverlay/backend/internal/service"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	lg := logging.NewFromEnv()
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Configuration
	cfg, problems := loadConfig()
	for _, err := range problems {
		lg.Warn(ctx, "configuration problem", logging.Err(err))
	}
	if cfg.MapAccessToken == "" {
		lg.Error(ctx, "MAP_ACCESS_TOKEN is not set; the globe will not load map tiles until it is configured")
	}

	// Database connection
	var repo service.TrackRepository = postgres.NewMockRepository(0)
	if cfg.DatabaseURL != "" {
		dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pool, err := pgxpool.New(dbCtx, cfg.DatabaseURL)
		if err == nil {
			pgRepo := postgres.NewPostgresRepository(pool)
			err = pgRepo.EnsureSchema(dbCtx)
			if err == nil {
				defer pool.Close()
				repo = pgRepo
				lg.Info(ctx, "connected to PostgreSQL")
			} else {
				pool.Close()
			}
		}
		cancel()
		if err != nil {
			lg.Warn(ctx, "could not connect to database, keeping track in memory", logging.Err(err))
		}
	}

	metrics, err := observability.NewCollector(prometheus.DefaultRegisterer)
	if err != nil {
		lg.Error(ctx, "metrics disabled", logging.Err(err))
	}

	// Dependency Injection: Services
	marker := service.NewMarkerSource(cfg.Origin)
	feed := service.NewPositionFeed(service.PositionFeedConfig{
		Endpoint: cfg.FeedURL,
		Interval: cfg.PollInterval,
		Clock:    clock.Real(),
		Logger:   lg,
		Metrics:  metrics,
		Marker:   marker,
		Repo:     repo,
	})
	feed.Subscribe(func(s domain.PositionSnapshot) {
		lg.Debug(ctx, "status", logging.String("status", s.Status), logging.String("label", s.Label))
	})

	overlay := service.NewOverlayLayer(service.OverlayLayerConfig{
		Positions: feed,
		Assets:    service.NewModelAssets(cfg.ModelAssetURL),
		Origin:    cfg.Origin,
		Altitude:  cfg.AltitudeMeters,
		Logger:    lg,
		Metrics:   metrics,
	})
	host := service.NewFrameHost(cfg.FrameRate, clock.Real(), lg)
	host.AddLayer(overlay)
	go host.Run(ctx)

	if err := feed.Start(ctx); err != nil {
		// degraded: the API keeps serving the origin position and an error status
		lg.Error(ctx, "position feed not started", logging.Err(err))
	}

	// Fiber App
	app := fiber.New(fiber.Config{
		AppName:      "Globe Overlay API v1.0",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorHandler: http.ErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Routes
	http.SetupRoutes(app, http.Deps{
		Feed:     feed,
		Host:     host,
		Overlay:  overlay,
		Marker:   marker,
		Repo:     repo,
		Gatherer: metrics.Gatherer(),
	})

	// Graceful shutdown
	go func() {
		lg.Info(ctx, "server starting", logging.String("port", cfg.Port))
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	lg.Info(ctx, "shutting down server")
	stop()
	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		lg.Warn(ctx, "server forced to shutdown", logging.Err(err))
	}
	feed.Wait()
	lg.Info(ctx, "server exited gracefully")
}

type Config struct {
	FeedURL        string
	MapAccessToken string
	PollInterval   time.Duration
	AltitudeMeters float64
	ModelAssetURL  string
	Origin         domain.GeoPosition
	FrameRate      int
	DatabaseURL    string
	Port           string
	Env            string
}

// loadConfig never fails; malformed values fall back to their defaults and
// are reported so startup can continue in a degraded state.
func loadConfig() (*Config, []error) {
	var problems []error

	cfg := &Config{
		FeedURL:        getEnv("POSITION_FEED_URL", ""),
		MapAccessToken: getEnv("MAP_ACCESS_TOKEN", ""),
		ModelAssetURL:  getEnv("MODEL_ASSET_URL", ""),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("GO_ENV", "development"),
	}

	cfg.PollInterval = getDuration("POLL_INTERVAL", service.DefaultPollInterval, &problems)
	cfg.AltitudeMeters = getFloat("MODEL_ALTITUDE_M", domain.DefaultAltitudeMeters, &problems)
	cfg.FrameRate = int(getFloat("FRAME_RATE", 30, &problems))

	origin, err := domain.NewGeoPosition(
		getFloat("DEFAULT_LNG", domain.Origin.Lng, &problems),
		getFloat("DEFAULT_LAT", domain.Origin.Lat, &problems),
		time.Time{},
	)
	if err != nil {
		problems = append(problems, errors.Join(domain.ErrConfig, err))
		origin = domain.Origin
	}
	cfg.Origin = origin

	if cfg.FeedURL == "" {
		problems = append(problems, errors.Join(domain.ErrConfig, errors.New("POSITION_FEED_URL is not set")))
	}
	if cfg.MapAccessToken == "" {
		problems = append(problems, errors.Join(domain.ErrConfig, errors.New("MAP_ACCESS_TOKEN is not set")))
	}
	return cfg, problems
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration, problems *[]error) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		*problems = append(*problems, errors.Join(domain.ErrConfig, errors.New(key+" must be a positive duration")))
		return defaultValue
	}
	return d
}

func getFloat(key string, defaultValue float64, problems *[]error) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		*problems = append(*problems, errors.Join(domain.ErrConfig, errors.New(key+" must be a number")))
		return defaultValue
	}
	return v
}
