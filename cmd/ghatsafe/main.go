// Command ghatsafe serves the accident severity predictor, accounts,
// incident reports and dashboard.
//
// Usage:
//
//	ghatsafe [flags]                 run the HTTP server
//	ghatsafe [flags] migrate <cmd>   manage the database schema
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ghatsafe/ghatsafe/internal/api"
	"github.com/ghatsafe/ghatsafe/internal/artifact"
	"github.com/ghatsafe/ghatsafe/internal/config"
	"github.com/ghatsafe/ghatsafe/internal/dataset"
	"github.com/ghatsafe/ghatsafe/internal/db"
	"github.com/ghatsafe/ghatsafe/internal/monitoring"
	"github.com/ghatsafe/ghatsafe/internal/predict"
	"github.com/ghatsafe/ghatsafe/internal/timeutil"
	"github.com/ghatsafe/ghatsafe/internal/version"
	"github.com/ghatsafe/ghatsafe/internal/weather"
)

var (
	configPath   = flag.String("config", "", "Path to a JSON config file")
	envFile      = flag.String("env-file", ".env", "Optional .env file with GHATSAFE_* overrides")
	listen       = flag.String("listen", "", "Listen address (overrides config)")
	dbPath       = flag.String("db-path", "", "SQLite database path (overrides config)")
	artifactsDir = flag.String("artifacts", "", "Model artifact directory (overrides config)")
	datasetPath  = flag.String("dataset", "", "Historical accident dataset, .csv or .xlsx (overrides config)")
	showVersion  = flag.Bool("version", false, "Print version and exit")
)

const sessionPurgeInterval = time.Hour

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println("ghatsafe " + version.String())
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if args := flag.Args(); len(args) > 0 {
		switch args[0] {
		case "migrate":
			if err := db.RunMigrateCommand(args[1:], cfg.GetDBPath(), os.Stdout); err != nil {
				log.Fatalf("migrate: %v", err)
			}
			return
		default:
			log.Fatalf("unknown command %q", args[0])
		}
	}

	if err := run(cfg); err != nil {
		log.Fatal(err)
	}
}

// loadConfig layers the config file, the environment (.env first) and
// command-line flags, in increasing precedence.
func loadConfig() (*config.Config, error) {
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", *envFile, err)
	}
	cfg := &config.Config{}
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadConfig(*configPath); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	override := func(dst **string, v string) {
		if v != "" {
			*dst = &v
		}
	}
	override(&cfg.Listen, *listen)
	override(&cfg.DBPath, *dbPath)
	override(&cfg.ArtifactsDir, *artifactsDir)
	override(&cfg.DatasetPath, *datasetPath)
	return cfg, nil
}

func run(cfg *config.Config) error {
	database, err := db.NewDB(cfg.GetDBPath())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	var admins []string
	if user, pass := cfg.GetAdmin(); user != "" {
		admins = append(admins, user)
		if _, created, err := database.EnsureUser(user, pass); err != nil {
			return fmt.Errorf("failed to seed admin account: %w", err)
		} else if created {
			log.Printf("Created admin account %q", user)
		}
	}

	var table *dataset.Table
	if path := cfg.GetDatasetPath(); path != "" {
		if table, err = dataset.Load(path); err != nil {
			log.Printf("Dataset unavailable, geometry falls back to constants: %v", err)
		} else {
			log.Printf("Loaded %d accident records from %s (%d skipped)", len(table.Records), path, table.Skipped)
		}
	}
	var records []dataset.Record
	if table != nil {
		records = table.Records
	}
	geo := dataset.NewGeometryTable(records)
	geo.SetFallback(cfg.GetFallbackGeometry())

	hours := timeutil.HourNormalizer{Default: cfg.GetDefaultHour()}
	drift := monitoring.NewDriftCounter()
	svc := predict.NewService(predict.Options{
		Geometry:    geo,
		Hours:       hours,
		MaxVehicles: cfg.GetMaxVehicles(),
		Drift:       drift,
	})

	store := artifact.NewDirStore(cfg.GetArtifactsDir())
	bundle, err := artifact.LoadBundle(store, cfg.GetSchema())
	if err == nil {
		err = svc.Swap(bundle)
	}
	if err != nil {
		log.Printf("⚠️  Starting without a model, /api/predict will answer 503: %v", err)
	} else {
		log.Printf("Loaded model bundle run_id=%s schema=%s", bundle.RunID, bundle.Schema.Name)
	}

	var sim *predict.Simulator
	if seed, ok := cfg.GetSimulationSeed(); ok {
		sim = predict.NewSimulator(svc, seed)
		log.Printf("Simulation mode enabled on /api/predict/simulate (seed %d)", seed)
	}

	server := api.NewServer(api.Options{
		DB:        database,
		Predictor: svc,
		Simulator: sim,
		Weather: &weather.Client{
			BaseURL:  cfg.GetWeatherURL(),
			HTTP:     &http.Client{},
			Timeout:  cfg.GetWeatherTimeout(),
			Fallback: cfg.GetWeatherFallback(),
		},
		Drift:       drift,
		Dataset:     table,
		Geometry:    geo,
		Artifacts:   store,
		Schema:      cfg.GetSchema(),
		Hours:       hours,
		SessionTTL:  cfg.GetSessionTTL(),
		ResetTTL:    cfg.GetPasswordResetTTL(),
		Admins:      admins,
		CORSOrigins: cfg.GetCORSOrigins(),
		AdminRoutes: cfg.GetAdminRoutes(),
	})
	handler, err := server.Router()
	if err != nil {
		return fmt.Errorf("failed to build routes: %w", err)
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(sessionPurgeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := database.PurgeExpiredSessions(); err != nil {
					log.Printf("session purge failed: %v", err)
				} else if n > 0 {
					log.Printf("Purged %d expired sessions", n)
				}
				if n, err := database.PurgeExpiredPasswordResets(); err != nil {
					log.Printf("password reset purge failed: %v", err)
				} else if n > 0 {
					log.Printf("Purged %d expired password reset tokens", n)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	httpServer := &http.Server{
		Addr:              cfg.GetListen(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		log.Println("shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := httpServer.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}
	}()

	log.Printf("ghatsafe %s listening on %s", version.Version, httpServer.Addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		stop()
		wg.Wait()
		return fmt.Errorf("failed to start server: %w", err)
	}
	wg.Wait()
	log.Printf("Graceful shutdown complete")
	return nil
}
