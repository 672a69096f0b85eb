package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/speedtrap/internal/api"
	"github.com/banshee-data/speedtrap/internal/config"
	"github.com/banshee-data/speedtrap/internal/db"
	"github.com/banshee-data/speedtrap/internal/monitoring"
	"github.com/banshee-data/speedtrap/internal/pipeline"
	"github.com/banshee-data/speedtrap/internal/radar"
	"github.com/banshee-data/speedtrap/internal/sensor"
	"github.com/banshee-data/speedtrap/internal/timeutil"
	"github.com/banshee-data/speedtrap/internal/version"
)

var (
	configPath  = flag.String("config", "", "Path to a JSON config file (built-in defaults when empty)")
	listen      = flag.String("listen", ":8080", "HTTP listen address (empty disables the API)")
	dbPath      = flag.String("db", "", "Path to the sqlite site database (optional)")
	migrateCmd  = flag.String("migrate", "", "Run a schema migration on -db (up, down or status) and exit")
	siteName    = flag.String("site", "", "Site whose limits to use; defaults to the active site in -db")
	serialPort  = flag.String("serial", "", "Serial port of the sensor board; simulated traffic when empty")
	color       = flag.Bool("color", true, "Color the status column of the display")
	seed        = flag.Uint64("seed", 0, "Seed for simulated traffic and camera (0 picks a random seed)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// runMigrate applies a migrate action to the database at path without the
// automatic upgrade NewDB performs.
func runMigrate(path, action string, w io.Writer) error {
	if path == "" {
		return errors.New("-migrate requires -db")
	}
	d, err := db.OpenDB(path)
	if err != nil {
		return fmt.Errorf("failed to open site database: %w", err)
	}
	defer d.Close()
	return db.RunMigrateCommand(d, action, w)
}

// loadConfig returns the built-in defaults when path is empty.
func loadConfig(path string) (*config.RadarConfig, error) {
	if path == "" {
		return config.DefaultRadarConfig(), nil
	}
	return config.LoadConfig(path)
}

// resolveSite picks the site whose limits override the config: the named
// site if name is set, otherwise the active site. No active site is not an
// error.
func resolveSite(d *db.DB, name string) (*db.Site, error) {
	if d == nil {
		return nil, nil
	}
	if name != "" {
		site, err := d.GetSiteByName(name)
		if err != nil {
			return nil, fmt.Errorf("site %q: %w", name, err)
		}
		return site, nil
	}
	site, err := d.GetActiveSite()
	if errors.Is(err, db.ErrSiteNotFound) {
		return nil, nil
	}
	return site, err
}

// newRand returns an independent generator for each stream of one seed.
// A zero seed picks a random one.
func newRand(seed, stream uint64) *rand.Rand {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return rand.New(rand.NewPCG(seed, stream))
}

func pipelineOptions(cfg *config.RadarConfig, limits radar.Limits, m *monitoring.Metrics, rng *rand.Rand) pipeline.Options {
	return pipeline.Options{
		Limits:               limits,
		QueueCapacity:        cfg.GetQueueCapacity(),
		TableCapacity:        cfg.GetCorrelationCapacity(),
		Eviction:             cfg.GetEvictionPolicy(),
		PublishTimeout:       cfg.GetPublishTimeout(),
		CameraFailurePercent: uint32(cfg.GetCameraFailurePercent()),
		CameraMinDelay:       cfg.GetCameraMinDelay(),
		CameraMaxDelay:       cfg.GetCameraMaxDelay(),
		Rand:                 rng,
		Output:               os.Stdout,
		Color:                *color,
		TallyWindow:          cfg.GetTallyWindow(),
		Metrics:              m,
	}
}

// runHTTP serves until ctx is done, then shuts the server down.
func runHTTP(ctx context.Context, addr string, handler http.Handler) error {
	server := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	errc := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		// Force close the server if graceful shutdown fails
		if err := server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}
	log.Printf("HTTP server routine stopped")
	return nil
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	if *migrateCmd != "" {
		if err := runMigrate(*dbPath, *migrateCmd, os.Stdout); err != nil {
			log.Fatalf("migrate %s: %v", *migrateCmd, err)
		}
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	var siteDB *db.DB
	if *dbPath != "" {
		siteDB, err = db.NewDB(*dbPath)
		if err != nil {
			log.Fatalf("failed to open site database: %v", err)
		}
		defer siteDB.Close()
	}
	site, err := resolveSite(siteDB, *siteName)
	if err != nil {
		log.Fatalf("failed to load site: %v", err)
	}

	limits := cfg.Limits()
	if site != nil {
		limits = site.Limits()
		log.Printf("using limits of site %q", site.Name)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := monitoring.NewMetrics(reg)
	if err != nil {
		log.Fatalf("failed to register metrics: %v", err)
	}

	p := pipeline.New(pipelineOptions(cfg, limits, metrics, newRand(*seed, 1)))
	detector := sensor.NewDetector(p.Emitter(), sensor.WithMetrics(metrics))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return p.Run(ctx) })

	if *serialPort != "" {
		port, err := sensor.OpenSerialPort(*serialPort, cfg.GetSerial())
		if err != nil {
			log.Fatalf("failed to open serial port: %v", err)
		}
		src := sensor.NewSerialSource(port, detector)
		defer src.Close()
		g.Go(func() error { return src.Run(ctx) })
		log.Printf("reading pulses from %s", *serialPort)
	} else {
		sim := &sensor.Simulator{Pulser: detector, Limits: limits, Clock: timeutil.RealClock{}, Rand: newRand(*seed, 2)}
		g.Go(func() error { return sim.Run(ctx) })
		log.Printf("simulating traffic")
	}

	if *listen != "" {
		server := api.NewServer(p, reg)
		server.SetSite(site)
		server.SetDB(siteDB)
		mux := server.ServeMux()
		server.AttachAdminRoutes(mux)
		if siteDB != nil {
			if err := siteDB.AttachAdminRoutes(mux); err != nil {
				log.Fatalf("failed to attach db routes: %v", err)
			}
		}
		g.Go(func() error { return runHTTP(ctx, *listen, api.LoggingMiddleware(mux)) })
	}

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("stopped: %v", err)
	}
	log.Printf("Graceful shutdown complete")
}
