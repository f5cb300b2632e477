// Package main provides the entry point for the char-golf daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JoobyPM/char-golf/internal/backend"
	"github.com/JoobyPM/char-golf/internal/backend/local"
	"github.com/JoobyPM/char-golf/internal/cache"
	"github.com/JoobyPM/char-golf/internal/config"
	"github.com/JoobyPM/char-golf/internal/golf"
	"github.com/JoobyPM/char-golf/internal/httpapi"
	"github.com/JoobyPM/char-golf/internal/logging"
	"github.com/JoobyPM/char-golf/internal/shorten"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "char-golfd:", err)
		os.Exit(1)
	}
}

// run parses flags, builds the daemon and serves until ctx is done.
func run(ctx context.Context, args []string, logOut io.Writer) error {
	fs := flag.NewFlagSet("char-golfd", flag.ContinueOnError)
	var (
		configPath   = fs.String("config", "", "config file (default: discover .golf.yaml and ~/.config/golf/config.yaml)")
		listen       = fs.String("listen", "", "API listen address (overrides server.listen)")
		healthListen = fs.String("health-listen", "", "health and metrics listen address (overrides server.health_listen)")
		noWarm       = fs.Bool("no-warm", false, "build golf tables on first use instead of at startup")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(config.LoadOptions{ExplicitPath: *configPath})
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *listen != "" {
		cfg.Server.Listen = *listen
	}
	if *healthListen != "" {
		cfg.Server.HealthListen = *healthListen
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.New(cfg.Log, logOut)
	defer logger.Sync() //nolint:errcheck // nothing useful to do on exit

	d, err := newDaemon(cfg, logger)
	if err != nil {
		return err
	}
	if !*noWarm {
		go d.warm()
	}
	return d.serve(ctx)
}

// daemon owns the listeners and shared state of one char-golfd process.
type daemon struct {
	cfg    *config.Config
	log    *zap.Logger
	golf   *golf.Engine
	cache  *cache.Cache
	api    *http.Server
	health *http.Server

	apiLn    net.Listener
	healthLn net.Listener
}

// newDaemon loads the cache snapshot, builds engines and binds listeners.
func newDaemon(cfg *config.Config, logger *zap.Logger) (*daemon, error) {
	d := &daemon{cfg: cfg, log: logger, golf: golf.Default()}

	if cfg.Cache.Enabled {
		d.cache = cache.New(cfg.Cache.Dir, cfg.CacheTTLDuration())
		if err := d.cache.Load(); err != nil {
			// A bad snapshot only costs recomputation.
			logger.Warn("ignoring result cache snapshot", zap.String("dir", d.cache.Dir()), zap.Error(err))
			d.cache.Flush()
		} else {
			logger.Info("result cache loaded", zap.String("dir", d.cache.Dir()), zap.Int("entries", d.cache.Len()))
		}
	}

	variant := fmt.Sprintf("%d/%d/%t", cfg.Shorten.Budget, cfg.Shorten.MinLength, cfg.Shorten.MatchCase)
	engines := make(map[string]backend.Engine, len(backend.Engines()))
	for _, name := range backend.Engines() {
		sc := cfg.Shorten
		sc.Engine = name
		eng, err := local.New(sc)
		if err != nil {
			return nil, err
		}
		engines[name] = cache.Wrap(eng, d.cache, variant)
	}

	srv := &httpapi.Server{
		Engines:       engines,
		DefaultEngine: cfg.Shorten.Engine,
		DefaultMode:   cfg.ShortenMode(),
		Budget:        cfg.Shorten.Budget,
		MinLength:     cfg.Shorten.MinLength,
		MaxBodyBytes:  cfg.Server.MaxBodyBytes,
		Ready:         d.golf.Ready,
		Logger:        logger,
		Metrics:       httpapi.NewMetrics(),
	}

	var err error
	d.apiLn, err = net.Listen("tcp", cfg.Server.Listen)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", cfg.Server.Listen, err)
	}
	d.healthLn, err = net.Listen("tcp", cfg.Server.HealthListen)
	if err != nil {
		d.apiLn.Close()
		return nil, fmt.Errorf("listen %s: %w", cfg.Server.HealthListen, err)
	}

	d.api = &http.Server{
		Handler:      srv.Routes(),
		ReadTimeout:  cfg.ReadTimeoutDuration(),
		WriteTimeout: cfg.WriteTimeoutDuration(),
		IdleTimeout:  60 * time.Second,
	}
	d.health = &http.Server{
		Handler:           srv.HealthRoutes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return d, nil
}

// warm builds the golf tables so the first golf request is fast.
func (d *daemon) warm() {
	d.golf.Warm()
	d.log.Info("golf tables ready",
		zap.Duration("build_time", d.golf.BuildTime()),
		zap.Int("plain_entries", d.golf.Size(shorten.Plain)),
		zap.Int("punctuation_entries", d.golf.Size(shorten.WithPunctuation)),
	)
}

// serve runs both listeners until ctx is done or one fails, then shuts
// down and saves the cache snapshot.
func (d *daemon) serve(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		d.log.Info("starting char-golf API", zap.String("addr", d.apiLn.Addr().String()))
		if err := d.api.Serve(d.apiLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		d.log.Info("starting health listener", zap.String("addr", d.healthLn.Addr().String()))
		if err := d.health.Serve(d.healthLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		d.log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		if err := d.api.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("api shutdown: %w", err))
		}
		if err := d.health.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("health shutdown: %w", err))
		}
		if err := d.cache.Save(); err != nil {
			d.log.Error("save result cache", zap.Error(err))
		} else if d.cache != nil {
			hits, misses := d.cache.Stats()
			d.log.Info("result cache saved",
				zap.String("dir", d.cache.Dir()),
				zap.Int("entries", d.cache.Len()),
				zap.Int64("hits", hits),
				zap.Int64("misses", misses),
			)
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}
