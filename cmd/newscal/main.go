package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"newscal/internal/config"
	"newscal/internal/editor"
	"newscal/internal/generator"
	applog "newscal/internal/log"
	"newscal/internal/msg"
	"newscal/internal/store"
	"newscal/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	debug      bool
}

// finishedJobRetention is how long done/failed generation job records stay
// visible before the purge schedule drops them.
const finishedJobRetention = 24 * time.Hour

func main() {
	flags := parseFlags()
	if flags.debug {
		applog.SetLevel(applog.LevelDebug)
	}
	applog.Info("newscal starting", "version", "0.1.0")

	conf, err := config.Load(flags.configPath)
	if err != nil {
		applog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	applog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"database_path", conf.DatabasePath,
		"queue_size", conf.QueueSize,
		"purge_cron", conf.PurgeCron,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		applog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	st, err := store.Open(conf.DatabasePath)
	if err != nil {
		applog.Error("failed to open process store", err, "database_path", conf.DatabasePath)
		os.Exit(1)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			applog.Error("failed to close process store", cerr)
		}
	}()

	trans, err := msg.NewTranslator()
	if err != nil {
		applog.Error("failed to build message translator", err)
		os.Exit(1)
	}

	manager := generator.NewManager(st, conf.QueueSize)
	manager.Start(ctx)

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(conf.PurgeCron, func() {
		purged := manager.PurgeFinished(finishedJobRetention)
		if purged > 0 {
			applog.Info("purged finished generation jobs", "count", purged)
		}
	}); err != nil {
		applog.Error("invalid purge cron expression", err, "purge_cron", conf.PurgeCron)
		os.Exit(1)
	}
	scheduler.Start()
	defer scheduler.Stop()

	ed := editor.New(time.Now)
	server := web.NewServer(conf, ed, manager, st, trans)

	httpServer := &http.Server{
		Addr:         conf.Listen,
		Handler:      server.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  90 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		applog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			applog.Error("HTTP server failed", err)
		}
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		applog.Error("HTTP server shutdown failed", err)
	}

	manager.Wait()
	applog.Info("newscal exiting")
	applog.Sync()
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/newscal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
