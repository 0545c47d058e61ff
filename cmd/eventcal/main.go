package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"eventcal/internal/backup"
	"eventcal/internal/calendar"
	"eventcal/internal/config"
	"eventcal/internal/ics"
	appLog "eventcal/internal/log"
	"eventcal/internal/recurrence"
	"eventcal/internal/store"
	"eventcal/internal/web"
)

const version = "0.1.0"

type flagConfig struct {
	configPath string
	listen     string
	dataDir    string
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "hash-password" {
		if err := hashPassword(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "hash-password: %v\n", err)
			os.Exit(1)
		}
		return
	}

	flags := parseFlags()
	if err := run(flags); err != nil {
		appLog.Error("eventcal failed", err)
		os.Exit(1)
	}
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./eventcal.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.dataDir, "data", ".", "Directory for relative storage and backup paths")

	flag.Parse()

	return cfg
}

func run(flags flagConfig) error {
	conf, err := config.Load(flags.configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", flags.configPath, err)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	appLog.Info("eventcal starting", "version", version)
	appLog.Info("effective config",
		"listen", conf.Listen,
		"storage", conf.Storage.Backend,
		"storage_path", conf.Storage.Path,
		"week_start", conf.WeekStart,
		"default_occurrences", conf.DefaultOccurrences,
		"backup_cron", conf.Backup.Cron,
		"auth", conf.AuthEnabled(),
	)

	if err := os.MkdirAll(flags.dataDir, 0o700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	slot, closeSlot, err := openSlot(conf.Storage, flags.dataDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeSlot(); err != nil {
			appLog.Error("close storage failed", err)
		}
	}()

	st := store.Open(slot, recurrence.New(nil))
	ctrl := calendar.New(st,
		calendar.WithDefaultOccurrences(conf.DefaultOccurrences),
		calendar.WithWeekStart(conf.WeekStart),
	)
	server := web.NewServer(conf, ctrl, ics.NewFetcher(nil))

	if conf.Backup.Cron != "" {
		sched := backup.NewScheduler(server, resolve(flags.dataDir, conf.Backup.Dir), conf.Backup.Keep)
		if err := sched.Start(conf.Backup.Cron); err != nil {
			return err
		}
		defer sched.Stop()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:         conf.Listen,
		Handler:      server.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		appLog.Info("signal received, shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	appLog.Info("eventcal exiting")
	return nil
}

// openSlot builds the configured persistence slot. The returned close
// func is always non-nil.
func openSlot(sc config.StorageConfig, dataDir string) (store.Slot, func() error, error) {
	noop := func() error { return nil }
	switch sc.Backend {
	case config.BackendMemory:
		return store.NewMemorySlot(nil), noop, nil
	case config.BackendSQLite:
		slot, err := store.OpenSQLiteSlot(resolve(dataDir, sc.Path), sc.Key)
		if err != nil {
			return nil, noop, err
		}
		return slot, slot.Close, nil
	default:
		return store.NewFileSlot(resolve(dataDir, sc.Path)), noop, nil
	}
}

func resolve(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
