package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/daniacca/genekin/internal/kinetics"
	"github.com/daniacca/genekin/internal/logging"
	"github.com/daniacca/genekin/internal/sinks"
)

func main() {
	cfg, err := loadServerConfig(os.Args[1:])
	if err != nil {
		logging.New("error").Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.LogLevel)

	srv := NewServer(logger, cfg.Workers)
	srv.SetSnapshotDir(cfg.SnapshotDir)
	if cfg.SQLitePath != "" {
		path := cfg.SQLitePath
		srv.manager.SetSinkFactory(func(id kinetics.RunID) (kinetics.CountSink, error) {
			return sinks.OpenSQLite(path, id)
		})
		logger.Infof("reports also written to sqlite: path=%s", path)
	}

	if cfg.ModelFile != "" {
		model, err := loadModelConfig(cfg.ModelFile)
		if err != nil {
			logger.Fatalf("load model file %s: %v", cfg.ModelFile, err)
		}
		if _, err := srv.manager.CreateRun(kinetics.RunID(cfg.DefaultRun), model); err != nil {
			logger.Fatalf("start run %s: %v", cfg.DefaultRun, err)
		}
		srv.metrics.runs.Inc()
		logger.Infof("startup run created: run_id=%s model=%s", cfg.DefaultRun, model.Name)
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Infof("genekin-server listening on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("http shutdown: %v", err)
	}
	if err := srv.Close(); err != nil {
		logger.Errorf("close: %v", err)
	}
}
