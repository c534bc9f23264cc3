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
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"energy_forecast/internal/api"
	"energy_forecast/internal/app"
	"energy_forecast/internal/config"
	"energy_forecast/internal/ingest"
	"energy_forecast/internal/logger"
	"energy_forecast/internal/model"
	"energy_forecast/internal/service"
	"energy_forecast/internal/tracing"
	"energy_forecast/internal/ws"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: ./configs/config.yaml or ./config.yaml)")
	inputDir := flag.String("input-dir", "", "directory of measurement CSV files to import at startup")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Logging.Options())
	defer log.Sync() //nolint:errcheck

	if err := run(cfg, *inputDir, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, inputDir string, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    "energy-forecast",
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		Endpoint:       cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
		SampleRatio:    cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return err
	}
	defer shutdownTracing(context.Background()) //nolint:errcheck

	a, err := app.New(ctx, cfg, log, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	if inputDir != "" {
		tr, err := loadCSVs(ctx, inputDir, a.Service, log)
		if err != nil {
			return err
		}
		if !tr.Start.IsZero() {
			log.Info("data loaded",
				zap.String("from", tr.Start.Format("2006-01-02")),
				zap.String("to", tr.End.Format("2006-01-02")))
		}
	}

	router := api.NewRouter(a.Service, api.Options{
		CORSOrigins:        cfg.Server.CORSOrigins,
		TrainRatePerMinute: cfg.Server.TrainRatePerMinute,
		TrainBurst:         cfg.Server.TrainBurst,
		Gatherer:           prometheus.DefaultGatherer,
		WebSocket:          ws.NewHandler(a.Hub, a.Status, log.Named("ws")),
		Logger:             log.Named("http"),
	})
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("addr", cfg.Server.Addr), zap.String("version", cfg.App.Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// loadCSVs imports every measurement CSV in dir. Returns the combined time
// range of all loaded measurements.
func loadCSVs(ctx context.Context, dir string, svc *service.Service, log *zap.Logger) (model.TimeRange, error) {
	var tr model.TimeRange
	entries, err := os.ReadDir(dir)
	if err != nil {
		return tr, fmt.Errorf("reading input directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		f, err := os.Open(path)
		if err != nil {
			return tr, fmt.Errorf("opening %s: %w", path, err)
		}

		parser := &ingest.CSVParser{}
		ms, err := parser.Parse(f)
		f.Close()
		if err != nil {
			return tr, fmt.Errorf("parsing %s: %w", path, err)
		}

		for buildingID, rows := range groupByBuilding(ms) {
			if _, err := svc.Ingest(ctx, buildingID, rows); err != nil {
				return tr, fmt.Errorf("importing %s: %w", path, err)
			}
		}
		tr = extendTimeRange(tr, ms)
		log.Info("loaded measurements",
			zap.String("file", entry.Name()),
			zap.Int("rows", len(ms)),
			zap.Int("skipped", parser.Skipped))
	}

	return tr, nil
}

func groupByBuilding(ms []model.Measurement) map[string][]model.Measurement {
	out := make(map[string][]model.Measurement)
	for _, m := range ms {
		out[m.BuildingID] = append(out[m.BuildingID], m)
	}
	return out
}

// extendTimeRange extends tr to include the min/max timestamps of ms.
func extendTimeRange(tr model.TimeRange, ms []model.Measurement) model.TimeRange {
	for _, m := range ms {
		if tr.Start.IsZero() || m.Timestamp.Before(tr.Start) {
			tr.Start = m.Timestamp
		}
		if m.Timestamp.After(tr.End) {
			tr.End = m.Timestamp
		}
	}
	return tr
}
