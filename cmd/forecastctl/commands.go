package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"energy_forecast/internal/app"
	"energy_forecast/internal/config"
	"energy_forecast/internal/ingest"
	"energy_forecast/internal/logger"
	"energy_forecast/internal/model"
)

type options struct {
	configFile string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "forecastctl",
		Short:         "Train and query building energy forecasts from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "config file (default: ./configs/config.yaml or ./config.yaml)")
	root.PersistentFlags().BoolVar(&opts.verbose, "verbose", false, "log service events to stderr")

	root.AddCommand(sampleCmd())
	root.AddCommand(trainCmd(opts))
	root.AddCommand(forecastCmd(opts))
	return root
}

// open loads configuration and assembles the service. Metrics go to a
// private registry since nothing scrapes a CLI run.
func (o *options) open(ctx context.Context) (*app.App, *config.Config, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, nil, err
	}
	log := zap.NewNop()
	if o.verbose {
		log = logger.New(logger.Options{Level: "debug", Format: "console", Output: "stderr"})
	}
	a, err := app.New(ctx, cfg, log, prometheus.NewRegistry())
	if err != nil {
		return nil, nil, err
	}
	return a, cfg, nil
}

func sampleCmd() *cobra.Command {
	var (
		building string
		days     int
		seed     uint64
		format   string
		out      string
		end      string
	)
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Generate synthetic hourly measurements",
		RunE: func(cmd *cobra.Command, args []string) error {
			endTime := time.Now().UTC()
			if end != "" {
				t, err := ingest.ParseTimestamp(end)
				if err != nil {
					return fmt.Errorf("invalid --end: %w", err)
				}
				endTime = t
			}
			if days < 1 {
				return fmt.Errorf("--days must be positive, got %d", days)
			}
			ms := ingest.Sample(building, days, endTime, seed)

			w := cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("creating %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}

			switch format {
			case "csv":
				return writeCSV(w, ms)
			case "json":
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(ingest.ToPayload(building, ms))
			default:
				return fmt.Errorf("unknown --format %q (csv|json)", format)
			}
		},
	}
	cmd.Flags().StringVar(&building, "building", "B-101", "building ID")
	cmd.Flags().IntVar(&days, "days", 10, "days of hourly data")
	cmd.Flags().Uint64Var(&seed, "seed", 42, "random seed")
	cmd.Flags().StringVar(&format, "format", "csv", "output format: csv or json (ingest payload)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	cmd.Flags().StringVar(&end, "end", "", "end timestamp, exclusive (default now)")
	return cmd
}

func trainCmd(opts *options) *cobra.Command {
	var (
		csvPath  string
		building string
		minRows  int
	)
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Import measurements and train a model per building",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, cfg, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			buildings, err := importCSV(ctx, a, csvPath)
			if err != nil {
				return err
			}
			if building != "" {
				buildings = []string{building}
			}
			if len(buildings) == 0 {
				return fmt.Errorf("nothing to train: pass --csv or --building")
			}

			if minRows <= 0 {
				minRows = cfg.Training.MinRows
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Training: algorithm=%s trees=%d min_rows=%d\n", cfg.Training.Algorithm, cfg.Training.Trees, minRows)
			for _, id := range buildings {
				start := time.Now()
				art, err := a.Service.Train(ctx, id, minRows)
				if err != nil {
					return fmt.Errorf("training %s: %w", id, err)
				}
				fmt.Fprintf(w, "\n=== %s ===\n", id)
				fmt.Fprintf(w, "Version:         %s\n", art.Version)
				fmt.Fprintf(w, "Rows:            %d (train %d, validation %d)\n",
					art.Metrics.Rows, art.Metrics.TrainRows, art.Metrics.ValidationRows)
				fmt.Fprintf(w, "Validation MAE:  %.3f\n", art.Metrics.MAE)
				fmt.Fprintf(w, "Residual std:    %.3f\n", art.ResidualStd)
				fmt.Fprintf(w, "Took:            %s\n", time.Since(start).Round(time.Millisecond))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&csvPath, "csv", "", "measurement CSV to import before training")
	cmd.Flags().StringVar(&building, "building", "", "train only this building (default: every building in --csv)")
	cmd.Flags().IntVar(&minRows, "min-rows", 0, "minimum hourly rows required to train (default training.min_rows)")
	return cmd
}

func forecastCmd(opts *options) *cobra.Command {
	var (
		csvPath  string
		building string
		hours    int
		factor   float64
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Forecast a building's next hours with its published model",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if building == "" {
				return fmt.Errorf("--building is required")
			}
			a, _, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := importCSV(ctx, a, csvPath); err != nil {
				return err
			}

			res, err := a.Service.Forecast(ctx, building, hours)
			if err != nil {
				return err
			}
			var co2 []float64
			if cmd.Flags().Changed("factor") {
				c, err := a.Service.Carbon(ctx, building, hours, &factor)
				if err != nil {
					return err
				}
				co2 = c.PerHour
			}

			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			fmt.Fprintf(w, "Building %s, model %s (trained %s)\n", res.BuildingID, res.ModelVersion, res.TrainedAt.Format(time.RFC3339))
			for i, ts := range res.Timestamps {
				fmt.Fprintf(w, "%s  %8.2f  [%8.2f, %8.2f]", ts.Format("2006-01-02 15:04"),
					res.PointForecast[i], res.PILow[i], res.PIHigh[i])
				if co2 != nil {
					fmt.Fprintf(w, "  %10.1f gCO2", co2[i])
				}
				fmt.Fprintln(w)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&csvPath, "csv", "", "measurement CSV to import before forecasting")
	cmd.Flags().StringVar(&building, "building", "", "building ID")
	cmd.Flags().IntVar(&hours, "hours", 24, "forecast horizon in hours")
	cmd.Flags().Float64Var(&factor, "factor", 220, "also print CO2 using this factor (g/kWh)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the forecast as JSON")
	return cmd
}

// importCSV ingests path, if set, and returns the buildings it contained in
// sorted order.
func importCSV(ctx context.Context, a *app.App, path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	parser := &ingest.CSVParser{}
	ms, err := parser.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	byBuilding := make(map[string][]model.Measurement)
	for _, m := range ms {
		byBuilding[m.BuildingID] = append(byBuilding[m.BuildingID], m)
	}
	buildings := make([]string, 0, len(byBuilding))
	for id, rows := range byBuilding {
		if _, err := a.Service.Ingest(ctx, id, rows); err != nil {
			return nil, fmt.Errorf("importing %s: %w", id, err)
		}
		buildings = append(buildings, id)
	}
	slices.Sort(buildings)
	return buildings, nil
}

func writeCSV(w io.Writer, ms []model.Measurement) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"building_id", "ts", "energy", "temperature"}); err != nil {
		return err
	}
	for _, m := range ms {
		temp := ""
		if m.Temperature != nil {
			temp = strconv.FormatFloat(*m.Temperature, 'f', -1, 64)
		}
		rec := []string{m.BuildingID, m.Timestamp.Format(time.RFC3339), strconv.FormatFloat(m.Energy, 'f', -1, 64), temp}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
