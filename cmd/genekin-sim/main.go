package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/daniacca/genekin/internal/kinetics"
	"github.com/daniacca/genekin/internal/logging"
	"github.com/daniacca/genekin/internal/sinks"
)

type options struct {
	configFile string
	timeLimit  float64
	timeStep   float64
	output     string
	seed       uint64
	runID      string
	sqlitePath string
	verbose    bool
	s3         sinks.S3Config
}

func parseOptions(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("genekin-sim", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configFile, "config", "", "path to model config JSON file (required)")
	fs.Float64Var(&opts.timeLimit, "time-limit", 100, "simulated seconds to run")
	fs.Float64Var(&opts.timeStep, "time-step", 1, "seconds between count reports")
	fs.StringVar(&opts.output, "output", "", "TSV output file (default stdout)")
	fs.Uint64Var(&opts.seed, "seed", 0, "random seed, overrides the config seed when nonzero")
	fs.StringVar(&opts.runID, "run-id", "", "run ID (default a random UUID)")
	fs.StringVar(&opts.sqlitePath, "sqlite", "", "also write reports to this SQLite database")
	fs.BoolVar(&opts.verbose, "v", false, "log model events to stderr")
	fs.StringVar(&opts.s3.Bucket, "s3-bucket", "", "upload the TSV output to this bucket when done")
	fs.StringVar(&opts.s3.Prefix, "s3-prefix", "runs", "object key prefix")
	fs.StringVar(&opts.s3.Region, "s3-region", "", "bucket region")
	fs.StringVar(&opts.s3.Endpoint, "s3-endpoint", "", "custom endpoint for S3-compatible stores")
	fs.BoolVar(&opts.s3.PathStyle, "s3-path-style", false, "use path-style bucket addressing")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	switch {
	case opts.configFile == "":
		return opts, errors.New("--config is required")
	case opts.timeLimit <= 0:
		return opts, fmt.Errorf("--time-limit must be positive, got %g", opts.timeLimit)
	case opts.timeStep <= 0:
		return opts, fmt.Errorf("--time-step must be positive, got %g", opts.timeStep)
	case opts.s3.Bucket != "" && opts.output == "":
		return opts, errors.New("--s3-bucket needs --output")
	}
	return opts, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseOptions(args, stderr)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(opts.configFile)
	if err != nil {
		return err
	}
	if opts.seed != 0 {
		cfg.Seed = &opts.seed
	}
	model, err := kinetics.BuildModelFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("building model: %w", err)
	}
	if opts.verbose {
		model.SetLogger(logging.NewTo(stderr, "debug"))
	}
	runID := kinetics.RunID(opts.runID)
	if runID == "" {
		runID = kinetics.NewRunID()
	}
	model.SetRunID(runID)

	sink, err := openSinks(opts, runID, stdout)
	if err != nil {
		return err
	}
	simErr := model.Simulate(ctx, opts.timeLimit, opts.timeStep, sink)
	if err := errors.Join(simErr, sink.Close()); err != nil {
		return fmt.Errorf("simulation: %w", err)
	}

	if opts.s3.Bucket != "" {
		archive, err := sinks.NewS3Archive(ctx, opts.s3)
		if err != nil {
			return err
		}
		key := archive.Key(runID)
		if err := archive.Upload(ctx, key, opts.output); err != nil {
			return err
		}
		fmt.Fprintf(stderr, "uploaded s3://%s/%s\n", opts.s3.Bucket, key)
	}

	printSummary(stderr, cfg.Name, runID, model)
	return nil
}

func loadConfig(path string) (kinetics.ModelConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return kinetics.ModelConfig{}, fmt.Errorf("reading config file: %w", err)
	}
	var cfg kinetics.ModelConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return kinetics.ModelConfig{}, fmt.Errorf("parsing config JSON: %w", err)
	}
	if err := kinetics.ValidateModelConfig(cfg); err != nil {
		return kinetics.ModelConfig{}, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func openSinks(opts options, runID kinetics.RunID, stdout io.Writer) (kinetics.CountSink, error) {
	var out sinks.Multi
	if opts.output != "" {
		tsv, err := sinks.CreateTSVFile(opts.output)
		if err != nil {
			return nil, err
		}
		out = append(out, tsv)
	} else {
		tsv, err := sinks.NewTSVSink(stdout)
		if err != nil {
			return nil, err
		}
		out = append(out, tsv)
	}
	if opts.sqlitePath != "" {
		db, err := sinks.OpenSQLite(opts.sqlitePath, runID)
		if err != nil {
			_ = out.Close()
			return nil, err
		}
		out = append(out, db)
	}
	return out, nil
}

func printSummary(w io.Writer, name string, runID kinetics.RunID, model *kinetics.Model) {
	status := "finished"
	if model.Stalled() {
		status = "stalled"
	}
	fmt.Fprintf(w, "Simulation %s (model=%s, run=%s, t=%g, reactions=%d)\n",
		status, name, runID, model.Time(), model.Steps())
	fmt.Fprintln(w, "Species counts:")
	for _, row := range model.Counts() {
		fmt.Fprintf(w, "  %s: %d\n", row.Species, row.Protein)
	}
}
