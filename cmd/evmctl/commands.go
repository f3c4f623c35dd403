package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/manchuphon/Alert-Dashboard/internal/config"
	"github.com/manchuphon/Alert-Dashboard/internal/domain"
	"github.com/manchuphon/Alert-Dashboard/internal/modules/alerts"
	"github.com/manchuphon/Alert-Dashboard/internal/modules/evaluation"
	"github.com/manchuphon/Alert-Dashboard/internal/modules/features"
	"github.com/manchuphon/Alert-Dashboard/internal/modules/kpi"
	"github.com/manchuphon/Alert-Dashboard/internal/modules/progress"
	"github.com/manchuphon/Alert-Dashboard/internal/modules/records"
	"github.com/manchuphon/Alert-Dashboard/pkg/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// options are the persistent flags shared by every command
type options struct {
	input       string
	output      string
	format      string
	actualsMode string
	thresholds  string
	workers     int
	trendLength int
	logLevel    string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "evmctl",
		Short:         "Offline EVM alert and KPI evaluation over CSV exports",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.input, "input", "i", "-", "CSV export to read, - for stdin")
	flags.StringVarP(&opts.output, "output", "o", "-", "file to write, - for stdout")
	flags.StringVarP(&opts.format, "format", "f", string(alerts.FormatJSON), "output format: json or msgpack")
	flags.StringVar(&opts.actualsMode, "actuals-mode", string(domain.ActualsCumulative), "how total_actual is reported: cumulative or periodic")
	flags.StringVar(&opts.thresholds, "thresholds", "", "YAML policy file overriding the default thresholds")
	flags.IntVar(&opts.workers, "workers", 0, "feature builder workers, 0 for the default")
	flags.IntVar(&opts.trendLength, "trend-length", 3, "EMA length of the CPI and burn rate trends")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn or error")

	rootCmd.AddCommand(newEvaluateCmd(opts))
	rootCmd.AddCommand(newKPICmd(opts))

	return rootCmd
}

// engine is the wired evaluation service over one loaded CSV snapshot
type engine struct {
	service *evaluation.Service
	records []domain.ProjectPeriodRecord
	loaded  records.ImportResult
	log     zerolog.Logger
}

// memorySource serves a loaded snapshot to the evaluation service
type memorySource []domain.ProjectPeriodRecord

func (m memorySource) All(ctx context.Context) ([]domain.ProjectPeriodRecord, error) {
	return m, nil
}

func (m memorySource) Project(ctx context.Context, projectID string) ([]domain.ProjectPeriodRecord, error) {
	var out []domain.ProjectPeriodRecord
	for _, rec := range m {
		if rec.ProjectID == projectID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (o *options) validate() error {
	if !alerts.Format(o.format).IsValid() {
		return fmt.Errorf("unknown format %q", o.format)
	}
	if !domain.ActualsMode(o.actualsMode).IsValid() {
		return fmt.Errorf("unknown actuals mode %q", o.actualsMode)
	}
	if o.trendLength < 1 {
		return fmt.Errorf("trend length must be at least 1")
	}
	return nil
}

// newEngine loads the policy and the CSV input and wires the engine around them
func (o *options) newEngine(cmd *cobra.Command) (*engine, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}

	log := logger.New(logger.Config{
		Level:  o.logLevel,
		Pretty: true,
		Output: cmd.ErrOrStderr(),
	})

	policy, err := config.LoadPolicy(o.thresholds)
	if err != nil {
		return nil, err
	}

	in, closeIn, err := o.openInput(cmd)
	if err != nil {
		return nil, err
	}
	defer closeIn()

	loaded, err := records.Load(in, domain.ActualsMode(o.actualsMode))
	if err != nil {
		return nil, err
	}
	log.Info().
		Int("rows", loaded.Rows).
		Int("skipped", loaded.Skipped).
		Int("duplicates", loaded.Duplicates).
		Msg("CSV loaded")

	builder, err := features.NewBuilder(policy.Constants, progress.NewEstimator(log), features.NewWorkerPool(o.workers), log)
	if err != nil {
		return nil, err
	}
	evaluator, err := alerts.NewEvaluator(policy.Thresholds, log)
	if err != nil {
		return nil, err
	}

	source := memorySource(loaded.Records)
	return &engine{
		service: evaluation.NewService(source, builder, evaluator, kpi.NewAggregator(o.trendLength, log), nil, nil, log),
		records: source,
		loaded:  loaded,
		log:     log,
	}, nil
}

func (o *options) openInput(cmd *cobra.Command) (io.Reader, func(), error) {
	if o.input == "" || o.input == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(o.input)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open input: %w", err)
	}
	return f, func() { f.Close() }, nil
}

// writeOutput runs encode against the selected output
func (o *options) writeOutput(cmd *cobra.Command, encode func(w io.Writer) error) error {
	if o.output == "" || o.output == "-" {
		return encode(cmd.OutOrStdout())
	}
	f, err := os.Create(o.output)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	if err := encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
