package main

import (
	"errors"
	"io"
	"time"

	"github.com/manchuphon/Alert-Dashboard/internal/modules/alerts"
	"github.com/spf13/cobra"
)

var errCriticalAlerts = errors.New("critical alerts raised")

func newEvaluateCmd(opts *options) *cobra.Command {
	var failOnCritical bool

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate alerts and write the alert report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := opts.newEngine(cmd)
			if err != nil {
				return err
			}

			outcome := eng.service.Analyze(eng.records)
			report := alerts.NewReport(outcome.Evaluation, time.Now())

			eng.log.Info().
				Int("rows", len(outcome.Features.Rows)).
				Int("skipped", outcome.Features.Skipped).
				Int("alerts", report.Summary.Total).
				Msg("Evaluation complete")

			err = opts.writeOutput(cmd, func(w io.Writer) error {
				return report.Encode(w, alerts.Format(opts.format))
			})
			if err != nil {
				return err
			}

			if failOnCritical && report.Summary.BySeverity[alerts.SeverityCritical] > 0 {
				return errCriticalAlerts
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&failOnCritical, "fail-on-critical", false, "exit with status 1 when any Critical alert is raised")
	return cmd
}
