package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/manchuphon/Alert-Dashboard/internal/modules/alerts"
	"github.com/spf13/cobra"
	"github.com/vmihailenco/msgpack/v5"
)

// KPI views selectable with --view
const (
	viewPortfolio = "portfolio"
	viewProjects  = "projects"
	viewProject   = "project"
	viewSummary   = "project-summary"
	viewCostCodes = "cost-codes"
)

var kpiViews = []string{viewPortfolio, viewProjects, viewProject, viewSummary, viewCostCodes}

func newKPICmd(opts *options) *cobra.Command {
	var view, projectID string

	cmd := &cobra.Command{
		Use:   "kpi",
		Short: "Compute KPI views: " + strings.Join(kpiViews, ", "),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if view == viewProject && projectID == "" {
				return fmt.Errorf("--project is required for the %s view", viewProject)
			}

			eng, err := opts.newEngine(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			var result interface{}
			switch view {
			case viewPortfolio:
				result, err = eng.service.Portfolio(ctx)
			case viewProjects:
				result, err = eng.service.ProjectKPIs(ctx)
			case viewProject:
				result, err = eng.service.ProjectKPI(ctx, projectID)
			case viewSummary:
				result, err = eng.service.ProjectSummaries(ctx)
			case viewCostCodes:
				result, err = eng.service.CostCodeSummaries(ctx)
			default:
				return fmt.Errorf("unknown view %q", view)
			}
			if err != nil {
				return err
			}

			return opts.writeOutput(cmd, func(w io.Writer) error {
				return encode(w, alerts.Format(opts.format), result)
			})
		},
	}

	cmd.Flags().StringVar(&view, "view", viewPortfolio, "KPI view: "+strings.Join(kpiViews, ", "))
	cmd.Flags().StringVar(&projectID, "project", "", "project id for the project view")
	return cmd
}

// encode writes v as indented JSON or msgpack keyed by the json field names
func encode(w io.Writer, format alerts.Format, v interface{}) error {
	switch format {
	case alerts.FormatMsgpack:
		enc := msgpack.NewEncoder(w)
		enc.SetCustomStructTag("json")
		return enc.Encode(v)
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}
