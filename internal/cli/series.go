package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/seuros/amiri/internal/dashboard"
	"github.com/seuros/amiri/internal/export"
	"github.com/seuros/amiri/internal/forecast"
)

var (
	seriesProduct string
	seriesRegion  string
	seriesHorizon int
	seriesFormat  string

	metricsProduct string
	metricsRegion  string
	metricsFormat  string
)

var seriesCmd = &cobra.Command{
	Use:   "series --product <name> --region <name> [--horizon N] [--format table|json|csv|yaml]",
	Short: "Print the reconciled series for a product and region",
	Long: `Print history and forecast rows for one product and region, ordered by date.

History covers every date up to today. Forecast rows are limited to the
horizon (1-90 days, default from configuration).

Supported formats:
  table  - aligned table (default on a terminal)
  csv    - same columns as the CSV export (default when piped)
  json   - series with the history-window accuracy
  yaml   - same as json

Example:
  amiri series --product "Candy A" --region North --horizon 14
  amiri series --product "Candy A" --region North --format json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSeries(cmd, seriesProduct, seriesRegion, seriesHorizon, seriesFormat)
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics --product <name> --region <name> [--format table|json|csv|yaml]",
	Short: "Print model accuracy metrics for a product and region",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMetrics(cmd, metricsProduct, metricsRegion, metricsFormat)
	},
}

// validateHorizonFlag checks --horizon when it was given. Zero means unset.
func validateHorizonFlag(cmd *cobra.Command, horizon int) error {
	if !cmd.Flags().Changed("horizon") {
		return nil
	}
	return forecast.ValidateHorizon(horizon)
}

func runSeries(cmd *cobra.Command, product, region string, horizon int, format string) error {
	if err := validateHorizonFlag(cmd, horizon); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	format, err := resolveFormat(format, out)
	if err != nil {
		return err
	}

	_, svc, cleanup, err := openService(horizon)
	if err != nil {
		return err
	}
	defer cleanup()

	view, err := svc.Series(commandContext(cmd), product, region, svc.DefaultHorizon())
	if err != nil {
		return err
	}
	if view.Empty {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), view.Message)
		return nil
	}

	if err := render(out, format, seriesTable(view, format), view); err != nil {
		return err
	}
	if format == FormatTable && view.Accuracy != nil {
		printAccuracy(out, view.Accuracy)
	}
	return nil
}

func seriesTable(view dashboard.View, format string) tabular {
	headers := export.ObservationHeader
	if format == FormatTable {
		headers = export.Display(headers)
	}
	data := tabular{Headers: headers, Numeric: []int{3, 4, 5, 6}}
	for _, p := range view.Series.Points {
		data.Rows = append(data.Rows, export.ObservationRecord(p))
	}
	return data
}

func printAccuracy(w io.Writer, acc *forecast.Accuracy) {
	_, _ = fmt.Fprintf(w, "\nHistory window (%d days): MAE %.2f  RMSE %.2f  WAPE %.2f%%  Bias %.2f\n",
		acc.Samples, acc.MAE, acc.RMSE, acc.WAPE, acc.Bias)
}

func runMetrics(cmd *cobra.Command, product, region, format string) error {
	out := cmd.OutOrStdout()
	format, err := resolveFormat(format, out)
	if err != nil {
		return err
	}

	_, svc, cleanup, err := openService(0)
	if err != nil {
		return err
	}
	defer cleanup()

	mv, err := svc.Metrics(commandContext(cmd), product, region)
	if err != nil {
		return err
	}
	if mv.Empty {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), mv.Message)
		return nil
	}

	headers := export.MetricsHeader
	if format == FormatTable {
		headers = export.Display(headers)
	}
	data := tabular{Headers: headers, Numeric: []int{1, 2, 3, 4}}
	for _, m := range mv.Metrics {
		data.Rows = append(data.Rows, export.MetricsRecord(m))
	}
	return render(out, format, data, mv)
}

func init() {
	seriesCmd.Flags().StringVarP(&seriesProduct, "product", "p", "", "Product name (required)")
	seriesCmd.Flags().StringVarP(&seriesRegion, "region", "r", "", "Region name (required)")
	seriesCmd.Flags().IntVar(&seriesHorizon, "horizon", 0, "Forecast horizon in days (1-90)")
	seriesCmd.Flags().StringVarP(&seriesFormat, "format", "f", "", "Output format (table, json, csv, yaml)")
	_ = seriesCmd.MarkFlagRequired("product")
	_ = seriesCmd.MarkFlagRequired("region")

	metricsCmd.Flags().StringVarP(&metricsProduct, "product", "p", "", "Product name (required)")
	metricsCmd.Flags().StringVarP(&metricsRegion, "region", "r", "", "Region name (required)")
	metricsCmd.Flags().StringVarP(&metricsFormat, "format", "f", "", "Output format (table, json, csv, yaml)")
	_ = metricsCmd.MarkFlagRequired("product")
	_ = metricsCmd.MarkFlagRequired("region")

	RootCmd.AddCommand(seriesCmd)
	RootCmd.AddCommand(metricsCmd)
}
