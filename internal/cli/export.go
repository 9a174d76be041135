package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/seuros/amiri/internal/export"
	"github.com/seuros/amiri/internal/forecast"
)

var (
	exportProduct string
	exportRegion  string
	exportHorizon int
	exportType    string
	exportOutput  string
	exportMetrics bool
)

var exportCmd = &cobra.Command{
	Use:   "export --product <name> --region <name> [--type csv|xlsx] [--output path]",
	Short: "Write the series or model metrics to a CSV or Excel file",
	Long: `Write the reconciled series (or, with --metrics, the model metrics) for one
product and region to a file.

The file is named like the dashboard download unless --output is given.
Use --output - to write to standard output.

Example:
  amiri export --product "Candy A" --region North --type xlsx
  amiri export --product "Candy A" --region North --metrics --output metrics.csv`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExport(cmd, exportOptions{
			Product: exportProduct,
			Region:  exportRegion,
			Horizon: exportHorizon,
			Type:    exportType,
			Output:  exportOutput,
			Metrics: exportMetrics,
		})
	},
}

type exportOptions struct {
	Product string
	Region  string
	Horizon int
	Type    string
	Output  string
	Metrics bool
}

func runExport(cmd *cobra.Command, opts exportOptions) error {
	if opts.Type != "csv" && opts.Type != "xlsx" {
		return fmt.Errorf("invalid type: %s (use csv or xlsx)", opts.Type)
	}
	if err := validateHorizonFlag(cmd, opts.Horizon); err != nil {
		return err
	}

	_, svc, cleanup, err := openService(opts.Horizon)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := commandContext(cmd)
	var (
		buf      bytes.Buffer
		filename string
	)
	if opts.Metrics {
		mv, err := svc.Metrics(ctx, opts.Product, opts.Region)
		if err != nil {
			return err
		}
		if mv.Empty {
			return errors.New(mv.Message)
		}
		filename = export.MetricsFilename(opts.Product, opts.Region, opts.Type)
		if opts.Type == "xlsx" {
			err = export.MetricsXLSX(&buf, mv.Metrics)
		} else {
			err = export.MetricsCSV(&buf, mv.Metrics)
		}
		if err != nil {
			return err
		}
	} else {
		view, err := svc.Series(ctx, opts.Product, opts.Region, svc.DefaultHorizon())
		if err != nil {
			return err
		}
		if view.Empty {
			return fmt.Errorf("%s: %w", view.Message, forecast.ErrEmptySelection)
		}
		filename = export.Filename(opts.Product, opts.Region, opts.Type)
		if opts.Type == "xlsx" {
			err = export.XLSX(&buf, view.Series.Points)
		} else {
			err = export.CSV(&buf, view.Series.Points)
		}
		if err != nil {
			return err
		}
	}

	if opts.Output == "-" {
		_, err := io.Copy(cmd.OutOrStdout(), &buf)
		return err
	}
	if opts.Output != "" {
		filename = opts.Output
	}
	if err := os.WriteFile(filename, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s (%d bytes)\n", filename, buf.Len())
	return nil
}

func init() {
	exportCmd.Flags().StringVarP(&exportProduct, "product", "p", "", "Product name (required)")
	exportCmd.Flags().StringVarP(&exportRegion, "region", "r", "", "Region name (required)")
	exportCmd.Flags().IntVar(&exportHorizon, "horizon", 0, "Forecast horizon in days (1-90)")
	exportCmd.Flags().StringVarP(&exportType, "type", "t", "csv", "File type (csv, xlsx)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output path, - for stdout")
	exportCmd.Flags().BoolVar(&exportMetrics, "metrics", false, "Export model metrics instead of the series")
	_ = exportCmd.MarkFlagRequired("product")
	_ = exportCmd.MarkFlagRequired("region")

	RootCmd.AddCommand(exportCmd)
}
