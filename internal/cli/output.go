package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by --format.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatCSV   = "csv"
	FormatYAML  = "yaml"
)

// isTerminal decides the default format. Tests replace it.
var isTerminal = func(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// resolveFormat validates an explicit --format, or picks table for a
// terminal and csv when the output is piped.
func resolveFormat(format string, w io.Writer) (string, error) {
	switch format {
	case "":
		if isTerminal(w) {
			return FormatTable, nil
		}
		return FormatCSV, nil
	case FormatTable, FormatJSON, FormatCSV, FormatYAML:
		return format, nil
	default:
		return "", fmt.Errorf("invalid format: %s (use table, json, csv or yaml)", format)
	}
}

// tabular is the flat view printed by the table and csv formats. The json
// and yaml formats print the structured value instead.
type tabular struct {
	Headers []string
	Rows    [][]string
	// Right-aligned column indexes, used for numbers.
	Numeric []int
}

func render(w io.Writer, format string, data tabular, value any) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(value)
	case FormatYAML:
		return writeYAML(w, value)
	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(data.Headers); err != nil {
			return fmt.Errorf("failed to write CSV header: %w", err)
		}
		return cw.WriteAll(data.Rows)
	default:
		return writeTable(w, data)
	}
}

// writeYAML goes through JSON first so the keys match the json tags of the
// domain types.
func writeYAML(w io.Writer, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal: %w", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return fmt.Errorf("failed to convert: %w", err)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return fmt.Errorf("failed to write YAML: %w", err)
	}
	return enc.Close()
}

func writeTable(w io.Writer, data tabular) error {
	config := tablewriter.Config{}
	if len(data.Numeric) > 0 {
		align := make([]tw.Align, len(data.Headers))
		for i := range align {
			align[i] = tw.AlignLeft
		}
		for _, col := range data.Numeric {
			if col < len(align) {
				align[col] = tw.AlignRight
			}
		}
		config.Row.Alignment = tw.CellAlignment{PerColumn: align}
	}

	table := tablewriter.NewTable(w, tablewriter.WithConfig(config))

	headers := make([]any, len(data.Headers))
	for i, h := range data.Headers {
		headers[i] = h
	}
	table.Header(headers...)

	for _, row := range data.Rows {
		cells := make([]any, len(row))
		for i, cell := range row {
			cells[i] = cell
		}
		if err := table.Append(cells...); err != nil {
			return fmt.Errorf("failed to add row: %w", err)
		}
	}
	return table.Render()
}
