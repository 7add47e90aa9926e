package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// Output formats accepted by --output.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Printer renders command results in the selected format.
type Printer struct {
	Format string
	Out    io.Writer
}

// Validate rejects unknown formats.
func (p Printer) Validate() error {
	switch p.format() {
	case FormatTable, FormatJSON, FormatYAML:
		return nil
	default:
		return fmt.Errorf("unknown output format %q", p.Format)
	}
}

// Print writes data as JSON or YAML, or calls table for the tabular form.
func (p Printer) Print(data any, header []string, rows [][]string) error {
	switch p.format() {
	case FormatJSON:
		enc := json.NewEncoder(p.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case FormatYAML:
		enc := yaml.NewEncoder(p.Out)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return err
		}
		return enc.Close()
	default:
		tw := tabwriter.NewWriter(p.Out, 0, 4, 2, ' ', 0)
		if len(header) > 0 {
			fmt.Fprintln(tw, strings.Join(header, "\t"))
		}
		for _, row := range rows {
			fmt.Fprintln(tw, strings.Join(row, "\t"))
		}
		return tw.Flush()
	}
}

func (p Printer) format() string {
	if p.Format == "" {
		return FormatTable
	}
	return strings.ToLower(p.Format)
}
