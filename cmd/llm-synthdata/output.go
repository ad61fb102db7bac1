package llmsynthdata

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/temirov/llm-synthdata/internal/pipeline"
	"github.com/temirov/llm-synthdata/internal/table"
)

type outputFormat string

const (
	outputFormatTable outputFormat = "table"
	outputFormatJSON  outputFormat = "json"
	outputFormatCSV   outputFormat = "csv"
)

func parseOutputFormat(value string) (outputFormat, error) {
	switch format := outputFormat(strings.ToLower(strings.TrimSpace(value))); format {
	case "", outputFormatTable:
		return outputFormatTable, nil
	case outputFormatJSON, outputFormatCSV:
		return format, nil
	}
	return "", fmt.Errorf("unknown output format %q (want %s, %s or %s)", value, outputFormatTable, outputFormatJSON, outputFormatCSV)
}

func writeResult(w io.Writer, format outputFormat, result pipeline.Result) error {
	switch format {
	case outputFormatJSON:
		encoded, err := json.MarshalIndent(result.Table.Records(), "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(encoded))
		return err
	case outputFormatCSV:
		encoded, err := table.EncodeCSV(result.Table)
		if err != nil {
			return err
		}
		_, err = w.Write(encoded)
		return err
	}
	return writeTablePreview(w, result)
}

func writeTablePreview(w io.Writer, result pipeline.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(result.Table.Columns, "\t"))
	for _, row := range result.Table.Rows {
		cells := make([]string, len(row))
		for index, cell := range row {
			cells[index] = strings.ReplaceAll(table.FormatCell(cell), "\n", " ")
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	summary := fmt.Sprintf("%d records (attempts=%d)", result.Table.Len(), result.Attempts)
	if result.Path != "" {
		summary += " saved to " + result.Path
	}
	_, err := fmt.Fprintln(w, summary)
	return err
}
