package table

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/temirov/llm-synthdata/internal/fsops"
)

const fileExtension = ".csv"

var slugReplacer = strings.NewReplacer(" ", "_", "/", "", "\\", "")

// FileName derives the artifact name for a dataset type and requested size,
// e.g. "E-commerce Orders", 50 -> synthetic_e-commerce_orders_50.csv. Path
// separators are dropped so the name never leaves the output directory.
func FileName(datasetType string, size int) string {
	slug := slugReplacer.Replace(strings.ToLower(strings.TrimSpace(datasetType)))
	if slug == "" {
		slug = "dataset"
	}
	return fmt.Sprintf("synthetic_%s_%d%s", slug, size, fileExtension)
}

// EncodeCSV renders the header row followed by one line per row.
func EncodeCSV(t Table) ([]byte, error) {
	var buffer bytes.Buffer
	writer := csv.NewWriter(&buffer)
	if err := writer.Write(t.Columns); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	line := make([]string, len(t.Columns))
	for rowIndex, row := range t.Rows {
		for index := range line {
			line[index] = FormatCell(row[index])
		}
		if err := writer.Write(line); err != nil {
			return nil, fmt.Errorf("write row %d: %w", rowIndex, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// Writer persists tables as CSV files under Directory.
type Writer struct {
	Ops       fsops.Ops
	Directory string
}

func NewWriter(fs fsops.FS, directory string) Writer {
	return Writer{Ops: fsops.NewOps(fs), Directory: directory}
}

// Write stores t at the derived path, replacing any previous artifact, and returns the path.
func (w Writer) Write(t Table, datasetType string, size int) (string, error) {
	encoded, err := EncodeCSV(t)
	if err != nil {
		return "", fmt.Errorf("encode csv: %w", err)
	}
	directory := strings.TrimSpace(w.Directory)
	if directory == "" {
		directory = "."
	}
	path := filepath.Join(directory, FileName(datasetType, size))
	if err := w.Ops.ReplaceFile(path, encoded); err != nil {
		return "", err
	}
	return path, nil
}
