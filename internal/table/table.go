package table

import (
	"encoding/json"
	"strconv"

	"github.com/temirov/llm-synthdata/internal/extract"
	"github.com/temirov/llm-synthdata/internal/records"
)

// Table is a rectangular view of a validated dataset. A nil cell marks a key the
// record did not carry.
type Table struct {
	Columns []string
	Rows    [][]any
}

// Assemble lays records out under the union of their keys in first-seen order.
func Assemble(dataset records.Dataset) Table {
	var columns []string
	seen := map[string]struct{}{}
	for _, record := range dataset.Records {
		for _, key := range record.Keys() {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			columns = append(columns, key)
		}
	}

	rows := make([][]any, 0, len(dataset.Records))
	for _, record := range dataset.Records {
		row := make([]any, len(columns))
		for index, column := range columns {
			if value, ok := record.Get(column); ok {
				row[index] = value
			}
		}
		rows = append(rows, row)
	}
	return Table{Columns: columns, Rows: rows}
}

func (t Table) Len() int { return len(t.Rows) }

// Records returns one ordered object per row; missing cells become JSON null.
func (t Table) Records() []*extract.Object {
	out := make([]*extract.Object, 0, len(t.Rows))
	for _, row := range t.Rows {
		object := extract.NewObject()
		for index, column := range t.Columns {
			object.Set(column, row[index])
		}
		out = append(out, object)
	}
	return out
}

// FormatCell renders a cell the way it appears in delimited output.
func FormatCell(cell any) string {
	switch typed := cell.(type) {
	case nil:
		return ""
	case string:
		return typed
	case json.Number:
		return typed.String()
	case bool:
		return strconv.FormatBool(typed)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	}
	encoded, err := json.Marshal(cell)
	if err != nil {
		return ""
	}
	return string(encoded)
}
