package prompts

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/temirov/llm-synthdata/internal/config"
)

// ErrUnknownDatasetType marks a dataset type with no template. It is a caller
// error and is never retried.
var ErrUnknownDatasetType = errors.New("unknown dataset type")

// Builder renders prompt templates keyed by dataset type.
type Builder struct {
	datasets []config.Dataset
}

func NewBuilder(datasets []config.Dataset) Builder {
	return Builder{datasets: append([]config.Dataset(nil), datasets...)}
}

// Build renders the template for datasetType with ${size} and ${dataset} expanded.
// Dataset types match case-insensitively.
func (b Builder) Build(datasetType string, size int) (string, error) {
	dataset, ok := b.lookup(datasetType)
	if !ok {
		return "", fmt.Errorf("%w: %q (known: %s)", ErrUnknownDatasetType, datasetType, strings.Join(b.Names(), ", "))
	}
	return expandTemplate(dataset.Template, map[string]string{
		"size":    strconv.Itoa(size),
		"dataset": dataset.Name,
	}), nil
}

// Canonical returns the configured spelling of datasetType.
func (b Builder) Canonical(datasetType string) (string, bool) {
	dataset, ok := b.lookup(datasetType)
	return dataset.Name, ok
}

func (b Builder) Names() []string {
	names := make([]string, 0, len(b.datasets))
	for _, dataset := range b.datasets {
		names = append(names, dataset.Name)
	}
	return names
}

func (b Builder) lookup(datasetType string) (config.Dataset, bool) {
	trimmed := strings.TrimSpace(datasetType)
	for _, dataset := range b.datasets {
		if strings.EqualFold(strings.TrimSpace(dataset.Name), trimmed) {
			return dataset, true
		}
	}
	return config.Dataset{}, false
}

func expandTemplate(tmpl string, vars map[string]string) string {
	out := tmpl
	for k, v := range vars {
		out = strings.ReplaceAll(out, "${"+k+"}", v)
	}
	return strings.TrimSpace(out)
}
