package prompts_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/temirov/llm-synthdata/internal/config"
	"github.com/temirov/llm-synthdata/internal/prompts"
)

func TestBuilder_Build(t *testing.T) {
	builder := prompts.NewBuilder([]config.Dataset{
		{Name: "Customer Records", Template: "Generate ${size} ${dataset}.\nReturn ${size} objects.\n"},
	})

	prompt, err := builder.Build("customer records", 12)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if prompt != "Generate 12 Customer Records.\nReturn 12 objects." {
		t.Fatalf("unexpected prompt %q", prompt)
	}

	canonical, ok := builder.Canonical(" CUSTOMER RECORDS ")
	if !ok || canonical != "Customer Records" {
		t.Fatalf("expected canonical name, got %q (%v)", canonical, ok)
	}
}

func TestBuilder_UnknownDatasetType(t *testing.T) {
	builder := prompts.NewBuilder([]config.Dataset{{Name: "Customer Records", Template: "x"}})

	_, err := builder.Build("Unknown", 5)
	if !errors.Is(err, prompts.ErrUnknownDatasetType) {
		t.Fatalf("expected ErrUnknownDatasetType, got %v", err)
	}
	if !strings.Contains(err.Error(), "Customer Records") {
		t.Fatalf("expected known types in message, got %v", err)
	}
}
