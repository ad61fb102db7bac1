package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

const (
	emptyModelsErrorMessage                  = "config.models is empty"
	missingDefaultModelErrorMessage          = "no default model found (set models[].default: true)"
	emptyDatasetsErrorMessage                = "config.datasets is empty"
	duplicateDatasetErrorFormat              = "dataset %q is defined more than once"
	blankDatasetTemplateErrorFormat          = "dataset %q has an empty template"
	rootConfigurationEmptyContentErrorFormat = "root configuration %s is empty"
	rootConfigurationUnmarshalErrorFormat    = "unmarshal root configuration %s: %w"
	environmentOverrideErrorFormat           = "apply environment overrides: %w"
)

type Root struct {
	Common   Common    `yaml:"common"`
	Models   []Model   `yaml:"models"`
	Datasets []Dataset `yaml:"datasets"`
}

type Common struct {
	API struct {
		Endpoint  string `yaml:"endpoint" env:"LLM_SYNTHDATA_API_ENDPOINT"`
		APIKeyEnv string `yaml:"api_key_env" env:"LLM_SYNTHDATA_API_KEY_ENV"`
	} `yaml:"api"`
	Logging struct {
		Level  string `yaml:"level" env:"LLM_SYNTHDATA_LOG_LEVEL"`
		Format string `yaml:"format" env:"LLM_SYNTHDATA_LOG_FORMAT"`
	} `yaml:"logging"`
	Defaults Defaults `yaml:"defaults"`
}

type Defaults struct {
	Attempts        int     `yaml:"attempts"`
	TimeoutSeconds  int     `yaml:"timeout_seconds"`
	Temperature     float64 `yaml:"temperature"`
	TemperatureStep float64 `yaml:"temperature_step"`
	Size            int     `yaml:"size"`
	OutputDirectory string  `yaml:"output_directory" env:"LLM_SYNTHDATA_OUTPUT_DIRECTORY"`
	SystemPrompt    string  `yaml:"system_prompt"`
	CountPolicy     string  `yaml:"count_policy" env:"LLM_SYNTHDATA_COUNT_POLICY"`
	MinRecords      int     `yaml:"min_records"`
	MaxCellLength   int     `yaml:"max_cell_length"`
	Backoff         struct {
		InitialMilliseconds int     `yaml:"initial_ms"`
		MaxMilliseconds     int     `yaml:"max_ms"`
		Multiplier          float64 `yaml:"multiplier"`
	} `yaml:"backoff"`
}

func (d Defaults) Timeout() time.Duration {
	return time.Duration(d.TimeoutSeconds) * time.Second
}

// Model is a selectable backend model. A nil DefaultTemperature falls back to
// common.defaults.temperature; zero is a valid model default.
type Model struct {
	Name                string   `yaml:"name"`
	ModelID             string   `yaml:"model_id"`
	Default             bool     `yaml:"default"`
	SupportsTemperature bool     `yaml:"supports_temperature"`
	DefaultTemperature  *float64 `yaml:"default_temperature"`
	MaxCompletionTokens int      `yaml:"max_completion_tokens"`
}

// Dataset is a prompt template keyed by its display name. ${size} in the
// template is replaced with the requested record count.
type Dataset struct {
	Name     string `yaml:"name"`
	Template string `yaml:"template"`
}

// LoadRoot parses the provided configuration source, applies environment
// overrides and validates required fields.
func LoadRoot(source RootConfigurationSource) (Root, error) {
	if len(source.Content) == 0 {
		return Root{}, fmt.Errorf(rootConfigurationEmptyContentErrorFormat, source.Reference)
	}

	var rootConfiguration Root
	if err := yaml.Unmarshal(source.Content, &rootConfiguration); err != nil {
		return Root{}, fmt.Errorf(rootConfigurationUnmarshalErrorFormat, source.Reference, err)
	}
	if err := cleanenv.ReadEnv(&rootConfiguration.Common); err != nil {
		return Root{}, fmt.Errorf(environmentOverrideErrorFormat, err)
	}

	if len(rootConfiguration.Models) == 0 {
		return Root{}, errors.New(emptyModelsErrorMessage)
	}
	if _, ok := rootConfiguration.DefaultModel(); !ok {
		return Root{}, errors.New(missingDefaultModelErrorMessage)
	}
	if err := rootConfiguration.validateDatasets(); err != nil {
		return Root{}, err
	}
	return rootConfiguration, nil
}

func (root Root) validateDatasets() error {
	if len(root.Datasets) == 0 {
		return errors.New(emptyDatasetsErrorMessage)
	}
	seen := make(map[string]struct{}, len(root.Datasets))
	for _, dataset := range root.Datasets {
		key := strings.ToLower(strings.TrimSpace(dataset.Name))
		if _, duplicate := seen[key]; duplicate {
			return fmt.Errorf(duplicateDatasetErrorFormat, dataset.Name)
		}
		seen[key] = struct{}{}
		if strings.TrimSpace(dataset.Template) == "" {
			return fmt.Errorf(blankDatasetTemplateErrorFormat, dataset.Name)
		}
	}
	return nil
}

func (root Root) DefaultModel() (Model, bool) {
	for _, modelConfiguration := range root.Models {
		if modelConfiguration.Default {
			return modelConfiguration, true
		}
	}
	return Model{}, false
}

// FindModel resolves a model by display name or by backend model identifier.
func (root Root) FindModel(name string) (Model, bool) {
	trimmed := strings.TrimSpace(name)
	for _, modelConfiguration := range root.Models {
		if modelConfiguration.Name == trimmed || modelConfiguration.ModelID == trimmed {
			return modelConfiguration, true
		}
	}
	return Model{}, false
}

// DatasetNames lists the configured dataset types in declaration order.
func (root Root) DatasetNames() []string {
	names := make([]string, 0, len(root.Datasets))
	for _, dataset := range root.Datasets {
		names = append(names, dataset.Name)
	}
	return names
}
