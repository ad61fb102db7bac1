package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/temirov/llm-synthdata/internal/fsops"
)

const (
	// EmbeddedRootConfigurationReference identifies the built-in fallback configuration.
	EmbeddedRootConfigurationReference = "embedded default configuration"
	// ConfigurationPathEnvironmentVariable names a configuration file when no path is given.
	ConfigurationPathEnvironmentVariable = "LLM_SYNTHDATA_CONFIG"

	configurationFileName        = "config.yaml"
	homeConfigurationDirectory   = ".llm-synthdata"
	requiredConfigurationFormat  = "read configuration %s: %w"
	optionalConfigurationFormat  = "read configuration candidate %s: %w"
	workingDirectoryErrorFormat  = "determine working directory: %w"
	environmentCandidateTemplate = "$%s (%s)"
)

//go:embed default_root_configuration.yaml
var embeddedRootConfiguration []byte

// RootConfigurationSource holds raw configuration bytes and where they came from.
type RootConfigurationSource struct {
	Reference string
	Content   []byte
}

// EmbeddedRootConfiguration returns the configuration compiled into the binary.
func EmbeddedRootConfiguration() RootConfigurationSource {
	return RootConfigurationSource{Reference: EmbeddedRootConfigurationReference, Content: embeddedRootConfiguration}
}

// RootConfigurationLoader picks the first readable configuration among: the explicit
// path, $LLM_SYNTHDATA_CONFIG, ./config.yaml, ~/.llm-synthdata/config.yaml. When none
// exists the embedded configuration is used. A path the user named must be readable.
type RootConfigurationLoader struct {
	files            fsops.FS
	workingDirectory string
	homeDirectory    string
	environmentPath  string
}

func NewRootConfigurationLoader(files fsops.FS, workingDirectory string, homeDirectory string, environmentPath string) RootConfigurationLoader {
	return RootConfigurationLoader{
		files:            files,
		workingDirectory: workingDirectory,
		homeDirectory:    homeDirectory,
		environmentPath:  environmentPath,
	}
}

// NewDefaultRootConfigurationLoader reads from the OS filesystem relative to the
// process working directory and the user's home directory.
func NewDefaultRootConfigurationLoader() (RootConfigurationLoader, error) {
	workingDirectory, err := os.Getwd()
	if err != nil {
		return RootConfigurationLoader{}, fmt.Errorf(workingDirectoryErrorFormat, err)
	}
	homeDirectory, homeErr := os.UserHomeDir()
	if homeErr != nil {
		homeDirectory = ""
	}
	return NewRootConfigurationLoader(fsops.NewOS(), workingDirectory, homeDirectory, os.Getenv(ConfigurationPathEnvironmentVariable)), nil
}

type configurationCandidate struct {
	path      string
	reference string
	required  bool
}

func (loader RootConfigurationLoader) Load(explicitPath string) (RootConfigurationSource, error) {
	for _, candidate := range loader.candidates(explicitPath) {
		content, readErr := loader.files.ReadFile(candidate.path)
		if readErr == nil {
			return RootConfigurationSource{Reference: candidate.reference, Content: content}, nil
		}
		if candidate.required {
			return RootConfigurationSource{}, fmt.Errorf(requiredConfigurationFormat, candidate.reference, readErr)
		}
		if !errors.Is(readErr, fs.ErrNotExist) && !errors.Is(readErr, fs.ErrPermission) {
			return RootConfigurationSource{}, fmt.Errorf(optionalConfigurationFormat, candidate.reference, readErr)
		}
	}
	return EmbeddedRootConfiguration(), nil
}

func (loader RootConfigurationLoader) candidates(explicitPath string) []configurationCandidate {
	if explicitPath != "" {
		return []configurationCandidate{{path: explicitPath, reference: explicitPath, required: true}}
	}
	var candidates []configurationCandidate
	if loader.environmentPath != "" {
		candidates = append(candidates, configurationCandidate{
			path:      loader.environmentPath,
			reference: fmt.Sprintf(environmentCandidateTemplate, ConfigurationPathEnvironmentVariable, loader.environmentPath),
			required:  true,
		})
		return candidates
	}
	if loader.workingDirectory != "" {
		path := filepath.Join(loader.workingDirectory, configurationFileName)
		candidates = append(candidates, configurationCandidate{path: path, reference: path})
	}
	if loader.homeDirectory != "" {
		path := filepath.Join(loader.homeDirectory, homeConfigurationDirectory, configurationFileName)
		candidates = append(candidates, configurationCandidate{path: path, reference: path})
	}
	return candidates
}
