package llmsynthdata

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/temirov/llm-synthdata/internal/config"
	"github.com/temirov/llm-synthdata/internal/fsops"
	"github.com/temirov/llm-synthdata/internal/llm"
	"github.com/temirov/llm-synthdata/internal/metrics"
	"github.com/temirov/llm-synthdata/internal/pipeline"
	"github.com/temirov/llm-synthdata/internal/prompts"
	"github.com/temirov/llm-synthdata/internal/records"
	"github.com/temirov/llm-synthdata/internal/table"
)

type generateSettings struct {
	configPath      string
	envFile         string
	dataset         string
	model           string
	size            int
	attempts        int
	temperature     float64
	temperatureSet  bool
	timeout         time.Duration
	outputDirectory string
	format          outputFormat
	persist         bool
	countPolicy     string
	metricsFile     string
}

func newGenerateCommand() *cobra.Command {
	var persist bool
	command := &cobra.Command{
		Use:   generateCommandUse,
		Short: generateCommandShort,
		Args:  cobra.MaximumNArgs(generateCommandArgsMax),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := resolveGenerateSettings(cmd, args)
			if err != nil {
				return err
			}
			return runGenerateCommand(cmd, settings)
		},
	}

	flags := command.Flags()
	flags.String(configFlagName, defaultConfigPath, configFlagUsage)
	flags.String(envFileFlagName, defaultEnvFilePath, envFileFlagUsage)
	flags.String(datasetFlagName, "", datasetFlagUsage)
	flags.String(modelFlagName, "", modelFlagUsage)
	flags.Int(sizeFlagName, 0, sizeFlagUsage)
	flags.Int(attemptsFlagName, 0, attemptsFlagUsage)
	flags.Float64(temperatureFlagName, 0, temperatureFlagUsage)
	flags.Duration(timeoutFlagName, 0, timeoutFlagUsage)
	flags.String(outputDirectoryFlagName, "", outputDirectoryFlagUsage)
	flags.String(formatFlagName, string(outputFormatTable), formatFlagUsage)
	flags.String(countPolicyFlagName, "", countPolicyFlagUsage)
	flags.String(metricsFileFlagName, "", metricsFileFlagUsage)
	flags.Var(newBoolChoice(&persist, true), persistFlagName, persistFlagUsage)
	if persistFlag := flags.Lookup(persistFlagName); persistFlag != nil {
		persistFlag.NoOptDefVal = "true"
		persistFlag.DefValue = "true"
	}
	return command
}

// resolveGenerateSettings merges flags with LLM_SYNTHDATA_* environment variables;
// an explicit flag wins over the environment.
func resolveGenerateSettings(cmd *cobra.Command, args []string) (generateSettings, error) {
	resolver := viper.New()
	resolver.SetEnvPrefix(environmentPrefix)
	resolver.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	resolver.AutomaticEnv()
	if bindErr := resolver.BindPFlags(cmd.Flags()); bindErr != nil {
		return generateSettings{}, fmt.Errorf("bind flags: %w", bindErr)
	}

	format, formatErr := parseOutputFormat(resolver.GetString(formatFlagName))
	if formatErr != nil {
		return generateSettings{}, formatErr
	}
	persist, persistErr := parseBoolChoice(resolver.GetString(persistFlagName))
	if persistErr != nil {
		return generateSettings{}, fmt.Errorf("--%s: %w", persistFlagName, persistErr)
	}
	settings := generateSettings{
		configPath:      resolver.GetString(configFlagName),
		envFile:         resolver.GetString(envFileFlagName),
		dataset:         strings.TrimSpace(resolver.GetString(datasetFlagName)),
		model:           strings.TrimSpace(resolver.GetString(modelFlagName)),
		size:            resolver.GetInt(sizeFlagName),
		attempts:        resolver.GetInt(attemptsFlagName),
		temperature:     resolver.GetFloat64(temperatureFlagName),
		temperatureSet:  resolver.IsSet(temperatureFlagName),
		timeout:         resolver.GetDuration(timeoutFlagName),
		outputDirectory: strings.TrimSpace(resolver.GetString(outputDirectoryFlagName)),
		format:          format,
		persist:         persist,
		countPolicy:     resolver.GetString(countPolicyFlagName),
		metricsFile:     strings.TrimSpace(resolver.GetString(metricsFileFlagName)),
	}
	if len(args) > 0 {
		settings.dataset = strings.TrimSpace(args[0])
	}
	return settings, nil
}

func runGenerateCommand(cmd *cobra.Command, settings generateSettings) error {
	if err := loadEnvFile(settings.envFile, cmd.Flags().Changed(envFileFlagName)); err != nil {
		return err
	}
	rootConfiguration, err := loadRootConfiguration(settings.configPath)
	if err != nil {
		return err
	}
	defaults := rootConfiguration.Common.Defaults

	logger, loggerErr := newLogger(rootConfiguration.Common.Logging.Level, rootConfiguration.Common.Logging.Format, cmd.ErrOrStderr())
	if loggerErr != nil {
		return loggerErr
	}
	defer func() { _ = logger.Sync() }()

	modelConfiguration, err := resolveModel(rootConfiguration, settings.model)
	if err != nil {
		return err
	}
	apiKey, err := resolveAPIKey(rootConfiguration)
	if err != nil {
		return err
	}
	policy, err := records.ParseCountPolicy(firstNonBlank(settings.countPolicy, defaults.CountPolicy))
	if err != nil {
		return err
	}

	builder := prompts.NewBuilder(rootConfiguration.Datasets)
	datasetType := settings.dataset
	if datasetType == "" {
		datasetType = rootConfiguration.Datasets[0].Name
	}
	if canonical, ok := builder.Canonical(datasetType); ok {
		datasetType = canonical
	}

	collector := metrics.NewCollector("")
	generator := pipeline.Generator{
		Client: llm.Adapter{
			Client: llm.Client{
				HTTPBaseURL: firstNonBlank(rootConfiguration.Common.API.Endpoint, defaultAPIEndpoint),
				APIKey:      apiKey,
			},
			DefaultModel:        modelConfiguration.ModelID,
			DefaultTokens:       modelConfiguration.MaxCompletionTokens,
			SupportsTemperature: modelConfiguration.SupportsTemperature,
		},
		Prompts: builder,
		Validator: records.Validator{
			Policy:        policy,
			MinRecords:    defaults.MinRecords,
			MaxCellLength: defaults.MaxCellLength,
		},
		Options: pipeline.Options{
			Timeout:         chooseDuration(settings.timeout, defaults.Timeout(), defaultTimeout*time.Second),
			TemperatureStep: chooseFloat(defaults.TemperatureStep, defaultTemperatureStep),
			SystemPrompt:    defaults.SystemPrompt,
			MaxTokens:       modelConfiguration.MaxCompletionTokens,
			Backoff: pipeline.BackoffOptions{
				Initial:    time.Duration(defaults.Backoff.InitialMilliseconds) * time.Millisecond,
				Max:        time.Duration(defaults.Backoff.MaxMilliseconds) * time.Millisecond,
				Multiplier: defaults.Backoff.Multiplier,
			},
		},
		Logger:  logger,
		Metrics: collector,
	}
	if settings.persist {
		generator.Sink = table.NewWriter(fsops.NewOS(), firstNonBlank(settings.outputDirectory, defaults.OutputDirectory, "."))
	}

	request := pipeline.GenerationRequest{
		Model:       modelConfiguration.ModelID,
		DatasetType: datasetType,
		Size:        chooseInt(settings.size, defaults.Size, defaultSize),
		MaxAttempts: chooseInt(settings.attempts, defaults.Attempts, defaultAttempts),
		Temperature: resolveTemperature(settings, defaults, modelConfiguration),
	}

	result, generateErr := generator.Generate(cmd.Context(), request)
	if settings.metricsFile != "" {
		if metricsErr := collector.WriteTextfile(settings.metricsFile); metricsErr != nil {
			logger.Warn("metrics export failed", zap.Error(metricsErr))
		}
	}
	if generateErr != nil {
		var generationErr *pipeline.GenerationError
		if errors.As(generateErr, &generationErr) {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), generationErr.Report())
		}
		return fmt.Errorf("generate %s: %w", datasetType, generateErr)
	}

	if writeErr := writeResult(cmd.OutOrStdout(), settings.format, result); writeErr != nil {
		return fmt.Errorf("write generation result: %w", writeErr)
	}
	if result.Path != "" {
		logger.Info("dataset saved",
			zap.String("path", result.Path),
			zap.Int("records", result.Table.Len()),
			zap.Int("attempts", result.Attempts),
		)
	}
	return nil
}

func loadEnvFile(path string, explicit bool) error {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil
	}
	if err := godotenv.Load(trimmed); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", trimmed, err)
	}
	return nil
}

func resolveModel(root config.Root, name string) (config.Model, error) {
	if name == "" {
		defaultModel, _ := root.DefaultModel()
		return defaultModel, nil
	}
	modelConfiguration, found := root.FindModel(name)
	if !found {
		return config.Model{}, fmt.Errorf(unknownModelErrorFormat, name)
	}
	return modelConfiguration, nil
}

func resolveAPIKey(root config.Root) (string, error) {
	apiKeyEnvironmentVariable := firstNonBlank(root.Common.API.APIKeyEnv, defaultAPIKeyEnvironmentVariable)
	apiKey := strings.TrimSpace(os.Getenv(apiKeyEnvironmentVariable))
	if apiKey == "" {
		return "", fmt.Errorf(missingAPIKeyErrorFormat, apiKeyEnvironmentVariable)
	}
	return apiKey, nil
}

func resolveTemperature(settings generateSettings, defaults config.Defaults, model config.Model) float64 {
	if settings.temperatureSet {
		return settings.temperature
	}
	if model.DefaultTemperature != nil {
		return *model.DefaultTemperature
	}
	return defaults.Temperature
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func chooseInt(values ...int) int {
	for _, value := range values {
		if value > 0 {
			return value
		}
	}
	return 0
}

func chooseFloat(values ...float64) float64 {
	for _, value := range values {
		if value > 0 {
			return value
		}
	}
	return 0
}

func chooseDuration(values ...time.Duration) time.Duration {
	for _, value := range values {
		if value > 0 {
			return value
		}
	}
	return 0
}
