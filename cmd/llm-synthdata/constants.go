package llmsynthdata

const (
	defaultConfigPath                = ""
	defaultEnvFilePath               = ".env"
	environmentPrefix                = "LLM_SYNTHDATA"
	rootCommandUse                   = "llm-synthdata"
	rootCommandShort                 = "Generate synthetic tabular datasets with an LLM"
	generateCommandUse               = "generate [DATASET]"
	generateCommandShort             = "Generate a synthetic dataset and save it as CSV"
	generateCommandArgsMax           = 1
	listCommandUse                   = "list"
	listCommandShort                 = "List dataset types and models from config.yaml"
	configFlagName                   = "config"
	configFlagUsage                  = "Path to config.yaml (default: $LLM_SYNTHDATA_CONFIG, ./config.yaml, ~/.llm-synthdata/config.yaml, built-in)"
	envFileFlagName                  = "env-file"
	envFileFlagUsage                 = "Dotenv file loaded before resolving the API key"
	datasetFlagName                  = "dataset"
	datasetFlagUsage                 = "Dataset type (defaults to the first configured dataset)"
	modelFlagName                    = "model"
	modelFlagUsage                   = "Model display name or model id (must exist in models[])"
	sizeFlagName                     = "size"
	sizeFlagUsage                    = "Number of records to request (0 = use defaults)"
	attemptsFlagName                 = "attempts"
	attemptsFlagUsage                = "Max generation attempts (0 = use defaults)"
	temperatureFlagName              = "temperature"
	temperatureFlagUsage             = "Sampling temperature in [0, 2] (unset = use defaults)"
	timeoutFlagName                  = "timeout"
	timeoutFlagUsage                 = "Per-attempt timeout (e.g., 45s; 0 = use defaults)"
	outputDirectoryFlagName          = "output-dir"
	outputDirectoryFlagUsage         = "Directory for the CSV artifact"
	formatFlagName                   = "format"
	formatFlagUsage                  = "Output format: table, json or csv"
	persistFlagName                  = "persist"
	persistFlagUsage                 = "Write the CSV artifact"
	countPolicyFlagName              = "count-policy"
	countPolicyFlagUsage             = "Record count policy: tolerant or exact"
	metricsFileFlagName              = "metrics-file"
	metricsFileFlagUsage             = "Write Prometheus metrics in textfile format to this path"
	defaultAPIEndpoint               = "https://openrouter.ai/api/v1"
	defaultAPIKeyEnvironmentVariable = "OPENROUTER_API_KEY"
	defaultAttempts                  = 3
	defaultSize                      = 50
	defaultTimeout                   = 90
	defaultTemperatureStep           = 0.1
	defaultLoggingLevel              = "info"
	loggingFormatJSON                = "json"
	defaultMarker                    = "default"
	dashPlaceholder                  = "-"

	configurationLoaderInitializationErrorFormat = "initialize configuration loader: %w"
	configurationSourceResolutionErrorFormat     = "resolve configuration source: %w"
	rootConfigurationLoadErrorFormat             = "load root configuration %s: %w"
	missingAPIKeyErrorFormat                     = "missing API key: set %s"
	unknownModelErrorFormat                      = "model %q not found in models[]"
)
