package llmsynthdata

import (
	"fmt"

	"github.com/spf13/cobra"
)

type listCommandOptions struct {
	configPath string
}

func newListCommand() *cobra.Command {
	options := &listCommandOptions{configPath: defaultConfigPath}

	command := &cobra.Command{
		Use:   listCommandUse,
		Short: listCommandShort,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListCommand(cmd, *options)
		},
	}

	command.Flags().StringVar(&options.configPath, configFlagName, defaultConfigPath, configFlagUsage)

	return command
}

func runListCommand(command *cobra.Command, options listCommandOptions) error {
	rootConfiguration, err := loadRootConfiguration(options.configPath)
	if err != nil {
		return err
	}

	outputWriter := command.OutOrStdout()
	if _, writeErr := fmt.Fprintln(outputWriter, "Datasets:"); writeErr != nil {
		return fmt.Errorf("write dataset listing: %w", writeErr)
	}
	for _, name := range rootConfiguration.DatasetNames() {
		if _, writeErr := fmt.Fprintf(outputWriter, "  %s\n", name); writeErr != nil {
			return fmt.Errorf("write dataset listing: %w", writeErr)
		}
	}

	if _, writeErr := fmt.Fprintln(outputWriter, "Models:"); writeErr != nil {
		return fmt.Errorf("write model listing: %w", writeErr)
	}
	for _, model := range rootConfiguration.Models {
		marker := dashPlaceholder
		if model.Default {
			marker = defaultMarker
		}
		if _, writeErr := fmt.Fprintf(outputWriter, "  %s\t(%s, %s)\n", model.Name, dashIfEmpty(model.ModelID), marker); writeErr != nil {
			return fmt.Errorf("write model listing: %w", writeErr)
		}
	}

	return nil
}

func dashIfEmpty(value string) string {
	if value == "" {
		return dashPlaceholder
	}
	return value
}
