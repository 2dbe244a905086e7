package cli

import (
	"github.com/spf13/cobra"
)

// DefaultAPIURL — адрес API по умолчанию.
const DefaultAPIURL = "http://localhost:8080"

// NewRootCmd собирает корневую команду promptflow.
func NewRootCmd(version string) *cobra.Command {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "promptflow",
		Short:         "PromptFlow CLI: run LLM workflows and track jobs",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", DefaultAPIURL, "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *Client { return NewClient(apiURL) }
	outputFn := func() *Output {
		return NewOutputTo(rootCmd.OutOrStdout(), rootCmd.ErrOrStderr(), jsonOutput)
	}

	rootCmd.AddCommand(
		NewJobCmd(clientFn, outputFn),
		NewTaskCmd(clientFn, outputFn),
		NewWorkflowCmd(clientFn, outputFn),
	)

	return rootCmd
}
