package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"llmbridge/internal/dispatch"
	"llmbridge/pkg/logging/logging"
)

var (
	flagRulesDir      string
	flagModel         string
	flagVertex        bool
	flagCodeAssist    bool
	flagOutputDir     string
	flagProxyCommand  string
	flagProxyPort     int
	flagInteractive   bool
	flagLogActions    bool
	flagTimeoutSecs   int
	flagCLI           string
	flagTunablesFile  string
)

var rootCmd = &cobra.Command{
	Use:   "dispatch [phase] [request-file]",
	Short: "Run the AI CLI against a prepared prompt and classify the outcome",
	Long: `dispatch assembles a combined prompt from a phase template, a user
request file, and optional project rules, then runs the external AI CLI
against it.

Child output is scanned for quota-exhaustion patterns; the exit code tells
the calling workflow what happened:

  0    success
  1    generic failure (including configuration errors)
  124  wall-clock timeout
  429  upstream quota exhausted`,
	Args: cobra.ExactArgs(2),
	RunE: runDispatch,
	// Exit codes are the contract; cobra's own error output would only
	// duplicate what we already print.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Flags().StringVar(&flagRulesDir, "rules", "", "directory of *.md rule files to append to the prompt")
	rootCmd.Flags().StringVar(&flagModel, "model", dispatch.DefaultModel, "model identifier passed to the CLI")
	rootCmd.Flags().BoolVar(&flagVertex, "vertex", false, "select the Vertex AI backend")
	rootCmd.Flags().BoolVar(&flagCodeAssist, "code-assist", false, "select the Code Assist backend")
	rootCmd.Flags().StringVar(&flagOutputDir, "output", ".", "directory for prompt, response, and log files")
	rootCmd.Flags().StringVar(&flagProxyCommand, "proxy", "", "translation proxy binary to launch, or .js preload script")
	rootCmd.Flags().IntVar(&flagProxyPort, "proxy-port", 8080, "port the launched proxy listens on")
	rootCmd.Flags().BoolVar(&flagInteractive, "interactive", false, "interactive approval instead of auto-approve")
	rootCmd.Flags().BoolVar(&flagLogActions, "log-actions", false, "capture telemetry and derive an action summary")
	rootCmd.Flags().IntVar(&flagTimeoutSecs, "timeout", 1800, "wall-clock timeout in seconds")
	rootCmd.Flags().StringVar(&flagCLI, "cli", dispatch.DefaultCLI, "external AI CLI binary to run")
	rootCmd.Flags().StringVar(&flagTunablesFile, "config", "", "optional YAML file with tunables")
}

func runDispatch(cmd *cobra.Command, args []string) error {
	// .env is optional; CI sets real env vars.
	_ = godotenv.Load()

	logger := logging.DefaultLogger()
	defer logger.Sync()

	cfg := dispatch.Config{
		Phase:         dispatch.Phase(args[0]),
		RequestFile:   args[1],
		RulesDir:      flagRulesDir,
		Model:         flagModel,
		UseVertex:     flagVertex,
		UseCodeAssist: flagCodeAssist,
		OutputDir:     flagOutputDir,
		ProxyCommand:  flagProxyCommand,
		ProxyPort:     flagProxyPort,
		Interactive:   flagInteractive,
		ActionLog:     flagLogActions,
		Timeout:       time.Duration(flagTimeoutSecs) * time.Second,
		CLI:           flagCLI,
	}

	tunables, err := dispatch.LoadTunables(flagTunablesFile)
	if err != nil {
		return err
	}
	cfg = tunables.Apply(cfg)

	d, err := dispatch.New(cfg, logger)
	if err != nil {
		if errors.Is(err, dispatch.ErrConfig) {
			fmt.Fprintln(os.Stderr, "dispatch:", err)
			os.Exit(1)
		}
		return err
	}

	result, err := d.Run(cmd.Context())
	if err != nil {
		logger.Error("dispatch run failed", zap.Error(err))
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "dispatch: %s (response: %s, log: %s)\n",
		result.Outcome, result.ResponsePath, result.LogPath)
	os.Exit(result.Outcome.ExitCode())
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "dispatch:", err)
		os.Exit(1)
	}
}
