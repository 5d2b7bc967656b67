// Package cli implements the voicerag command line.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aslamsikder/VoiceRAG-Agent-System/agent"
	"github.com/aslamsikder/VoiceRAG-Agent-System/app"
	"github.com/aslamsikder/VoiceRAG-Agent-System/config"
	"github.com/aslamsikder/VoiceRAG-Agent-System/logging"
)

var (
	configPath string
	logLevel   string
)

var (
	heading = color.New(color.FgCyan, color.Bold)
	success = color.New(color.FgGreen)
	warning = color.New(color.FgYellow)
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "voicerag",
		Short: "Voice assistant that answers from your documents or live tools",
		Long: `VoiceRAG answers spoken or typed questions.

Weather and stock questions are routed to live tools, everything else is
answered from an index built over a directory of PDF, Markdown, CSV and
text documents.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML config file (default $"+config.EnvConfigPath+")")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the log level (debug, info, warn, error)")

	cmd.AddCommand(
		newServeCmd(),
		newIngestCmd(),
		newAskCmd(),
		newTranscribeCmd(),
		newMCPCmd(),
		newClearCmd(),
	)
	return cmd
}

func Execute() error {
	return NewRootCmd().Execute()
}

// setup loads configuration and builds the logger for a command.
func setup() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = strings.ToLower(logLevel)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

// withApp runs fn with a fully wired application and a context cancelled on
// SIGINT or SIGTERM.
func withApp(fn func(ctx context.Context, a *app.App) error) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	return fn(ctx, a)
}

// prompt reads one line from in after printing question.
func prompt(in io.Reader, out io.Writer, question string) (string, error) {
	fmt.Fprint(out, question)
	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		return "", scanner.Err()
	}
	return strings.TrimSpace(scanner.Text()), nil
}

func printResult(out io.Writer, res agent.Result) {
	heading.Fprintln(out, "Answer:")
	fmt.Fprintln(out, res.Answer)
	fmt.Fprintln(out)

	heading.Fprintln(out, "Metrics:")
	metrics := res.Metrics.Map()
	keys := make([]string, 0, len(metrics))
	for k := range metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(out, "  %s: %v\n", k, metrics[k])
	}
}
