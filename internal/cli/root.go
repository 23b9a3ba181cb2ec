package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rileyhilliard/radarmon/internal/config"
	"github.com/rileyhilliard/radarmon/internal/errors"
	"github.com/rileyhilliard/radarmon/internal/logger"
	"github.com/rileyhilliard/radarmon/internal/ui"
	"github.com/rileyhilliard/radarmon/internal/util"
	"github.com/spf13/cobra"
)

// Global flags
var (
	cfgFile string
	verbose bool
	noColor bool
	logFile string
)

// rootCmd runs the monitor when no subcommand is given.
var rootCmd = &cobra.Command{
	Use:   "radarmon",
	Short: "Live presence and distance monitor for remote radar sensors",
	Long: `radarmon runs a sensor command on one or more hosts over SSH, parses the
"<presence> <distance>" lines it prints, and shows the last few minutes of
readings from every source on one live chart.

Running radarmon without a subcommand is the same as 'radarmon monitor'.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor || os.Getenv("NO_COLOR") != "" {
			ui.DisableColors()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return monitorCommand(cmd.Context(), monitorOpts, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default ./radarmon.yaml, then ~/.config/radarmon/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to a rotating file instead of stderr")
}

// Execute runs the root command and exits with a non-zero code on failure.
// SIGINT and SIGTERM cancel the command's context so sessions close cleanly.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err == nil {
		return
	}
	if code, ok := errors.GetExitCode(err); ok {
		os.Exit(code)
	}
	if isUnknownCommandError(err) {
		if name := extractUnknownCommand(err); name != "" {
			fmt.Fprintf(os.Stderr, "%s Unknown command '%s'\n\n", ui.SymbolFail, name)
			if similar := util.SuggestSimilar(name, commandNames(), 3); len(similar) > 0 {
				fmt.Fprintf(os.Stderr, "  Did you mean '%s'?\n", similar[0])
			} else {
				fmt.Fprintln(os.Stderr, "  Run 'radarmon --help' to see available commands.")
			}
		} else {
			fmt.Fprintf(os.Stderr, "%s %v\n\n  Run 'radarmon --help' for usage.\n", ui.SymbolFail, err)
		}
		os.Exit(2)
	}
	fmt.Fprint(os.Stderr, err.Error())
	os.Exit(1)
}

// isUnknownCommandError reports whether cobra rejected the command line itself.
func isUnknownCommandError(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") ||
		strings.HasPrefix(msg, "unknown flag") ||
		strings.HasPrefix(msg, "unknown shorthand flag")
}

// extractUnknownCommand pulls the command name out of cobra's
// `unknown command "foo" for "radarmon"` message.
func extractUnknownCommand(err error) string {
	msg := err.Error()
	start := strings.Index(msg, `"`)
	if start < 0 {
		return ""
	}
	end := strings.Index(msg[start+1:], `"`)
	if end < 0 {
		return ""
	}
	return msg[start+1 : start+1+end]
}

// commandNames lists the visible subcommands for typo suggestions.
func commandNames() []string {
	var names []string
	for _, c := range rootCmd.Commands() {
		if c.IsAvailableCommand() {
			names = append(names, c.Name())
		}
	}
	return names
}

// loadConfig finds and loads the config named by --config.
func loadConfig() (*config.Config, string, error) {
	return config.FindAndLoad(cfgFile)
}

// setupLogging applies the log level and destination. --verbose beats
// log.level and --log-file beats log.file. quiet drops output that would
// otherwise go to stderr, for when the dashboard owns the terminal.
func setupLogging(cfg *config.Config, quiet bool) (io.Closer, error) {
	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid log.level in config",
			"Use one of debug, info, warn, error.")
	}
	if verbose {
		level = logger.LevelDebug
	}

	file := cfg.Log.File
	if logFile != "" {
		file = logFile
	}

	return logger.Configure(logger.Options{
		Level:   level,
		File:    config.ExpandTilde(file),
		Discard: quiet,
	}), nil
}
