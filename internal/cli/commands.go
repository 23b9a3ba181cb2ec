package cli

import (
	"github.com/rileyhilliard/radarmon/internal/errors"
	"github.com/spf13/cobra"
)

// monitorCmd starts the live dashboard
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Live chart of every source's presence distance",
	Long: `Connect to every configured source, run its sensor command and chart the
readings from the last window (120s by default) as they arrive.

Sources that fail keep retrying with capped exponential backoff; the legend
shows each one's connection state. When stdout isn't a terminal, or with
--no-tui, monitor behaves like collect.

Keyboard shortcuts:
  q / Ctrl+C  Quit
  p           Pause the chart (collection continues)
  l           Show/hide the raw output panel
  f           Follow the newest output again
  ?           Show help

Examples:
  radarmon monitor
  radarmon monitor --window 60s
  radarmon monitor --listen :9100`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return monitorCommand(cmd.Context(), monitorOpts, cmd.OutOrStdout())
	},
}

// collectCmd runs the collectors without the dashboard
var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect readings without the dashboard",
	Long: `Run every source's collector without drawing anything. Connection
changes are printed as they happen and per-source counts are printed on exit.

With --listen the web view and Prometheus metrics are still served, so this
is the mode for running radarmon as a service.

Examples:
  radarmon collect
  radarmon collect --summary 30s
  radarmon collect --listen :9100`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return collectCommand(cmd.Context(), collectOpts, cmd.OutOrStdout())
	},
}

// validateCmd checks the config without connecting
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the config file",
	Long: `Load and check the config without connecting to anything.

Broken global settings are an error. A broken source is listed with the
reason; monitor would show it as failed and run the others.

Examples:
  radarmon validate
  radarmon validate --strict
  radarmon validate --config ./lab.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return validateCommand(validateOpts, cmd.OutOrStdout())
	},
}

// doctorCmd diagnoses config, SSH and source problems
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose config, SSH and sensor problems",
	Long: `Check the config file, the local SSH setup and every source.

For each source, doctor connects to its host and looks for the sensor
command on the remote PATH. The command itself is never started.

Examples:
  radarmon doctor
  radarmon doctor --offline
  radarmon doctor --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return doctorCommand(doctorOpts, cmd.OutOrStdout(), nil)
	},
}

// initCmd creates a radarmon.yaml configuration
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create radarmon.yaml configuration",
	Long: `Create a radarmon.yaml file in the current directory with one source.

Prompts for the sensor's host, offering the aliases from ~/.ssh/config, and
tests the connection before saving. Use --append to add another sensor to
an existing file.

Environment defaults: RADARMON_HOST, RADARMON_SOURCE_ID, RADARMON_USERNAME,
RADARMON_COMMAND. RADARMON_NON_INTERACTIVE=true or CI skips the prompts.

Examples:
  radarmon init
  radarmon init --host fio@192.168.0.58 --tag Sentai
  radarmon init --append --host radar-2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return initCommand(initOpts, cmd.OutOrStdout())
	},
}

// completionCmd generates shell completion scripts
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion scripts for radarmon.

Examples:
  # Bash
  radarmon completion bash > /etc/bash_completion.d/radarmon

  # Zsh
  radarmon completion zsh > "${fpath[1]}/_radarmon"

  # Fish
  radarmon completion fish > ~/.config/fish/completions/radarmon.fish`,
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(out)
		case "zsh":
			return rootCmd.GenZshCompletion(out)
		case "fish":
			return rootCmd.GenFishCompletion(out, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletion(out)
		default:
			return errors.New(errors.ErrExec,
				"Unknown shell: "+args[0],
				"Supported shells: bash, zsh, fish, powershell")
		}
	},
}

var initOpts InitOptions

func init() {
	// monitor flags, also on root since it runs monitor
	for _, cmd := range []*cobra.Command{rootCmd, monitorCmd} {
		AddCommonFlags(cmd, &monitorOpts.CommonFlags)
		cmd.Flags().BoolVar(&monitorOpts.NoTUI, "no-tui", false, "print connection changes instead of drawing the dashboard")
	}

	// collect flags
	AddCommonFlags(collectCmd, &collectOpts.CommonFlags)
	collectCmd.Flags().StringVar(&collectOpts.Summary, "summary", "", "print per-source counts this often (e.g., 30s)")

	// validate flags
	validateCmd.Flags().BoolVar(&validateOpts.Strict, "strict", false, "fail when any source is invalid")

	// doctor flags
	doctorCmd.Flags().BoolVar(&doctorOpts.JSON, "json", false, "output in JSON format")
	doctorCmd.Flags().BoolVar(&doctorOpts.Offline, "offline", false, "don't connect to the sources' hosts")

	// init flags
	initCmd.Flags().StringVar(&initOpts.Host, "host", "", "sensor's SSH host or alias")
	initCmd.Flags().StringVar(&initOpts.ID, "id", "", "source id (default: derived from the host)")
	initCmd.Flags().StringVar(&initOpts.Username, "username", "", "SSH login name")
	initCmd.Flags().StringVar(&initOpts.Command, "command", "", "remote sensor command")
	initCmd.Flags().StringVar(&initOpts.Tag, "tag", "", "label shown in the legend")
	initCmd.Flags().StringVarP(&initOpts.Path, "output", "o", "", "file to write (default ./radarmon.yaml)")
	initCmd.Flags().BoolVarP(&initOpts.Overwrite, "force", "f", false, "overwrite existing config")
	initCmd.Flags().BoolVar(&initOpts.Append, "append", false, "add the source to an existing config")
	initCmd.Flags().BoolVar(&initOpts.NonInteractive, "non-interactive", false, "skip prompts and use flags and defaults")
	initCmd.Flags().BoolVar(&initOpts.SkipProbe, "skip-probe", false, "don't test the connection before saving")

	// Register all commands
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(completionCmd)
}
