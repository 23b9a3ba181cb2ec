package cli

import (
	"fmt"
	"time"

	"github.com/rileyhilliard/radarmon/internal/config"
	"github.com/rileyhilliard/radarmon/internal/errors"
	"github.com/spf13/cobra"
)

// CommonFlags holds the config overrides shared by monitor and collect.
type CommonFlags struct {
	Window string
	Tick   string
	Listen string
}

// AddCommonFlags registers --window, --tick and --listen on a command.
func AddCommonFlags(cmd *cobra.Command, flags *CommonFlags) {
	cmd.Flags().StringVar(&flags.Window, "window", "", "how much history to keep per source (e.g., 60s, 5m)")
	cmd.Flags().StringVar(&flags.Tick, "tick", "", "render interval (e.g., 100ms, 1s)")
	cmd.Flags().StringVar(&flags.Listen, "listen", "", "serve the web view and /metrics on this address (e.g., :9100)")
}

// ParseDuration parses a duration flag. Returns zero duration if the flag is empty.
func ParseDuration(name, flag string) (time.Duration, error) {
	if flag == "" {
		return 0, nil
	}

	duration, err := time.ParseDuration(flag)
	if err != nil {
		return 0, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("'%s' doesn't look like a valid --%s", flag, name),
			"Try something like 5s, 2m, or 500ms.")
	}
	return duration, nil
}

// ApplyOverrides copies set flags onto cfg. Range checks are left to
// config.Validate so a bad flag reads the same as a bad config value.
func ApplyOverrides(cfg *config.Config, flags CommonFlags) error {
	window, err := ParseDuration("window", flags.Window)
	if err != nil {
		return err
	}
	if window != 0 {
		cfg.Window = window
	}

	tick, err := ParseDuration("tick", flags.Tick)
	if err != nil {
		return err
	}
	if tick != 0 {
		cfg.Tick = tick
	}

	if flags.Listen != "" {
		cfg.Listen = flags.Listen
	}
	return nil
}
