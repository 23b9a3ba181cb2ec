package cli

import (
	"fmt"
	"io"

	"github.com/rileyhilliard/radarmon/internal/config"
	"github.com/rileyhilliard/radarmon/internal/errors"
	"github.com/rileyhilliard/radarmon/internal/ui"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	// Strict fails when any source is invalid, not just the global settings.
	Strict bool
}

var validateOpts ValidateOptions

// validateCommand loads the config, checks it the same way monitor does
// and prints the sources with their status.
func validateCommand(opts ValidateOptions, out io.Writer) error {
	cfg, path, err := loadConfig()
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	_, invalid := config.PartitionSources(cfg)
	problems := make(map[int]config.SourceError, len(invalid))
	for _, se := range invalid {
		problems[se.Index] = se
	}

	fmt.Fprintf(out, "%s %s\n\n", ui.SuccessStyle().Render(ui.SymbolSuccess), path)
	fmt.Fprintf(out, "  window %s  tick %s  connect timeout %s  stale after %s\n",
		cfg.Window, cfg.Tick, cfg.ConnectTimeout, cfg.StaleAfter)
	fmt.Fprintf(out, "  reconnect %s → %s (×%g)%s\n\n",
		cfg.Reconnect.Initial, cfg.Reconnect.Max, cfg.Reconnect.Multiplier, retriesNote(cfg.Reconnect.MaxRetries))

	rows := make([][]string, 0, len(cfg.Sources))
	for i, src := range cfg.Sources {
		status := ui.SymbolSuccess + " ok"
		if se, bad := problems[i]; bad {
			src = se.Source
			status = ui.SymbolFail + " " + se.Error()
		}
		rows = append(rows, []string{src.ID, src.DisplayTag(), src.Host, status})
	}
	fmt.Fprintln(out, ui.RenderTable([]ui.TableColumn{
		{Title: "Source", Max: 24},
		{Title: "Label", Max: 16},
		{Title: "Host", Max: 32},
		{Title: "Status", Max: 60},
	}, rows))

	if len(invalid) == 0 {
		return nil
	}

	fmt.Fprintf(out, "\n%s %d of %d sources are invalid and will show as failed\n",
		ui.WarningStyle().Render(ui.SymbolWarning), len(invalid), len(cfg.Sources))
	for _, se := range invalid {
		fmt.Fprintf(out, "  %s: %s\n", se.Source.ID, se.Error())
	}
	if opts.Strict {
		return errors.NewExitError(1)
	}
	return nil
}

func retriesNote(n int) string {
	if n == 0 {
		return ", retrying forever"
	}
	return fmt.Sprintf(", failing after %d attempts", n)
}
