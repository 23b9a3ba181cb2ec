package doctor

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/rileyhilliard/radarmon/internal/config"
	"github.com/rileyhilliard/radarmon/internal/errors"
	"github.com/rileyhilliard/radarmon/internal/monitor"
	"github.com/rileyhilliard/radarmon/internal/util"
)

// SourceCheck connects to a source's host and looks for its sensor
// command on the remote PATH. It never starts the command.
type SourceCheck struct {
	Source  config.Source
	Dial    monitor.Dialer
	Timeout time.Duration
}

func (c *SourceCheck) Name() string     { return "source_" + c.Source.ID }
func (c *SourceCheck) Category() string { return "SOURCES" }

func (c *SourceCheck) Run() CheckResult {
	if err := config.ValidateSource(c.Source); err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    fmt.Sprintf("%s: %s", c.Source.ID, errors.Summary(err)),
			Suggestion: suggestionFor(err),
		}
	}
	src := config.ExpandSource(c.Source)

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = config.DefaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	client, err := c.Dial(ctx, src)
	if err != nil {
		suggestion := suggestionFor(err)
		if suggestion == "" {
			suggestion = fmt.Sprintf("Try: ssh %s", src.Host)
		}
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    fmt.Sprintf("%s: cannot connect to %s: %s", src.ID, src.Host, errors.Summary(err)),
			Suggestion: suggestion,
		}
	}
	defer client.Close() //nolint:errcheck // Best-effort close, error not actionable
	latency := time.Since(start)

	bin := util.CommandBinary(src.Command)
	if bin == "" {
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusPass,
			Message: fmt.Sprintf("%s: connected to %s (%s)", src.ID, src.Host, latency.Round(time.Millisecond)),
		}
	}

	_, _, exitCode, err := client.Exec("command -v " + util.ShellQuote(bin))
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    fmt.Sprintf("%s: connected but could not look up '%s': %s", src.ID, bin, errors.Summary(err)),
			Suggestion: "The host may not allow exec sessions; try running the command by hand",
		}
	}
	if exitCode != 0 {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    fmt.Sprintf("%s: '%s' isn't on the remote PATH", src.ID, bin),
			Suggestion: fmt.Sprintf("Install it on %s or use an absolute path in the command", src.Host),
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("%s: connected to %s (%s), found '%s'", src.ID, src.Host, latency.Round(time.Millisecond), bin),
	}
}

// NewSourceChecks creates one check per configured source.
func NewSourceChecks(cfg *config.Config, dial monitor.Dialer) []Check {
	checks := make([]Check, 0, len(cfg.Sources))
	for _, src := range cfg.Sources {
		checks = append(checks, &SourceCheck{
			Source:  src,
			Dial:    dial,
			Timeout: cfg.ConnectTimeout,
		})
	}
	return checks
}

// suggestionFor pulls the suggestion out of a radarmon error, if any.
func suggestionFor(err error) string {
	var rmErr *errors.Error
	if stderrors.As(err, &rmErr) {
		return rmErr.Suggestion
	}
	return ""
}
