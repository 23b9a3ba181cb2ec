package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/radarmon/internal/doctor"
	"github.com/rileyhilliard/radarmon/internal/errors"
	"github.com/rileyhilliard/radarmon/internal/monitor"
	"github.com/rileyhilliard/radarmon/internal/ui"
)

// DoctorOptions holds flags for the doctor command.
type DoctorOptions struct {
	JSON bool
	// Offline skips connecting to the sources' hosts.
	Offline bool
}

var doctorOpts DoctorOptions

// DoctorOutput represents the JSON output for doctor command.
type DoctorOutput struct {
	Categories []CategoryOutput `json:"categories"`
	Summary    SummaryOutput    `json:"summary"`
}

// CategoryOutput represents a category of check results.
type CategoryOutput struct {
	Name    string               `json:"name"`
	Results []doctor.CheckResult `json:"results"`
}

// SummaryOutput summarizes the check results.
type SummaryOutput struct {
	Pass     int  `json:"pass"`
	Warn     int  `json:"warn"`
	Fail     int  `json:"fail"`
	AllClear bool `json:"all_clear"`
}

// doctorCommand runs the diagnostics and reports them. dial connects to
// sources; nil uses SSH. Any failed check makes the command exit 1.
func doctorCommand(opts DoctorOptions, out io.Writer, dial monitor.Dialer) error {
	checks, results := runDoctorChecks(opts, dial)

	var err error
	if opts.JSON {
		err = outputDoctorJSON(out, checks, results)
	} else {
		outputDoctorText(out, checks, results)
	}
	if err != nil {
		return err
	}

	if doctor.HasFailures(results) {
		return errors.NewExitError(1)
	}
	return nil
}

// runDoctorChecks runs config checks in order, since later ones read the
// loaded config, then everything else in parallel.
func runDoctorChecks(opts DoctorOptions, dial monitor.Dialer) ([]doctor.Check, []doctor.CheckResult) {
	file, configChecks := doctor.NewConfigChecks(cfgFile)
	results := doctor.RunAll(configChecks)

	remote := doctor.NewSSHChecks()
	if file.Config != nil && !opts.Offline {
		if dial == nil {
			dial = monitor.NewSSHDialer(file.Config.ConnectTimeout).Dial
		}
		remote = append(remote, doctor.NewSourceChecks(file.Config, dial)...)
	}
	results = append(results, doctor.RunAllParallel(remote)...)

	return append(configChecks, remote...), results
}

// outputDoctorJSON writes results grouped by category.
func outputDoctorJSON(out io.Writer, checks []doctor.Check, results []doctor.CheckResult) error {
	grouped := doctor.GroupByCategory(checks)

	output := DoctorOutput{
		Categories: make([]CategoryOutput, 0, len(grouped)),
	}
	for _, cat := range doctor.Categories {
		indices, ok := grouped[cat]
		if !ok {
			continue
		}
		co := CategoryOutput{Name: cat, Results: make([]doctor.CheckResult, 0, len(indices))}
		for _, idx := range indices {
			co.Results = append(co.Results, results[idx])
		}
		output.Categories = append(output.Categories, co)
	}

	counts := doctor.CountByStatus(results)
	output.Summary = SummaryOutput{
		Pass:     counts[doctor.StatusPass],
		Warn:     counts[doctor.StatusWarn],
		Fail:     counts[doctor.StatusFail],
		AllClear: !doctor.HasIssues(results),
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

// outputDoctorText writes the human-readable report.
func outputDoctorText(out io.Writer, checks []doctor.Check, results []doctor.CheckResult) {
	headerStyle := lipgloss.NewStyle().Bold(true)

	fmt.Fprintln(out)
	fmt.Fprintln(out, headerStyle.Render("radarmon Diagnostic Report"))
	fmt.Fprintln(out)

	grouped := doctor.GroupByCategory(checks)
	for _, category := range doctor.Categories {
		indices, ok := grouped[category]
		if !ok {
			continue
		}

		fmt.Fprintln(out, headerStyle.Render(category))
		for _, idx := range indices {
			renderCheckResult(out, results[idx])
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintln(out, strings.Repeat("━", 60))
	fmt.Fprintln(out)

	if doctor.HasIssues(results) {
		fmt.Fprintf(out, "%s %s\n", ui.ErrorStyle().Render(ui.SymbolFail), doctor.Summary(results))
	} else {
		fmt.Fprintf(out, "%s %s\n", ui.SuccessStyle().Render(ui.SymbolSuccess), doctor.Summary(results))
	}
	fmt.Fprintln(out)
}

// renderCheckResult renders a single check result.
func renderCheckResult(out io.Writer, result doctor.CheckResult) {
	var symbol string
	var style lipgloss.Style

	switch result.Status {
	case doctor.StatusPass:
		symbol = ui.SymbolComplete
		style = ui.SuccessStyle()
	case doctor.StatusWarn:
		symbol = ui.SymbolWarning
		style = ui.WarningStyle()
	default:
		symbol = ui.SymbolFail
		style = ui.ErrorStyle()
	}

	fmt.Fprintf(out, "  %s %s\n", style.Render(symbol), result.Message)

	if result.Suggestion != "" && result.Status != doctor.StatusPass {
		for _, line := range strings.Split(result.Suggestion, "\n") {
			fmt.Fprintf(out, "    %s\n", ui.MutedStyle().Render(line))
		}
	}
}
