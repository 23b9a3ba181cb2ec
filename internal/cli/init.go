package cli

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/rileyhilliard/radarmon/internal/config"
	"github.com/rileyhilliard/radarmon/internal/errors"
	"github.com/rileyhilliard/radarmon/internal/monitor"
	"github.com/rileyhilliard/radarmon/internal/ui"
	"github.com/rileyhilliard/radarmon/pkg/sshutil"
	"golang.org/x/term"
)

// defaultSensorCommand starts the radar's presence stream.
const defaultSensorCommand = `sudo RADAR_DEBUG=1 seamless_dev_spi spi.mode="presence"`

// otherHost is the picker value for typing a host by hand.
const otherHost = "\x00other"

// InitOptions holds options for the init command.
type InitOptions struct {
	Path           string // Config file to write, default ./radarmon.yaml
	ID             string // Source id, default derived from the host
	Host           string // SSH host or alias
	Username       string
	Command        string // Remote sensor command
	Tag            string
	Overwrite      bool // Replace an existing config
	Append         bool // Add the source to an existing config
	NonInteractive bool // Skip prompts, use defaults
	SkipProbe      bool // Skip the connection test
}

// getInitDefaults reads defaults from the environment. CI forces
// non-interactive mode.
func getInitDefaults() InitOptions {
	nonInteractive := os.Getenv("RADARMON_NON_INTERACTIVE")
	return InitOptions{
		ID:             os.Getenv("RADARMON_SOURCE_ID"),
		Host:           os.Getenv("RADARMON_HOST"),
		Username:       os.Getenv("RADARMON_USERNAME"),
		Command:        os.Getenv("RADARMON_COMMAND"),
		NonInteractive: nonInteractive == "true" || nonInteractive == "1" || os.Getenv("CI") != "",
	}
}

// mergeInitOptions fills empty flags from the environment.
func mergeInitOptions(opts InitOptions) InitOptions {
	env := getInitDefaults()
	if opts.ID == "" {
		opts.ID = env.ID
	}
	if opts.Host == "" {
		opts.Host = env.Host
	}
	if opts.Username == "" {
		opts.Username = env.Username
	}
	if opts.Command == "" {
		opts.Command = env.Command
	}
	if env.NonInteractive {
		opts.NonInteractive = true
	}
	return opts
}

// extractHostname strips the user and port from user@host:port.
func extractHostname(host string) string {
	if idx := strings.LastIndex(host, "@"); idx != -1 {
		host = host[idx+1:]
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

// defaultSourceID derives a short id from the host: the first label of a
// hostname, or the whole address for IPs.
func defaultSourceID(host string) string {
	name := extractHostname(host)
	if name == "" || net.ParseIP(name) != nil {
		return name
	}
	if idx := strings.Index(name, "."); idx > 0 {
		return name[:idx]
	}
	return name
}

// Init writes a starter config with one source, or appends one to an existing file.
func Init(opts InitOptions, out io.Writer) error {
	path := opts.Path
	if path == "" {
		path = config.ConfigFileName
	}

	exists := false
	if _, err := os.Stat(path); err == nil {
		exists = true
	}

	if exists && !opts.Overwrite && !opts.Append {
		if opts.NonInteractive {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("There's already a config file at %s", path),
				"Use --force to overwrite it or --append to add a source to it.")
		}
		action, err := promptExisting(path)
		if err != nil {
			return err
		}
		switch action {
		case "append":
			opts.Append = true
		case "overwrite":
			opts.Overwrite = true
		default:
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}
	}

	var err error
	if opts.NonInteractive {
		err = collectNonInteractiveValues(&opts)
	} else {
		err = promptSource(&opts)
	}
	if err != nil {
		return err
	}

	src := config.Source{
		ID:       opts.ID,
		Host:     opts.Host,
		Username: opts.Username,
		Command:  opts.Command,
		Tag:      opts.Tag,
	}
	if err := config.ValidateSource(config.ExpandSource(src)); err != nil {
		return err
	}

	if !opts.SkipProbe {
		if err := testConnection(src, out, opts.NonInteractive); err != nil {
			return err
		}
	}

	if exists && opts.Append {
		if err := config.AppendSource(path, src); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				fmt.Sprintf("Couldn't add the source to %s", path),
				"Check the file is valid YAML with a 'sources' list.")
		}
		fmt.Fprintf(out, "%s Added source '%s' to %s\n", ui.SymbolSuccess, src.ID, path)
		return nil
	}

	cfg := config.DefaultConfig()
	cfg.Sources = []config.Source{src}
	if err := config.Write(path, cfg); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Failed to write config file: %s", path),
			"Check directory permissions")
	}

	fmt.Fprintf(out, "%s Created %s\n\n", ui.SymbolSuccess, path)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintln(out, "  radarmon validate   - Check the config")
	fmt.Fprintln(out, "  radarmon            - Start the live dashboard")
	fmt.Fprintln(out, "  radarmon init --append  - Add another sensor")
	return nil
}

// collectNonInteractiveValues fills defaults and rejects a missing host.
func collectNonInteractiveValues(opts *InitOptions) error {
	if strings.TrimSpace(opts.Host) == "" {
		return errors.New(errors.ErrConfig,
			"SSH host is required in non-interactive mode",
			"Pass --host or set RADARMON_HOST.")
	}
	if opts.ID == "" {
		opts.ID = defaultSourceID(opts.Host)
	}
	if opts.Command == "" {
		opts.Command = defaultSensorCommand
	}
	return nil
}

func promptExisting(path string) (string, error) {
	var action string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(fmt.Sprintf("%s already exists", path)).
				Options(
					huh.NewOption("Add a source to it", "append"),
					huh.NewOption("Overwrite it", "overwrite"),
					huh.NewOption("Cancel", "cancel"),
				).
				Value(&action),
		),
	)
	if err := form.Run(); err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to get user input",
			"Try running with --force or --append")
	}
	return action, nil
}

// promptSource asks for the source, offering ~/.ssh/config aliases first.
func promptSource(opts *InitOptions) error {
	if opts.Host == "" {
		if hosts, err := sshutil.ConfigAliases(); err == nil && len(hosts) > 0 {
			options := make([]huh.Option[string], 0, len(hosts)+1)
			for _, h := range hosts {
				options = append(options, huh.NewOption(h.Label(), h.Alias))
			}
			options = append(options, huh.NewOption("Other (type a host)", otherHost))

			var picked string
			form := huh.NewForm(
				huh.NewGroup(
					huh.NewSelect[string]().
						Title("Which host is the sensor on?").
						Description("From ~/.ssh/config").
						Options(options...).
						Value(&picked),
				),
			)
			if err := form.Run(); err != nil {
				return errors.WrapWithCode(err, errors.ErrConfig,
					"Failed to get user input",
					"Check terminal compatibility or use --non-interactive flag")
			}
			if picked != otherHost {
				opts.Host = picked
			}
		}
	}

	if opts.Command == "" {
		opts.Command = defaultSensorCommand
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("SSH host or alias").
				Description("Enter hostname, user@host, host:port or SSH config alias").
				Placeholder("192.168.0.58 or pi@radar.local").
				Value(&opts.Host).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("SSH host is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Username (optional)").
				Description("Leave empty to use the one from the host or ~/.ssh/config").
				Value(&opts.Username),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Source id").
				Description("A short unique name used in logs and metrics").
				Placeholder("defaults to the host name").
				Value(&opts.ID).
				Validate(func(s string) error {
					if strings.ContainsAny(s, " \t\n") {
						return fmt.Errorf("source id cannot contain whitespace")
					}
					return nil
				}),
			huh.NewInput().
				Title("Label (optional)").
				Description("Shown in the legend instead of the id").
				Value(&opts.Tag),
			huh.NewInput().
				Title("Sensor command").
				Description("Must print '<presence> <distance>' lines").
				Value(&opts.Command).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("command is required")
					}
					return nil
				}),
		),
	)

	if err := form.Run(); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to get user input",
			"Check terminal compatibility or use --non-interactive flag")
	}

	if opts.ID == "" {
		opts.ID = defaultSourceID(opts.Host)
	}
	return nil
}

// initDialer opens the test connection made before the config is saved.
var initDialer monitor.Dialer = monitor.NewSSHDialer(config.DefaultConnectTimeout).Dial

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// testConnection dials the source once. Interactive runs can keep the
// config after a failure; non-interactive runs fail.
func testConnection(src config.Source, out io.Writer, nonInteractive bool) error {
	fmt.Fprintln(out)
	spinner := ui.NewSpinner(out, "Testing connection to "+src.Host, isTerminal(out))
	spinner.Start()

	ctx, cancel := context.WithTimeout(context.Background(), config.DefaultConnectTimeout)
	defer cancel()

	client, err := initDialer(ctx, config.ExpandSource(src))
	if err == nil {
		_ = client.Close()
		spinner.Success()
		fmt.Fprintln(out)
		return nil
	}
	spinner.Fail()

	connErr := errors.WrapWithCode(err, errors.ErrSSH,
		fmt.Sprintf("Connection to '%s' failed", src.Host),
		"Check that the host is reachable: ssh "+src.Host)
	if nonInteractive {
		return connErr
	}

	fmt.Fprintf(out, "\n%s Connection to '%s' failed: %s\n\n", ui.SymbolFail, src.Host, errors.Summary(err))

	var saveAnyway bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save config anyway? (You can fix the connection later)").
				Value(&saveAnyway),
		),
	)
	if formErr := form.Run(); formErr != nil || !saveAnyway {
		return connErr
	}
	return nil
}

// initCommand is the implementation called by the cobra command.
func initCommand(opts InitOptions, out io.Writer) error {
	return Init(mergeInitOptions(opts), out)
}
