// Package cli implements the radarmon command-line interface.
//
// Each cobra command is a thin wrapper that hands its flags to a
// *Command function, which loads the config and drives the monitor.
//
// # Command Structure
//
//	radarmon                - Same as 'radarmon monitor'
//	radarmon monitor        - Live dashboard of every source
//	radarmon collect        - Run collectors without the dashboard
//	radarmon validate       - Check the config file
//	radarmon init           - Create radarmon.yaml
//	radarmon version        - Print build information
//
// # Sessions
//
// monitor and collect share a session: the Prometheus registry the
// collectors report to and, with --listen, the web view serving the same
// frames and /metrics. The listener is opened before the dashboard starts
// so a busy port is reported on a normal terminal.
//
// # Flag Handling
//
// Global flags (--config, --verbose, --no-color, --log-file) are defined on
// the root command. CommonFlags (--window, --tick, --listen) override the
// matching config settings for monitor and collect and are checked by
// config.Validate like any other value.
package cli
