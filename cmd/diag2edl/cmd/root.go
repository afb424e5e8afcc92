package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceEDL/internal/config"
	"github.com/OpenTraceLab/OpenTraceEDL/internal/ux"
	"github.com/OpenTraceLab/OpenTraceEDL/pkg/diag"
)

// ExitNotFound is the exit status when no matching DIAG device is attached,
// so scripts can poll for a modem.
const ExitNotFound = 2

// skipConfig marks commands that must work without a readable config file.
const skipConfig = "skip-config"

var (
	// Global flags
	verbose     bool
	backendName string
	configPath  string
	logFile     string
	logLevel    string
	noColor     bool
	traceFrames bool
)

var (
	settings config.Settings
	logger   = slog.New(slog.NewTextHandler(io.Discard, nil))
	closers  []io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "diag2edl",
	Short: "Switch Qualcomm modems from DIAG to Emergency Download mode",
	Long: `Find a Qualcomm based modem exposing its DIAG interface, send it the
HDLC framed command that reboots it into Emergency Download (EDL) mode and
confirm the acknowledgment.

Examples:
  diag2edl detect                               # Is a DIAG device attached?
  diag2edl switch                               # Switch the first DIAG device
  diag2edl switch --serial 0123456 --wait       # Switch one modem, wait for EDL
  diag2edl list --catalog                       # Show the built-in device catalog
  diag2edl frame encode 4b650100                # Show the framed EDL command
  diag2edl switch --backend sim --sim-mode silent`,
	Version:           "0.3.0",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	if errors.Is(err, diag.KindDeviceNotFound) {
		return ExitNotFound
	}
	return 1
}

func init() {
	cobra.OnFinalize(closeLogs)

	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&verbose, "verbose", "v", false, "verbose output (same as --log-level debug)")
	pf.StringVarP(&backendName, "backend", "b", config.BackendUSB,
		"device access backend (usb, serial, sim)")
	pf.StringVar(&configPath, "config", "", "config file (default $XDG_CONFIG_HOME/diag2edl/config.yaml)")
	pf.StringVar(&logFile, "log-file", "", "mirror all log levels to this file")
	pf.StringVar(&logLevel, "log-level", "info", "console log level (trace, debug, info, warn, error)")
	pf.BoolVar(&noColor, "no-color", false, "disable coloured output")
	pf.BoolVar(&traceFrames, "trace", false, "hex dump every frame exchanged with the device")
}

// setup merges the config file under the command line flags and builds the
// logger.
func setup(cmd *cobra.Command, args []string) error {
	file := config.Default()
	if cmd.Annotations[skipConfig] == "" {
		loaded, path, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		file = loaded
		defer func() {
			if path != "" {
				logger.Debug("loaded config", "path", path)
			}
		}()
	}

	flags := cmd.Flags()
	if flags.Changed("backend") {
		file.Backend = backendName
	}
	if flags.Changed("log-level") {
		file.LogLevel = logLevel
	} else if verbose {
		file.LogLevel = "debug"
	}
	if flags.Changed("log-file") {
		file.LogFile = logFile
	}
	if flags.Changed("no-color") {
		file.NoColor = noColor
	}
	if flags.Changed("trace") {
		file.Trace = traceFrames
	}

	s, err := file.Settings()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	settings = s

	l, c, err := ux.SetupLogger(s.LogLevel, s.LogFile, s.NoColor)
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	logger, closers = l, c
	return nil
}

func closeLogs() {
	for _, c := range closers {
		_ = c.Close()
	}
	closers = nil
}

// tracer returns the frame hex dumper when tracing is on.
func tracer() diag.Tracer {
	if settings.Trace || ux.ParseLevel(settings.LogLevel) <= ux.LevelTrace {
		return ux.NewHexDumper(os.Stdout)
	}
	return nil
}
