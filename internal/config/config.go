// Package config loads the optional diag2edl configuration file. Values in
// the file sit between the built-in defaults and command line flags.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml"
	yaml "gopkg.in/yaml.v3"

	"github.com/OpenTraceLab/OpenTraceEDL/pkg/diag"
)

// Backends accepted for the backend key.
const (
	BackendUSB    = "usb"
	BackendSerial = "serial"
	BackendSim    = "sim"
)

// File mirrors the configuration file. Durations are strings in
// time.ParseDuration syntax so every format spells them the same way.
type File struct {
	Backend      string `json:"backend" yaml:"backend" toml:"backend"`
	Serial       string `json:"serial" yaml:"serial" toml:"serial"`
	Timeout      string `json:"timeout" yaml:"timeout" toml:"timeout"`
	WriteTimeout string `json:"write_timeout" yaml:"write_timeout" toml:"write_timeout"`
	LogLevel     string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFile      string `json:"log_file" yaml:"log_file" toml:"log_file"`
	NoColor      bool   `json:"no_color" yaml:"no_color" toml:"no_color"`
	Trace        bool   `json:"trace" yaml:"trace" toml:"trace"`
	Wait         bool   `json:"wait" yaml:"wait" toml:"wait"`
	PollInterval string `json:"poll_interval" yaml:"poll_interval" toml:"poll_interval"`
}

// Settings is a validated File.
type Settings struct {
	Backend      string
	Serial       string
	Timeout      time.Duration
	WriteTimeout time.Duration
	LogLevel     string
	LogFile      string
	NoColor      bool
	Trace        bool
	Wait         bool
	PollInterval time.Duration
}

// Default returns the built-in configuration.
func Default() File {
	return File{
		Backend:      BackendUSB,
		Timeout:      diag.DefaultTimeout.String(),
		WriteTimeout: diag.DefaultWriteTimeout.String(),
		LogLevel:     "info",
		PollInterval: diag.DefaultPollInterval.String(),
	}
}

// Settings validates f and parses its durations.
func (f File) Settings() (Settings, error) {
	s := Settings{
		Backend:  strings.ToLower(f.Backend),
		Serial:   f.Serial,
		LogLevel: f.LogLevel,
		LogFile:  f.LogFile,
		NoColor:  f.NoColor,
		Trace:    f.Trace,
		Wait:     f.Wait,
	}
	if s.Backend == "" {
		s.Backend = BackendUSB
	}
	if err := ValidateBackend(s.Backend); err != nil {
		return Settings{}, err
	}

	var err error
	if s.Timeout, err = parseDuration("timeout", f.Timeout, diag.DefaultTimeout); err != nil {
		return Settings{}, err
	}
	if s.WriteTimeout, err = parseDuration("write_timeout", f.WriteTimeout, diag.DefaultWriteTimeout); err != nil {
		return Settings{}, err
	}
	if s.PollInterval, err = parseDuration("poll_interval", f.PollInterval, diag.DefaultPollInterval); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// ValidateBackend rejects unknown backend names.
func ValidateBackend(name string) error {
	switch name {
	case BackendUSB, BackendSerial, BackendSim:
		return nil
	default:
		return fmt.Errorf("unknown backend %q (want %s, %s or %s)", name, BackendUSB, BackendSerial, BackendSim)
	}
}

func parseDuration(key, s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be positive, got %s", key, s)
	}
	return d, nil
}

// NormalizeFormat maps a format name or file extension to json, yaml or
// toml, or "" when unsupported.
func NormalizeFormat(f string) string {
	switch strings.TrimPrefix(strings.ToLower(f), ".") {
	case "json":
		return "json"
	case "yaml", "yml":
		return "yaml"
	case "toml":
		return "toml"
	default:
		return ""
	}
}

// Decode parses data over the defaults, so absent keys keep their default.
func Decode(data []byte, format string) (File, error) {
	f := Default()
	if len(bytes.TrimSpace(data)) == 0 {
		return f, nil
	}

	var err error
	switch NormalizeFormat(format) {
	case "json":
		err = json.Unmarshal(data, &f)
	case "yaml":
		err = yaml.Unmarshal(data, &f)
	case "toml":
		err = toml.Unmarshal(data, &f)
	default:
		return File{}, fmt.Errorf("unsupported config format %q", format)
	}
	if err != nil {
		return File{}, err
	}
	return f, nil
}

// Encode renders f in the given format.
func Encode(f File, format string) ([]byte, error) {
	switch NormalizeFormat(format) {
	case "json":
		data, err := json.MarshalIndent(f, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case "yaml":
		return yaml.Marshal(f)
	case "toml":
		return toml.Marshal(f)
	default:
		return nil, fmt.Errorf("unsupported config format %q", format)
	}
}

// Load reads the file at path, or the first existing default candidate when
// path is empty. It returns the path that was read, "" when none was found.
func Load(path string) (File, string, error) {
	candidates := []string{path}
	if path == "" {
		candidates = CandidatePaths()
	}

	for _, p := range candidates {
		data, err := os.ReadFile(p)
		if err != nil {
			if path == "" && errors.Is(err, os.ErrNotExist) {
				continue
			}
			return File{}, "", err
		}
		format := NormalizeFormat(filepath.Ext(p))
		if format == "" {
			format = "yaml"
		}
		f, err := Decode(data, format)
		if err != nil {
			return File{}, "", fmt.Errorf("%s: %w", p, err)
		}
		return f, p, nil
	}
	return Default(), "", nil
}

// DefaultDir returns the platform configuration directory for diag2edl.
func DefaultDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		if appdata := os.Getenv("AppData"); appdata != "" {
			return filepath.Join(appdata, "diag2edl"), nil
		}
		return "", errors.New("AppData not set")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "diag2edl"), nil
		}
		if home := os.Getenv("HOME"); home != "" {
			return filepath.Join(home, ".config", "diag2edl"), nil
		}
		return "", errors.New("HOME not set")
	}
}

// DefaultPath returns the default config file path for format.
func DefaultPath(format string) (string, error) {
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}
	ext := NormalizeFormat(format)
	if ext == "" {
		ext = "yaml"
	}
	return filepath.Join(dir, "config."+ext), nil
}

// CandidatePaths lists the files Load looks for, in priority order.
func CandidatePaths() []string {
	dir, err := DefaultDir()
	if err != nil {
		return nil
	}
	var paths []string
	for _, ext := range []string{"yaml", "yml", "toml", "json"} {
		paths = append(paths, filepath.Join(dir, "config."+ext))
	}
	return paths
}

// WriteTemplate writes the defaults to dest in format. An existing file is
// only replaced when force is set.
func WriteTemplate(dest, format string, force bool) error {
	data, err := Encode(Default(), format)
	if err != nil {
		return err
	}
	if !force {
		if _, err := os.Stat(dest); err == nil {
			return fmt.Errorf("%s exists; use --force to overwrite", dest)
		}
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0o644)
}
