package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenTraceLab/OpenTraceEDL/pkg/diag"
)

// resetFlags restores every flag to its default so values do not leak
// between test cases.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			var vals []string
			if def := strings.Trim(f.DefValue, "[]"); def != "" {
				vals = strings.Split(def, ",")
			}
			_ = sv.Replace(vals)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// run executes the root command with args and returns what it printed on
// stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	// Capture stdout
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	// Read in background to prevent pipe buffer from blocking on Windows
	var buf bytes.Buffer
	done := make(chan struct{})
	go func() {
		buf.ReadFrom(r)
		close(done)
	}()

	resetFlags(rootCmd)
	rootCmd.SetArgs(args)
	err = rootCmd.Execute()

	w.Close()
	os.Stdout = old
	<-done

	return buf.String(), err
}

func TestSwitchE2E(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	tests := []struct {
		name        string
		args        []string
		wantKind    diag.Kind
		wantContain []string
	}{
		{
			name: "default simulated modem",
			args: []string{"switch", "--backend", "sim"},
			wantContain: []string{
				"Found DIAG device",
				"Switched 2c7c:0127 serial SIM0001 at sim-1 (Quectel EM05CEFC-LNV) via interface 3",
				"Device is rebooting into EDL mode.",
			},
		},
		{
			name: "wait for EDL",
			args: []string{"switch", "-b", "sim", "--wait", "--poll-interval", "10ms"},
			wantContain: []string{
				"Waiting up to 30s",
				"EDL device ready: 05c6:9008 at sim-1",
			},
		},
		{
			name: "serial filter",
			args: []string{"switch", "-b", "sim", "--sim-devices", "2c7c:0127:A,1e0e:9001:B", "--serial", "B"},
			wantContain: []string{
				"Switched 1e0e:9001 serial B at sim-2 (SIM8200EA-M2 (SDX55)) via interface 0",
			},
		},
		{
			name:        "already in EDL",
			args:        []string{"switch", "-b", "sim", "--sim-devices", "05c6:9008"},
			wantContain: []string{"Device 05c6:9008 at sim-1 is already in EDL mode"},
		},
		{
			name: "frame trace",
			args: []string{"switch", "-b", "sim", "--trace"},
			wantContain: []string{
				">> device (8 bytes)",
				"<< device (8 bytes)",
				"00000000  7e 4b 65 01 00 54 0f 7e",
			},
		},
		{
			name:     "unknown device only",
			args:     []string{"switch", "-b", "sim", "--sim-devices", "1234:0001"},
			wantKind: diag.KindDeviceNotFound,
		},
		{
			name:     "serial not attached",
			args:     []string{"switch", "-b", "sim", "--serial", "nope"},
			wantKind: diag.KindDeviceNotFound,
		},
		{
			name:     "no acknowledgment",
			args:     []string{"switch", "-b", "sim", "--sim-mode", "silent", "--timeout", "50ms"},
			wantKind: diag.KindAckTimeout,
		},
		{
			name:     "corrupt acknowledgment",
			args:     []string{"switch", "-b", "sim", "--sim-mode", "corrupt"},
			wantKind: diag.KindAckDecodeFailed,
		},
		{
			name:     "unexpected acknowledgment",
			args:     []string{"switch", "-b", "sim", "--sim-mode", "mismatch"},
			wantKind: diag.KindAckMismatch,
		},
		{
			name:     "device busy",
			args:     []string{"switch", "-b", "sim", "--sim-mode", "busy"},
			wantKind: diag.KindDeviceOpenFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := run(t, tt.args...)

			if tt.wantKind != 0 {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantKind), "err = %v, want %s", err, tt.wantKind)
				return
			}
			require.NoError(t, err, "output:\n%s", output)
			for _, want := range tt.wantContain {
				assert.Contains(t, output, want)
			}
		})
	}
}

func TestDetectE2E(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	output, err := run(t, "detect", "-b", "sim")
	require.NoError(t, err)
	assert.Contains(t, output, "DIAG device is attached")

	output, err = run(t, "detect", "-b", "sim", "--serial", "SIM0001")
	require.NoError(t, err)
	assert.Contains(t, output, "DIAG device with serial SIM0001 is attached")

	_, err = run(t, "detect", "-b", "sim", "--sim-devices", "1234:0001")
	require.Error(t, err)
	assert.Equal(t, ExitNotFound, exitCode(err))
}

func TestListE2E(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	output, err := run(t, "list", "-b", "sim", "--sim-devices", "2c7c:0127:X,05c6:9008,1234:0001")
	require.NoError(t, err)
	assert.Contains(t, output, "diag      2c7c:0127 serial X at sim-1  Quectel EM05CEFC-LNV (interface 3)")
	assert.Contains(t, output, "edl       05c6:9008 at sim-2  Qualcomm EDL")
	assert.NotContains(t, output, "1234:0001")

	output, err = run(t, "list", "--catalog")
	require.NoError(t, err)
	for _, want := range []string{"EDL mode devices:", "05c6:9008", "DIAG vendors:", "Quectel", "DIAG interfaces:", "3c93:ffff   8  Foxconn (generic)"} {
		assert.Contains(t, output, want)
	}
}

func TestFrameE2E(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		wantErr     bool
		wantContain []string
	}{
		{
			name:        "encode EDL command",
			args:        []string{"frame", "encode", "4b650100"},
			wantContain: []string{"Checksum: 0x0F54", "Frame:    7E 4B 65 01 00 54 0F 7E"},
		},
		{
			name:        "encode with escaping",
			args:        []string{"frame", "encode", "4b", "0x0f"},
			wantContain: []string{"Frame:    7E 4B 0F 7D 5E 55 7E"},
		},
		{
			name:        "decode stream",
			args:        []string{"frame", "decode", "00 7e 4b 65 01 00 54 0f 7e 7e 01 f1 e1 7e"},
			wantContain: []string{"Frame 1: 4B 65 01 00", "Frame 2: 01"},
		},
		{
			name:        "decode bad checksum",
			args:        []string{"frame", "decode", "7e:4b:65:01:00:54:0e:7e"},
			wantErr:     true,
			wantContain: []string{"Frame 1: hdlc: checksum mismatch"},
		},
		{
			name:    "decode without frame",
			args:    []string{"frame", "decode", "4b65"},
			wantErr: true,
		},
		{
			name:    "invalid hex",
			args:    []string{"frame", "encode", "zz"},
			wantErr: true,
		},
		{
			name:    "missing argument",
			args:    []string{"frame", "encode"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := run(t, tt.args...)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err, "output:\n%s", output)
			}
			for _, want := range tt.wantContain {
				assert.Contains(t, output, want)
			}
		})
	}
}

func TestConfigE2E(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	dest := filepath.Join(dir, "edl.toml")
	output, err := run(t, "config", "init", "--format", "toml", "-o", dest)
	require.NoError(t, err)
	assert.Contains(t, output, "Wrote "+dest)
	assert.FileExists(t, dest)

	_, err = run(t, "config", "init", "--format", "toml", "-o", dest)
	assert.Error(t, err, "existing file without --force")

	_, err = run(t, "config", "init", "--format", "ini", "-o", dest)
	assert.Error(t, err)

	cfg := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("backend: sim\ntimeout: 7s\nserial: ABC\n"), 0o644))

	output, err = run(t, "config", "show", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, output, "backend:       sim")
	assert.Contains(t, output, "timeout:       7s")
	assert.Contains(t, output, "serial:        ABC")

	// flags override the file
	output, err = run(t, "config", "show", "--config", cfg, "--backend", "serial")
	require.NoError(t, err)
	assert.Contains(t, output, "backend:       serial")

	_, err = run(t, "config", "show", "--backend", "bluetooth")
	assert.Error(t, err)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitNotFound, exitCode(&diag.SwitchError{Kind: diag.KindDeviceNotFound}))
	assert.Equal(t, 1, exitCode(&diag.SwitchError{Kind: diag.KindAckTimeout}))
	assert.Equal(t, 1, exitCode(errors.New("boom")))
}

func TestParseSimDevice(t *testing.T) {
	info, err := parseSimDevice("0x2c7c:0127:SN1")
	require.NoError(t, err)
	assert.Equal(t, diag.DeviceInfo{VendorID: 0x2c7c, ProductID: 0x0127, Serial: "SN1"}, info)

	for _, bad := range []string{"2c7c", "xyz:0127", "2c7c:12345"} {
		_, err := parseSimDevice(bad)
		assert.Error(t, err, bad)
	}
}
