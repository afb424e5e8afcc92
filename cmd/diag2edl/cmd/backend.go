package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/OpenTraceLab/OpenTraceEDL/internal/config"
	"github.com/OpenTraceLab/OpenTraceEDL/pkg/diag"
	"github.com/OpenTraceLab/OpenTraceEDL/pkg/serialbus"
	"github.com/OpenTraceLab/OpenTraceEDL/pkg/usbbus"
	"github.com/OpenTraceLab/OpenTraceEDL/pkg/usbids"
)

var (
	simDevices []string // For simulator: vid:pid[:serial] of attached devices
	simMode    string
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringSliceVar(&simDevices, "sim-devices", []string{"2c7c:0127:SIM0001"},
		"simulator: attached devices as vid:pid[:serial] (hex)")
	pf.StringVar(&simMode, "sim-mode", "echo",
		"simulator: device behaviour (echo, silent, corrupt, mismatch, busy)")
}

// openBus creates the backend selected by the settings. The returned
// function releases it.
func openBus() (diag.Bus, func(), error) {
	switch settings.Backend {
	case config.BackendUSB:
		bus := usbbus.New(logger)
		return bus, func() {
			if err := bus.Close(); err != nil {
				logger.Debug("closing USB context failed", "error", err)
			}
		}, nil
	case config.BackendSerial:
		return serialbus.New(logger), func() {}, nil
	case config.BackendSim:
		bus, err := newSimBus(simDevices, simMode)
		if err != nil {
			return nil, nil, err
		}
		return bus, func() {}, nil
	default:
		return nil, nil, config.ValidateBackend(settings.Backend)
	}
}

// newSimBus attaches one simulated device per entry. DIAG mode devices that
// answer re-enumerate as a Qualcomm 9008 EDL device.
func newSimBus(entries []string, mode string) (*diag.SimBus, error) {
	bus := diag.NewSimBus()
	for i, entry := range entries {
		info, err := parseSimDevice(entry)
		if err != nil {
			return nil, err
		}
		info.Path = fmt.Sprintf("sim-%d", i+1)
		info.Description = usbids.Describe(info.VendorID, info.ProductID)

		dev := bus.Add(info)
		if err := applySimMode(dev, mode); err != nil {
			return nil, err
		}
		if !usbids.IsEDLDevice(info.VendorID, info.ProductID) {
			dev.BecomesEDL = &diag.DeviceInfo{
				VendorID:    0x05c6,
				ProductID:   0x9008,
				Product:     "QUSB__BULK _SN:" + info.Serial,
				Path:        info.Path,
				Description: usbids.Describe(0x05c6, 0x9008),
			}
		}
	}
	return bus, nil
}

func parseSimDevice(entry string) (diag.DeviceInfo, error) {
	parts := strings.SplitN(entry, ":", 3)
	if len(parts) < 2 {
		return diag.DeviceInfo{}, fmt.Errorf("invalid simulated device %q (want vid:pid[:serial])", entry)
	}
	vid, err := strconv.ParseUint(strings.TrimPrefix(parts[0], "0x"), 16, 16)
	if err != nil {
		return diag.DeviceInfo{}, fmt.Errorf("invalid vendor id in %q: %w", entry, err)
	}
	pid, err := strconv.ParseUint(strings.TrimPrefix(parts[1], "0x"), 16, 16)
	if err != nil {
		return diag.DeviceInfo{}, fmt.Errorf("invalid product id in %q: %w", entry, err)
	}
	info := diag.DeviceInfo{VendorID: uint16(vid), ProductID: uint16(pid)}
	if len(parts) == 3 {
		info.Serial = parts[2]
	}
	return info, nil
}

func applySimMode(dev *diag.SimDevice, mode string) error {
	switch mode {
	case "", "echo":
		dev.Respond = diag.EchoResponder
	case "silent":
		dev.Respond = diag.SilentResponder
	case "corrupt":
		dev.Respond = diag.CorruptResponder
	case "mismatch":
		dev.Respond = diag.FixedResponder([]byte{0x13, 0x4B, 0x65, 0x01, 0x00})
	case "busy":
		dev.OpenErr = errors.New("LIBUSB_ERROR_BUSY")
	default:
		return fmt.Errorf("unknown simulator mode %q", mode)
	}
	return nil
}
