// Package serialbus implements diag.Bus over the tty devices the kernel
// creates for modem interfaces (qcserial, option, cdc-acm). It needs no
// libusb access and no detaching of kernel drivers.
package serialbus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"github.com/OpenTraceLab/OpenTraceEDL/pkg/diag"
	"github.com/OpenTraceLab/OpenTraceEDL/pkg/usbids"
)

// DefaultBaudRate is set on the port; USB serial functions ignore it.
const DefaultBaudRate = 115200

type ttyPort struct {
	name  string
	iface int // -1 when the interface could not be resolved
}

// Bus groups the USB backed serial ports of each device.
type Bus struct {
	// SysfsRoot is used to map ttys to USB interfaces.
	SysfsRoot string
	BaudRate  int

	log       *slog.Logger
	listPorts func() ([]*enumerator.PortDetails, error)
	openPort  func(name string, mode *serial.Mode) (serial.Port, error)
	ports     map[string][]ttyPort
}

// New creates a Bus using the system serial port enumerator.
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Bus{
		SysfsRoot: DefaultSysfsRoot,
		BaudRate:  DefaultBaudRate,
		log:       logger,
		listPorts: enumerator.GetDetailedPortsList,
		openPort:  serial.Open,
	}
}

// Devices lists one entry per USB device that exposes at least one tty.
func (b *Bus) Devices(ctx context.Context) ([]diag.DeviceInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	details, err := b.listPorts()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	var devs []diag.DeviceInfo
	ports := make(map[string][]ttyPort)
	for _, d := range details {
		if !d.IsUSB {
			continue
		}
		vid, err1 := strconv.ParseUint(d.VID, 16, 16)
		pid, err2 := strconv.ParseUint(d.PID, 16, 16)
		if err1 != nil || err2 != nil {
			b.log.Debug("skipping port with unparsable ids", "port", d.Name, "vid", d.VID, "pid", d.PID)
			continue
		}

		info := diag.DeviceInfo{
			VendorID:  uint16(vid),
			ProductID: uint16(pid),
			Serial:    d.SerialNumber,
			Product:   d.Product,
			Path:      d.Name,
		}
		port := ttyPort{name: d.Name, iface: -1}
		if devPath, iface, err := ttyLocation(b.SysfsRoot, d.Name); err == nil {
			info.Path = devPath
			port.iface = iface
		}
		info.Description = usbids.Describe(info.VendorID, info.ProductID)

		key := deviceKey(info)
		if _, seen := ports[key]; !seen {
			devs = append(devs, info)
		}
		ports[key] = append(ports[key], port)
	}

	for _, list := range ports {
		sort.Slice(list, func(i, j int) bool { return list[i].name < list[j].name })
	}
	b.ports = ports
	return devs, nil
}

// Open looks up the ports of info. No port is opened until Claim.
func (b *Bus) Open(ctx context.Context, info diag.DeviceInfo) (diag.Handle, error) {
	if _, ok := b.ports[deviceKey(info)]; !ok {
		if _, err := b.Devices(ctx); err != nil {
			return nil, err
		}
	}
	ports, ok := b.ports[deviceKey(info)]
	if !ok {
		return nil, fmt.Errorf("device %s has no serial ports", info.Label())
	}
	return &handle{bus: b, info: info, ports: ports}, nil
}

type handle struct {
	bus    *Bus
	info   diag.DeviceInfo
	ports  []ttyPort
	closed bool
}

func (h *handle) Claim(iface int) (diag.Channel, error) {
	name, err := pickPort(h.ports, iface)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", h.info.Label(), err)
	}

	mode := &serial.Mode{
		BaudRate: h.bus.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := h.bus.openPort(name, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		h.bus.log.Debug("could not flush input", "port", name, "error", err)
	}

	h.bus.log.Debug("opened serial port", "port", name, "interface", iface)
	return &channel{port: port, name: name}, nil
}

func (h *handle) Close() error {
	if h.closed {
		return errors.New("device already closed")
	}
	h.closed = true
	return nil
}

// pickPort returns the tty of interface iface. Without sysfs information a
// device with a single port is assumed to expose it on that port.
func pickPort(ports []ttyPort, iface int) (string, error) {
	var unresolved []ttyPort
	for _, p := range ports {
		if p.iface == iface {
			return p.name, nil
		}
		if p.iface < 0 {
			unresolved = append(unresolved, p)
		}
	}
	if len(unresolved) == 1 && len(ports) == 1 {
		return unresolved[0].name, nil
	}
	return "", fmt.Errorf("no serial port for interface %d", iface)
}

type channel struct {
	port serial.Port
	name string

	// set when a stuck write forced the port closed
	abandoned bool
}

// Write returns once the port accepted p. The serial driver has no write
// deadline, so a write still blocked after timeout closes the port, which
// unblocks it, and fails with diag.ErrTimeout.
func (c *channel) Write(p []byte, timeout time.Duration) (int, error) {
	if c.port == nil {
		return 0, fmt.Errorf("%s: port closed", c.name)
	}
	if timeout <= 0 {
		return c.write(c.port, p)
	}

	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	port := c.port
	go func() {
		n, err := c.write(port, p)
		done <- result{n, err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case r := <-done:
		return r.n, r.err
	case <-timer.C:
		_ = port.Close()
		c.port = nil
		c.abandoned = true
		return 0, fmt.Errorf("%s write blocked for %s: %w", c.name, timeout, diag.ErrTimeout)
	}
}

func (c *channel) write(port serial.Port, p []byte) (int, error) {
	n, err := port.Write(p)
	if err != nil {
		return n, fmt.Errorf("%s write failed: %w", c.name, err)
	}
	return n, nil
}

func (c *channel) Read(p []byte, timeout time.Duration) (int, error) {
	if c.port == nil {
		return 0, fmt.Errorf("%s: port closed", c.name)
	}
	if err := c.port.SetReadTimeout(timeout); err != nil {
		return 0, fmt.Errorf("%s: %w", c.name, err)
	}
	n, err := c.port.Read(p)
	if err != nil {
		return n, fmt.Errorf("%s read failed: %w", c.name, err)
	}
	if n == 0 {
		return 0, diag.ErrTimeout
	}
	return n, nil
}

func (c *channel) Release() error {
	if c.abandoned {
		c.abandoned = false
		return nil
	}
	if c.port == nil {
		return errors.New("port already closed")
	}
	err := c.port.Close()
	c.port = nil
	return err
}

func deviceKey(info diag.DeviceInfo) string {
	return fmt.Sprintf("%04x:%04x/%s/%s", info.VendorID, info.ProductID, info.Serial, info.Path)
}
