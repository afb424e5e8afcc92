package serialbus

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"github.com/OpenTraceLab/OpenTraceEDL/pkg/diag"
)

func TestParseInterfaceName(t *testing.T) {
	tests := []struct {
		name  string
		dev   string
		iface int
		ok    bool
	}{
		{"1-2:1.3", "1-2", 3, true},
		{"3-1.4.2:1.0", "3-1.4.2", 0, true},
		{"1-2:2.12", "1-2", 12, true},
		{"1-2", "", -1, false},
		{"usb1", "", -1, false},
		{"1-2:1", "", -1, false},
		{":1.0", "", -1, false},
		{"1-2:1.x", "", -1, false},
	}
	for _, tt := range tests {
		dev, iface, ok := parseInterfaceName(tt.name)
		if dev != tt.dev || iface != tt.iface || ok != tt.ok {
			t.Errorf("parseInterfaceName(%q) = %q, %d, %v; want %q, %d, %v",
				tt.name, dev, iface, ok, tt.dev, tt.iface, tt.ok)
		}
	}
}

// makeTTY builds /sys/class/tty/<tty>/device pointing at target below the
// fake device tree. ifaceDir, when set, gets a bInterfaceNumber file.
func makeTTY(t *testing.T, root, tty, target, ifaceDir, ifaceNum string) {
	t.Helper()
	devices := filepath.Join(root, "devices", "pci0000:00", "usb1")
	if err := os.MkdirAll(filepath.Join(devices, target), 0o755); err != nil {
		t.Fatal(err)
	}
	if ifaceDir != "" {
		if err := os.WriteFile(filepath.Join(devices, ifaceDir, "bInterfaceNumber"), []byte(ifaceNum+"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	classDir := filepath.Join(root, "class", "tty", tty)
	if err := os.MkdirAll(classDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(devices, target), filepath.Join(classDir, "device")); err != nil {
		t.Fatal(err)
	}
}

func TestTTYLocation(t *testing.T) {
	root := t.TempDir()
	makeTTY(t, root, "ttyUSB2", "1-2/1-2:1.3/ttyUSB2", "1-2/1-2:1.3", "03")
	makeTTY(t, root, "ttyACM0", "1-4/1-4:1.0", "1-4/1-4:1.0", "00")
	makeTTY(t, root, "ttyS0", "serial8250/tty/ttyS0", "", "")

	tests := []struct {
		port  string
		dev   string
		iface int
		fails bool
	}{
		{port: "/dev/ttyUSB2", dev: "1-2", iface: 3},
		{port: "/dev/ttyACM0", dev: "1-4", iface: 0},
		{port: "/dev/ttyS0", fails: true},
		{port: "/dev/ttyUSB9", fails: true},
	}
	for _, tt := range tests {
		dev, iface, err := ttyLocation(root, tt.port)
		if tt.fails {
			if err == nil {
				t.Errorf("ttyLocation(%s) succeeded: %s %d", tt.port, dev, iface)
			}
			continue
		}
		if err != nil {
			t.Errorf("ttyLocation(%s): %v", tt.port, err)
			continue
		}
		if dev != tt.dev || iface != tt.iface {
			t.Errorf("ttyLocation(%s) = %s, %d; want %s, %d", tt.port, dev, iface, tt.dev, tt.iface)
		}
	}
}

type fakePort struct {
	serial.Port
	reply   []byte
	written []byte
	timeout time.Duration
	closed  bool

	// when set, Write blocks until the port is closed
	stuck chan struct{}
}

func (p *fakePort) Write(b []byte) (int, error) {
	if p.stuck != nil {
		<-p.stuck
		return 0, errors.New("port closed")
	}
	p.written = append(p.written, b...)
	return len(b), nil
}

func (p *fakePort) Read(b []byte) (int, error) {
	n := copy(b, p.reply)
	p.reply = p.reply[n:]
	return n, nil
}

func (p *fakePort) SetReadTimeout(t time.Duration) error {
	p.timeout = t
	return nil
}

func (p *fakePort) ResetInputBuffer() error { return nil }

func (p *fakePort) Close() error {
	p.closed = true
	if p.stuck != nil {
		close(p.stuck)
	}
	return nil
}

func newTestBus(t *testing.T, details []*enumerator.PortDetails, port *fakePort) (*Bus, *[]string) {
	t.Helper()
	root := t.TempDir()
	makeTTY(t, root, "ttyUSB0", "1-2/1-2:1.0/ttyUSB0", "1-2/1-2:1.0", "00")
	makeTTY(t, root, "ttyUSB3", "1-2/1-2:1.3/ttyUSB3", "1-2/1-2:1.3", "03")

	var opened []string
	bus := New(nil)
	bus.SysfsRoot = root
	bus.listPorts = func() ([]*enumerator.PortDetails, error) { return details, nil }
	bus.openPort = func(name string, mode *serial.Mode) (serial.Port, error) {
		if mode.BaudRate != DefaultBaudRate {
			t.Errorf("baud rate %d", mode.BaudRate)
		}
		opened = append(opened, name)
		return port, nil
	}
	return bus, &opened
}

var em05Ports = []*enumerator.PortDetails{
	{Name: "/dev/ttyS0"},
	{Name: "/dev/ttyUSB3", IsUSB: true, VID: "2c7c", PID: "0127", SerialNumber: "EM05-1", Product: "EM05-G"},
	{Name: "/dev/ttyUSB0", IsUSB: true, VID: "2C7C", PID: "0127", SerialNumber: "EM05-1", Product: "EM05-G"},
	{Name: "/dev/ttyUSB7", IsUSB: true, VID: "zz", PID: "0127"},
}

func TestDevicesGroupsPorts(t *testing.T) {
	bus, _ := newTestBus(t, em05Ports, &fakePort{})

	devs, err := bus.Devices(context.Background())
	if err != nil {
		t.Fatalf("Devices: %v", err)
	}
	if len(devs) != 1 {
		t.Fatalf("got %d devices, want 1: %+v", len(devs), devs)
	}
	dev := devs[0]
	if dev.VendorID != 0x2c7c || dev.ProductID != 0x0127 || dev.Serial != "EM05-1" || dev.Path != "1-2" {
		t.Errorf("device = %+v", dev)
	}
	if dev.Description != "Quectel EM05CEFC-LNV" {
		t.Errorf("Description = %q", dev.Description)
	}
}

func TestSwitchOverSerial(t *testing.T) {
	ack := []byte{0x7E, 0x4B, 0x65, 0x01, 0x00, 0x54, 0x0F, 0x7E}
	port := &fakePort{reply: ack}
	bus, opened := newTestBus(t, em05Ports, port)

	res, err := diag.New(bus, diag.WithTimeout(time.Second)).SwitchToEDL(context.Background(), "EM05-1")
	if err != nil {
		t.Fatalf("SwitchToEDL: %v", err)
	}
	if res.Interface != 3 {
		t.Errorf("Interface = %d", res.Interface)
	}
	if len(*opened) != 1 || (*opened)[0] != "/dev/ttyUSB3" {
		t.Errorf("opened %v, want /dev/ttyUSB3", *opened)
	}
	if !bytes.Equal(port.written, ack) {
		t.Errorf("wrote % X", port.written)
	}
	if !port.closed {
		t.Errorf("port left open")
	}
}

func TestReadTimeout(t *testing.T) {
	port := &fakePort{}
	ch := &channel{port: port, name: "/dev/ttyUSB3"}

	_, err := ch.Read(make([]byte, 16), 250*time.Millisecond)
	if !errors.Is(err, diag.ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if port.timeout != 250*time.Millisecond {
		t.Errorf("read timeout = %s", port.timeout)
	}

	if err := ch.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := ch.Release(); err == nil {
		t.Fatalf("second Release succeeded")
	}
}

func TestWriteTimeout(t *testing.T) {
	port := &fakePort{stuck: make(chan struct{})}
	ch := &channel{port: port, name: "/dev/ttyUSB3"}

	start := time.Now()
	n, err := ch.Write([]byte{0x7E, 0x4B, 0x7E}, 50*time.Millisecond)
	if !errors.Is(err, diag.ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if n != 0 {
		t.Errorf("n = %d, want 0", n)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("write took %s", elapsed)
	}
	if !port.closed {
		t.Errorf("stuck port not closed")
	}

	if _, err := ch.Read(make([]byte, 4), time.Millisecond); err == nil {
		t.Errorf("Read after abandoned write succeeded")
	}
	if err := ch.Release(); err != nil {
		t.Errorf("Release after abandoned write: %v", err)
	}
}

func TestWriteWithinTimeout(t *testing.T) {
	port := &fakePort{}
	ch := &channel{port: port, name: "/dev/ttyUSB3"}

	n, err := ch.Write([]byte{0x7E, 0x4B, 0x7E}, time.Second)
	if err != nil || n != 3 {
		t.Fatalf("Write = %d, %v", n, err)
	}
	if !bytes.Equal(port.written, []byte{0x7E, 0x4B, 0x7E}) {
		t.Errorf("written = % X", port.written)
	}
	if port.closed {
		t.Errorf("port closed after a successful write")
	}
}

func TestPickPort(t *testing.T) {
	ports := []ttyPort{{"/dev/ttyUSB0", 0}, {"/dev/ttyUSB3", 3}}
	if name, err := pickPort(ports, 3); err != nil || name != "/dev/ttyUSB3" {
		t.Errorf("pickPort(3) = %q, %v", name, err)
	}
	if _, err := pickPort(ports, 2); err == nil {
		t.Errorf("pickPort(2) succeeded")
	}

	single := []ttyPort{{"COM7", -1}}
	if name, err := pickPort(single, 3); err != nil || name != "COM7" {
		t.Errorf("single unresolved port: %q, %v", name, err)
	}
}
