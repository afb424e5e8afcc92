package diag

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is returned by Channel reads and writes whose bound expired
// before any data moved.
var ErrTimeout = errors.New("diag: transfer timed out")

// DeviceInfo describes one attached USB device as seen by a Bus.
type DeviceInfo struct {
	VendorID  uint16
	ProductID uint16
	Serial    string
	Product   string // iProduct string, if the backend read it
	Path      string // backend specific location (bus/address, tty path)

	Description string
}

// Label returns a short human readable identification of the device.
func (d DeviceInfo) Label() string {
	label := fmt.Sprintf("%04x:%04x", d.VendorID, d.ProductID)
	if d.Serial != "" {
		label += " serial " + d.Serial
	}
	if d.Path != "" {
		label += " at " + d.Path
	}
	return label
}

// Bus enumerates attached devices and opens them.
type Bus interface {
	Devices(ctx context.Context) ([]DeviceInfo, error)
	Open(ctx context.Context, dev DeviceInfo) (Handle, error)
}

// Handle is an opened device.
type Handle interface {
	// Claim takes the interface and locates its bulk endpoints.
	Claim(iface int) (Channel, error)
	Close() error
}

// Channel is a claimed interface with one bulk OUT and one bulk IN endpoint.
type Channel interface {
	Write(p []byte, timeout time.Duration) (int, error)
	Read(p []byte, timeout time.Duration) (int, error)
	Release() error
}

// Tracer receives every frame written to or read from the device.
type Tracer interface {
	Trace(out bool, data []byte)
}
