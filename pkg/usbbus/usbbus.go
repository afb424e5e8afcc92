// Package usbbus implements diag.Bus on top of libusb through gousb.
package usbbus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/gousb"
	"github.com/google/gousb/usbid"

	"github.com/OpenTraceLab/OpenTraceEDL/pkg/diag"
	"github.com/OpenTraceLab/OpenTraceEDL/pkg/usbids"
)

// Bus enumerates and opens devices through a libusb context.
type Bus struct {
	usb *gousb.Context
	log *slog.Logger
}

// New creates a Bus with its own libusb context. Call Close when done.
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Bus{usb: gousb.NewContext(), log: logger}
}

// Close releases the libusb context.
func (b *Bus) Close() error {
	if b.usb == nil {
		return nil
	}
	err := b.usb.Close()
	b.usb = nil
	return err
}

// Devices lists every attached device. Serial and product strings are only
// read from devices of DIAG vendors, since that needs the device opened; a
// DIAG device that cannot be opened is still listed without them.
func (b *Bus) Devices(ctx context.Context) ([]diag.DeviceInfo, error) {
	var results []diag.DeviceInfo

	devs, err := b.usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		results = append(results, describe(desc))
		return usbids.IsDiagVendor(uint16(desc.Vendor))
	})
	opened := make([]diag.DeviceInfo, 0, len(devs))
	for _, dev := range devs {
		info := describe(dev.Desc)
		info.Serial, _ = dev.SerialNumber()
		info.Product, _ = dev.Product()
		opened = append(opened, info)
		dev.Close()
	}
	mergeStrings(results, opened)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err != nil {
		// Enumeration itself worked; only opening some DIAG devices failed.
		if len(results) > 0 {
			b.log.Debug("some devices could not be opened", "error", err)
			return results, nil
		}
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	return results, nil
}

// mergeStrings copies the string descriptors read from opened devices into
// the matching entries of listed.
func mergeStrings(listed, opened []diag.DeviceInfo) {
	for _, o := range opened {
		for i := range listed {
			l := &listed[i]
			if l.Path == o.Path && l.VendorID == o.VendorID && l.ProductID == o.ProductID {
				l.Serial, l.Product = o.Serial, o.Product
				break
			}
		}
	}
}

// Open opens the device at info.Path, checking that it still carries the
// same identity and serial number.
func (b *Bus) Open(ctx context.Context, info diag.DeviceInfo) (diag.Handle, error) {
	devs, err := b.usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if ctx.Err() != nil {
			return false
		}
		return uint16(desc.Vendor) == info.VendorID &&
			uint16(desc.Product) == info.ProductID &&
			(info.Path == "" || devicePath(desc) == info.Path)
	})
	if len(devs) == 0 {
		if err != nil {
			return nil, fmt.Errorf("USB error: %w", err)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("device %s is gone", info.Label())
	}

	var picked *gousb.Device
	for _, dev := range devs {
		if picked == nil && info.Serial != "" {
			if serial, _ := dev.SerialNumber(); serial != info.Serial {
				dev.Close()
				continue
			}
		}
		if picked == nil {
			picked = dev
			continue
		}
		dev.Close()
	}
	if picked == nil {
		return nil, fmt.Errorf("device %s is gone", info.Label())
	}

	// Fails on platforms without kernel driver detach; claiming may still work.
	if err := picked.SetAutoDetach(true); err != nil {
		b.log.Debug("auto detach unavailable", "device", info.Label(), "error", err)
	}

	b.log.Debug("opened device", "device", info.Label())
	return &handle{dev: picked, info: info, log: b.log}, nil
}

type handle struct {
	dev  *gousb.Device
	info diag.DeviceInfo
	log  *slog.Logger
}

func (h *handle) Claim(iface int) (diag.Channel, error) {
	cfgNum, err := h.dev.ActiveConfigNum()
	if err != nil {
		return nil, fmt.Errorf("failed to get active config: %w", err)
	}
	cfg, err := h.dev.Config(cfgNum)
	if err != nil {
		return nil, fmt.Errorf("failed to get config %d: %w", cfgNum, err)
	}

	intf, err := cfg.Interface(iface, 0)
	if err != nil {
		cfg.Close()
		return nil, fmt.Errorf("failed to claim interface %d: %w", iface, err)
	}

	outNum, inNum, err := bulkEndpoints(intf.Setting)
	if err != nil {
		intf.Close()
		cfg.Close()
		return nil, err
	}

	epOut, err := intf.OutEndpoint(outNum)
	if err != nil {
		intf.Close()
		cfg.Close()
		return nil, fmt.Errorf("failed to open OUT endpoint: %w", err)
	}
	epIn, err := intf.InEndpoint(inNum)
	if err != nil {
		intf.Close()
		cfg.Close()
		return nil, fmt.Errorf("failed to open IN endpoint: %w", err)
	}

	h.log.Debug("claimed interface", "interface", iface, "out", outNum, "in", inNum)
	return &channel{cfg: cfg, intf: intf, epOut: epOut, epIn: epIn}, nil
}

func (h *handle) Close() error {
	if h.dev == nil {
		return errors.New("device already closed")
	}
	err := h.dev.Close()
	h.dev = nil
	return err
}

type channel struct {
	cfg   *gousb.Config
	intf  *gousb.Interface
	epOut *gousb.OutEndpoint
	epIn  *gousb.InEndpoint
}

func (c *channel) Write(p []byte, timeout time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	n, err := c.epOut.WriteContext(ctx, p)
	if err != nil {
		return n, transferError("write", err)
	}
	return n, nil
}

func (c *channel) Read(p []byte, timeout time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	n, err := c.epIn.ReadContext(ctx, p)
	if err != nil {
		return n, transferError("read", err)
	}
	return n, nil
}

func (c *channel) Release() error {
	if c.intf == nil {
		return errors.New("interface already released")
	}
	c.intf.Close()
	c.intf = nil
	return c.cfg.Close()
}

// bulkEndpoints returns the numbers of the first bulk OUT and bulk IN
// endpoints of an interface setting.
func bulkEndpoints(setting gousb.InterfaceSetting) (out, in int, err error) {
	out, in = -1, -1
	for _, ep := range setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		switch {
		case ep.Direction == gousb.EndpointDirectionOut && (out < 0 || ep.Number < out):
			out = ep.Number
		case ep.Direction == gousb.EndpointDirectionIn && (in < 0 || ep.Number < in):
			in = ep.Number
		}
	}
	if out < 0 {
		return 0, 0, fmt.Errorf("interface %d: bulk OUT endpoint not found", setting.Number)
	}
	if in < 0 {
		return 0, 0, fmt.Errorf("interface %d: bulk IN endpoint not found", setting.Number)
	}
	return out, in, nil
}

// transferError maps libusb timeouts and cancellations onto diag.ErrTimeout.
func transferError(op string, err error) error {
	if errors.Is(err, gousb.TransferTimedOut) ||
		errors.Is(err, gousb.TransferCancelled) ||
		errors.Is(err, gousb.ErrorTimeout) ||
		errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("USB %s: %w", op, diag.ErrTimeout)
	}
	return fmt.Errorf("USB %s failed: %w", op, err)
}

func describe(desc *gousb.DeviceDesc) diag.DeviceInfo {
	vid, pid := uint16(desc.Vendor), uint16(desc.Product)
	info := diag.DeviceInfo{
		VendorID:  vid,
		ProductID: pid,
		Path:      devicePath(desc),
	}
	if usbids.Classify(vid, pid) != usbids.ClassUnknown {
		info.Description = usbids.Describe(vid, pid)
	} else {
		info.Description = usbid.Describe(desc)
	}
	return info
}

// devicePath renders the bus and port chain the way sysfs names devices,
// for example "1-2.4".
func devicePath(desc *gousb.DeviceDesc) string {
	if len(desc.Path) == 0 {
		return fmt.Sprintf("%d-%d", desc.Bus, desc.Address)
	}
	ports := make([]string, len(desc.Path))
	for i, p := range desc.Path {
		ports[i] = strconv.Itoa(p)
	}
	return fmt.Sprintf("%d-%s", desc.Bus, strings.Join(ports, "."))
}
