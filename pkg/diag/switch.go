// Package diag drives the DIAG-to-EDL mode switch of Qualcomm based modems.
//
// A Switcher finds a DIAG capable device through a Bus, claims the DIAG
// interface chosen by the usbids catalog, sends the HDLC framed EDL command
// and checks the acknowledgment. Each call performs a single round trip; any
// retry policy belongs to the caller. USB access goes through the Bus,
// Handle and Channel interfaces so the workflow runs against SimBus in tests.
package diag

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/OpenTraceLab/OpenTraceEDL/pkg/hdlc"
	"github.com/OpenTraceLab/OpenTraceEDL/pkg/usbids"
)

// Result describes a successful switch.
type Result struct {
	Device    DeviceInfo
	Interface int

	// AlreadyInEDL is set when the only matching device was already in
	// EDL mode; nothing was sent to it.
	AlreadyInEDL bool

	// Response is the decoded acknowledgment payload.
	Response []byte
}

// Candidate is an enumerated device with its catalog classification.
type Candidate struct {
	DeviceInfo
	Class     usbids.Class
	Interface uint8
}

// Switcher runs detection and switch attempts over a Bus.
// It holds no device state between calls.
type Switcher struct {
	bus    Bus
	config Config
}

// New creates a Switcher for bus.
func New(bus Bus, opts ...Option) *Switcher {
	if bus == nil {
		panic("diag: bus cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Switcher{bus: bus, config: cfg}
}

// IsDeviceInDiagMode reports whether any attached device belongs to a DIAG
// vendor and, when serial is not empty, carries exactly that serial number.
// Devices are only enumerated, never opened.
func (s *Switcher) IsDeviceInDiagMode(ctx context.Context, serial string) (bool, error) {
	devs, err := s.bus.Devices(ctx)
	if err != nil {
		return false, fmt.Errorf("enumerate devices: %w", err)
	}

	for _, dev := range devs {
		if usbids.IsDiagVendor(dev.VendorID) && serialMatches(dev, serial) {
			s.config.Logger.Debug("DIAG device present", "device", dev.Label())
			return true, nil
		}
	}
	return false, nil
}

// Candidates classifies every attached device against the catalog.
// serial, when not empty, restricts the list to that serial number.
func (s *Switcher) Candidates(ctx context.Context, serial string) ([]Candidate, error) {
	devs, err := s.bus.Devices(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate devices: %w", err)
	}

	out := make([]Candidate, 0, len(devs))
	for _, dev := range devs {
		if !serialMatches(dev, serial) {
			continue
		}
		c := Candidate{
			DeviceInfo: dev,
			Class:      usbids.Classify(dev.VendorID, dev.ProductID),
		}
		if c.Class == usbids.ClassDiag {
			c.Interface = usbids.DiagInterfaceNumber(dev.VendorID, dev.ProductID)
		}
		out = append(out, c)
	}
	return out, nil
}

// SwitchToEDL asks the first matching DIAG device to reboot into EDL mode
// and waits for its acknowledgment. serial, when not empty, restricts the
// search to that serial number. On failure the error is a *SwitchError.
//
// The claimed interface and the device handle are released before
// SwitchToEDL returns, whatever the outcome. Re-enumeration of the device
// in EDL mode is not awaited; see WaitForEDL.
func (s *Switcher) SwitchToEDL(ctx context.Context, serial string) (*Result, error) {
	log := s.config.Logger
	s.enter(StateSearching)

	devs, err := s.bus.Devices(ctx)
	if err != nil {
		return nil, s.fail(&SwitchError{Kind: KindEnumerationFailed, Err: err})
	}

	dev, inEDL, ok := selectDevice(devs, serial)
	if !ok {
		if serial != "" {
			log.Error("No DIAG device found", "serial", serial)
		} else {
			log.Error("No DIAG device found")
		}
		return nil, s.fail(&SwitchError{Kind: KindDeviceNotFound})
	}
	if inEDL {
		log.Info("Device already in EDL mode", "device", dev.Label())
		return &Result{Device: dev, AlreadyInEDL: true}, nil
	}

	iface := int(usbids.DiagInterfaceNumber(dev.VendorID, dev.ProductID))
	log.Info("Found DIAG device", "device", dev.Label(), "model", usbids.Describe(dev.VendorID, dev.ProductID), "interface", iface)

	return s.exchange(ctx, dev, iface)
}

// exchange performs the single command/acknowledgment round trip.
func (s *Switcher) exchange(ctx context.Context, dev DeviceInfo, iface int) (*Result, error) {
	log := s.config.Logger
	failure := func(kind Kind, err error) error {
		return s.fail(&SwitchError{Kind: kind, Device: dev, Interface: iface, Err: err})
	}

	handle, err := s.bus.Open(ctx, dev)
	if err != nil {
		return nil, failure(KindDeviceOpenFailed, err)
	}
	defer func() {
		if err := handle.Close(); err != nil {
			log.Warn("Closing device failed", "device", dev.Label(), "error", err)
		}
	}()

	ch, err := handle.Claim(iface)
	if err != nil {
		return nil, failure(KindDeviceOpenFailed, fmt.Errorf("claim interface %d: %w", iface, err))
	}
	defer func() {
		if err := ch.Release(); err != nil {
			log.Warn("Releasing interface failed", "interface", iface, "error", err)
		}
	}()
	s.enter(StateOpened)

	buf := make([]byte, max(s.config.MaxFrameSize, 0))
	n, err := hdlc.EncodeTo(buf, s.config.Command)
	if err != nil {
		return nil, failure(KindFrameEncodeOverflow,
			fmt.Errorf("%d byte command needs %d bytes, buffer has %d: %w",
				len(s.config.Command), hdlc.MaxEncodedLen(len(s.config.Command)), len(buf), err))
	}
	frame := buf[:n]

	s.trace(true, frame)
	written, err := ch.Write(frame, s.config.WriteTimeout)
	if err != nil {
		return nil, failure(KindTransferFailed, fmt.Errorf("write command: %w", err))
	}
	if written != len(frame) {
		return nil, failure(KindTransferFailed, fmt.Errorf("short write: %d of %d bytes", written, len(frame)))
	}
	s.enter(StateCommandSent)
	log.Debug("EDL command sent", "bytes", written)

	s.enter(StateAwaitingAck)
	raw, err := s.readFrame(ctx, ch)
	if err != nil {
		switch {
		case errors.Is(err, hdlc.ErrFraming):
			return nil, failure(KindAckDecodeFailed, err)
		case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
			return nil, failure(KindAckTimeout, fmt.Errorf("no response within %s: %w", s.config.Timeout, err))
		case errors.Is(err, context.Canceled):
			return nil, failure(KindCanceled, err)
		default:
			return nil, failure(KindTransferFailed, fmt.Errorf("read response: %w", err))
		}
	}
	s.trace(false, raw)

	payload, err := hdlc.Decode(raw)
	if err != nil {
		return nil, failure(KindAckDecodeFailed, err)
	}
	if !bytes.Equal(payload, s.config.Ack) {
		se := &SwitchError{Kind: KindAckMismatch, Device: dev, Interface: iface, Response: payload}
		return nil, s.fail(se)
	}

	s.enter(StateAcknowledged)
	log.Info("EDL switch acknowledged; device will re-enumerate", "device", dev.Label())

	return &Result{Device: dev, Interface: iface, Response: payload}, nil
}

// readFrame collects bulk IN data until one complete frame is buffered or
// the acknowledgment timeout expires. Everything received is kept, so a
// reply that never forms a frame is reported as a framing error.
func (s *Switcher) readFrame(ctx context.Context, ch Channel) ([]byte, error) {
	deadline := time.Now().Add(s.config.Timeout)
	chunk := make([]byte, s.config.ReadSize)
	var received []byte

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, incompleteFrame(received, ErrTimeout)
		}

		n, err := ch.Read(chunk, remaining)
		if n > 0 {
			received = append(received, chunk[:n]...)
			if frame, _, ok := hdlc.NextFrame(received); ok {
				return frame, nil
			}
		}
		if err != nil {
			if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				return nil, incompleteFrame(received, err)
			}
			return nil, err
		}
	}
}

// incompleteFrame classifies a read that ended before a frame completed.
// Nothing received is a timeout; anything else wraps hdlc.ErrFraming.
func incompleteFrame(received []byte, timeout error) error {
	if len(received) == 0 {
		return timeout
	}
	// Data closed by a flag with no flag before it: let Decode name the problem.
	if bytes.IndexByte(received, hdlc.Flag) == len(received)-1 {
		if _, err := hdlc.Decode(received); err != nil {
			return fmt.Errorf("%d byte response: %w", len(received), err)
		}
	}
	return fmt.Errorf("%d byte response without a complete frame: %w", len(received), hdlc.ErrFraming)
}

func (s *Switcher) enter(state State) {
	s.config.Logger.Debug("switch state", "state", state.String())
	if s.config.StateHook != nil {
		s.config.StateHook(state)
	}
}

func (s *Switcher) fail(err *SwitchError) error {
	s.enter(StateFailed)
	return err
}

func (s *Switcher) trace(out bool, data []byte) {
	if s.config.Tracer != nil {
		s.config.Tracer.Trace(out, data)
	}
}

// selectDevice picks the first DIAG vendor device matching serial. Devices
// already in EDL are passed over; if nothing else matches, the first of them
// is returned with inEDL set.
func selectDevice(devs []DeviceInfo, serial string) (dev DeviceInfo, inEDL, ok bool) {
	var edl []DeviceInfo
	for _, d := range devs {
		if !usbids.IsDiagVendor(d.VendorID) || !serialMatches(d, serial) {
			continue
		}
		if usbids.IsEDLDevice(d.VendorID, d.ProductID) {
			edl = append(edl, d)
			continue
		}
		return d, false, true
	}
	if len(edl) > 0 {
		return edl[0], true, true
	}
	return DeviceInfo{}, false, false
}

func serialMatches(dev DeviceInfo, serial string) bool {
	return serial == "" || dev.Serial == serial
}

// edlSerialMatches also accepts the "_SN:<serial>" tag that EDL mode
// devices carry in their product string instead of a serial descriptor.
func edlSerialMatches(dev DeviceInfo, serial string) bool {
	if serialMatches(dev, serial) {
		return true
	}
	return strings.Contains(strings.ToUpper(dev.Product), "_SN:"+strings.ToUpper(serial))
}
