package diag

import (
	"context"
	"fmt"
	"time"

	"github.com/OpenTraceLab/OpenTraceEDL/pkg/hdlc"
)

// SimResponder produces the bytes a simulated device returns after frame
// was written to interface iface. A nil reply makes the next read time out;
// an error is returned by the next read.
type SimResponder func(iface int, frame []byte) ([]byte, error)

// EchoResponder acknowledges any well formed frame by echoing its payload.
// Malformed frames get no answer.
func EchoResponder(_ int, frame []byte) ([]byte, error) {
	payload, err := hdlc.Decode(frame)
	if err != nil {
		return nil, nil
	}
	return hdlc.Encode(payload), nil
}

// SilentResponder never answers.
func SilentResponder(int, []byte) ([]byte, error) {
	return nil, nil
}

// CorruptResponder answers with an echo whose checksum is damaged.
func CorruptResponder(iface int, frame []byte) ([]byte, error) {
	reply, err := EchoResponder(iface, frame)
	if len(reply) > 2 {
		reply[len(reply)-2] ^= 0x01
	}
	return reply, err
}

// FixedResponder always answers with a valid frame carrying payload.
func FixedResponder(payload []byte) SimResponder {
	frame := hdlc.Encode(payload)
	return func(int, []byte) ([]byte, error) {
		return append([]byte(nil), frame...), nil
	}
}

// SimDevice is one device attached to a SimBus.
type SimDevice struct {
	Info DeviceInfo

	// Interfaces lists the interfaces Claim accepts; nil accepts any.
	Interfaces []int

	// Respond defaults to EchoResponder.
	Respond SimResponder

	// Chunk, when positive, splits replies into reads of at most Chunk bytes.
	Chunk int

	OpenErr    error
	ClaimErr   error
	WriteErr   error
	ReleaseErr error
	CloseErr   error

	// BecomesEDL replaces Info once the device has answered a command and
	// its handle is closed, mimicking re-enumeration.
	BecomesEDL *DeviceInfo

	answered bool
}

// SimOp counts what a SimBus was asked to do, for inspection in tests.
type SimOp struct {
	Enumerations int
	Opens        int
	Closes       int
	Claims       int
	Releases     int
	Claimed      []int
	Writes       [][]byte
}

// SimBus is an in-memory Bus. It is not safe for concurrent use.
type SimBus struct {
	Attached     []*SimDevice
	EnumerateErr error

	ops SimOp
}

// NewSimBus returns a bus with one SimDevice per info.
func NewSimBus(infos ...DeviceInfo) *SimBus {
	b := &SimBus{}
	for _, info := range infos {
		b.Add(info)
	}
	return b
}

// Add attaches a device and returns it for further configuration.
func (b *SimBus) Add(info DeviceInfo) *SimDevice {
	dev := &SimDevice{Info: info}
	b.Attached = append(b.Attached, dev)
	return dev
}

// Ops returns a copy of the recorded operations.
func (b *SimBus) Ops() SimOp {
	ops := b.ops
	ops.Claimed = append([]int(nil), b.ops.Claimed...)
	ops.Writes = make([][]byte, len(b.ops.Writes))
	for i, w := range b.ops.Writes {
		ops.Writes[i] = append([]byte(nil), w...)
	}
	return ops
}

// Balanced reports whether every open and claim was matched by a release.
func (b *SimBus) Balanced() bool {
	return b.ops.Opens == b.ops.Closes && b.ops.Claims == b.ops.Releases
}

func (b *SimBus) Devices(ctx context.Context) ([]DeviceInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.ops.Enumerations++
	if b.EnumerateErr != nil {
		return nil, b.EnumerateErr
	}
	out := make([]DeviceInfo, 0, len(b.Attached))
	for _, d := range b.Attached {
		out = append(out, d.Info)
	}
	return out, nil
}

func (b *SimBus) Open(ctx context.Context, info DeviceInfo) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, d := range b.Attached {
		if d.Info != info {
			continue
		}
		if d.OpenErr != nil {
			return nil, d.OpenErr
		}
		b.ops.Opens++
		return &simHandle{bus: b, dev: d}, nil
	}
	return nil, fmt.Errorf("sim: no device %s", info.Label())
}

type simHandle struct {
	bus    *SimBus
	dev    *SimDevice
	closed bool
}

func (h *simHandle) Claim(iface int) (Channel, error) {
	if h.dev.ClaimErr != nil {
		return nil, h.dev.ClaimErr
	}
	if h.dev.Interfaces != nil && !containsInt(h.dev.Interfaces, iface) {
		return nil, fmt.Errorf("sim: interface %d not present", iface)
	}
	h.bus.ops.Claims++
	h.bus.ops.Claimed = append(h.bus.ops.Claimed, iface)
	return &simChannel{handle: h, iface: iface}, nil
}

func (h *simHandle) Close() error {
	if h.closed {
		return fmt.Errorf("sim: handle closed twice")
	}
	h.closed = true
	h.bus.ops.Closes++
	if h.dev.answered && h.dev.BecomesEDL != nil {
		h.dev.Info = *h.dev.BecomesEDL
		h.dev.BecomesEDL = nil
	}
	return h.dev.CloseErr
}

type simChannel struct {
	handle   *simHandle
	iface    int
	pending  []byte
	readErr  error
	released bool
}

func (c *simChannel) Write(p []byte, _ time.Duration) (int, error) {
	dev := c.handle.dev
	if dev.WriteErr != nil {
		return 0, dev.WriteErr
	}
	c.handle.bus.ops.Writes = append(c.handle.bus.ops.Writes, append([]byte(nil), p...))

	respond := dev.Respond
	if respond == nil {
		respond = EchoResponder
	}
	reply, err := respond(c.iface, p)
	if err != nil {
		c.readErr = err
		return len(p), nil
	}
	if len(reply) > 0 {
		dev.answered = true
	}
	c.pending = append(c.pending, reply...)
	return len(p), nil
}

func (c *simChannel) Read(p []byte, _ time.Duration) (int, error) {
	if c.readErr != nil {
		err := c.readErr
		c.readErr = nil
		return 0, err
	}
	if len(c.pending) == 0 {
		return 0, ErrTimeout
	}
	n := len(p)
	if chunk := c.handle.dev.Chunk; chunk > 0 && chunk < n {
		n = chunk
	}
	n = copy(p[:n], c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

func (c *simChannel) Release() error {
	if c.released {
		return fmt.Errorf("sim: interface %d released twice", c.iface)
	}
	c.released = true
	c.handle.bus.ops.Releases++
	return c.handle.dev.ReleaseErr
}

func containsInt(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
