package diag

import (
	"errors"
	"fmt"
)

// Kind classifies why a switch attempt failed. Kinds are errors themselves,
// so errors.Is(err, KindAckTimeout) works on any error SwitchToEDL returns.
type Kind int

const (
	KindDeviceNotFound Kind = iota + 1
	KindDeviceOpenFailed
	KindFrameEncodeOverflow
	KindAckTimeout
	KindAckDecodeFailed
	KindAckMismatch
	KindTransferFailed
	KindEnumerationFailed
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindDeviceNotFound:
		return "device not found"
	case KindDeviceOpenFailed:
		return "device open failed"
	case KindFrameEncodeOverflow:
		return "frame encode overflow"
	case KindAckTimeout:
		return "acknowledgment timeout"
	case KindAckDecodeFailed:
		return "acknowledgment decode failed"
	case KindAckMismatch:
		return "unexpected acknowledgment"
	case KindTransferFailed:
		return "transfer failed"
	case KindEnumerationFailed:
		return "enumeration failed"
	case KindCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k Kind) Error() string {
	return "diag: " + k.String()
}

// SwitchError is the error returned by a failed switch attempt.
type SwitchError struct {
	Kind      Kind
	Device    DeviceInfo // zero when no device was selected
	Interface int
	Response  []byte // decoded payload, set for KindAckMismatch
	Err       error  // underlying transport or codec error, may be nil
}

func (e *SwitchError) Error() string {
	msg := "diag: " + e.Kind.String()
	if e.Device.VendorID != 0 || e.Device.ProductID != 0 {
		msg += fmt.Sprintf(" (%s, interface %d)", e.Device.Label(), e.Interface)
	}
	if e.Kind == KindAckMismatch {
		msg += fmt.Sprintf(": got % X", e.Response)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SwitchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindOf returns the Kind carried by err, or 0 if err is not a SwitchError.
func KindOf(err error) Kind {
	var se *SwitchError
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}
