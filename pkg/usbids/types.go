package usbids

import "fmt"

// ID is a USB vendor/product pair as reported by the device descriptor.
type ID struct {
	VendorID  uint16
	ProductID uint16
}

func (id ID) String() string {
	return fmt.Sprintf("%04x:%04x", id.VendorID, id.ProductID)
}

// EDLDevice is a VID/PID that only appears once a modem sits in Emergency
// Download mode, ready for the Sahara/Firehose loader.
type EDLDevice struct {
	ID
	Description string
}

// DiagVendor is a vendor whose modems may expose a DIAG channel.
type DiagVendor struct {
	VendorID uint16
	Name     string
}

// InterfaceMapping overrides the USB interface carrying DIAG for one model.
type InterfaceMapping struct {
	ID
	Interface   uint8
	Description string
}

// Class is the coarse classification of an attached device.
type Class uint8

const (
	ClassUnknown Class = iota
	ClassDiag
	ClassEDL
)

func (c Class) String() string {
	switch c {
	case ClassDiag:
		return "diag"
	case ClassEDL:
		return "edl"
	default:
		return "unknown"
	}
}
