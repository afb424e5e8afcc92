// Package usbids holds the compiled-in classification tables for Qualcomm
// based modems: which VID/PIDs mean the device is already in Emergency
// Download mode, which vendors ship a DIAG channel, and which USB interface
// carries DIAG on models that do not use interface 0.
//
// The tables are ordered slices scanned linearly. They are never modified at
// run time; the accessors below hand out copies.
package usbids

import "fmt"

// IsEDLDevice reports whether vid:pid is a device already in EDL mode.
func IsEDLDevice(vid, pid uint16) bool {
	for _, d := range edlDevices {
		if d.VendorID == vid && d.ProductID == pid {
			return true
		}
	}
	return false
}

// IsDiagVendor reports whether vid belongs to a vendor that may expose DIAG.
// A match does not prove the device has a DIAG channel.
func IsDiagVendor(vid uint16) bool {
	for _, v := range diagVendors {
		if v.VendorID == vid {
			return true
		}
	}
	return false
}

// DiagInterfaceNumber returns the USB interface carrying DIAG for vid:pid,
// or DefaultDiagInterface when the model has no mapping.
func DiagInterfaceNumber(vid, pid uint16) uint8 {
	if m, ok := lookupMapping(vid, pid); ok {
		return m.Interface
	}
	return DefaultDiagInterface
}

func lookupMapping(vid, pid uint16) (InterfaceMapping, bool) {
	for _, m := range interfaceMappings {
		if m.VendorID == vid && m.ProductID == pid {
			return m, true
		}
	}
	return InterfaceMapping{}, false
}

// Classify tells whether vid:pid looks like an EDL device, a DIAG capable
// device, or neither. EDL wins because several EDL ids share a DIAG vendor.
func Classify(vid, pid uint16) Class {
	switch {
	case IsEDLDevice(vid, pid):
		return ClassEDL
	case IsDiagVendor(vid):
		return ClassDiag
	default:
		return ClassUnknown
	}
}

// VendorName returns a human readable vendor name, or "" if unknown.
func VendorName(vid uint16) string {
	for _, v := range diagVendors {
		if v.VendorID == vid {
			return v.Name
		}
	}
	for _, v := range otherVendors {
		if v.VendorID == vid {
			return v.Name
		}
	}
	return ""
}

// Describe returns the best description the tables have for vid:pid.
func Describe(vid, pid uint16) string {
	for _, d := range edlDevices {
		if d.VendorID == vid && d.ProductID == pid {
			return d.Description
		}
	}
	if m, ok := lookupMapping(vid, pid); ok {
		return m.Description
	}
	if name := VendorName(vid); name != "" {
		return fmt.Sprintf("%s %04x", name, pid)
	}
	return fmt.Sprintf("Unknown %04x:%04x", vid, pid)
}

// EDLDevices returns a copy of the EDL device table.
func EDLDevices() []EDLDevice {
	return append([]EDLDevice(nil), edlDevices...)
}

// DiagVendors returns a copy of the DIAG vendor allow-list.
func DiagVendors() []DiagVendor {
	return append([]DiagVendor(nil), diagVendors...)
}

// InterfaceMappings returns a copy of the DIAG interface override table.
func InterfaceMappings() []InterfaceMapping {
	return append([]InterfaceMapping(nil), interfaceMappings...)
}
