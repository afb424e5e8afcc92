package serialbus

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultSysfsRoot is where tty devices are looked up on Linux.
const DefaultSysfsRoot = "/sys"

var errNoUSBInterface = errors.New("tty is not backed by a USB interface")

// ttyLocation resolves the USB interface behind a tty, returning the device
// path ("1-2") and the interface number.
//
// /sys/class/tty/<tty>/device links either to the interface directory
// ("1-2:1.3", cdc-acm) or to a usb-serial port below it ("1-2:1.3/ttyUSB0").
func ttyLocation(sysfsRoot, port string) (string, int, error) {
	link := filepath.Join(sysfsRoot, "class", "tty", filepath.Base(port), "device")
	dir, err := filepath.EvalSymlinks(link)
	if err != nil {
		return "", -1, err
	}

	for i := 0; i < 3; i++ {
		if dev, iface, ok := parseInterfaceName(filepath.Base(dir)); ok {
			if n, err := readSysfsHexUint8(filepath.Join(dir, "bInterfaceNumber")); err == nil {
				iface = int(n)
			}
			return dev, iface, nil
		}
		dir = filepath.Dir(dir)
	}
	return "", -1, errNoUSBInterface
}

// parseInterfaceName splits an interface entry name of the form
// <device>:<config>.<interface>.
func parseInterfaceName(name string) (dev string, iface int, ok bool) {
	dev, rest, found := strings.Cut(name, ":")
	if !found || dev == "" {
		return "", -1, false
	}
	_, num, found := strings.Cut(rest, ".")
	if !found {
		return "", -1, false
	}
	n, err := strconv.Atoi(num)
	if err != nil || n < 0 {
		return "", -1, false
	}
	return dev, n, true
}

func readSysfsHexUint8(path string) (uint8, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(data)), 16, 8)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	return uint8(v), nil
}
