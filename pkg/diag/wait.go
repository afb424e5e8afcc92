package diag

import (
	"context"
	"fmt"
	"time"

	"github.com/OpenTraceLab/OpenTraceEDL/pkg/usbids"
)

// DefaultPollInterval is how often WaitForEDL re-enumerates the bus.
const DefaultPollInterval = 500 * time.Millisecond

// WaitForEDL polls the bus until a device in EDL mode appears and returns
// it. serial, when not empty, must match the serial descriptor or the
// "_SN:" tag in the product string. It gives up when ctx is done.
// Enumeration errors are logged and polling continues, since the bus is
// expected to be in flux while the device re-enumerates.
func (s *Switcher) WaitForEDL(ctx context.Context, serial string, poll time.Duration) (DeviceInfo, error) {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		devs, err := s.bus.Devices(ctx)
		if err != nil {
			s.config.Logger.Debug("enumeration failed while waiting for EDL", "error", err)
		}
		for _, dev := range devs {
			if usbids.IsEDLDevice(dev.VendorID, dev.ProductID) && edlSerialMatches(dev, serial) {
				s.config.Logger.Info("EDL device detected", "device", dev.Label())
				return dev, nil
			}
		}

		select {
		case <-ctx.Done():
			return DeviceInfo{}, fmt.Errorf("waiting for EDL device: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}
