package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceEDL/pkg/diag"
)

var (
	deviceSerial  string
	switchTimeout time.Duration
	waitForEDL    bool
	waitTimeout   time.Duration
	pollInterval  time.Duration
)

var switchCmd = &cobra.Command{
	Use:   "switch",
	Short: "Reboot a DIAG mode modem into EDL mode",
	Long: `Send the switch-to-EDL command to the first attached DIAG device, or to the
device with the given serial number, and wait for its acknowledgment.

The switch command will:
  1. Enumerate attached devices and pick a DIAG capable one
  2. Claim the DIAG interface listed in the device catalog
  3. Send the HDLC framed EDL command
  4. Check the acknowledgment
  5. With --wait, poll until the device shows up in EDL mode

Examples:
  # Switch the first DIAG device
  diag2edl switch

  # Switch a specific modem and wait for it to re-enumerate
  diag2edl switch --serial 0123456 --wait

  # Use the kernel serial driver instead of libusb
  diag2edl switch --backend serial`,
	RunE: runSwitch,
}

func init() {
	rootCmd.AddCommand(switchCmd)

	switchCmd.Flags().StringVarP(&deviceSerial, "serial", "s", "",
		"device serial number (if multiple modems)")
	switchCmd.Flags().DurationVarP(&switchTimeout, "timeout", "t", diag.DefaultTimeout,
		"how long to wait for the acknowledgment")
	switchCmd.Flags().BoolVarP(&waitForEDL, "wait", "w", false,
		"wait until the device re-enumerates in EDL mode")
	switchCmd.Flags().DurationVar(&waitTimeout, "wait-timeout", 30*time.Second,
		"give up waiting for EDL mode after this long")
	switchCmd.Flags().DurationVar(&pollInterval, "poll-interval", diag.DefaultPollInterval,
		"how often to look for the EDL device while waiting")
}

func runSwitch(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	if flags.Changed("serial") {
		settings.Serial = deviceSerial
	}
	if flags.Changed("timeout") {
		settings.Timeout = switchTimeout
	}
	if flags.Changed("wait") {
		settings.Wait = waitForEDL
	}
	if flags.Changed("poll-interval") {
		settings.PollInterval = pollInterval
	}

	bus, release, err := openBus()
	if err != nil {
		return fmt.Errorf("failed to open %s backend: %w", settings.Backend, err)
	}
	defer release()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	sw := diag.New(bus,
		diag.WithTimeout(settings.Timeout),
		diag.WithWriteTimeout(settings.WriteTimeout),
		diag.WithLogger(logger),
		diag.WithTracer(tracer()),
	)

	res, err := sw.SwitchToEDL(ctx, settings.Serial)
	if err != nil {
		return err
	}

	if res.AlreadyInEDL {
		fmt.Printf("Device %s is already in EDL mode\n", res.Device.Label())
		return nil
	}
	fmt.Printf("Switched %s (%s) via interface %d\n", res.Device.Label(), res.Device.Description, res.Interface)
	fmt.Println("Device is rebooting into EDL mode.")

	if !settings.Wait {
		return nil
	}

	fmt.Printf("Waiting up to %s for the EDL device...\n", waitTimeout)
	waitCtx, cancel := context.WithTimeout(ctx, waitTimeout)
	defer cancel()

	dev, err := sw.WaitForEDL(waitCtx, settings.Serial, settings.PollInterval)
	if err != nil {
		return err
	}
	fmt.Printf("EDL device ready: %s\n", dev.Label())
	return nil
}
