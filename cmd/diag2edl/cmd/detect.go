package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceEDL/pkg/diag"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Check whether a DIAG mode device is attached",
	Long: `Enumerate attached USB devices and report whether one of them belongs to a
DIAG capable vendor. No device is opened. Exits with status 2 when none is
found, so the command can be polled from scripts.`,
	RunE: runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)

	detectCmd.Flags().StringVarP(&deviceSerial, "serial", "s", "",
		"device serial number (if multiple modems)")
}

func runDetect(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("serial") {
		settings.Serial = deviceSerial
	}

	bus, release, err := openBus()
	if err != nil {
		return fmt.Errorf("failed to open %s backend: %w", settings.Backend, err)
	}
	defer release()

	found, err := diag.New(bus, diag.WithLogger(logger)).IsDeviceInDiagMode(cmd.Context(), settings.Serial)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no DIAG device found: %w", diag.KindDeviceNotFound)
	}

	if settings.Serial != "" {
		fmt.Printf("DIAG device with serial %s is attached\n", settings.Serial)
	} else {
		fmt.Println("DIAG device is attached")
	}
	return nil
}
