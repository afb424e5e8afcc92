package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceEDL/pkg/diag"
	"github.com/OpenTraceLab/OpenTraceEDL/pkg/usbids"
)

var showCatalog bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List attached devices or the built-in catalog",
	Long: `Scan the host for USB devices and show how each one is classified: already
in EDL mode, DIAG capable (with the interface the switch would claim), or
unknown. With --catalog, print the compiled-in device tables instead.`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().BoolVar(&showCatalog, "catalog", false, "print the device catalog instead of scanning")
}

func runList(cmd *cobra.Command, args []string) error {
	if showCatalog {
		printCatalog()
		return nil
	}

	bus, release, err := openBus()
	if err != nil {
		return fmt.Errorf("failed to open %s backend: %w", settings.Backend, err)
	}
	defer release()

	cands, err := diag.New(bus, diag.WithLogger(logger)).Candidates(cmd.Context(), "")
	if err != nil {
		return err
	}
	if len(cands) == 0 {
		fmt.Println("No USB devices found.")
		return nil
	}

	fmt.Println("Attached devices:")
	for _, c := range cands {
		desc := c.Description
		if desc == "" {
			desc = usbids.Describe(c.VendorID, c.ProductID)
		}
		switch c.Class {
		case usbids.ClassDiag:
			fmt.Printf("  - %-9s %s  %s (interface %d)\n", c.Class, c.Label(), desc, c.Interface)
		default:
			if verbose || c.Class == usbids.ClassEDL {
				fmt.Printf("  - %-9s %s  %s\n", c.Class, c.Label(), desc)
			}
		}
	}
	return nil
}

func printCatalog() {
	fmt.Println("EDL mode devices:")
	for _, d := range usbids.EDLDevices() {
		fmt.Printf("  %s  %s\n", d.ID, d.Description)
	}

	fmt.Println("\nDIAG vendors:")
	for _, v := range usbids.DiagVendors() {
		fmt.Printf("  %04x       %s\n", v.VendorID, v.Name)
	}

	fmt.Println("\nDIAG interfaces:")
	for _, m := range usbids.InterfaceMappings() {
		fmt.Printf("  %s  %2d  %s\n", m.ID, m.Interface, m.Description)
	}
}
