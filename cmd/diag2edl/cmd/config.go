package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceEDL/internal/config"
)

var (
	configFormat string
	configOutput string
	configForce  bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration template with the default values",
	Long: `Write the default configuration as YAML, TOML or JSON. Without --output the
file goes to the platform config directory
($XDG_CONFIG_HOME/diag2edl/config.<format>).`,
	Annotations: map[string]string{skipConfig: "true"},
	RunE:        runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective settings",
	RunE:  runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd)

	configInitCmd.Flags().StringVar(&configFormat, "format", "yaml", "output format (yaml, toml, json)")
	configInitCmd.Flags().StringVarP(&configOutput, "output", "o", "", "destination file path")
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite if the file already exists")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	format := config.NormalizeFormat(configFormat)
	if format == "" {
		return fmt.Errorf("unsupported format: %s", configFormat)
	}

	dest := configOutput
	if dest == "" {
		p, err := config.DefaultPath(format)
		if err != nil {
			return err
		}
		dest = p
	}

	if err := config.WriteTemplate(dest, format, configForce); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", dest)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	fmt.Printf("backend:       %s\n", settings.Backend)
	fmt.Printf("serial:        %s\n", settings.Serial)
	fmt.Printf("timeout:       %s\n", settings.Timeout)
	fmt.Printf("write_timeout: %s\n", settings.WriteTimeout)
	fmt.Printf("log_level:     %s\n", settings.LogLevel)
	fmt.Printf("log_file:      %s\n", settings.LogFile)
	fmt.Printf("no_color:      %t\n", settings.NoColor)
	fmt.Printf("trace:         %t\n", settings.Trace)
	fmt.Printf("wait:          %t\n", settings.Wait)
	fmt.Printf("poll_interval: %s\n", settings.PollInterval)
	return nil
}
