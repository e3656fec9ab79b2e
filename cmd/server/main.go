// Command receipt-dispatcher serves receipt printing over HTTP and WebSocket
// and hosts the operator console
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/thereceipt/receipt-dispatcher/internal/config"
	"github.com/thereceipt/receipt-dispatcher/internal/logging"
	"github.com/thereceipt/receipt-dispatcher/internal/printer"
)

// Version is set during build via ldflags
var Version = "dev"

var configFile string

func main() {
	if err := buildCLI().Execute(); err != nil {
		os.Exit(1)
	}
}

func buildCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "receipt-dispatcher",
		Short: "Receipt printing over USB, TCP and the system spooler",
		Long: `receipt-dispatcher encodes receipts as ESC/POS and delivers them to
thermal printers. It discovers USB, network and spooler printers, serves an
HTTP and WebSocket API, and optionally runs an operator console.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (YAML)")

	rootCmd.AddCommand(buildServeCommand())
	rootCmd.AddCommand(buildDiscoverCommand())
	rootCmd.AddCommand(buildConfigCommand())

	return rootCmd
}

func buildDiscoverCommand() *cobra.Command {
	var scope string
	var all bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Run one discovery pass and list printers",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := printer.ParseScope(scope)
			if err != nil {
				return err
			}
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			logger := logging.Must(cfg.Logging.Level, cfg.Logging.Format)
			defer logger.Sync()

			reg, err := loadRegistry(cfg)
			if err != nil {
				return err
			}
			manager := printer.NewManager(
				printer.WithEnumerators(enumerators(cfg, reg)...),
				printer.WithPaperWidth(printer.PaperWidth(cfg.Print.PaperSize)),
				printer.WithLogger(logger),
			)

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			var printers []printer.Descriptor
			if all {
				printers = manager.DiscoverAll(ctx)
			} else {
				printers = manager.Discover(ctx, s)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(printers)
			}
			fmt.Fprintln(cmd.OutOrStdout(), printerTable(printers))
			return nil
		},
	}

	cmd.Flags().StringVar(&scope, "scope", "all", "scope: usb, network, local or all")
	cmd.Flags().BoolVar(&all, "all", false, "include printers that are not receipt printers")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")

	return cmd
}

func buildConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "receipt-dispatcher.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			cfg := config.Default()
			cfg.Registry.Path = defaultRegistryPath()
			if err := config.Save(path, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}

func printerTable(printers []printer.Descriptor) string {
	if len(printers) == 0 {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("no printers found")
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		Headers("ID", "NAME", "KIND", "CONNECTION", "ADDRESS")
	for _, p := range printers {
		t.Row(p.ID, p.DisplayName, string(p.Kind), string(p.Connection.Kind), address(p.Connection))
	}
	return t.Render()
}

func address(c printer.Connection) string {
	switch {
	case c.Host != "":
		return c.Address()
	case c.VID != 0 || c.PID != 0:
		return printer.USBID{VID: c.VID, PID: c.PID}.String()
	case c.Device != "":
		return c.Device
	}
	return c.QueueName
}

// defaultRegistryPath places the registry next to the executable when that
// directory is writable, else in the user config directory
func defaultRegistryPath() string {
	const name = "printer_registry.json"

	if exePath, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exePath)
		testFile := filepath.Join(exeDir, ".receipt-dispatcher-write-test")
		if f, err := os.Create(testFile); err == nil {
			f.Close()
			os.Remove(testFile)
			return filepath.Join(exeDir, name)
		}
	}

	var configDir string
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			configDir = filepath.Join(appData, "receipt-dispatcher")
		}
	} else if dir, err := os.UserConfigDir(); err == nil {
		configDir = filepath.Join(dir, "receipt-dispatcher")
	}

	if configDir != "" && os.MkdirAll(configDir, 0755) == nil {
		return filepath.Join(configDir, name)
	}
	return name
}
