/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/allbin/serialmcp"
	"github.com/allbin/serialmcp/internal/tui"
)

// monitorCmd represents the monitor command
var monitorCmd = &cobra.Command{
	Use:   "monitor <port>",
	Short: "Display live notifications in a TUI",
	Long: `Monitor asynchronous notifications from a serial port in real-time.

Notifications are framed by idle-timeout silence and shown in a
scrollable table with timestamps and byte counts. The status bar tracks
the connection, channel mode, queue depth and any dropped messages.

Keys: p/space pause, c clear, h toggle hex, ? help, q quit.

Example usage:
  serialmcp monitor /dev/ttyUSB0
  serialmcp monitor /dev/ttyUSB0 --baud 9600`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		portPath := args[0]
		baudRate, _ := cmd.Flags().GetInt("baud")

		log, closeLog, err := newLogger()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
			os.Exit(1)
		}
		defer closeLog()

		cfg, err := driverConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error in configuration: %v\n", err)
			os.Exit(1)
		}

		drv := serialmcp.New(cfg, log)
		if err := drv.Initialize(); err != nil {
			fmt.Fprintf(os.Stderr, "Error initializing driver: %v\n", err)
			os.Exit(1)
		}

		if err := drv.Connect(portPath, baudRate); err != nil {
			fmt.Fprintf(os.Stderr, "Error opening port: %v\n", err)
			os.Exit(1)
		}
		defer drv.Disconnect()

		if err := tui.Run(drv); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd)

	monitorCmd.Flags().IntP("baud", "b", 115200, "Baud rate (default: 115200)")
}
