/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/allbin/serialmcp"
	"github.com/allbin/serialmcp/internal/mcptools"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server over stdio",
	Long: `Run the serial MCP server on stdin/stdout.

The server exposes the tools serial_list_ports, serial_configure,
serial_send, serial_read_notifications and serial_status. Logs go to
stderr (or a file) so the MCP protocol stream stays clean.

Example usage:
  serialmcp serve
  serialmcp serve --log-level debug --log-output /tmp/serialmcp.log`,
	Run: func(cmd *cobra.Command, args []string) {
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
		defer drv.Disconnect()

		s := server.NewMCPServer("serialmcp", rootCmd.Version,
			server.WithToolCapabilities(false),
		)
		mcptools.Register(s, mcptools.NewHandlers(drv, log))

		log.Info("mcp server listening on stdio")
		if err := server.ServeStdio(s); err != nil {
			log.Error("mcp server stopped", "error", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
