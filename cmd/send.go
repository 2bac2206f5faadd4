/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/allbin/serialmcp"
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send [data] <port>",
	Short: "Send data to a serial port and wait for the response",
	Long: `Send data to a serial port as one synchronous exchange.

Data can be provided as:
- Command line argument: send "AT+GMR" /dev/ttyUSB0
- From stdin (pipe): echo "AT" | serialmcp send /dev/ttyUSB0
- Interactive mode: serialmcp send /dev/ttyUSB0 (prompts for input)

The wait policy controls how the response is collected:
- none: write only, return immediately
- keyword: wait until --pattern appears in the response
- timeout/echo: collect everything that arrives within --timeout

Example usage:
  serialmcp send "AT+GMR\r\n" /dev/ttyUSB0 --wait keyword --pattern OK
  serialmcp send "0a bc 01" /dev/ttyUSB0 --encoding hex --wait timeout
  echo "AT" | serialmcp send /dev/ttyUSB0 --baud 9600`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var data string
		var portPath string

		// Parse arguments: either "send data port" or "send port"
		if len(args) == 1 {
			portPath = args[0]
			stat, err := os.Stdin.Stat()
			if err != nil || (stat.Mode()&os.ModeCharDevice) != 0 {
				data = promptForData()
			} else {
				stdinData, err := io.ReadAll(os.Stdin)
				if err != nil {
					fmt.Fprintf(os.Stderr, "Error reading from stdin: %v\n", err)
					os.Exit(1)
				}
				data = strings.TrimRight(string(stdinData), "\r\n")
			}
		} else {
			data = args[0]
			portPath = args[1]
		}

		baudRate, _ := cmd.Flags().GetInt("baud")
		encoding, _ := cmd.Flags().GetString("encoding")
		waitName, _ := cmd.Flags().GetString("wait")
		pattern, _ := cmd.Flags().GetString("pattern")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		if err := runSend(portPath, baudRate, data, encoding, waitName, pattern, timeout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().IntP("baud", "b", 115200, "Baud rate (default: 115200)")
	sendCmd.Flags().StringP("encoding", "e", "utf8", "Payload encoding: utf8 or hex")
	sendCmd.Flags().StringP("wait", "w", "timeout", "Wait policy: none, keyword, timeout, echo")
	sendCmd.Flags().StringP("pattern", "p", "", "Pattern the keyword policy waits for")
	sendCmd.Flags().DurationP("timeout", "t", 5*time.Second, "Response wait window (default: 5s)")
}

func promptForData() string {
	promptStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("99"))

	fmt.Print(promptStyle.Render("Enter data to send: "))

	scanner := bufio.NewScanner(os.Stdin)
	if scanner.Scan() {
		return scanner.Text()
	}
	return ""
}

func runSend(portPath string, baudRate int, data, encoding, waitName, pattern string, timeout time.Duration) error {
	infoStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("99")).
		Bold(true)

	successStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("40")).
		Bold(true)

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("196")).
		Bold(true)

	warnStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("214")).
		Bold(true)

	payload, err := serialmcp.EncodePayload(data, encoding)
	if err != nil {
		return err
	}

	kind, err := serialmcp.ParsePolicyKind(waitName)
	if err != nil {
		return err
	}

	var patternBytes []byte
	if pattern != "" {
		patternBytes, err = serialmcp.EncodePayload(pattern, encoding)
		if err != nil {
			return err
		}
	}

	log, closeLog, err := newLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	cfg, err := driverConfig()
	if err != nil {
		return err
	}
	if err := serialmcp.WithBaudRate(baudRate)(&cfg); err != nil {
		return err
	}

	drv := serialmcp.New(cfg, log)
	if err := drv.Initialize(); err != nil {
		return err
	}

	fmt.Printf("%s Opening %s...\n", infoStyle.Render("⚡"), portPath)

	if err := drv.Connect(portPath, baudRate); err != nil {
		return fmt.Errorf("%s %v", errorStyle.Render("✗"), err)
	}
	defer drv.Disconnect()

	fmt.Printf("%s Connected successfully\n", successStyle.Render("✓"))
	fmt.Printf("%s Sending %d bytes...\n", infoStyle.Render("📤"), len(payload))

	resp, err := drv.Send(payload, serialmcp.WaitPolicy{
		Kind:    kind,
		Pattern: patternBytes,
		Timeout: timeout,
	})
	if err != nil {
		if errors.Is(err, serialmcp.ErrKeywordTimeout) && resp != nil {
			fmt.Printf("%s Timed out waiting for %q, partial response below\n",
				warnStyle.Render("⧖"), pattern)
			printResponse(resp)
		}
		return fmt.Errorf("%s %v", errorStyle.Render("✗"), err)
	}

	if kind == serialmcp.PolicyNone {
		fmt.Printf("%s Sent, not waiting for a response\n", successStyle.Render("✓"))
		return nil
	}

	fmt.Printf("%s Received %d bytes\n", successStyle.Render("✓"), resp.BytesReceived)
	printResponse(resp)

	if resp.PendingNotifications > 0 {
		fmt.Printf("%s %d notification(s) pending, run monitor to view them\n",
			infoStyle.Render("🔔"), resp.PendingNotifications)
	}

	return nil
}

func printResponse(resp *serialmcp.Response) {
	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("99")).
		Bold(true)

	if resp.BytesReceived == 0 {
		fmt.Printf("%s (empty)\n", labelStyle.Render("📋 Response:"))
		return
	}

	label := "📋 Response:"
	if resp.IsHex {
		label = "📋 Response (hex):"
	}
	fmt.Printf("%s %s\n", labelStyle.Render(label), resp.Data)
}
