/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/allbin/serialmcp"
	"github.com/allbin/serialmcp/internal/logging"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "serialmcp",
	Version: "0.1.0",
	Short:   "Serial request/response and notification demultiplexer",
	Long: `serialmcp splits a full-duplex serial byte stream into two channels:
synchronous command/response exchanges and asynchronous notifications
framed by idle-timeout silence.

It can run as an MCP server over stdio (serve), send one-shot commands
(send), list serial devices (list), or display live notifications in a
TUI (monitor).`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.serialmcp.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format: text or json")
	rootCmd.PersistentFlags().String("log-output", "stderr", "Log output: stderr or a file path")

	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("log.output", rootCmd.PersistentFlags().Lookup("log-output"))

	viper.SetDefault("serial.baud_rate", 115200)
	viper.SetDefault("serial.idle_timeout", 100*time.Millisecond)
	viper.SetDefault("serial.poll_interval", 5*time.Millisecond)
	viper.SetDefault("serial.sync_timeout", 5*time.Second)
	viper.SetDefault("serial.notify_capacity", 1000)
	viper.SetDefault("serial.reconnect_attempts", 3)
	viper.SetDefault("serial.reconnect_delay", time.Second)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".serialmcp" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".serialmcp")
	}

	viper.SetEnvPrefix("SERIALMCP")
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// driverConfig assembles the driver configuration from viper state.
func driverConfig() (serialmcp.Config, error) {
	cfg := serialmcp.DefaultConfig()

	opts := []serialmcp.Option{
		serialmcp.WithBaudRate(viper.GetInt("serial.baud_rate")),
		serialmcp.WithIdleTimeout(viper.GetDuration("serial.idle_timeout")),
		serialmcp.WithPollInterval(viper.GetDuration("serial.poll_interval")),
		serialmcp.WithSyncTimeout(viper.GetDuration("serial.sync_timeout")),
		serialmcp.WithNotifyCapacity(viper.GetInt("serial.notify_capacity")),
		serialmcp.WithReconnect(
			viper.GetInt("serial.reconnect_attempts"),
			viper.GetDuration("serial.reconnect_delay"),
		),
	}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

// newLogger builds the process logger from viper state.
func newLogger() (*slog.Logger, func() error, error) {
	return logging.New(logging.Options{
		Level:  viper.GetString("log.level"),
		Format: viper.GetString("log.format"),
		Output: viper.GetString("log.output"),
	})
}
