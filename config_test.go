package serialmcp

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.BaudRate != 115200 {
		t.Errorf("Expected BaudRate 115200, got %d", config.BaudRate)
	}
	if config.DataBits != 8 {
		t.Errorf("Expected DataBits 8, got %d", config.DataBits)
	}
	if config.StopBits != 1 {
		t.Errorf("Expected StopBits 1, got %d", config.StopBits)
	}
	if config.Parity != ParityNone {
		t.Errorf("Expected Parity None, got %v", config.Parity)
	}
	if config.FlowControl != FlowControlNone {
		t.Errorf("Expected FlowControl None, got %v", config.FlowControl)
	}
	if config.IdleTimeout != 100*time.Millisecond {
		t.Errorf("Expected IdleTimeout 100ms, got %v", config.IdleTimeout)
	}
	if config.PollInterval != 5*time.Millisecond {
		t.Errorf("Expected PollInterval 5ms, got %v", config.PollInterval)
	}
	if config.SyncTimeout != 5*time.Second {
		t.Errorf("Expected SyncTimeout 5s, got %v", config.SyncTimeout)
	}
	if config.NotifyCapacity != 1000 {
		t.Errorf("Expected NotifyCapacity 1000, got %d", config.NotifyCapacity)
	}
	if config.ChunkSize != 1024 {
		t.Errorf("Expected ChunkSize 1024, got %d", config.ChunkSize)
	}
}

func TestFunctionalOptions(t *testing.T) {
	config := DefaultConfig()

	if err := WithBaudRate(9600)(&config); err != nil {
		t.Errorf("WithBaudRate failed: %v", err)
	}
	if config.BaudRate != 9600 {
		t.Errorf("Expected BaudRate 9600, got %d", config.BaudRate)
	}

	if err := WithIdleTimeout(250 * time.Millisecond)(&config); err != nil {
		t.Errorf("WithIdleTimeout failed: %v", err)
	}
	if config.IdleTimeout != 250*time.Millisecond {
		t.Errorf("Expected IdleTimeout 250ms, got %v", config.IdleTimeout)
	}

	if err := WithNotifyCapacity(50)(&config); err != nil {
		t.Errorf("WithNotifyCapacity failed: %v", err)
	}
	if config.NotifyCapacity != 50 {
		t.Errorf("Expected NotifyCapacity 50, got %d", config.NotifyCapacity)
	}

	if err := WithReconnect(5, 2*time.Second)(&config); err != nil {
		t.Errorf("WithReconnect failed: %v", err)
	}
	if config.ReconnectAttempts != 5 || config.ReconnectDelay != 2*time.Second {
		t.Errorf("Expected reconnect 5/2s, got %d/%v", config.ReconnectAttempts, config.ReconnectDelay)
	}

	if err := WithParity(ParityEven)(&config); err != nil {
		t.Errorf("WithParity failed: %v", err)
	}
	if config.Parity != ParityEven {
		t.Errorf("Expected Parity Even, got %v", config.Parity)
	}
}

func TestInvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"invalid baud rate", WithBaudRate(123456)},
		{"zero idle timeout", WithIdleTimeout(0)},
		{"negative poll interval", WithPollInterval(-time.Millisecond)},
		{"zero notify capacity", WithNotifyCapacity(0)},
		{"nine data bits", WithDataBits(9)},
		{"three stop bits", WithStopBits(3)},
		{"negative reconnect attempts", WithReconnect(-1, time.Second)},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			config := DefaultConfig()
			if err := test.opt(&config); err == nil {
				t.Error("Expected an error for invalid option value")
			}
		})
	}
}
