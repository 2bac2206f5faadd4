// Package serialmcp turns a single serial port into two logically independent
// channels: a synchronous request/response channel for command exchanges and
// an asynchronous notification channel for unsolicited device messages (URCs)
// that can arrive at any time, including while a command is in flight.
//
// A single background reader owns all read access to the port. Every incoming
// chunk is classified by the driver's current mode: during a synchronous
// exchange chunks are handed to the waiting caller, otherwise they accumulate
// in a buffer that is framed into notification messages by inter-byte silence
// (the idle timeout), since the link guarantees no length field or delimiter.
//
// # Basic Usage
//
// Create a driver, connect, and exchange data:
//
//	drv := serialmcp.New(serialmcp.DefaultConfig(), logger)
//	if err := drv.Initialize(); err != nil {
//	    log.Fatal(err)
//	}
//	if err := drv.Connect("/dev/ttyUSB0", 115200); err != nil {
//	    log.Fatal(err)
//	}
//	defer drv.Disconnect()
//
//	resp, err := drv.Send([]byte("AT+GMR\r\n"), serialmcp.WaitPolicy{
//	    Kind:    serialmcp.PolicyKeyword,
//	    Pattern: []byte("OK"),
//	    Timeout: 5 * time.Second,
//	})
//
// Unsolicited messages framed while no exchange was running are retrieved
// separately:
//
//	for _, n := range drv.DrainNotifications(true) {
//	    fmt.Println(n.Data)
//	}
//
// # Wait Policies
//
//   - PolicyNone: write and return immediately, no mode switch.
//   - PolicyKeyword: collect response chunks until a byte pattern appears,
//     failing with ErrKeywordTimeout when the deadline passes first.
//   - PolicyTimeout: collect everything delivered within a fixed window; an
//     empty window is a valid empty response, never an error.
//   - PolicyEcho: identical to PolicyTimeout; separating a device's echo from
//     its actual response is a protocol concern layered by the caller.
//
// # Decoding
//
// Every response-shaped value, including notifications, follows one rule:
// bytes that decode as UTF-8 are returned as text, anything else as lowercase
// hex with IsHex set. See EncodePayload and DecodeBytes for the boundary
// encodings accepted from callers.
//
// # Concurrency
//
// Send serializes the whole exchange internally, so concurrent callers are
// safe but queue behind each other. The reader goroutine never blocks on a
// full queue; notification overflow drops the newest message and counts it
// in the driver metrics.
package serialmcp
