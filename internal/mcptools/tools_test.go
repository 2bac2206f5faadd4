package mcptools

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/allbin/serialmcp"
)

// fakeDriver records calls and plays back canned results.
type fakeDriver struct {
	initialized bool
	connected   bool
	port        string
	baud        int

	sentPayload []byte
	sentPolicy  serialmcp.WaitPolicy
	sendResp    *serialmcp.Response
	sendErr     error

	drainClear []bool
	notes      []serialmcp.Notification

	connectErr error
}

func (f *fakeDriver) Initialize() error { f.initialized = true; return nil }

func (f *fakeDriver) Connect(portName string, baudRate int) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	f.port = portName
	f.baud = baudRate
	return nil
}

func (f *fakeDriver) Disconnect() error { f.connected = false; return nil }
func (f *fakeDriver) IsConnected() bool { return f.connected }

func (f *fakeDriver) Send(payload []byte, policy serialmcp.WaitPolicy) (*serialmcp.Response, error) {
	f.sentPayload = payload
	f.sentPolicy = policy
	return f.sendResp, f.sendErr
}

func (f *fakeDriver) DrainNotifications(clear bool) []serialmcp.Notification {
	f.drainClear = append(f.drainClear, clear)
	notes := f.notes
	if clear {
		f.notes = nil
	}
	return notes
}

func (f *fakeDriver) Status() serialmcp.Status {
	return serialmcp.Status{
		Connected:            f.connected,
		Port:                 f.port,
		BaudRate:             f.baud,
		PendingNotifications: len(f.notes),
	}
}

func (f *fakeDriver) Metrics() serialmcp.MetricsSnapshot {
	return serialmcp.MetricsSnapshot{SendOps: 7}
}

func newTestHandlers(drv *fakeDriver) *Handlers {
	h := NewHandlers(drv, slog.New(slog.NewTextHandler(io.Discard, nil)))
	h.listPorts = func() ([]serialmcp.PortInfo, error) {
		return []serialmcp.PortInfo{
			{Name: "ttyUSB0", Path: "/dev/ttyUSB0", Description: "USB serial adapter"},
		}, nil
	}
	return h
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func decodeResult(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if result == nil || len(result.Content) == 0 {
		t.Fatal("empty tool result")
	}

	var text string
	switch c := result.Content[0].(type) {
	case mcp.TextContent:
		text = c.Text
	case *mcp.TextContent:
		text = c.Text
	default:
		t.Fatalf("unexpected content type %T", result.Content[0])
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(text), &body); err != nil {
		t.Fatalf("result is not JSON: %v, body: %s", err, text)
	}
	return body
}

func TestListPortsTool(t *testing.T) {
	h := newTestHandlers(&fakeDriver{})

	result, err := h.ListPorts(context.Background(), callRequest("serial_list_ports", nil))
	if err != nil {
		t.Fatalf("ListPorts: %v", err)
	}

	body := decodeResult(t, result)
	if body["success"] != true {
		t.Errorf("Expected success, got %v", body)
	}
	if body["count"] != float64(1) {
		t.Errorf("Expected count 1, got %v", body["count"])
	}
}

func TestConfigureOpen(t *testing.T) {
	drv := &fakeDriver{}
	h := newTestHandlers(drv)

	result, err := h.Configure(context.Background(), callRequest("serial_configure", map[string]any{
		"action":    "open",
		"port":      "/dev/ttyUSB0",
		"baud_rate": float64(9600),
	}))
	if err != nil {
		t.Fatalf("Configure: %v", err)
	}

	body := decodeResult(t, result)
	if body["success"] != true {
		t.Fatalf("Expected success, got %v", body)
	}
	if !drv.initialized {
		t.Error("Configure open must initialize the driver")
	}
	if drv.port != "/dev/ttyUSB0" || drv.baud != 9600 {
		t.Errorf("Connected to %s@%d, expected /dev/ttyUSB0@9600", drv.port, drv.baud)
	}
}

func TestConfigureOpenDefaultsBaudRate(t *testing.T) {
	drv := &fakeDriver{}
	h := newTestHandlers(drv)

	result, _ := h.Configure(context.Background(), callRequest("serial_configure", map[string]any{
		"action": "open",
		"port":   "/dev/ttyACM0",
	}))

	body := decodeResult(t, result)
	if body["success"] != true {
		t.Fatalf("Expected success, got %v", body)
	}
	if drv.baud != 115200 {
		t.Errorf("Expected default baud 115200, got %d", drv.baud)
	}
}

func TestConfigureOpenRequiresPort(t *testing.T) {
	h := newTestHandlers(&fakeDriver{})

	result, _ := h.Configure(context.Background(), callRequest("serial_configure", map[string]any{
		"action": "open",
	}))

	body := decodeResult(t, result)
	if body["success"] != false {
		t.Fatalf("Expected failure, got %v", body)
	}
	if body["errorType"] != "InvalidInputError" || body["errorCode"] != "E_INPUT" {
		t.Errorf("Expected InvalidInputError/E_INPUT, got %v/%v", body["errorType"], body["errorCode"])
	}
}

func TestConfigureClose(t *testing.T) {
	drv := &fakeDriver{connected: true}
	h := newTestHandlers(drv)

	result, _ := h.Configure(context.Background(), callRequest("serial_configure", map[string]any{
		"action": "close",
	}))

	body := decodeResult(t, result)
	if body["success"] != true {
		t.Fatalf("Expected success, got %v", body)
	}
	if drv.connected {
		t.Error("Driver still connected after close")
	}
}

func TestConfigureConnectionErrorShape(t *testing.T) {
	drv := &fakeDriver{connectErr: serialmcp.ErrDeviceNotFound}
	h := newTestHandlers(drv)

	result, _ := h.Configure(context.Background(), callRequest("serial_configure", map[string]any{
		"action": "open",
		"port":   "/dev/ttyUSB9",
	}))

	body := decodeResult(t, result)
	if body["errorType"] != "ConnectionError" || body["errorCode"] != "E_CONN" {
		t.Errorf("Expected ConnectionError/E_CONN, got %v/%v", body["errorType"], body["errorCode"])
	}
}

func TestSendEncodesAndForwardsPolicy(t *testing.T) {
	drv := &fakeDriver{sendResp: &serialmcp.Response{Data: "OK", BytesReceived: 2, FoundPattern: true}}
	h := newTestHandlers(drv)

	result, err := h.Send(context.Background(), callRequest("serial_send", map[string]any{
		"payload":      `AT+GMR\r\n`,
		"wait_policy":  "keyword",
		"stop_pattern": "OK",
		"timeout_ms":   float64(2000),
	}))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if string(drv.sentPayload) != "AT+GMR\r\n" {
		t.Errorf("Escapes not expanded: sent %q", drv.sentPayload)
	}
	if drv.sentPolicy.Kind != serialmcp.PolicyKeyword {
		t.Errorf("Expected keyword policy, got %v", drv.sentPolicy.Kind)
	}
	if string(drv.sentPolicy.Pattern) != "OK" {
		t.Errorf("Expected pattern OK, got %q", drv.sentPolicy.Pattern)
	}
	if drv.sentPolicy.Timeout != 2*time.Second {
		t.Errorf("Expected 2s timeout, got %v", drv.sentPolicy.Timeout)
	}

	body := decodeResult(t, result)
	if body["success"] != true {
		t.Fatalf("Expected success, got %v", body)
	}
	resp, ok := body["response"].(map[string]any)
	if !ok {
		t.Fatalf("Missing response body: %v", body)
	}
	if resp["data"] != "OK" || resp["foundPattern"] != true {
		t.Errorf("Unexpected response body: %v", resp)
	}
}

func TestSendHexPayload(t *testing.T) {
	drv := &fakeDriver{sendResp: &serialmcp.Response{}}
	h := newTestHandlers(drv)

	_, err := h.Send(context.Background(), callRequest("serial_send", map[string]any{
		"payload":  "0a bc",
		"encoding": "hex",
	}))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if len(drv.sentPayload) != 2 || drv.sentPayload[0] != 0x0a || drv.sentPayload[1] != 0xbc {
		t.Errorf("Expected [0a bc], sent % x", drv.sentPayload)
	}
}

func TestSendInvalidEncodingShape(t *testing.T) {
	h := newTestHandlers(&fakeDriver{})

	result, _ := h.Send(context.Background(), callRequest("serial_send", map[string]any{
		"payload":  "data",
		"encoding": "base64",
	}))

	body := decodeResult(t, result)
	if body["errorType"] != "DataError" || body["errorCode"] != "E_DATA" {
		t.Errorf("Expected DataError/E_DATA, got %v/%v", body["errorType"], body["errorCode"])
	}
}

func TestSendKeywordTimeoutCarriesPartial(t *testing.T) {
	drv := &fakeDriver{
		sendResp: &serialmcp.Response{Data: "partial data", BytesReceived: 12},
		sendErr:  serialmcp.ErrKeywordTimeout,
	}
	h := newTestHandlers(drv)

	result, _ := h.Send(context.Background(), callRequest("serial_send", map[string]any{
		"payload":      "AT",
		"wait_policy":  "keyword",
		"stop_pattern": "OK",
	}))

	body := decodeResult(t, result)
	if body["success"] != false {
		t.Fatalf("Expected failure, got %v", body)
	}
	if body["errorType"] != "TimeoutError" || body["errorCode"] != "E_TIMEOUT" {
		t.Errorf("Expected TimeoutError/E_TIMEOUT, got %v/%v", body["errorType"], body["errorCode"])
	}
	partial, ok := body["partial"].(map[string]any)
	if !ok {
		t.Fatal("Timeout result should carry the partial response")
	}
	if partial["data"] != "partial data" {
		t.Errorf("Unexpected partial body: %v", partial)
	}
}

func TestSendMissingPayload(t *testing.T) {
	h := newTestHandlers(&fakeDriver{})

	result, _ := h.Send(context.Background(), callRequest("serial_send", nil))

	body := decodeResult(t, result)
	if body["errorType"] != "InvalidInputError" {
		t.Errorf("Expected InvalidInputError, got %v", body["errorType"])
	}
}

func TestReadNotificationsDefaultsToClear(t *testing.T) {
	drv := &fakeDriver{notes: []serialmcp.Notification{
		{Data: "EVENT1", Timestamp: time.Now()},
		{Data: "EVENT2", Timestamp: time.Now()},
	}}
	h := newTestHandlers(drv)

	result, _ := h.ReadNotifications(context.Background(), callRequest("serial_read_notifications", nil))

	body := decodeResult(t, result)
	if body["count"] != float64(2) || body["cleared"] != true {
		t.Errorf("Expected count=2 cleared=true, got %v", body)
	}
	if len(drv.drainClear) != 1 || !drv.drainClear[0] {
		t.Errorf("Expected DrainNotifications(true), got %v", drv.drainClear)
	}
}

func TestReadNotificationsPeek(t *testing.T) {
	drv := &fakeDriver{notes: []serialmcp.Notification{{Data: "EVENT", Timestamp: time.Now()}}}
	h := newTestHandlers(drv)

	result, _ := h.ReadNotifications(context.Background(), callRequest("serial_read_notifications", map[string]any{
		"clear": false,
	}))

	body := decodeResult(t, result)
	if body["cleared"] != false {
		t.Errorf("Expected cleared=false, got %v", body)
	}
	if len(drv.notes) != 1 {
		t.Error("Peek must not consume the queue")
	}
}

func TestStatusTool(t *testing.T) {
	drv := &fakeDriver{connected: true, port: "/dev/ttyUSB0", baud: 115200}
	h := newTestHandlers(drv)

	result, _ := h.Status(context.Background(), callRequest("serial_status", nil))

	body := decodeResult(t, result)
	if body["connected"] != true || body["port"] != "/dev/ttyUSB0" {
		t.Errorf("Unexpected status body: %v", body)
	}
	metrics, ok := body["metrics"].(map[string]any)
	if !ok {
		t.Fatal("Status should embed the metrics snapshot")
	}
	if metrics["send_ops"] != float64(7) {
		t.Errorf("Expected send_ops 7, got %v", metrics["send_ops"])
	}
}
