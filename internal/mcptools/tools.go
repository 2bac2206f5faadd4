// Package mcptools exposes the serial driver as MCP tools.
//
// Every tool returns a JSON text result. Failures are reported inside the
// result body as {success:false, errorType, errorMessage, errorCode} so MCP
// clients can branch on the taxonomy without parsing error strings.
package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/allbin/serialmcp"
)

// SerialDriver is the driver surface the tools operate on.
type SerialDriver interface {
	Initialize() error
	Connect(portName string, baudRate int) error
	Disconnect() error
	IsConnected() bool
	Send(payload []byte, policy serialmcp.WaitPolicy) (*serialmcp.Response, error)
	DrainNotifications(clear bool) []serialmcp.Notification
	Status() serialmcp.Status
	Metrics() serialmcp.MetricsSnapshot
}

// Handlers binds one driver to the tool callbacks.
type Handlers struct {
	drv       SerialDriver
	log       *slog.Logger
	listPorts func() ([]serialmcp.PortInfo, error)
}

// NewHandlers creates the tool handlers for a driver.
func NewHandlers(drv SerialDriver, log *slog.Logger) *Handlers {
	if log == nil {
		log = slog.Default()
	}
	return &Handlers{drv: drv, log: log, listPorts: serialmcp.ListPorts}
}

// Register adds every serial tool to the MCP server.
func Register(s *server.MCPServer, h *Handlers) {
	s.AddTool(mcp.NewTool("serial_list_ports",
		mcp.WithDescription("List serial ports available on this machine."),
	), h.ListPorts)

	s.AddTool(mcp.NewTool("serial_configure",
		mcp.WithDescription("Open or close the serial connection."),
		mcp.WithString("action", mcp.Required(),
			mcp.Description("\"open\" or \"close\".")),
		mcp.WithString("port",
			mcp.Description("Device path, e.g. /dev/ttyUSB0. Required for open.")),
		mcp.WithNumber("baud_rate",
			mcp.Description("Baud rate for open. Defaults to 115200.")),
	), h.Configure)

	s.AddTool(mcp.NewTool("serial_send",
		mcp.WithDescription("Write a payload to the port and optionally wait for a response."),
		mcp.WithString("payload", mcp.Required(),
			mcp.Description("Data to send. UTF-8 text (\\r, \\n, \\r\\n escapes expand) or hex digits.")),
		mcp.WithString("encoding",
			mcp.Description("\"utf8\" (default) or \"hex\".")),
		mcp.WithString("wait_policy",
			mcp.Description("\"none\" (default), \"keyword\", \"timeout\" or \"echo\".")),
		mcp.WithString("stop_pattern",
			mcp.Description("Pattern the keyword policy waits for. Same encoding as the payload.")),
		mcp.WithNumber("timeout_ms",
			mcp.Description("Wait window in milliseconds. Zero uses the configured default.")),
	), h.Send)

	s.AddTool(mcp.NewTool("serial_read_notifications",
		mcp.WithDescription("Read unsolicited messages framed from the async channel."),
		mcp.WithBoolean("clear",
			mcp.Description("Consume the queue (default true). False returns a non-destructive peek.")),
	), h.ReadNotifications)

	s.AddTool(mcp.NewTool("serial_status",
		mcp.WithDescription("Report connection state, queue depths and counters."),
	), h.Status)
}

type portEntry struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Description string `json:"description"`
}

type notificationEntry struct {
	Data      string `json:"data"`
	IsHex     bool   `json:"isHex"`
	Timestamp string `json:"timestamp"`
}

type responseBody struct {
	Data                 string `json:"data"`
	IsHex                bool   `json:"isHex"`
	FoundPattern         bool   `json:"foundPattern"`
	BytesReceived        int    `json:"bytesReceived"`
	PendingNotifications int    `json:"pendingNotifications"`
}

type failure struct {
	Success      bool          `json:"success"`
	ErrorType    string        `json:"errorType"`
	ErrorMessage string        `json:"errorMessage"`
	ErrorCode    string        `json:"errorCode"`
	Partial      *responseBody `json:"partial,omitempty"`
}

// ListPorts handles serial_list_ports.
func (h *Handlers) ListPorts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ports, err := h.listPorts()
	if err != nil {
		return failResult(err, nil), nil
	}

	entries := make([]portEntry, 0, len(ports))
	for _, p := range ports {
		entries = append(entries, portEntry{Name: p.Name, Path: p.Path, Description: p.Description})
	}

	return jsonResult(struct {
		Success bool        `json:"success"`
		Count   int         `json:"count"`
		Ports   []portEntry `json:"ports"`
	}{true, len(entries), entries}), nil
}

// Configure handles serial_configure.
func (h *Handlers) Configure(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	action, err := request.RequireString("action")
	if err != nil {
		return inputError(err), nil
	}

	switch action {
	case "open":
		port := request.GetString("port", "")
		if port == "" {
			return inputError(errors.New("port is required for open")), nil
		}
		baud := request.GetInt("baud_rate", 115200)

		if err := h.drv.Initialize(); err != nil {
			return failResult(err, nil), nil
		}
		if err := h.drv.Connect(port, baud); err != nil {
			return failResult(err, nil), nil
		}
		h.log.Info("port opened", "port", port, "baud_rate", baud)

		return jsonResult(struct {
			Success  bool   `json:"success"`
			Port     string `json:"port"`
			BaudRate int    `json:"baudRate"`
		}{true, port, baud}), nil

	case "close":
		if err := h.drv.Disconnect(); err != nil {
			return failResult(err, nil), nil
		}
		h.log.Info("port closed")

		return jsonResult(struct {
			Success bool `json:"success"`
		}{true}), nil

	default:
		return inputError(errors.New("action must be \"open\" or \"close\"")), nil
	}
}

// Send handles serial_send.
func (h *Handlers) Send(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	payload, err := request.RequireString("payload")
	if err != nil {
		return inputError(err), nil
	}
	encoding := request.GetString("encoding", "utf8")
	policyName := request.GetString("wait_policy", "none")
	stopPattern := request.GetString("stop_pattern", "")
	timeoutMs := request.GetInt("timeout_ms", 0)

	data, err := serialmcp.EncodePayload(payload, encoding)
	if err != nil {
		return failResult(err, nil), nil
	}

	kind, err := serialmcp.ParsePolicyKind(policyName)
	if err != nil {
		return failResult(err, nil), nil
	}

	var pattern []byte
	if stopPattern != "" {
		pattern, err = serialmcp.EncodePayload(stopPattern, encoding)
		if err != nil {
			return failResult(err, nil), nil
		}
	}

	policy := serialmcp.WaitPolicy{
		Kind:    kind,
		Pattern: pattern,
		Timeout: time.Duration(timeoutMs) * time.Millisecond,
	}

	resp, err := h.drv.Send(data, policy)
	if err != nil {
		// Keyword timeouts still carry whatever arrived before the deadline.
		var partial *responseBody
		if resp != nil {
			partial = shapeResponse(resp)
		}
		return failResult(err, partial), nil
	}

	body := shapeResponse(resp)
	return jsonResult(struct {
		Success  bool          `json:"success"`
		Response *responseBody `json:"response"`
	}{true, body}), nil
}

// ReadNotifications handles serial_read_notifications.
func (h *Handlers) ReadNotifications(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	clear := request.GetBool("clear", true)

	notes := h.drv.DrainNotifications(clear)
	entries := make([]notificationEntry, 0, len(notes))
	for _, n := range notes {
		entries = append(entries, notificationEntry{
			Data:      n.Data,
			IsHex:     n.IsHex,
			Timestamp: n.Timestamp.Format(time.RFC3339Nano),
		})
	}

	return jsonResult(struct {
		Success       bool                `json:"success"`
		Count         int                 `json:"count"`
		Cleared       bool                `json:"cleared"`
		Notifications []notificationEntry `json:"notifications"`
	}{true, len(entries), clear, entries}), nil
}

// Status handles serial_status.
func (h *Handlers) Status(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st := h.drv.Status()
	snap := h.drv.Metrics()

	return jsonResult(struct {
		Success              bool                      `json:"success"`
		Connected            bool                      `json:"connected"`
		Port                 string                    `json:"port"`
		BaudRate             int                       `json:"baudRate"`
		SyncMode             bool                      `json:"syncMode"`
		PendingNotifications int                       `json:"pendingNotifications"`
		SyncQueueDepth       int                       `json:"syncQueueDepth"`
		Metrics              serialmcp.MetricsSnapshot `json:"metrics"`
	}{true, st.Connected, st.Port, st.BaudRate, st.SyncMode, st.PendingNotifications, st.SyncQueueDepth, snap}), nil
}

func shapeResponse(resp *serialmcp.Response) *responseBody {
	return &responseBody{
		Data:                 resp.Data,
		IsHex:                resp.IsHex,
		FoundPattern:         resp.FoundPattern,
		BytesReceived:        resp.BytesReceived,
		PendingNotifications: resp.PendingNotifications,
	}
}

// classifyError maps driver sentinels onto the errorType/errorCode taxonomy.
func classifyError(err error) (string, string) {
	switch {
	case errors.Is(err, serialmcp.ErrKeywordTimeout):
		return "TimeoutError", "E_TIMEOUT"
	case errors.Is(err, serialmcp.ErrNotInitialized):
		return "NotInitializedError", "E_INIT"
	case errors.Is(err, serialmcp.ErrNotConnected),
		errors.Is(err, serialmcp.ErrPortClosed),
		errors.Is(err, serialmcp.ErrDeviceNotFound),
		errors.Is(err, serialmcp.ErrPermissionDenied),
		errors.Is(err, serialmcp.ErrDeviceInUse):
		return "ConnectionError", "E_CONN"
	case errors.Is(err, serialmcp.ErrInvalidBaudRate),
		errors.Is(err, serialmcp.ErrInvalidConfig),
		errors.Is(err, serialmcp.ErrInvalidPolicy),
		errors.Is(err, serialmcp.ErrMissingPattern):
		return "InvalidInputError", "E_INPUT"
	case errors.Is(err, serialmcp.ErrInvalidEncoding),
		errors.Is(err, serialmcp.ErrInvalidHex):
		return "DataError", "E_DATA"
	default:
		return "SerialError", "E_SERIAL"
	}
}

func failResult(err error, partial *responseBody) *mcp.CallToolResult {
	errType, code := classifyError(err)
	return jsonResult(failure{
		Success:      false,
		ErrorType:    errType,
		ErrorMessage: err.Error(),
		ErrorCode:    code,
		Partial:      partial,
	})
}

func inputError(err error) *mcp.CallToolResult {
	return jsonResult(failure{
		Success:      false,
		ErrorType:    "InvalidInputError",
		ErrorMessage: err.Error(),
		ErrorCode:    "E_INPUT",
	})
}

func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError("marshal result: " + err.Error())
	}
	return mcp.NewToolResultText(string(data))
}
