package serialmcp

import (
	"bytes"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// readerJoinTimeout bounds how long Disconnect waits for the reader
	// loop before abandoning it.
	readerJoinTimeout = 2 * time.Second
	// syncPopInterval is the poll granularity of the wait policies.
	syncPopInterval = 100 * time.Millisecond
	// modeAckTimeout bounds the handshake wait for the reader to observe a
	// mode switch before a write proceeds anyway.
	modeAckTimeout = 50 * time.Millisecond
)

// PolicyKind selects how Send waits for a response.
type PolicyKind int

const (
	// PolicyNone writes and returns immediately without switching modes.
	PolicyNone PolicyKind = iota
	// PolicyKeyword waits until a byte pattern appears in the response.
	PolicyKeyword
	// PolicyTimeout collects everything delivered within a fixed window.
	PolicyTimeout
	// PolicyEcho behaves like PolicyTimeout; echo/response separation is a
	// protocol concern layered by the caller.
	PolicyEcho
)

func (k PolicyKind) String() string {
	switch k {
	case PolicyNone:
		return "none"
	case PolicyKeyword:
		return "keyword"
	case PolicyTimeout:
		return "timeout"
	case PolicyEcho:
		return "echo"
	default:
		return fmt.Sprintf("policy(%d)", int(k))
	}
}

// ParsePolicyKind converts the boundary-layer policy name into a PolicyKind.
func ParsePolicyKind(s string) (PolicyKind, error) {
	switch s {
	case "", "none":
		return PolicyNone, nil
	case "keyword":
		return PolicyKeyword, nil
	case "timeout":
		return PolicyTimeout, nil
	case "echo":
		return PolicyEcho, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
	}
}

// WaitPolicy is carried per Send call, never persisted.
type WaitPolicy struct {
	Kind    PolicyKind
	Pattern []byte        // required for PolicyKeyword
	Timeout time.Duration // zero means the configured default
}

// Response is the result of a synchronous exchange. Data follows the decode
// rule: UTF-8 text, or lowercase hex with IsHex set.
type Response struct {
	Data                 string
	Raw                  []byte
	IsHex                bool
	FoundPattern         bool
	BytesReceived        int
	PendingNotifications int
}

// Notification is one silence-framed unsolicited message.
type Notification struct {
	Data      string
	Raw       []byte
	IsHex     bool
	Timestamp time.Time
}

// Status is a point-in-time view of the driver.
type Status struct {
	Connected            bool
	Port                 string
	BaudRate             int
	SyncMode             bool
	PendingNotifications int
	SyncQueueDepth       int
}

// Driver owns one serial connection and its reader loop, and implements the
// send-and-wait policies on top of the two queues.
type Driver struct {
	cfg     Config
	log     *slog.Logger
	opener  Opener
	metrics *Metrics

	// sendMu serializes the whole Send orchestration so two exchanges can
	// never interleave on the sync channel.
	sendMu sync.Mutex

	mu          sync.Mutex
	initialized bool
	connected   bool
	port        Port
	portName    string
	baudRate    int
	reader      *readerLoop

	syncMode atomic.Bool
	modeSeq  atomic.Uint64
	modeSeen atomic.Uint64
	syncQ    *byteQueue
	notifyQ  *byteQueue
}

// New creates a driver that opens real serial devices.
func New(cfg Config, log *slog.Logger) *Driver {
	return NewWithOpener(cfg, log, OpenPort)
}

// NewWithOpener creates a driver with a custom port opener. This is the
// extension point for alternative transports and for tests.
func NewWithOpener(cfg Config, log *slog.Logger, opener Opener) *Driver {
	if log == nil {
		log = slog.Default()
	}
	return &Driver{
		cfg:     cfg,
		log:     log,
		opener:  opener,
		metrics: &Metrics{},
	}
}

// Initialize performs the one-time setup of the internal queues. It must be
// called before Connect and is idempotent.
func (d *Driver) Initialize() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.initialized {
		return nil
	}
	if d.cfg.ChunkSize <= 0 || d.cfg.PollInterval <= 0 ||
		d.cfg.IdleTimeout <= 0 || d.cfg.NotifyCapacity <= 0 {
		return ErrInvalidConfig
	}

	d.syncQ = newByteQueue(0)
	d.notifyQ = newByteQueue(d.cfg.NotifyCapacity)
	d.initialized = true
	return nil
}

// Connect opens the device and starts the reader loop. A baudRate of zero
// uses the configured default. When a connection is already open, the stale
// handle is force-closed first.
func (d *Driver) Connect(portName string, baudRate int) error {
	d.mu.Lock()
	if !d.initialized {
		d.mu.Unlock()
		return ErrNotInitialized
	}
	if baudRate <= 0 {
		baudRate = d.cfg.BaudRate
	}

	if d.connected {
		d.log.Warn("already connected, force-closing stale connection", "port", d.portName)
		stale := d.reader
		stalePort := d.port
		d.reader = nil
		d.port = nil
		d.connected = false
		d.mu.Unlock()

		if stale != nil && !stale.stopAndWait(readerJoinTimeout) {
			d.log.Warn("stale reader loop did not stop in time, abandoning", "port", portName)
		}
		if stalePort != nil && stalePort.IsOpen() {
			if err := stalePort.Close(); err != nil {
				d.log.Warn("closing stale port failed", "error", err)
			}
		}
		d.mu.Lock()
	}

	cfg := d.cfg
	cfg.BaudRate = baudRate
	d.metrics.connectAttempts.Add(1)

	port, err := d.opener(portName, cfg)
	if err != nil {
		d.metrics.connectFailures.Add(1)
		d.mu.Unlock()
		d.log.Error("serial connect failed", "port", portName, "error", err)
		return fmt.Errorf("connect %s: %w", portName, err)
	}

	d.port = port
	d.portName = portName
	d.baudRate = baudRate
	d.connected = true
	d.syncMode.Store(false)
	d.reader = d.newReader()
	d.reader.start()
	d.mu.Unlock()

	d.log.Info("serial port connected", "port", portName, "baud", baudRate)
	return nil
}

func (d *Driver) newReader() *readerLoop {
	return &readerLoop{
		cfg: d.cfg,
		log: d.log,
		getPort: func() Port {
			d.mu.Lock()
			defer d.mu.Unlock()
			return d.port
		},
		reopen:   d.reopen,
		syncMode: &d.syncMode,
		modeSeq:  &d.modeSeq,
		modeSeen: &d.modeSeen,
		syncQ:    d.syncQ,
		notifyQ:  d.notifyQ,
		metrics:  d.metrics,
	}
}

// reopen is called from the reader loop after repeated read failures. It
// replaces the dead port with a freshly opened one, bounded by the
// configured attempt count and delay.
func (d *Driver) reopen(stop <-chan struct{}) bool {
	d.mu.Lock()
	if !d.connected || d.cfg.ReconnectAttempts <= 0 {
		d.mu.Unlock()
		return false
	}
	name := d.portName
	cfg := d.cfg
	cfg.BaudRate = d.baudRate
	dead := d.port
	d.port = nil
	d.mu.Unlock()

	if dead != nil && dead.IsOpen() {
		dead.Close()
	}

	for attempt := 1; attempt <= cfg.ReconnectAttempts; attempt++ {
		d.metrics.connectAttempts.Add(1)
		port, err := d.opener(name, cfg)
		if err == nil {
			d.mu.Lock()
			if !d.connected {
				// Disconnected while we were reopening.
				d.mu.Unlock()
				port.Close()
				return false
			}
			d.port = port
			d.mu.Unlock()
			d.log.Info("serial port reopened after read failures", "port", name, "attempt", attempt)
			return true
		}
		d.metrics.connectFailures.Add(1)
		d.log.Warn("reopen attempt failed", "port", name, "attempt", attempt, "error", err)

		timer := time.NewTimer(cfg.ReconnectDelay)
		select {
		case <-stop:
			timer.Stop()
			return false
		case <-timer.C:
		}
	}
	return false
}

// Disconnect stops the reader loop and closes the port. Disconnecting an
// already-closed driver is a warning, not an error.
func (d *Driver) Disconnect() error {
	d.mu.Lock()
	if !d.initialized {
		d.mu.Unlock()
		return ErrNotInitialized
	}
	if !d.connected {
		d.mu.Unlock()
		d.log.Warn("disconnect requested but no connection is open")
		return nil
	}
	reader := d.reader
	port := d.port
	name := d.portName
	d.reader = nil
	d.port = nil
	d.connected = false
	d.mu.Unlock()

	if reader != nil && !reader.stopAndWait(readerJoinTimeout) {
		// Abandoning a running goroutine is an operator-visible defect,
		// not something to swallow silently.
		d.log.Warn("reader loop did not stop within grace period, abandoning", "port", name)
	}

	if port != nil && port.IsOpen() {
		if err := port.Close(); err != nil {
			return fmt.Errorf("close %s: %w", name, err)
		}
	}

	d.log.Info("serial port disconnected", "port", name)
	return nil
}

// IsConnected reports whether both the driver flag and the port agree that
// the connection is open.
func (d *Driver) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected && d.port != nil && d.port.IsOpen()
}

// Send writes payload and waits for a response according to policy. The
// whole exchange runs under one lock, so concurrent callers serialize.
//
// On ErrKeywordTimeout the returned Response still carries whatever bytes
// were buffered before the deadline.
func (d *Driver) Send(payload []byte, policy WaitPolicy) (*Response, error) {
	d.sendMu.Lock()
	defer d.sendMu.Unlock()

	d.mu.Lock()
	if !d.initialized {
		d.mu.Unlock()
		return nil, ErrNotInitialized
	}
	port := d.port
	connected := d.connected
	d.mu.Unlock()

	if !connected || port == nil || !port.IsOpen() {
		return nil, ErrNotConnected
	}

	timeout := policy.Timeout
	if timeout <= 0 {
		timeout = d.cfg.SyncTimeout
	}

	switch policy.Kind {
	case PolicyNone:
		n, err := port.Write(payload)
		if err != nil {
			return nil, fmt.Errorf("send: %w", err)
		}
		d.metrics.addSent(n)
		return &Response{PendingNotifications: d.notifyQ.len()}, nil
	case PolicyKeyword:
		if len(policy.Pattern) == 0 {
			return nil, ErrMissingPattern
		}
	case PolicyTimeout, PolicyEcho:
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidPolicy, policy.Kind)
	}

	// Prologue: discard stale chunks from an abandoned exchange, switch the
	// reader into sync mode, drop anything the OS buffered before this
	// request, then write.
	d.syncQ.drain()
	d.enterSyncMode()
	defer d.exitSyncMode()

	if err := port.FlushInput(); err != nil {
		d.log.Warn("input flush before exchange failed", "error", err)
	}

	n, err := port.Write(payload)
	if err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}
	d.metrics.addSent(n)

	if policy.Kind == PolicyKeyword {
		return d.waitKeyword(policy.Pattern, timeout)
	}
	return d.collectWindow(timeout), nil
}

// enterSyncMode flips the mode flag and waits, bounded, for the reader loop
// to acknowledge the new sequence number before the caller writes. This is a
// handshake, not a blind sleep: the reader publishes every sequence it has
// observed.
func (d *Driver) enterSyncMode() {
	start := time.Now()
	d.syncMode.Store(true)
	seq := d.modeSeq.Add(1)

	deadline := start.Add(modeAckTimeout)
	for d.modeSeen.Load() < seq && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	d.metrics.recordModeSwitch(uint64(time.Since(start)))
}

// exitSyncMode releases the reader back to async classification. It runs on
// every Send exit path, success or failure.
func (d *Driver) exitSyncMode() {
	d.syncMode.Store(false)
	d.modeSeq.Add(1)
}

// waitKeyword accumulates sync chunks until pattern appears or the deadline
// passes.
func (d *Driver) waitKeyword(pattern []byte, timeout time.Duration) (*Response, error) {
	deadline := time.Now().Add(timeout)
	var buf []byte

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		interval := syncPopInterval
		if remaining < interval {
			interval = remaining
		}
		chunk, ok := d.syncQ.pop(interval)
		if !ok {
			continue
		}
		buf = append(buf, chunk...)
		if bytes.Contains(buf, pattern) {
			return d.makeResponse(buf, true), nil
		}
	}

	d.metrics.keywordTimeouts.Add(1)
	resp := d.makeResponse(buf, false)
	return resp, fmt.Errorf("%w: pattern %q not seen within %s (%d bytes buffered)",
		ErrKeywordTimeout, pattern, timeout, len(buf))
}

// collectWindow accumulates sync chunks for exactly the given duration.
// An empty window is a valid empty response, never an error.
func (d *Driver) collectWindow(duration time.Duration) *Response {
	deadline := time.Now().Add(duration)
	var buf []byte

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		interval := syncPopInterval
		if remaining < interval {
			interval = remaining
		}
		if chunk, ok := d.syncQ.pop(interval); ok {
			buf = append(buf, chunk...)
		}
	}

	return d.makeResponse(buf, false)
}

func (d *Driver) makeResponse(raw []byte, found bool) *Response {
	text, isHex := DecodeBytes(raw)
	return &Response{
		Data:                 text,
		Raw:                  raw,
		IsHex:                isHex,
		FoundPattern:         found,
		BytesReceived:        len(raw),
		PendingNotifications: d.notifyQ.len(),
	}
}

// DrainNotifications returns the queued notifications in arrival order with
// the decode rule applied. With clear true the queue is emptied; with clear
// false the queue is left intact (a true non-destructive peek). Messages
// framed after the call begins are not included either way.
func (d *Driver) DrainNotifications(clear bool) []Notification {
	d.mu.Lock()
	q := d.notifyQ
	d.mu.Unlock()
	if q == nil {
		return nil
	}

	var raw [][]byte
	if clear {
		raw = q.drain()
	} else {
		raw = q.snapshot()
	}

	now := time.Now()
	out := make([]Notification, 0, len(raw))
	for _, msg := range raw {
		text, isHex := DecodeBytes(msg)
		out = append(out, Notification{
			Data:      text,
			Raw:       msg,
			IsHex:     isHex,
			Timestamp: now,
		})
	}
	return out
}

// Status returns a point-in-time view of the driver state.
func (d *Driver) Status() Status {
	d.mu.Lock()
	connected := d.connected && d.port != nil && d.port.IsOpen()
	name := d.portName
	baud := d.baudRate
	syncQ := d.syncQ
	notifyQ := d.notifyQ
	d.mu.Unlock()

	s := Status{
		Connected: connected,
		Port:      name,
		BaudRate:  baud,
		SyncMode:  d.syncMode.Load(),
	}
	if notifyQ != nil {
		s.PendingNotifications = notifyQ.len()
	}
	if syncQ != nil {
		s.SyncQueueDepth = syncQ.len()
	}
	return s
}

// Metrics returns a snapshot of the driver counters.
func (d *Driver) Metrics() MetricsSnapshot {
	return d.metrics.Snapshot()
}
