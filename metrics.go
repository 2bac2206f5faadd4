package serialmcp

import "sync/atomic"

// Metrics collects per-driver counters. Each driver owns its own instance so
// tests and multiple drivers in one process never share state.
type Metrics struct {
	bytesSent         atomic.Uint64
	bytesReceived     atomic.Uint64
	sendOps           atomic.Uint64
	readErrors        atomic.Uint64
	notifications     atomic.Uint64
	notifyOverflow    atomic.Uint64
	syncDrops         atomic.Uint64
	connectAttempts   atomic.Uint64
	connectFailures   atomic.Uint64
	keywordTimeouts   atomic.Uint64
	modeSwitchLatency atomic.Uint64 // worst observed handshake wait, nanoseconds
}

// MetricsSnapshot is a point-in-time copy of the driver counters.
type MetricsSnapshot struct {
	BytesSent       uint64 `json:"bytes_sent"`
	BytesReceived   uint64 `json:"bytes_received"`
	SendOps         uint64 `json:"send_ops"`
	ReadErrors      uint64 `json:"read_errors"`
	Notifications   uint64 `json:"notifications"`
	NotifyOverflow  uint64 `json:"notification_overflow"`
	SyncDrops       uint64 `json:"sync_drops"`
	ConnectAttempts uint64 `json:"connect_attempts"`
	ConnectFailures uint64 `json:"connect_failures"`
	KeywordTimeouts uint64 `json:"keyword_timeouts"`
}

func (m *Metrics) addSent(n int)     { m.bytesSent.Add(uint64(n)); m.sendOps.Add(1) }
func (m *Metrics) addReceived(n int) { m.bytesReceived.Add(uint64(n)) }

func (m *Metrics) recordModeSwitch(nanos uint64) {
	for {
		prev := m.modeSwitchLatency.Load()
		if nanos <= prev || m.modeSwitchLatency.CompareAndSwap(prev, nanos) {
			return
		}
	}
}

// Snapshot returns the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		BytesSent:       m.bytesSent.Load(),
		BytesReceived:   m.bytesReceived.Load(),
		SendOps:         m.sendOps.Load(),
		ReadErrors:      m.readErrors.Load(),
		Notifications:   m.notifications.Load(),
		NotifyOverflow:  m.notifyOverflow.Load(),
		SyncDrops:       m.syncDrops.Load(),
		ConnectAttempts: m.connectAttempts.Load(),
		ConnectFailures: m.connectFailures.Load(),
		KeywordTimeouts: m.keywordTimeouts.Load(),
	}
}

// Reset zeroes every counter.
func (m *Metrics) Reset() {
	m.bytesSent.Store(0)
	m.bytesReceived.Store(0)
	m.sendOps.Store(0)
	m.readErrors.Store(0)
	m.notifications.Store(0)
	m.notifyOverflow.Store(0)
	m.syncDrops.Store(0)
	m.connectAttempts.Store(0)
	m.connectFailures.Store(0)
	m.keywordTimeouts.Store(0)
	m.modeSwitchLatency.Store(0)
}
