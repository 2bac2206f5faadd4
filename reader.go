package serialmcp

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// notOpenInterval is how long the loop sleeps when no port is open.
	notOpenInterval = 100 * time.Millisecond
	// errorBackoff is the pause after a failed read before retrying.
	errorBackoff = 500 * time.Millisecond
	// reconnectThreshold is the number of consecutive read failures after
	// which the loop asks the driver to reopen the port.
	reconnectThreshold = 3
)

// readerLoop is the sole byte-level consumer of the port while a connection
// is active. It classifies every chunk by the current mode, feeds the sync
// channel during an exchange, and frames the async stream into notification
// messages using inter-byte silence.
type readerLoop struct {
	cfg Config
	log *slog.Logger

	// getPort returns the current port; the driver may swap it during a
	// reconnect, so the loop re-fetches it every iteration.
	getPort func() Port
	// reopen asks the driver to reopen the port after repeated read
	// failures. It returns true once a fresh port is installed.
	reopen func(stop <-chan struct{}) bool

	syncMode *atomic.Bool
	modeSeq  *atomic.Uint64
	modeSeen *atomic.Uint64

	syncQ   *byteQueue
	notifyQ *byteQueue
	metrics *Metrics

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}

	// accumulator for async bytes awaiting an idle-timeout frame boundary
	acc      []byte
	lastRecv time.Time
}

func (r *readerLoop) start() {
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	go r.run()
}

// stopAndWait requests the loop to stop and waits up to timeout for it to
// exit. It returns false when the loop had to be abandoned.
func (r *readerLoop) stopAndWait(timeout time.Duration) bool {
	r.stopOnce.Do(func() { close(r.stop) })
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-r.done:
		return true
	case <-timer.C:
		return false
	}
}

func (r *readerLoop) run() {
	defer close(r.done)
	// Flush whatever the accumulator holds so no trailing message is lost.
	defer r.flushAccumulator()

	failures := 0
	for {
		select {
		case <-r.stop:
			return
		default:
		}

		// Acknowledge a mode change only after handling residue: async
		// bytes buffered at the instant of an Async->Sync flip must become
		// a notification, never part of a sync reply.
		if seq := r.modeSeq.Load(); seq != r.modeSeen.Load() {
			if r.syncMode.Load() && len(r.acc) > 0 {
				r.flushAccumulator()
			}
			r.modeSeen.Store(seq)
		}

		port := r.getPort()
		if port == nil || !port.IsOpen() {
			if !r.sleep(notOpenInterval) {
				return
			}
			continue
		}

		data, err := port.ReadAvailable(r.cfg.ChunkSize)
		if err != nil {
			r.metrics.readErrors.Add(1)
			r.log.Error("serial read failed", "error", err)
			failures++
			if failures >= reconnectThreshold && r.reopen != nil {
				if r.reopen(r.stop) {
					failures = 0
				}
			}
			if !r.sleep(errorBackoff) {
				return
			}
			continue
		}
		failures = 0

		if len(data) > 0 {
			r.metrics.addReceived(len(data))
			if r.syncMode.Load() {
				if len(r.acc) > 0 {
					r.flushAccumulator()
				}
				if !r.syncQ.push(data) {
					// The sync consumer drains promptly in steady state, so
					// saturation here is a bug worth shouting about. The
					// reader still must not block.
					r.metrics.syncDrops.Add(1)
					r.log.Error("sync channel saturated, dropping chunk", "bytes", len(data))
				}
			} else {
				r.acc = append(r.acc, data...)
				r.lastRecv = time.Now()
			}
		}

		// Idle-timeout framing: silence is the only message delimiter the
		// link guarantees.
		if len(r.acc) > 0 && !r.syncMode.Load() && time.Since(r.lastRecv) >= r.cfg.IdleTimeout {
			r.flushAccumulator()
		}

		if !r.sleep(r.cfg.PollInterval) {
			return
		}
	}
}

// flushAccumulator moves the buffered async bytes into the notification
// queue as one framed message.
func (r *readerLoop) flushAccumulator() {
	if len(r.acc) == 0 {
		return
	}
	msg := r.acc
	r.acc = nil

	if r.notifyQ.push(msg) {
		r.metrics.notifications.Add(1)
	} else {
		r.metrics.notifyOverflow.Add(1)
		r.log.Error("notification queue full, message dropped", "bytes", len(msg))
	}
	r.lastRecv = time.Now()
}

// sleep pauses for d, returning false when a stop was requested.
func (r *readerLoop) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-r.stop:
		return false
	case <-timer.C:
		return true
	}
}
