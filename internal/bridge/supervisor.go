package bridge

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chaz8081/shiftkey/internal/ble"
	"github.com/chaz8081/shiftkey/internal/config"
	"github.com/chaz8081/shiftkey/internal/frame"
)

// State is the supervisor's connection state.
type State int32

const (
	Disconnected State = iota
	Scanning
	Connecting
	Subscribed
	Disconnecting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Scanning:
		return "scanning"
	case Connecting:
		return "connecting"
	case Subscribed:
		return "subscribed"
	case Disconnecting:
		return "disconnecting"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// notifyQueueSize bounds the inbound notification channel. Frames are 3
// bytes at human button-press rates, so overflow only happens if the
// worker is wedged; drops are logged.
const notifyQueueSize = 32

// Supervisor owns the device connection lifecycle: scan, connect,
// subscribe, pump notifications through the decode→dispatch pipeline on a
// single worker, release held keys on any exit from the subscribed state,
// and reconnect after a fixed delay unless the user asked to disconnect.
type Supervisor struct {
	adapter ble.Adapter
	cfg     *config.Config
	dec     *frame.Decoder
	disp    *Dispatcher
	onState func(State) // optional, for status display

	state atomic.Int32

	userStop atomic.Bool
	mu       sync.Mutex
	stopCh   chan struct{} // closed by Disconnect; fresh per Run
}

// NewSupervisor creates a Supervisor. onState may be nil; when set it is
// called from the supervisor's goroutine on every state change.
func NewSupervisor(adapter ble.Adapter, cfg *config.Config, dec *frame.Decoder, disp *Dispatcher, onState func(State)) *Supervisor {
	return &Supervisor{
		adapter: adapter,
		cfg:     cfg,
		dec:     dec,
		disp:    disp,
		onState: onState,
	}
}

// State returns the current connection state.
func (s *Supervisor) State() State {
	return State(s.state.Load())
}

func (s *Supervisor) setState(st State) {
	s.state.Store(int32(st))
	if s.onState != nil {
		s.onState(st)
	}
}

// Disconnect requests a user-initiated disconnect: the current session is
// torn down, held keys are released, and the supervisor stays disconnected
// instead of reconnecting. Run returns; a later Run call starts over.
func (s *Supervisor) Disconnect() {
	s.userStop.Store(true)
	s.mu.Lock()
	if s.stopCh != nil {
		close(s.stopCh)
		s.stopCh = nil
	}
	s.mu.Unlock()
}

// Run drives the scan→connect→subscribe→reconnect loop until ctx is
// cancelled or Disconnect is called. The BLE adapter must already be
// enabled. Only connection-fatal setup errors are returned; in-session
// failures feed the reconnect policy instead.
func (s *Supervisor) Run(ctx context.Context) error {
	stop := make(chan struct{})
	s.mu.Lock()
	s.stopCh = stop
	s.mu.Unlock()
	s.userStop.Store(false)

	defer s.setState(Disconnected)

	for {
		if s.stopped(ctx, stop) {
			return nil
		}

		s.setState(Scanning)
		slog.Info("[BLE] scanning", "prefix", s.cfg.DeviceNamePrefix, "timeout", s.cfg.ScanTimeout())
		scanCtx, cancel := context.WithTimeout(ctx, s.cfg.ScanTimeout())
		dev, err := s.adapter.Scan(scanCtx, s.cfg.DeviceNamePrefix)
		cancel()
		if err != nil {
			slog.Warn("[BLE] scan failed", "error", err)
		}
		if dev == nil {
			if err == nil {
				slog.Warn("[BLE] device not found, is it on and advertising?")
			}
			if !s.sleepReconnect(ctx, stop) {
				return nil
			}
			continue
		}

		slog.Info("[BLE] found device", "name", dev.Name, "addr", dev.Addr, "rssi", dev.RSSI)
		s.setState(Connecting)
		conn, err := s.adapter.Connect(ctx, dev.Addr)
		if err != nil {
			slog.Warn("[BLE] connect failed", "error", err)
			if !s.sleepReconnect(ctx, stop) {
				return nil
			}
			continue
		}

		if err := s.session(ctx, stop, conn); err != nil {
			slog.Warn("[BLE] session ended", "error", err)
		}

		if s.stopped(ctx, stop) {
			return nil
		}
		slog.Info("[BLE] reconnecting", "delay", s.cfg.ReconnectDelay())
		if !s.sleepReconnect(ctx, stop) {
			return nil
		}
	}
}

var errConnectionLost = errors.New("bridge: connection lost")

// session subscribes to the button characteristic and pumps notifications
// until the link drops, the user disconnects, or ctx is cancelled. Every
// exit path releases held keys before the connection is closed.
func (s *Supervisor) session(ctx context.Context, stop <-chan struct{}, conn ble.Connection) error {
	defer func() {
		s.setState(Disconnecting)
		s.disp.ReleaseAll()
		if err := conn.Disconnect(); err != nil {
			slog.Debug("[BLE] disconnect", "error", err)
		}
		s.setState(Disconnected)
	}()

	char, err := conn.DiscoverCharacteristic(s.cfg.ServiceUUID, s.cfg.CharacteristicUUID)
	if err != nil {
		return fmt.Errorf("bridge: discover characteristic: %w", err)
	}

	lost := make(chan struct{})
	var lostOnce sync.Once
	conn.OnDisconnect(func() {
		lostOnce.Do(func() { close(lost) })
	})

	// Notifications are handed off to a buffered channel so decode and
	// dispatch run on this goroutine, serialized in delivery order.
	notifications := make(chan []byte, notifyQueueSize)
	err = char.Subscribe(func(buf []byte) {
		payload := make([]byte, len(buf))
		copy(payload, buf)
		select {
		case notifications <- payload:
		default:
			slog.Warn("[BLE] notification queue full, dropping frame")
		}
	})
	if err != nil {
		return fmt.Errorf("bridge: subscribe: %w", err)
	}

	s.setState(Subscribed)
	slog.Info("[BLE] subscribed, listening for button frames")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-stop:
			return nil
		case <-lost:
			return errConnectionLost
		case payload := <-notifications:
			s.handleFrame(payload)
		}
	}
}

// handleFrame runs one payload through decode → dedup → state transition.
// Malformed and unknown frames are discarded with a log entry; duplicates
// are discarded silently at debug level.
func (s *Supervisor) handleFrame(payload []byte) {
	ev, err := s.dec.Decode(payload)
	if err != nil {
		slog.Debug("[BLE] discarding frame", "payload", hex.EncodeToString(payload), "error", err)
		return
	}
	if s.dec.Duplicate(ev) {
		slog.Debug("[BLE] duplicate frame", "button", ev.Button, "seq", ev.Seq)
		return
	}
	slog.Info("[BLE] button event", "button", ev.Button, "pressed", ev.Pressed, "seq", ev.Seq)
	s.disp.Handle(ev.Button, ev.Pressed)
}

// stopped reports whether the user disconnected or ctx was cancelled.
func (s *Supervisor) stopped(ctx context.Context, stop <-chan struct{}) bool {
	if s.userStop.Load() || ctx.Err() != nil {
		return true
	}
	select {
	case <-stop:
		return true
	default:
		return false
	}
}

// sleepReconnect waits the configured reconnect delay. It returns false
// if the wait was interrupted by a user disconnect or ctx cancellation,
// in which case the caller must stop.
func (s *Supervisor) sleepReconnect(ctx context.Context, stop <-chan struct{}) bool {
	t := time.NewTimer(s.cfg.ReconnectDelay())
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-stop:
		return false
	case <-t.C:
		return !s.userStop.Load()
	}
}
