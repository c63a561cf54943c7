// Package bridge contains the event pipeline that turns decoded button
// events into host key actions, and the supervisor that owns the BLE
// connection lifecycle feeding it.
package bridge

import (
	"log/slog"
	"sync"
	"time"

	"github.com/chaz8081/shiftkey/internal/config"
	"github.com/chaz8081/shiftkey/internal/keys"
)

// Dispatcher tracks per-button pressed state and performs key actions on
// genuine press/release transitions. Tap buttons fire once on press; hold
// buttons hold the key down until release, optionally reissuing key-down
// at a configured rate while held.
//
// Injection errors are logged and swallowed: the physical trigger has
// already passed, so a missed keystroke is not recoverable by retry.
type Dispatcher struct {
	inj     keys.Injector
	buttons map[string]config.ButtonConfig

	mu     sync.Mutex
	states map[string]*buttonState
}

// buttonState is the runtime state of one logical button. It is created
// at startup and lives for the process lifetime; disconnect and shutdown
// only reset it to released.
type buttonState struct {
	pressed bool
	repeat  *repeatTask // non-nil only while a repeating hold button is down
}

// repeatTask is a cancelable periodic key-down reissuer for one held button.
type repeatTask struct {
	stop chan struct{}
	done chan struct{}
}

// cancel stops the task and waits for its goroutine to exit. After cancel
// returns the task emits no further key-downs.
func (t *repeatTask) cancel() {
	close(t.stop)
	<-t.done
}

// NewDispatcher creates a Dispatcher for the given buttons, keyed by
// logical button name. Every button gets a runtime state slot up front.
func NewDispatcher(inj keys.Injector, buttons map[string]config.ButtonConfig) *Dispatcher {
	states := make(map[string]*buttonState, len(buttons))
	for name := range buttons {
		states[name] = &buttonState{}
	}
	return &Dispatcher{inj: inj, buttons: buttons, states: states}
}

// Handle processes one decoded button event. Redundant events (press while
// pressed, release while released) are no-ops: the link may resend state
// outside the dedup window. Only genuine transitions act.
func (d *Dispatcher) Handle(button string, pressed bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	st, ok := d.states[button]
	if !ok {
		// The decoder only forwards mapped buttons; guard anyway.
		slog.Warn("[KEYS] event for unconfigured button", "button", button)
		return
	}
	if st.pressed == pressed {
		return
	}
	st.pressed = pressed

	cfg := d.buttons[button]
	if pressed {
		d.press(button, cfg, st)
	} else {
		d.release(button, cfg, st)
	}
}

func (d *Dispatcher) press(button string, cfg config.ButtonConfig, st *buttonState) {
	if cfg.Key == "" {
		return
	}
	if cfg.Behavior == "hold" {
		if err := d.inj.KeyDown(cfg.Key); err != nil {
			slog.Error("[KEYS] key down failed", "button", button, "key", cfg.Key, "error", err)
		}
		if hz := repeatHz(cfg); hz > 0 {
			st.repeat = d.startRepeat(button, cfg.Key, hz)
		}
		return
	}
	// tap: single momentary actuation on press; release is ignored.
	if err := d.inj.Tap(cfg.Key); err != nil {
		slog.Error("[KEYS] tap failed", "button", button, "key", cfg.Key, "error", err)
	}
}

func (d *Dispatcher) release(button string, cfg config.ButtonConfig, st *buttonState) {
	if st.repeat != nil {
		st.repeat.cancel()
		st.repeat = nil
	}
	if cfg.Behavior == "hold" && cfg.Key != "" {
		if err := d.inj.KeyUp(cfg.Key); err != nil {
			slog.Error("[KEYS] key up failed", "button", button, "key", cfg.Key, "error", err)
		}
	}
}

// startRepeat launches the typematic goroutine for a held button. It only
// ever reissues key-down; the single matching key-up comes from the
// release path or ReleaseAll.
func (d *Dispatcher) startRepeat(button, key string, hz float64) *repeatTask {
	t := &repeatTask{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	interval := time.Duration(float64(time.Second) / hz)
	go func() {
		defer close(t.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-ticker.C:
				if err := d.inj.KeyDown(key); err != nil {
					slog.Error("[KEYS] repeat key down failed", "button", button, "key", key, "error", err)
				}
			}
		}
	}()
	return t
}

// ReleaseAll releases every currently-pressed button: cancel its repeat
// task, issue a key-up, reset to released. Idempotent and best-effort; it
// is invoked on connection loss, user disconnect, and process exit, and
// must never block shutdown on a failing injector.
func (d *Dispatcher) ReleaseAll() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for button, st := range d.states {
		if !st.pressed {
			continue
		}
		st.pressed = false
		if st.repeat != nil {
			st.repeat.cancel()
			st.repeat = nil
		}
		cfg := d.buttons[button]
		if cfg.Key == "" {
			continue
		}
		if err := d.inj.KeyUp(cfg.Key); err != nil {
			slog.Warn("[KEYS] release on shutdown failed", "button", button, "key", cfg.Key, "error", err)
		}
	}
}

// Held returns the number of buttons currently pressed.
func (d *Dispatcher) Held() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, st := range d.states {
		if st.pressed {
			n++
		}
	}
	return n
}

func repeatHz(cfg config.ButtonConfig) float64 {
	if cfg.RepeatHz == nil {
		return 0
	}
	return *cfg.RepeatHz
}
