// Package keys injects synthetic keyboard events into the foreground
// application using robotgo.
package keys

import (
	"fmt"
	"sync"

	"github.com/go-vgo/robotgo"
)

// Injector is the host keystroke capability consumed by the dispatcher.
// Implementations must tolerate concurrent calls.
type Injector interface {
	// KeyDown presses and holds a key.
	KeyDown(key string) error
	// KeyUp releases a previously held key.
	KeyUp(key string) error
	// Tap presses and immediately releases a key.
	Tap(key string) error
}

// specialKeys maps logical key names from the button config to the key
// strings robotgo expects. Names not in the table (single characters like
// "k" or "3") pass through unchanged.
var specialKeys = map[string]string{
	"ArrowUp":    "up",
	"ArrowDown":  "down",
	"ArrowLeft":  "left",
	"ArrowRight": "right",
	"Space":      "space",
	"Enter":      "enter",
	"Tab":        "tab",
	"Esc":        "escape",
	"Escape":     "escape",
	"Backspace":  "backspace",
	"Delete":     "delete",
	"Home":       "home",
	"End":        "end",
	"PageUp":     "pageup",
	"PageDown":   "pagedown",
}

// Resolve converts a logical key name to a robotgo key string.
func Resolve(name string) string {
	if mapped, ok := specialKeys[name]; ok {
		return mapped
	}
	return name
}

// Robotgo injects keystrokes through robotgo. A mutex serializes calls:
// repeat goroutines and the frame worker share one injector and the
// underlying OS primitive is not reentrant.
type Robotgo struct {
	mu sync.Mutex
}

// Compile-time interface satisfaction check.
var _ Injector = (*Robotgo)(nil)

// NewRobotgo creates a robotgo-backed injector.
func NewRobotgo() *Robotgo {
	return &Robotgo{}
}

func (r *Robotgo) KeyDown(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := robotgo.KeyDown(Resolve(key)); err != nil {
		return fmt.Errorf("keys: key down %q: %w", key, err)
	}
	return nil
}

func (r *Robotgo) KeyUp(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := robotgo.KeyUp(Resolve(key)); err != nil {
		return fmt.Errorf("keys: key up %q: %w", key, err)
	}
	return nil
}

func (r *Robotgo) Tap(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := robotgo.KeyTap(Resolve(key)); err != nil {
		return fmt.Errorf("keys: tap %q: %w", key, err)
	}
	return nil
}
