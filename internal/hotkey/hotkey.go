// Package hotkey provides a global hotkey listener using gohook. The
// bridge uses a single toggle combo to connect and disconnect, standing in
// for the Connect/Disconnect buttons of a GUI.
package hotkey

import (
	"sync"

	hook "github.com/robotn/gohook"
)

// Listener watches one global key combo and emits an event per press.
type Listener struct {
	keys []string
	ch   chan struct{}
	done chan struct{}
	once sync.Once
}

// NewListener creates a Listener for the given key combo.
// keys should be lowercase key names (e.g., ["ctrl", "shift", "b"]).
func NewListener(keys []string) *Listener {
	return &Listener{
		keys: keys,
		ch:   make(chan struct{}, 16),
		done: make(chan struct{}),
	}
}

// Toggles returns the channel that receives one value per combo press.
// The channel is closed when Stop is called.
func (l *Listener) Toggles() <-chan struct{} {
	return l.ch
}

// Start begins listening for the global hotkey.
// This function blocks until Stop is called. Run it in a goroutine.
func (l *Listener) Start() {
	hook.Register(hook.KeyDown, l.keys, func(e hook.Event) {
		l.emit()
	})

	evChan := hook.Start()
	go func() {
		<-l.done
		hook.End()
	}()
	<-hook.Process(evChan)
	close(l.ch)
}

// emit delivers one toggle without blocking the hook callback; presses
// beyond the channel buffer are dropped.
func (l *Listener) emit() {
	select {
	case l.ch <- struct{}{}:
	default:
	}
}

// Stop terminates the hotkey listener.
// It is safe to call multiple times.
func (l *Listener) Stop() {
	l.once.Do(func() {
		close(l.done)
	})
}
