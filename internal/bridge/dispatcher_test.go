package bridge

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/chaz8081/shiftkey/internal/config"
)

// mockInjector records key actions and optionally fails every call.
type mockInjector struct {
	mu   sync.Mutex
	err  error
	down []string
	up   []string
	taps []string
}

func (m *mockInjector) KeyDown(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.down = append(m.down, key)
	return m.err
}

func (m *mockInjector) KeyUp(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.up = append(m.up, key)
	return m.err
}

func (m *mockInjector) Tap(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.taps = append(m.taps, key)
	return m.err
}

func (m *mockInjector) counts() (down, up, taps int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.down), len(m.up), len(m.taps)
}

func hzPtr(v float64) *float64 { return &v }

func testButtons() map[string]config.ButtonConfig {
	return map[string]config.ButtonConfig{
		"Right Shift Up": {Name: "Right Shift Up", Key: "i", Behavior: "tap", RepeatHz: hzPtr(0)},
		"Right Steer":    {Name: "Right Steer", Key: "ArrowRight", Behavior: "hold", RepeatHz: hzPtr(0)},
		"Left Steer":     {Name: "Left Steer", Key: "ArrowLeft", Behavior: "hold", RepeatHz: hzPtr(50)},
		"Spare":          {Name: "Spare", Key: "", Behavior: "tap", RepeatHz: hzPtr(0)},
	}
}

func TestTapButton(t *testing.T) {
	inj := &mockInjector{}
	d := NewDispatcher(inj, testButtons())

	d.Handle("Right Shift Up", true)
	down, up, taps := inj.counts()
	if down != 0 || up != 0 || taps != 1 {
		t.Fatalf("after press: down=%d up=%d taps=%d, want 0/0/1", down, up, taps)
	}

	// Release is a no-op for tap buttons.
	d.Handle("Right Shift Up", false)
	down, up, taps = inj.counts()
	if down != 0 || up != 0 || taps != 1 {
		t.Errorf("after release: down=%d up=%d taps=%d, want 0/0/1", down, up, taps)
	}

	// A second full press/release cycle taps again.
	d.Handle("Right Shift Up", true)
	if _, _, taps = inj.counts(); taps != 2 {
		t.Errorf("after second press: taps=%d, want 2", taps)
	}
}

func TestRedundantEventsAreIdempotent(t *testing.T) {
	inj := &mockInjector{}
	d := NewDispatcher(inj, testButtons())

	// Release while already released: nothing.
	d.Handle("Right Steer", false)
	// Press, then press again while pressed: one key-down.
	d.Handle("Right Steer", true)
	d.Handle("Right Steer", true)
	down, up, _ := inj.counts()
	if down != 1 || up != 0 {
		t.Fatalf("after double press: down=%d up=%d, want 1/0", down, up)
	}

	d.Handle("Right Steer", false)
	d.Handle("Right Steer", false)
	down, up, _ = inj.counts()
	if down != 1 || up != 1 {
		t.Errorf("after double release: down=%d up=%d, want 1/1", down, up)
	}
}

func TestHoldWithoutRepeat(t *testing.T) {
	inj := &mockInjector{}
	d := NewDispatcher(inj, testButtons())

	d.Handle("Right Steer", true)
	time.Sleep(50 * time.Millisecond)
	down, up, _ := inj.counts()
	if down != 1 || up != 0 {
		t.Fatalf("while held: down=%d up=%d, want 1/0 (repeat disabled)", down, up)
	}

	d.Handle("Right Steer", false)
	down, up, _ = inj.counts()
	if down != 1 || up != 1 {
		t.Errorf("after release: down=%d up=%d, want 1/1", down, up)
	}
}

func TestHoldWithRepeat(t *testing.T) {
	inj := &mockInjector{}
	d := NewDispatcher(inj, testButtons())

	// Left Steer repeats at 50 Hz (20ms). Hold for ~120ms.
	d.Handle("Left Steer", true)
	time.Sleep(120 * time.Millisecond)
	d.Handle("Left Steer", false)

	down, up, _ := inj.counts()
	if down < 3 {
		t.Errorf("held ~120ms at 50Hz: down=%d, want at least 3", down)
	}
	if up != 1 {
		t.Errorf("after release: up=%d, want exactly 1", up)
	}

	// Cancellation is awaited, so zero key-downs may arrive after release.
	time.Sleep(80 * time.Millisecond)
	downAfter, upAfter, _ := inj.counts()
	if downAfter != down {
		t.Errorf("key-downs after release: %d new, want 0", downAfter-down)
	}
	if upAfter != 1 {
		t.Errorf("key-ups after release: %d, want 1", upAfter)
	}
}

func TestRepeatInjectionErrorsAreSwallowed(t *testing.T) {
	inj := &mockInjector{err: errors.New("injection broken")}
	d := NewDispatcher(inj, testButtons())

	// Handle never propagates injector failures; the hold cycle completes.
	d.Handle("Left Steer", true)
	time.Sleep(50 * time.Millisecond)
	d.Handle("Left Steer", false)

	if got := d.Held(); got != 0 {
		t.Errorf("Held() = %d after release, want 0", got)
	}
}

func TestUnboundButtonTracksStateOnly(t *testing.T) {
	inj := &mockInjector{}
	d := NewDispatcher(inj, testButtons())

	d.Handle("Spare", true)
	if got := d.Held(); got != 1 {
		t.Errorf("Held() = %d, want 1", got)
	}
	d.Handle("Spare", false)

	down, up, taps := inj.counts()
	if down != 0 || up != 0 || taps != 0 {
		t.Errorf("unbound button injected: down=%d up=%d taps=%d, want 0/0/0", down, up, taps)
	}
}

func TestReleaseAll(t *testing.T) {
	inj := &mockInjector{}
	d := NewDispatcher(inj, testButtons())

	// Three buttons pressed, one of them repeating, one a tap.
	d.Handle("Right Steer", true)
	d.Handle("Left Steer", true)
	d.Handle("Right Shift Up", true)
	if got := d.Held(); got != 3 {
		t.Fatalf("Held() = %d, want 3", got)
	}

	d.ReleaseAll()

	_, up, _ := inj.counts()
	if up != 3 {
		t.Errorf("after ReleaseAll: up=%d, want 3 (one per pressed button)", up)
	}
	if got := d.Held(); got != 0 {
		t.Errorf("Held() = %d after ReleaseAll, want 0", got)
	}

	// Idempotent: a second sweep does nothing.
	d.ReleaseAll()
	if _, up2, _ := inj.counts(); up2 != up {
		t.Errorf("second ReleaseAll emitted %d extra key-ups, want 0", up2-up)
	}

	// No repeats survive the sweep.
	down, _, _ := inj.counts()
	time.Sleep(80 * time.Millisecond)
	if downAfter, _, _ := inj.counts(); downAfter != down {
		t.Errorf("key-downs after ReleaseAll: %d new, want 0", downAfter-down)
	}
}

func TestReleaseAllWhileNothingPressed(t *testing.T) {
	inj := &mockInjector{}
	d := NewDispatcher(inj, testButtons())

	d.ReleaseAll()
	down, up, taps := inj.counts()
	if down != 0 || up != 0 || taps != 0 {
		t.Errorf("ReleaseAll on idle dispatcher injected: down=%d up=%d taps=%d", down, up, taps)
	}
}

func TestPressAgainAfterReleaseAll(t *testing.T) {
	inj := &mockInjector{}
	d := NewDispatcher(inj, testButtons())

	d.Handle("Right Steer", true)
	d.ReleaseAll()
	d.Handle("Right Steer", true)
	d.Handle("Right Steer", false)

	down, up, _ := inj.counts()
	if down != 2 || up != 2 {
		t.Errorf("down=%d up=%d, want 2/2 (fresh cycle after ReleaseAll)", down, up)
	}
}
