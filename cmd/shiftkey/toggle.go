package main

// toggleAction is what the main loop should do in response to a hotkey
// press or a supervisor exit.
type toggleAction int

const (
	toggleNone toggleAction = iota
	toggleStart
	toggleStop
)

// runState mediates hotkey toggles against the supervisor lifecycle. A
// disconnect is not instant: the supervisor loop exits some time after
// Disconnect is requested, and a press landing in that window counts as a
// reconnect request rather than a second disconnect.
type runState struct {
	running   bool
	stopping  bool
	reconnect bool
}

// onToggle processes one hotkey press.
func (r *runState) onToggle() toggleAction {
	if !r.running {
		r.running = true
		return toggleStart
	}
	if r.stopping {
		r.reconnect = true
		return toggleNone
	}
	r.stopping = true
	return toggleStop
}

// onRunExit processes the supervisor loop exiting, for any reason.
func (r *runState) onRunExit() toggleAction {
	r.running = false
	r.stopping = false
	if r.reconnect {
		r.reconnect = false
		r.running = true
		return toggleStart
	}
	return toggleNone
}
