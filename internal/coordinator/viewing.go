package coordinator

import "sync"

// Activity is a lifecycle or input signal from the host view.
type Activity int

const (
	ActivityFocusGained Activity = iota
	ActivityVisible
	ActivityClick
	ActivityKeypress
	ActivityBlur
	ActivityHidden
)

func (a Activity) String() string {
	switch a {
	case ActivityFocusGained:
		return "focus"
	case ActivityVisible:
		return "visible"
	case ActivityClick:
		return "click"
	case ActivityKeypress:
		return "keypress"
	case ActivityBlur:
		return "blur"
	case ActivityHidden:
		return "hidden"
	}
	return "unknown"
}

// activates reports whether a moves the view to active.
func (a Activity) activates() bool {
	return a == ActivityFocusGained || a == ActivityVisible || a == ActivityClick || a == ActivityKeypress
}

// Viewing is the active-viewing predicate. Only an active view may mark
// messages read.
type Viewing struct {
	mu     sync.Mutex
	active bool
}

// Apply records a and reports the resulting state and whether it changed.
func (v *Viewing) Apply(a Activity) (active, changed bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	next := a.activates()
	changed = next != v.active
	v.active = next
	return v.active, changed
}

func (v *Viewing) Active() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.active
}
