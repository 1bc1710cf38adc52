package dom

import (
	"golang.org/x/net/html"
)

// Event is dispatched to the listeners of a node and its ancestors.
type Event struct {
	Type    string
	Key     string // key name for keyboard events, e.g. "Enter"
	KeyCode int
	Value   string // new control value for input and change events
	Target  *html.Node

	// HasValue marks Value as supplied, so an empty Value clears the
	// control instead of reading its current value.
	HasValue bool

	defaultPrevented bool
	stopped          bool
}

// PreventDefault records that the host's default action must not run.
func (e *Event) PreventDefault() { e.defaultPrevented = true }

// DefaultPrevented reports whether a listener called PreventDefault.
func (e *Event) DefaultPrevented() bool { return e.defaultPrevented }

// StopPropagation keeps the event from reaching further ancestors.
func (e *Event) StopPropagation() { e.stopped = true }

// Listener handles one event.
type Listener func(*Event)

// ListenerID identifies a registration for removal.
type ListenerID uint64

type registration struct {
	id    ListenerID
	event string
	fn    Listener
}

// AddEventListener registers fn for events of the given type on n.
func (d *Document) AddEventListener(n *html.Node, event string, fn Listener) ListenerID {
	id := ListenerID(d.ids.Inc())
	d.listeners[n] = append(d.listeners[n], &registration{id: id, event: event, fn: fn})
	return id
}

// RemoveEventListener unregisters a listener. It reports whether the id
// was registered on n.
func (d *Document) RemoveEventListener(n *html.Node, id ListenerID) bool {
	regs := d.listeners[n]
	for i, r := range regs {
		if r.id != id {
			continue
		}
		regs = append(regs[:i:i], regs[i+1:]...)
		if len(regs) == 0 {
			delete(d.listeners, n)
		} else {
			d.listeners[n] = regs
		}
		return true
	}
	return false
}

// ListenerCount returns the number of listeners for event on n. An empty
// event counts every listener on n; a nil node counts the whole document.
func (d *Document) ListenerCount(n *html.Node, event string) int {
	count := 0
	for node, regs := range d.listeners {
		if n != nil && node != n {
			continue
		}
		for _, r := range regs {
			if event == "" || r.event == event {
				count++
			}
		}
	}
	return count
}

// Dispatch delivers ev to the listeners on target, then bubbles it up the
// ancestors until a listener stops propagation. Listeners registered on a
// node during dispatch do not see the current event.
func (d *Document) Dispatch(target *html.Node, ev *Event) *Event {
	ev.Target = target
	if ev.Type == "input" || ev.Type == "change" {
		// the control holds the new value before listeners run
		if ev.HasValue {
			SetValue(target, ev.Value)
		} else {
			ev.Value = Value(target)
		}
	}
	for n := target; n != nil && !ev.stopped; n = n.Parent {
		regs := append([]*registration(nil), d.listeners[n]...)
		for _, r := range regs {
			if r.event == ev.Type {
				r.fn(ev)
			}
		}
	}
	return ev
}
