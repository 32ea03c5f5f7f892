package event

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/relaychat/chatcore/internal/log"
)

// ErrListenerNotComparable is returned when registering a Listener whose value cannot be
// compared with ==, which would make Unregister and duplicate detection impossible. Register a
// pointer instead.
var ErrListenerNotComparable = errors.New("listener is not comparable")

// Listener receives published events.
type Listener interface {
	OnEvent(ev Event) error
}

type funcListener struct {
	fn func(Event) error
}

func (f *funcListener) OnEvent(ev Event) error {
	return f.fn(ev)
}

// Func wraps fn in a Listener. Each call returns a distinct Listener; keep the returned value to
// unregister it later.
func Func(fn func(Event) error) Listener {
	return &funcListener{fn: fn}
}

// Manager delivers events to registered listeners in registration order.
type Manager struct {
	lock      sync.Mutex
	listeners []Listener
}

func NewManager() *Manager {
	return &Manager{}
}

// Register adds l to the set of listeners. Registering a listener that is already registered has
// no effect.
func (m *Manager) Register(l Listener) error {
	if l == nil {
		return errors.New("nil listener")
	}
	if !isComparable(l) {
		return ErrListenerNotComparable
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	for _, existing := range m.listeners {
		if existing == l {
			return nil
		}
	}
	m.listeners = append(m.listeners, l)
	return nil
}

// Unregister removes l. It returns false if l was not registered.
func (m *Manager) Unregister(l Listener) bool {
	if l == nil || !isComparable(l) {
		return false
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	for i, existing := range m.listeners {
		if existing == l {
			// Copy so that snapshots held by in-progress Publish calls are unaffected.
			listeners := make([]Listener, 0, len(m.listeners)-1)
			listeners = append(listeners, m.listeners[:i]...)
			m.listeners = append(listeners, m.listeners[i+1:]...)
			return true
		}
	}
	return false
}

// isComparable reports whether l can be compared with ==. Interface fields are checked by the value
// they hold, so a struct is rejected if any of them holds a map, slice or func.
func isComparable(l Listener) bool {
	return reflect.ValueOf(l).Comparable()
}

// Listeners returns a snapshot of the registered listeners in registration order.
func (m *Manager) Listeners() []Listener {
	m.lock.Lock()
	defer m.lock.Unlock()
	return append([]Listener(nil), m.listeners...)
}

// Publish delivers ev to every listener registered when Publish is called. A listener that returns
// an error or panics is logged and skipped; the remaining listeners still receive ev.
func (m *Manager) Publish(ev Event) {
	for _, l := range m.Listeners() {
		if err := deliver(l, ev); err != nil {
			log.Error("Listener %T failed to handle %T: %s", l, ev, err)
		}
	}
}

func deliver(l Listener, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return l.OnEvent(ev)
}
