package did

import (
	"bytes"
	"encoding/json"
	"reflect"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notification describes applied transaction event of the identifier
// attribute.
type Notification struct {
	// Unique identifier of the notification.
	EventID uuid.UUID

	Identifier string
	Path       string
	Status     Status
	Height     uint32

	// Value of the attribute carried by the event. For StatusDeleted it is
	// the removed version, nil if there was no version at the Height.
	Value json.RawMessage
}

// Observer handles notifications about attribute changes of the identifier.
//
// Notifications are delivered after the manager lock is released, so events
// applied concurrently may be delivered in a different order and the same
// Observer may be called from several goroutines at once. Observers must be
// safe for concurrent use and must not rely on the order of notifications
// across events. The current state is always available through Identity.
type Observer interface {
	// HandleNotification is called synchronously after the event is applied.
	// It must not block for long since it delays delivery to other
	// observers.
	HandleNotification(Notification)
}

// observerList is an ordered set of observers of one identifier. Observers
// are compared by identity, values of non-comparable types are never equal.
type observerList struct {
	list []Observer
}

func sameObserver(a, b Observer) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

// add appends o unless it is already in the list. Reports whether o was
// added.
func (x *observerList) add(o Observer) bool {
	for i := range x.list {
		if sameObserver(x.list[i], o) {
			return false
		}
	}
	x.list = append(x.list, o)
	return true
}

// remove removes o from the list. Reports whether o was present.
func (x *observerList) remove(o Observer) bool {
	for i := range x.list {
		if sameObserver(x.list[i], o) {
			x.list = append(x.list[:i:i], x.list[i+1:]...)
			return true
		}
	}
	return false
}

func (x *observerList) len() int {
	if x == nil {
		return 0
	}
	return len(x.list)
}

// snapshot returns copy of the list to iterate over without locks.
func (x *observerList) snapshot() []Observer {
	if x.len() == 0 {
		return nil
	}
	return append([]Observer(nil), x.list...)
}

// notify calls observers one by one in the given order.
func (m *Manager) notify(obs []Observer, n Notification) {
	for i := range obs {
		nc := n
		nc.Value = bytes.Clone(n.Value)
		m.notifyObserver(obs[i], nc)
	}
}

func (m *Manager) notifyObserver(o Observer, n Notification) {
	defer func() {
		if r := recover(); r != nil {
			m.metrics.observerFailures.Inc()
			m.log.Error("observer panicked, skip",
				zap.Stringer("event", n.EventID),
				zap.String("id", n.Identifier),
				zap.String("path", n.Path),
				zap.Any("panic", r),
			)
		}
	}()

	o.HandleNotification(n)
}
