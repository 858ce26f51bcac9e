package authctx

import (
	"sync"

	"admin-console/internal/event"
)

// Navigator performs navigation decided by the context.
type Navigator interface {
	// Path is the page currently shown.
	Path() string
	Navigate(target string)
}

// BusNavigator tracks the last page the browser requested and asks the
// dashboard to move by publishing navigate events.
type BusNavigator struct {
	mu   sync.RWMutex
	path string
	bus  event.Bus
}

func NewBusNavigator(bus event.Bus, initial string) *BusNavigator {
	return &BusNavigator{bus: bus, path: initial}
}

func (n *BusNavigator) Path() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.path
}

// Visit records a page request.
func (n *BusNavigator) Visit(path string) {
	n.mu.Lock()
	n.path = path
	n.mu.Unlock()
}

func (n *BusNavigator) Navigate(target string) {
	n.mu.Lock()
	n.path = target
	n.mu.Unlock()

	if n.bus != nil {
		n.bus.Publish(event.New(event.TypeNavigate, map[string]string{"to": target}))
	}
}

type nopNavigator struct{}

func (nopNavigator) Path() string    { return "" }
func (nopNavigator) Navigate(string) {}
