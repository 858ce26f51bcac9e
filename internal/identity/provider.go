// Package identity wraps the password identity provider: sign-in,
// sign-out, ID token retrieval and identity-change subscriptions.
package identity

import (
	"context"
	"sync"

	"admin-console/internal/model"
)

// Listener receives the current identity, or nil when signed out.
type Listener func(*model.Identity)

type Provider interface {
	SignIn(ctx context.Context, email string, password string) (*model.Identity, error)
	SignOut(ctx context.Context) error
	// Token returns the current ID token. forceRefresh mints a new token so
	// that freshly granted custom claims are reflected.
	Token(ctx context.Context, forceRefresh bool) (string, error)
	// Subscribe calls fn with the current identity right away and on every
	// later sign-in or sign-out. The returned func is idempotent.
	Subscribe(fn Listener) func()
}

type observers struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]Listener
}

func (o *observers) add(fn Listener, current *model.Identity) func() {
	o.mu.Lock()
	if o.listeners == nil {
		o.listeners = map[int]Listener{}
	}
	id := o.nextID
	o.nextID++
	o.listeners[id] = fn
	o.mu.Unlock()

	fn(copyIdentity(current))

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.listeners, id)
			o.mu.Unlock()
		})
	}
}

func (o *observers) notify(current *model.Identity) {
	o.mu.Lock()
	targets := make([]Listener, 0, len(o.listeners))
	for _, fn := range o.listeners {
		targets = append(targets, fn)
	}
	o.mu.Unlock()

	for _, fn := range targets {
		fn(copyIdentity(current))
	}
}

func copyIdentity(in *model.Identity) *model.Identity {
	if in == nil {
		return nil
	}
	out := *in
	return &out
}
