package identity

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"admin-console/internal/model"
)

// MemoryProvider is an in-process provider with fixed accounts. Tokens
// are opaque "<uid>.<n>" strings; n increases on every forced refresh.
type MemoryProvider struct {
	mu        sync.Mutex
	accounts  map[string]memoryAccount
	current   *model.Identity
	minted    int
	token     string
	failWith  error
	observers observers
}

type memoryAccount struct {
	identity model.Identity
	password string
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{accounts: map[string]memoryAccount{}}
}

func (p *MemoryProvider) AddAccount(uid string, email string, password string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.accounts[strings.ToLower(email)] = memoryAccount{
		identity: model.Identity{UID: uid, Email: email},
		password: password,
	}
}

// FailWith makes every network-backed call fail with err until reset
// with nil.
func (p *MemoryProvider) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failWith = err
}

func (p *MemoryProvider) SignIn(_ context.Context, email string, password string) (*model.Identity, error) {
	p.mu.Lock()
	if p.failWith != nil {
		err := p.failWith
		p.mu.Unlock()
		return nil, err
	}

	account, ok := p.accounts[strings.ToLower(strings.TrimSpace(email))]
	if !ok || account.password != password {
		p.mu.Unlock()
		return nil, model.ErrInvalidCredentials
	}

	signedIn := account.identity
	p.current = &signedIn
	p.token = p.mintLocked()
	p.mu.Unlock()

	p.observers.notify(&signedIn)
	return copyIdentity(&signedIn), nil
}

func (p *MemoryProvider) SignOut(_ context.Context) error {
	p.mu.Lock()
	wasSignedIn := p.current != nil
	p.current = nil
	p.token = ""
	p.mu.Unlock()

	if wasSignedIn {
		p.observers.notify(nil)
	}
	return nil
}

func (p *MemoryProvider) Token(_ context.Context, forceRefresh bool) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return "", model.ErrNotSignedIn
	}
	if !forceRefresh {
		return p.token, nil
	}
	if p.failWith != nil {
		return "", p.failWith
	}

	p.token = p.mintLocked()
	return p.token, nil
}

func (p *MemoryProvider) Subscribe(fn Listener) func() {
	p.mu.Lock()
	current := copyIdentity(p.current)
	p.mu.Unlock()

	return p.observers.add(fn, current)
}

// Current returns the signed-in identity, if any.
func (p *MemoryProvider) Current() *model.Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return copyIdentity(p.current)
}

func (p *MemoryProvider) mintLocked() string {
	p.minted++
	return fmt.Sprintf("%s.%d", p.current.UID, p.minted)
}
