package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"admin-console/internal/model"
)

type memIdentities struct {
	mu   sync.Mutex
	byID map[string]model.IdentityRecord
}

func newMemIdentities() *memIdentities {
	return &memIdentities{byID: map[string]model.IdentityRecord{}}
}

func (m *memIdentities) FindByID(_ context.Context, uid string) (model.IdentityRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byID[uid]
	if !ok {
		return model.IdentityRecord{}, model.ErrIdentityNotFound
	}
	return rec, nil
}

func (m *memIdentities) FindByEmail(_ context.Context, email string) (model.IdentityRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range m.byID {
		if strings.EqualFold(rec.Email, strings.TrimSpace(email)) {
			return rec, nil
		}
	}
	return model.IdentityRecord{}, model.ErrIdentityNotFound
}

func (m *memIdentities) Create(_ context.Context, rec model.IdentityRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.byID {
		if strings.EqualFold(existing.Email, rec.Email) {
			return model.ErrIdentityExists
		}
	}
	m.byID[rec.UID] = rec
	return nil
}

func (m *memIdentities) UpdatePassword(_ context.Context, uid string, passwordHash string) error {
	return m.update(uid, func(rec *model.IdentityRecord) {
		rec.PasswordHash = passwordHash
		rec.FailedLoginAttempts = 0
		rec.LockedUntil = nil
	})
}

func (m *memIdentities) SetDisabled(_ context.Context, uid string, disabled bool) error {
	return m.update(uid, func(rec *model.IdentityRecord) { rec.Disabled = disabled })
}

func (m *memIdentities) RecordFailedSignIn(_ context.Context, uid string) (int, error) {
	var attempts int
	err := m.update(uid, func(rec *model.IdentityRecord) {
		rec.FailedLoginAttempts++
		attempts = rec.FailedLoginAttempts
	})
	return attempts, err
}

func (m *memIdentities) Lock(_ context.Context, uid string, until time.Time) error {
	return m.update(uid, func(rec *model.IdentityRecord) {
		rec.LockedUntil = &until
		rec.FailedLoginAttempts = 0
	})
}

func (m *memIdentities) ResetFailedSignIns(_ context.Context, uid string) error {
	return m.update(uid, func(rec *model.IdentityRecord) {
		rec.FailedLoginAttempts = 0
		rec.LockedUntil = nil
	})
}

func (m *memIdentities) update(uid string, fn func(*model.IdentityRecord)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byID[uid]
	if !ok {
		return model.ErrIdentityNotFound
	}
	fn(&rec)
	m.byID[uid] = rec
	return nil
}

type memAdmins struct {
	mu     sync.Mutex
	byUser map[string]model.AdminRecord
}

func newMemAdmins() *memAdmins {
	return &memAdmins{byUser: map[string]model.AdminRecord{}}
}

func (m *memAdmins) FindByUserID(_ context.Context, userID string) (model.AdminRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byUser[userID]
	if !ok {
		return model.AdminRecord{}, model.ErrAdminNotFound
	}
	return rec, nil
}

func (m *memAdmins) Upsert(_ context.Context, rec model.AdminRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byUser[rec.UserID] = rec
	return nil
}

func (m *memAdmins) Revoke(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byUser[userID]; !ok {
		return model.ErrAdminNotFound
	}
	delete(m.byUser, userID)
	return nil
}

func (m *memAdmins) List(_ context.Context) ([]model.AdminRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]model.AdminRecord, 0, len(m.byUser))
	for _, rec := range m.byUser {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

type memTokens struct {
	mu     sync.Mutex
	owners map[string]string
	expiry map[string]time.Time
}

func newMemTokens() *memTokens {
	return &memTokens{owners: map[string]string{}, expiry: map[string]time.Time{}}
}

func (m *memTokens) Store(_ context.Context, tokenHash string, userID string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owners[tokenHash] = userID
	m.expiry[tokenHash] = expiresAt
	return nil
}

func (m *memTokens) Consume(_ context.Context, tokenHash string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	owner, ok := m.owners[tokenHash]
	if !ok {
		return "", model.ErrTokenNotFound
	}
	expiresAt := m.expiry[tokenHash]
	delete(m.owners, tokenHash)
	delete(m.expiry, tokenHash)

	if !time.Now().Before(expiresAt) {
		return "", model.ErrTokenExpired
	}
	return owner, nil
}

func (m *memTokens) RevokeAllForUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for hash, owner := range m.owners {
		if owner == userID {
			delete(m.owners, hash)
			delete(m.expiry, hash)
		}
	}
	return nil
}

func (m *memTokens) CleanExpired(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	for hash, expiresAt := range m.expiry {
		if !time.Now().Before(expiresAt) {
			delete(m.owners, hash)
			delete(m.expiry, hash)
			removed++
		}
	}
	return removed, nil
}

func (m *memTokens) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.owners)
}

type memAudit struct {
	mu      sync.Mutex
	entries []model.AuditEntry
	err     error
}

func (m *memAudit) Log(_ context.Context, entry model.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memAudit) Query(_ context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]model.AuditEntry, 0)
	for i := len(m.entries) - 1; i >= 0; i-- {
		entry := m.entries[i]
		if query.Action != "" && entry.Action != query.Action {
			continue
		}
		if query.Status != "" && entry.Status != query.Status {
			continue
		}
		if query.Subject != "" && entry.Subject != query.Subject {
			continue
		}
		out = append(out, entry)
	}
	return out, model.Meta{Page: query.Page, Limit: query.Limit, Total: len(out), TotalPages: 1}, nil
}

func (m *memAudit) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.entries))
	for _, entry := range m.entries {
		out = append(out, entry.Action+":"+entry.Status)
	}
	return out
}

type fixture struct {
	identities *memIdentities
	admins     *memAdmins
	tokens     *memTokens
	audit      *memAudit
	idents     *IdentityService
	verify     *VerifyService
}

func newFixture() *fixture {
	f := &fixture{
		identities: newMemIdentities(),
		admins:     newMemAdmins(),
		tokens:     newMemTokens(),
		audit:      &memAudit{},
	}
	auditService := NewAuditService(f.audit)

	f.idents = NewIdentityService(f.identities, f.admins, f.tokens, "test-secret", time.Hour, 24*time.Hour)
	f.idents.cost = bcrypt.MinCost
	f.idents.UseAudit(auditService)
	f.verify = NewVerifyService(f.admins, f.identities)
	f.verify.UseAudit(auditService)
	return f
}
