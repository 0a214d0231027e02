package exchange

import (
	"context"
	"errors"
	"sync"

	"github.com/pysugar/calsync/internal/calendar"
)

type memUsers map[string]*calendar.User

func (m memUsers) Get(_ context.Context, id string) (*calendar.User, error) {
	if u, ok := m[id]; ok {
		return u, nil
	}
	return nil, calendar.ErrRecordNotFound
}

type memCredentials struct {
	mu        sync.Mutex
	records   map[string]*calendar.CredentialRecord
	upserts   int
	upsertErr error
}

func newMemCredentials() *memCredentials {
	return &memCredentials{records: map[string]*calendar.CredentialRecord{}}
}

func (m *memCredentials) Get(_ context.Context, userID string, kind calendar.ProviderKind) (*calendar.CredentialRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[lockKey(userID, kind)]
	if !ok {
		return nil, calendar.ErrRecordNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *memCredentials) Upsert(_ context.Context, rec *calendar.CredentialRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	cp := *rec
	m.records[lockKey(rec.UserID, rec.Provider)] = &cp
	m.upserts++
	return nil
}

type memCaches struct {
	mu    sync.Mutex
	blobs map[string][]byte
	saves int
}

func newMemCaches() *memCaches {
	return &memCaches{blobs: map[string][]byte{}}
}

func (m *memCaches) Load(_ context.Context, userID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[userID]
	if !ok {
		return nil, calendar.ErrRecordNotFound
	}
	return b, nil
}

func (m *memCaches) Save(_ context.Context, userID string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[userID] = data
	m.saves++
	return nil
}

// fakeProvider returns canned results and records the requests it saw.
type fakeProvider struct {
	result   *Result
	snapshot CacheSnapshot
	err      error

	authReqs   []AuthRequest
	codeReqs   []CodeRequest
	silentReqs []SilentRequest
	caches     [][]byte
}

var errProvider = errors.New("invalid_grant")

func (f *fakeProvider) Scopes() []string {
	return []string{"openid", "Calendars.Read", "offline_access"}
}

func (f *fakeProvider) AuthCodeURL(_ context.Context, req AuthRequest, cache []byte) (string, CacheSnapshot, error) {
	f.authReqs = append(f.authReqs, req)
	f.caches = append(f.caches, cache)
	return "https://login.example.com/authorize?state=" + req.State, CacheSnapshot{Data: cache}, f.err
}

func (f *fakeProvider) AcquireByCode(_ context.Context, req CodeRequest, cache []byte) (*Result, CacheSnapshot, error) {
	f.codeReqs = append(f.codeReqs, req)
	f.caches = append(f.caches, cache)
	if f.err != nil {
		return nil, f.snapshot, f.err
	}
	return f.result, f.snapshot, nil
}

func (f *fakeProvider) AcquireSilent(_ context.Context, req SilentRequest, cache []byte) (*Result, CacheSnapshot, error) {
	f.silentReqs = append(f.silentReqs, req)
	f.caches = append(f.caches, cache)
	if f.err != nil {
		return nil, f.snapshot, f.err
	}
	return f.result, f.snapshot, nil
}
