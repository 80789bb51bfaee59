package handlers

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"

	"github.com/streamhall/backend/internal/auth"
	"github.com/streamhall/backend/internal/models"
	"github.com/streamhall/backend/internal/playback"
	"github.com/streamhall/backend/internal/repositories"
)

const testAccountHeader = "X-Test-Account"

// headerVerifier trusts a test header as the verified subject.
type headerVerifier struct{}

func (headerVerifier) VerifyRequest(r *http.Request) (auth.Identity, error) {
	id := r.Header.Get(testAccountHeader)
	if id == "" {
		return auth.Identity{}, errors.New("no credential")
	}
	return auth.Identity{AccountID: id}, nil
}

type memoryAccounts struct {
	mu       sync.Mutex
	accounts map[string]models.Account
}

func newMemoryAccounts(seed ...models.Account) *memoryAccounts {
	m := &memoryAccounts{accounts: map[string]models.Account{}}
	for _, a := range seed {
		m.accounts[a.ID] = a
	}
	return m
}

func (m *memoryAccounts) Create(_ context.Context, a models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[a.ID]; ok {
		return repositories.ErrConflict
	}
	m.accounts[a.ID] = a
	return nil
}

func (m *memoryAccounts) FindByID(_ context.Context, id string) (models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return models.Account{}, repositories.ErrNotFound
	}
	return a, nil
}

func (m *memoryAccounts) UpdateRole(_ context.Context, id string, role models.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return repositories.ErrNotFound
	}
	a.Role = role
	m.accounts[id] = a
	return nil
}

func (m *memoryAccounts) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.accounts)
}

type memoryVideos struct {
	mu     sync.Mutex
	videos []models.Video
}

func (m *memoryVideos) Create(_ context.Context, v models.Video) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.videos = append(m.videos, v)
	return nil
}

func (m *memoryVideos) List(context.Context) ([]models.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]models.Video(nil), m.videos...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memoryVideos) FindByID(_ context.Context, id string) (models.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.videos {
		if v.ID == id {
			return v, nil
		}
	}
	return models.Video{}, repositories.ErrNotFound
}

func (m *memoryVideos) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.videos)
}

type countingIssuer struct {
	calls int
	token playback.Token
	err   error
}

func (c *countingIssuer) Issue(string) (playback.Token, error) {
	c.calls++
	return c.token, c.err
}

type recordingArchive struct {
	keys []string
}

func (a *recordingArchive) Archive(_ context.Context, id string, _ []byte) (string, error) {
	a.keys = append(a.keys, id)
	return id + ".json", nil
}

// stalledArchive blocks until the caller gives up.
type stalledArchive struct {
	err error
}

func (a *stalledArchive) Archive(ctx context.Context, _ string, _ []byte) (string, error) {
	<-ctx.Done()
	a.err = ctx.Err()
	return "", a.err
}

type denyLimiter struct{}

func (denyLimiter) Allow(string) bool { return false }
