package videos

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/streamhall/backend/internal/ids"
	"github.com/streamhall/backend/internal/models"
	"github.com/streamhall/backend/internal/repositories"
	"github.com/streamhall/backend/internal/stream"
)

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

type memoryVideos struct {
	mu        sync.Mutex
	videos    []models.Video
	createErr error
}

func (m *memoryVideos) Create(_ context.Context, v models.Video) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
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

type stubPlatform struct {
	slot     stream.UploadSlot
	err      error
	requests []stream.UploadRequest
}

func (s *stubPlatform) CreateDirectUpload(_ context.Context, req stream.UploadRequest) (stream.UploadSlot, error) {
	s.requests = append(s.requests, req)
	return s.slot, s.err
}

func TestRecordAccountCreatedIsIdempotent(t *testing.T) {
	accounts := newMemoryAccounts()
	registry := NewRegistry(accounts, &memoryVideos{}, &stubPlatform{})

	first, err := registry.RecordAccountCreated(context.Background(), "u1", "a@x.com")
	if err != nil || first != OutcomeCreated {
		t.Fatalf("expected created, got %v %v", first, err)
	}
	second, err := registry.RecordAccountCreated(context.Background(), "u1", "a@x.com")
	if err != nil || second != OutcomeConflict {
		t.Fatalf("expected conflict, got %v %v", second, err)
	}

	if len(accounts.accounts) != 1 {
		t.Fatalf("expected one account, have %d", len(accounts.accounts))
	}
	if role, err := registry.LookupRole(context.Background(), "u1"); err != nil || role != models.RoleViewer {
		t.Fatalf("expected viewer role, got %q %v", role, err)
	}
}

func TestRecordAccountCreatedRequiresFields(t *testing.T) {
	registry := NewRegistry(newMemoryAccounts(), &memoryVideos{}, &stubPlatform{})
	if _, err := registry.RecordAccountCreated(context.Background(), "u1", " "); !errors.Is(err, ErrInvalidAccount) {
		t.Fatalf("expected ErrInvalidAccount, got %v", err)
	}
}

func TestLookupRoleUnknownAccount(t *testing.T) {
	registry := NewRegistry(newMemoryAccounts(), &memoryVideos{}, &stubPlatform{})
	if _, err := registry.LookupRole(context.Background(), "ghost"); !errors.Is(err, repositories.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateUploadSlotBindsMediaID(t *testing.T) {
	videos := &memoryVideos{}
	platform := &stubPlatform{slot: stream.UploadSlot{UploadURL: "https://upload.test/tus/1", MediaID: "media-1"}}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	registry := NewRegistry(newMemoryAccounts(), videos, platform).WithClock(func() time.Time { return now })

	result, err := registry.CreateUploadSlot(context.Background(), UploadInput{
		OwnerID: "admin-1", Name: "clip.mp4", Title: "Intro", Description: "first", SizeBytes: 1000,
	})
	if err != nil {
		t.Fatalf("create upload slot: %v", err)
	}
	if result.UploadURL != "https://upload.test/tus/1" || result.MediaID != "media-1" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if _, err := ulid.ParseStrict(result.ResourceID); err != nil {
		t.Fatalf("expected ulid resource id, got %q: %v", result.ResourceID, err)
	}

	if len(platform.requests) != 1 {
		t.Fatalf("expected one platform call, got %d", len(platform.requests))
	}
	req := platform.requests[0]
	if req.SizeBytes != 1000 || req.Name != "Intro" || req.Creator != "admin-1" {
		t.Fatalf("unexpected platform request: %+v", req)
	}

	stored, err := registry.GetResource(context.Background(), result.ResourceID)
	if err != nil {
		t.Fatalf("get resource: %v", err)
	}
	if stored.ExternalMediaID != "media-1" || stored.OwnerID != "admin-1" || !stored.CreatedAt.Equal(now) {
		t.Fatalf("unexpected stored video: %+v", stored)
	}
	if media, err := registry.GetMediaID(context.Background(), result.ResourceID); err != nil || media != "media-1" {
		t.Fatalf("expected media-1, got %q %v", media, err)
	}
}

func TestCreateUploadSlotFallsBackToFileName(t *testing.T) {
	platform := &stubPlatform{slot: stream.UploadSlot{UploadURL: "u", MediaID: "m"}}
	registry := NewRegistry(newMemoryAccounts(), &memoryVideos{}, platform)

	if _, err := registry.CreateUploadSlot(context.Background(), UploadInput{OwnerID: "a", Name: "clip.mp4", SizeBytes: 1}); err != nil {
		t.Fatalf("create upload slot: %v", err)
	}
	if platform.requests[0].Name != "clip.mp4" {
		t.Fatalf("expected file name fallback, got %q", platform.requests[0].Name)
	}
}

func TestCreateUploadSlotPlatformFailureWritesNothing(t *testing.T) {
	videos := &memoryVideos{}
	platform := &stubPlatform{err: stream.ErrUpstream}
	registry := NewRegistry(newMemoryAccounts(), videos, platform)

	_, err := registry.CreateUploadSlot(context.Background(), UploadInput{OwnerID: "a", Title: "t", SizeBytes: 10})
	if !errors.Is(err, stream.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	if len(videos.videos) != 0 {
		t.Fatal("expected no video row after platform failure")
	}
}

func TestCreateUploadSlotPersistenceFailureOrphansSlot(t *testing.T) {
	videos := &memoryVideos{createErr: errors.New("disk full")}
	platform := &stubPlatform{slot: stream.UploadSlot{UploadURL: "u", MediaID: "m"}}
	registry := NewRegistry(newMemoryAccounts(), videos, platform)

	result, err := registry.CreateUploadSlot(context.Background(), UploadInput{OwnerID: "a", Title: "t", SizeBytes: 10})
	if err == nil {
		t.Fatal("expected persistence failure to surface")
	}
	if result != (UploadResult{}) {
		t.Fatalf("expected empty result, got %+v", result)
	}
	if len(platform.requests) != 1 {
		t.Fatal("expected the platform slot to have been requested")
	}
}

func TestCreateUploadSlotRejectsInvalidInput(t *testing.T) {
	platform := &stubPlatform{}
	registry := NewRegistry(newMemoryAccounts(), &memoryVideos{}, platform)

	for _, in := range []UploadInput{{SizeBytes: 10}, {OwnerID: "a"}, {OwnerID: "a", SizeBytes: -1}} {
		if _, err := registry.CreateUploadSlot(context.Background(), in); !errors.Is(err, ErrInvalidUpload) {
			t.Fatalf("input %+v: expected ErrInvalidUpload, got %v", in, err)
		}
	}
	if len(platform.requests) != 0 {
		t.Fatal("expected no platform call for invalid input")
	}
}

func TestListResourcesNewestFirst(t *testing.T) {
	videos := &memoryVideos{}
	platform := &stubPlatform{slot: stream.UploadSlot{UploadURL: "u", MediaID: "m"}}
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	registry := NewRegistry(newMemoryAccounts(), videos, platform).WithClock(func() time.Time { return clock })

	for _, title := range []string{"first", "second", "third"} {
		platform.slot.MediaID = "media-" + title
		if _, err := registry.CreateUploadSlot(context.Background(), UploadInput{OwnerID: "a", Title: title, SizeBytes: 1}); err != nil {
			t.Fatalf("create %s: %v", title, err)
		}
		clock = clock.Add(time.Minute)
	}

	list, err := registry.ListResources(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 || list[0].Title != "third" || list[2].Title != "first" {
		t.Fatalf("unexpected order: %+v", list)
	}
}

func TestGetResourceUnknown(t *testing.T) {
	registry := NewRegistry(newMemoryAccounts(), &memoryVideos{}, &stubPlatform{})
	if _, err := registry.GetMediaID(context.Background(), ids.New()); !errors.Is(err, repositories.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := registry.GetResource(context.Background(), ""); !errors.Is(err, repositories.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty id, got %v", err)
	}
}
