package remote

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"gorm.io/gorm"

	"resumeBuilder/internal/database"
	"resumeBuilder/internal/editor"
	"resumeBuilder/internal/resume"
	"resumeBuilder/internal/session"
	"resumeBuilder/internal/snapshot"
)

type fakeRepo struct {
	mu      sync.Mutex
	rows    map[uint]database.Resume
	nextID  uint
	calls   int
	failAll error
	delay   time.Duration
	clock   time.Time
	// started 在 Insert 进入时收到信号。
	started chan struct{}
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		rows:  map[uint]database.Resume{},
		clock: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (r *fakeRepo) tick() time.Time {
	r.clock = r.clock.Add(time.Minute)
	return r.clock
}

func (r *fakeRepo) Insert(_ context.Context, userID string, data []byte) (database.Resume, error) {
	if r.started != nil {
		select {
		case r.started <- struct{}{}:
		default:
		}
	}
	time.Sleep(r.delay)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.failAll != nil {
		return database.Resume{}, r.failAll
	}
	r.nextID++
	now := r.tick()
	row := database.Resume{UserID: userID, Data: append([]byte(nil), data...)}
	row.ID = r.nextID
	row.CreatedAt = now
	row.UpdatedAt = now
	r.rows[row.ID] = row
	return row, nil
}

func (r *fakeRepo) Update(_ context.Context, id uint, userID string, data []byte) (database.Resume, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.failAll != nil {
		return database.Resume{}, r.failAll
	}
	row, ok := r.rows[id]
	if !ok || row.UserID != userID {
		return database.Resume{}, fmt.Errorf("update: %w", database.ErrNotFound)
	}
	row.Data = append([]byte(nil), data...)
	row.UpdatedAt = r.tick()
	r.rows[id] = row
	return row, nil
}

func (r *fakeRepo) Get(_ context.Context, id uint, userID string) (database.Resume, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.failAll != nil {
		return database.Resume{}, r.failAll
	}
	row, ok := r.rows[id]
	if !ok || row.UserID != userID {
		return database.Resume{}, fmt.Errorf("get: %w", database.ErrNotFound)
	}
	return row, nil
}

func (r *fakeRepo) ListByUser(_ context.Context, userID string) ([]database.Resume, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.failAll != nil {
		return nil, r.failAll
	}
	var out []database.Resume
	for _, row := range r.rows {
		if row.UserID == userID {
			out = append(out, row)
		}
	}
	// 最近更新的在前。
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].UpdatedAt.After(out[j-1].UpdatedAt); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

func (r *fakeRepo) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func gormModel(id uint, at time.Time) gorm.Model {
	return gorm.Model{ID: id, CreatedAt: at, UpdatedAt: at}
}

type fakeProfiles struct{}

func (fakeProfiles) Upsert(context.Context, database.Profile) error { return nil }
func (fakeProfiles) Get(_ context.Context, id string) (database.Profile, error) {
	return database.Profile{ID: id}, nil
}

type fixture struct {
	store    *editor.Store
	sessions *session.Manager
	repo     *fakeRepo
	syncer   *Syncer
	slot     *snapshot.Slot
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	slot := snapshot.NewSlots(snapshot.NewMemoryBackend(), "resumeData", nil).ForDevice("device")
	store := editor.New(resume.NewDocument(), slot)
	sessions := session.NewManager(fakeProfiles{}, nil, nil, nil)
	repo := newFakeRepo()
	return &fixture{
		store:    store,
		sessions: sessions,
		repo:     repo,
		syncer:   NewSyncer(store, sessions, repo, nil),
		slot:     slot,
	}
}

func (f *fixture) signIn(t *testing.T, id string) {
	t.Helper()
	if err := f.sessions.Establish(context.Background(), session.Identity{ID: id, Email: id + "@example.com"}); err != nil {
		t.Fatalf("sign in: %v", err)
	}
}

var ignoreRemoteMeta = cmpopts.IgnoreFields(resume.Document{}, "ID", "UserID", "CreatedAt", "UpdatedAt")

func TestSaveRequiresIdentity(t *testing.T) {
	f := newFixture(t)

	_, err := f.syncer.Save(context.Background())
	if !errors.Is(err, ErrNotSignedIn) {
		t.Fatalf("expected ErrNotSignedIn, got %v", err)
	}
	if f.repo.callCount() != 0 {
		t.Fatalf("repository must not be called, got %d calls", f.repo.callCount())
	}
}

func TestSequentialSavesCreateOneRow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.signIn(t, "alice")

	first, err := f.syncer.Save(ctx)
	if err != nil {
		t.Fatalf("first save: %v", err)
	}
	if !first.Synced() || first.UserID != "alice" || first.CreatedAt == nil {
		t.Fatalf("metadata not adopted: %+v", first)
	}

	if err := f.store.UpdateSkills(ctx, "Go"); err != nil {
		t.Fatalf("update skills: %v", err)
	}
	second, err := f.syncer.Save(ctx)
	if err != nil {
		t.Fatalf("second save: %v", err)
	}

	if len(f.repo.rows) != 1 {
		t.Fatalf("expected exactly one row, got %d", len(f.repo.rows))
	}
	if second.ID != first.ID {
		t.Fatalf("second save created a new id: %d vs %d", first.ID, second.ID)
	}
	if !second.UpdatedAt.After(*first.UpdatedAt) {
		t.Fatalf("updatedAt not advanced: %v -> %v", first.UpdatedAt, second.UpdatedAt)
	}

	stored, err := resume.Decode(f.repo.rows[first.ID].Data)
	if err != nil {
		t.Fatalf("decode stored payload: %v", err)
	}
	if stored.Skills != "Go" || stored.Synced() {
		t.Fatalf("stored payload should be content only: %+v", stored)
	}
}

func TestConcurrentSavesCreateOneRow(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, "alice")
	f.repo.delay = 20 * time.Millisecond

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.syncer.Save(context.Background())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	if len(f.repo.rows) != 1 {
		t.Fatalf("expected exactly one row, got %d", len(f.repo.rows))
	}
}

func TestSaveFailureLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.signIn(t, "alice")
	if err := f.store.UpdateHobbies(ctx, "chess"); err != nil {
		t.Fatalf("update hobbies: %v", err)
	}
	before := f.store.Document()

	f.repo.failAll = errors.New("connection reset")
	if _, err := f.syncer.Save(ctx); err == nil {
		t.Fatal("expected save to fail")
	}

	if diff := cmp.Diff(before, f.store.Document()); diff != "" {
		t.Fatalf("document changed after failed save (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(before, f.slot.Read(ctx, resume.Document{})); diff != "" {
		t.Fatalf("snapshot changed after failed save (-want +got):\n%s", diff)
	}
}

func TestLoadForeignResumeIsNotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.signIn(t, "bob")
	if err := f.store.UpdateSkills(ctx, "Bob's secret"); err != nil {
		t.Fatalf("update skills: %v", err)
	}
	bobs, err := f.syncer.Save(ctx)
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	f.signIn(t, "alice")
	if err := f.store.Replace(ctx, resume.NewDocument()); err != nil {
		t.Fatalf("replace: %v", err)
	}
	before := f.store.Document()

	if _, err := f.syncer.Load(ctx, bobs.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if diff := cmp.Diff(before, f.store.Document()); diff != "" {
		t.Fatalf("document changed after rejected load (-want +got):\n%s", diff)
	}
}

func TestLoadReplacesActiveDocument(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.signIn(t, "alice")

	if err := f.store.UpdateSkills(ctx, "Go, Rust"); err != nil {
		t.Fatalf("update skills: %v", err)
	}
	saved, err := f.syncer.Save(ctx)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := f.store.Replace(ctx, resume.NewDocument()); err != nil {
		t.Fatalf("replace: %v", err)
	}

	loaded, err := f.syncer.Load(ctx, saved.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.ID != saved.ID || loaded.UserID != "alice" {
		t.Fatalf("row metadata missing: %+v", loaded)
	}
	if diff := cmp.Diff(saved, f.store.Document(), ignoreRemoteMeta); diff != "" {
		t.Fatalf("active document mismatch (-want +got):\n%s", diff)
	}
	if got := f.store.Document(); got.ID != saved.ID {
		t.Fatalf("active document lost id: %+v", got)
	}
}

func TestListSavedWithoutIdentity(t *testing.T) {
	f := newFixture(t)

	docs, err := f.syncer.ListSaved(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if docs == nil || len(docs) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", docs)
	}
	if f.repo.callCount() != 0 {
		t.Fatalf("repository must not be called, got %d calls", f.repo.callCount())
	}
}

func TestListSavedNewestFirstAndKeepsPreviousOnError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.signIn(t, "alice")

	for _, skills := range []string{"first", "second"} {
		if err := f.store.Replace(ctx, resume.NewDocument()); err != nil {
			t.Fatalf("replace: %v", err)
		}
		if err := f.store.UpdateSkills(ctx, skills); err != nil {
			t.Fatalf("update skills: %v", err)
		}
		if _, err := f.syncer.Save(ctx); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	// 一条损坏的 payload 会被跳过。
	f.repo.rows[99] = database.Resume{Model: gormModel(99, f.repo.tick()), UserID: "alice", Data: []byte(`not json`)}

	docs, err := f.syncer.ListSaved(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 2 || docs[0].Skills != "second" || docs[1].Skills != "first" {
		t.Fatalf("unexpected listing: %+v", docs)
	}

	f.repo.failAll = errors.New("timeout")
	again, err := f.syncer.ListSaved(ctx)
	if err == nil {
		t.Fatal("expected list error")
	}
	if diff := cmp.Diff(docs, again); diff != "" {
		t.Fatalf("previous listing not kept (-want +got):\n%s", diff)
	}
}

func TestSignOutRejectsSaveOfSyncedDocument(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.signIn(t, "alice")

	if _, err := f.syncer.Save(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}
	calls := f.repo.callCount()

	f.sessions.SignOut()
	if _, err := f.syncer.Save(ctx); !errors.Is(err, ErrNotSignedIn) {
		t.Fatalf("expected ErrNotSignedIn, got %v", err)
	}
	if f.repo.callCount() != calls {
		t.Fatal("repository was called after sign-out")
	}
	if _, err := f.syncer.Load(ctx, 1); !errors.Is(err, ErrNotSignedIn) {
		t.Fatalf("expected ErrNotSignedIn on load, got %v", err)
	}
}

func TestSaveSyncedDocumentUnderOtherIdentity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.signIn(t, "alice")
	if _, err := f.syncer.Save(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}
	calls := f.repo.callCount()

	f.signIn(t, "mallory")
	if _, err := f.syncer.Save(ctx); !errors.Is(err, ErrOtherOwner) {
		t.Fatalf("expected ErrOtherOwner, got %v", err)
	}
	if f.repo.callCount() != calls {
		t.Fatal("repository was called for a document owned by another account")
	}
	if len(f.repo.rows) != 1 || f.repo.rows[1].UserID != "alice" {
		t.Fatalf("foreign save touched rows: %+v", f.repo.rows)
	}

	// 导入后文档不再带远端元数据，可以作为新简历保存。
	imported := f.store.Document().Content()
	if err := f.store.Replace(ctx, imported); err != nil {
		t.Fatalf("replace: %v", err)
	}
	saved, err := f.syncer.Save(ctx)
	if err != nil {
		t.Fatalf("save after import: %v", err)
	}
	if saved.UserID != "mallory" || saved.ID == 1 {
		t.Fatalf("expected a new row for mallory, got %+v", saved)
	}
}

func TestQueuedSaveRejectedAfterSignOut(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, "alice")
	f.repo.delay = 100 * time.Millisecond
	f.repo.started = make(chan struct{}, 1)

	first := make(chan error, 1)
	go func() {
		_, err := f.syncer.Save(context.Background())
		first <- err
	}()
	<-f.repo.started

	second := make(chan error, 1)
	go func() {
		_, err := f.syncer.Save(context.Background())
		second <- err
	}()
	time.Sleep(20 * time.Millisecond)
	f.sessions.SignOut()

	if err := <-first; err != nil {
		t.Fatalf("in-flight save: %v", err)
	}
	if err := <-second; !errors.Is(err, ErrNotSignedIn) {
		t.Fatalf("expected queued save to fail with ErrNotSignedIn, got %v", err)
	}
	if f.repo.callCount() != 1 {
		t.Fatalf("expected one repository call, got %d", f.repo.callCount())
	}
}

func TestListSavedDoesNotLeakPreviousIdentity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.signIn(t, "alice")
	if err := f.store.UpdateSkills(ctx, "alice-secret"); err != nil {
		t.Fatalf("update skills: %v", err)
	}
	if _, err := f.syncer.Save(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}
	if docs, err := f.syncer.ListSaved(ctx); err != nil || len(docs) != 1 {
		t.Fatalf("alice list: %v %+v", err, docs)
	}

	f.sessions.SignOut()
	f.signIn(t, "bob")
	f.repo.failAll = errors.New("network down")

	docs, err := f.syncer.ListSaved(ctx)
	if err == nil {
		t.Fatal("expected list error")
	}
	if docs == nil || len(docs) != 0 {
		t.Fatalf("bob must not see alice's resumes, got %+v", docs)
	}
}

func TestListSavedSwitchingIdentityWithoutSignOut(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.signIn(t, "alice")
	if _, err := f.syncer.Save(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := f.syncer.ListSaved(ctx); err != nil {
		t.Fatalf("alice list: %v", err)
	}

	f.signIn(t, "bob")
	f.repo.failAll = errors.New("timeout")
	docs, _ := f.syncer.ListSaved(ctx)
	if len(docs) != 0 {
		t.Fatalf("cached listing leaked across identities: %+v", docs)
	}
}
