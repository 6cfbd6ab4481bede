package noteservice

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/events"
	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/search"
	"github.com/starford/raido/internal/store"
	"github.com/starford/raido/internal/testutil"
)

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func testService(t *testing.T) (*Service, *store.DB, *recorder) {
	t.Helper()
	db := testutil.TestDB(t)
	rec := &recorder{}
	return NewService(db, rec), db, rec
}

func mkProject(t *testing.T, db *store.DB, name string) models.Project {
	t.Helper()
	now := time.Now().UTC()
	p := models.Project{ID: uuid.NewString(), Name: name, CreatedAt: now, UpdatedAt: now}
	if err := db.InsertProject(p); err != nil {
		t.Fatal(err)
	}
	return p
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestCreateAssignsVersionOneWithSnapshot(t *testing.T) {
	svc, db, rec := testService(t)
	p := mkProject(t, db, "Docs")
	ctx := context.Background()

	n, err := svc.Create(ctx, p.ID, "Draft", "v1 text", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if n.Version != 1 {
		t.Errorf("version = %d, want 1", n.Version)
	}
	if n.Tags == nil || len(n.Tags) != 0 {
		t.Errorf("tags = %v, want empty non-nil", n.Tags)
	}
	if c, _ := db.CountVersions(n.ID); c != 1 {
		t.Errorf("snapshots = %d, want 1", c)
	}
	if got := rec.types(); len(got) != 1 || got[0] != events.NoteCreated {
		t.Errorf("events = %v", got)
	}

	proj, _ := db.GetProject(p.ID)
	if proj.NoteCount != 1 || proj.LastIndexedAt == nil {
		t.Errorf("project counters = %+v", proj)
	}
}

func TestCreateInMissingProject(t *testing.T) {
	svc, _, _ := testService(t)
	if _, err := svc.Create(context.Background(), "nope", "t", "c", nil); err != apperr.ErrProjectNotFound {
		t.Errorf("err = %v, want ErrProjectNotFound", err)
	}
}

// Covers the full optimistic-concurrency scenario: accepted update bumps
// the version, a stale retry conflicts with the current note attached, and
// restoring the first snapshot is itself a versioned mutation.
func TestUpdateConflictAndRestoreScenario(t *testing.T) {
	svc, db, rec := testService(t)
	p := mkProject(t, db, "Docs")
	ctx := context.Background()

	n, err := svc.Create(ctx, p.ID, "Draft", "v1 text", nil)
	if err != nil {
		t.Fatal(err)
	}

	res, err := svc.Update(ctx, p.ID, n.ID, UpdateInput{
		Content:          strPtr("v2 text"),
		Mode:             ModePartial,
		LastKnownVersion: intPtr(1),
	})
	if err != nil {
		t.Fatal(err)
	}
	updated, ok := res.(Updated)
	if !ok {
		t.Fatalf("result = %T, want Updated", res)
	}
	if updated.Note.Version != 2 || updated.Note.Content != "v2 text" {
		t.Errorf("note = %+v", updated.Note)
	}

	// Second update with the stale version must conflict, carrying the
	// unmodified current note.
	res, err = svc.Update(ctx, p.ID, n.ID, UpdateInput{
		Content:          strPtr("v3 text"),
		Mode:             ModePartial,
		LastKnownVersion: intPtr(1),
	})
	if err != nil {
		t.Fatal(err)
	}
	conflict, ok := res.(Conflict)
	if !ok {
		t.Fatalf("result = %T, want Conflict", res)
	}
	if conflict.Current.Version != 2 || conflict.Current.Content != "v2 text" {
		t.Errorf("conflict.Current = %+v", conflict.Current)
	}

	versions, err := svc.ListVersions(ctx, p.ID, n.ID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 2 {
		t.Fatalf("versions = %d, want 2", len(versions))
	}
	if versions[0].Version != 2 || versions[1].Version != 1 {
		t.Errorf("version order = %d, %d, want newest first", versions[0].Version, versions[1].Version)
	}

	restored, err := svc.RestoreVersion(ctx, p.ID, n.ID, versions[1].ID)
	if err != nil {
		t.Fatalf("RestoreVersion: %v", err)
	}
	if restored.Version != 3 {
		t.Errorf("restored version = %d, want 3 (restore never rewinds)", restored.Version)
	}
	if restored.Content != "v1 text" {
		t.Errorf("restored content = %q", restored.Content)
	}
	if c, _ := db.CountVersions(n.ID); c != 3 {
		t.Errorf("snapshots = %d, want 3", c)
	}

	want := []string{events.NoteCreated, events.NoteUpdated, events.NoteVersionRestored}
	got := rec.types()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestConflictCheckRunsBeforeValidation(t *testing.T) {
	svc, db, _ := testService(t)
	p := mkProject(t, db, "P")
	ctx := context.Background()
	n, _ := svc.Create(ctx, p.ID, "t", "c", nil)

	// Full mode with missing fields AND a stale version: conflict wins.
	res, err := svc.Update(ctx, p.ID, n.ID, UpdateInput{
		Mode:             ModeFull,
		LastKnownVersion: intPtr(99),
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := res.(Conflict); !ok {
		t.Errorf("result = %T, want Conflict before validation", res)
	}
}

func TestNoOpUpdateKeepsVersionAndSnapshots(t *testing.T) {
	svc, db, rec := testService(t)
	p := mkProject(t, db, "P")
	ctx := context.Background()
	n, _ := svc.Create(ctx, p.ID, "title", "content", []string{"a", "b"})

	res, err := svc.Update(ctx, p.ID, n.ID, UpdateInput{
		Title:   strPtr("title"),
		Content: strPtr("content"),
		Tags:    []string{"a", "b"},
		Mode:    ModeFull,
	})
	if err != nil {
		t.Fatal(err)
	}
	updated, ok := res.(Updated)
	if !ok {
		t.Fatalf("result = %T", res)
	}
	if updated.Note.Version != 1 {
		t.Errorf("no-op bumped version to %d", updated.Note.Version)
	}
	if c, _ := db.CountVersions(n.ID); c != 1 {
		t.Errorf("no-op created a snapshot: %d", c)
	}
	if got := rec.types(); len(got) != 1 {
		t.Errorf("no-op published events: %v", got)
	}

	// Tag order matters: same elements reordered is an effective change.
	res, _ = svc.Update(ctx, p.ID, n.ID, UpdateInput{Tags: []string{"b", "a"}, Mode: ModePartial})
	if updated, ok := res.(Updated); !ok || updated.Note.Version != 2 {
		t.Errorf("reordered tags result = %+v", res)
	}
}

func TestUpdateValidation(t *testing.T) {
	svc, db, _ := testService(t)
	p := mkProject(t, db, "P")
	ctx := context.Background()
	n, _ := svc.Create(ctx, p.ID, "t", "c", nil)

	res, _ := svc.Update(ctx, p.ID, n.ID, UpdateInput{Mode: ModeFull, Title: strPtr("x")})
	if _, ok := res.(InvalidRequest); !ok {
		t.Errorf("full without content = %T, want InvalidRequest", res)
	}

	res, _ = svc.Update(ctx, p.ID, n.ID, UpdateInput{Mode: ModePartial})
	if _, ok := res.(InvalidRequest); !ok {
		t.Errorf("empty partial = %T, want InvalidRequest", res)
	}

	res, _ = svc.Update(ctx, p.ID, "missing", UpdateInput{Mode: ModePartial, Title: strPtr("x")})
	if _, ok := res.(NotFound); !ok {
		t.Errorf("missing note = %T, want NotFound", res)
	}
}

func TestConcurrentBlindUpdatesSerialize(t *testing.T) {
	svc, db, _ := testService(t)
	p := mkProject(t, db, "P")
	ctx := context.Background()
	n, err := svc.Create(ctx, p.ID, "t", "base", nil)
	if err != nil {
		t.Fatal(err)
	}

	// Racing writers that all read the same version must never surface an
	// internal error: each one either lands its write or reports a conflict.
	const writers = 8
	start := make(chan struct{})
	results := make([]UpdateResult, writers)
	errs := make([]error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = svc.Update(ctx, p.ID, n.ID, UpdateInput{
				Content: strPtr(fmt.Sprintf("write %d", i)),
				Mode:    ModePartial,
			})
		}(i)
	}
	close(start)
	wg.Wait()

	updated := 0
	for i := 0; i < writers; i++ {
		if errs[i] != nil {
			t.Fatalf("writer %d error: %v", i, errs[i])
		}
		switch results[i].(type) {
		case Updated:
			updated++
		case Conflict:
		default:
			t.Fatalf("writer %d result = %T, want Updated or Conflict", i, results[i])
		}
	}
	if updated == 0 {
		t.Fatal("no writer succeeded")
	}

	got, err := db.GetNote(p.ID, n.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Version != 1+updated {
		t.Errorf("final version = %d, want %d (one bump per landed write)", got.Version, 1+updated)
	}
	if c, _ := db.CountVersions(n.ID); c != 1+updated {
		t.Errorf("snapshots = %d, want %d", c, 1+updated)
	}
}

func TestDeleteEmitsEventAndPurges(t *testing.T) {
	svc, db, rec := testService(t)
	p := mkProject(t, db, "P")
	ctx := context.Background()
	n, _ := svc.Create(ctx, p.ID, "t", "c", nil)

	deleted, err := svc.Delete(ctx, p.ID, n.ID, true)
	if err != nil || !deleted {
		t.Fatalf("Delete = %v, %v", deleted, err)
	}
	if c, _ := db.CountVersions(n.ID); c != 0 {
		t.Errorf("versions after purge = %d", c)
	}
	got := rec.types()
	if got[len(got)-1] != events.NoteDeleted {
		t.Errorf("events = %v", got)
	}

	// Deleting again reports false without an event.
	deleted, err = svc.Delete(ctx, p.ID, n.ID, false)
	if err != nil || deleted {
		t.Errorf("second delete = %v, %v", deleted, err)
	}
}

func TestListPaginationTilesTheProject(t *testing.T) {
	svc, db, _ := testService(t)
	p := mkProject(t, db, "P")
	ctx := context.Background()

	const total = 11
	for i := 0; i < total; i++ {
		if _, err := svc.Create(ctx, p.ID, "note", "body", nil); err != nil {
			t.Fatal(err)
		}
	}

	seen := make(map[string]struct{})
	cursorToken := ""
	pages := 0
	var prev *models.Note
	for {
		page, err := svc.List(ctx, p.ID, cursorToken, 4, "")
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		pages++
		for i := range page.Items {
			n := page.Items[i]
			if _, dup := seen[n.ID]; dup {
				t.Fatalf("duplicate note %s across pages", n.ID)
			}
			seen[n.ID] = struct{}{}
			if prev != nil && n.UpdatedAt.After(prev.UpdatedAt) {
				t.Fatal("ordering violated across page boundary")
			}
			prev = &page.Items[i]
		}
		if page.NextCursor == "" {
			break
		}
		cursorToken = page.NextCursor
	}

	if len(seen) != total {
		t.Errorf("union of pages = %d notes, want %d", len(seen), total)
	}
	if pages != 3 {
		t.Errorf("pages = %d, want 3 (4+4+3)", pages)
	}
}

func TestListRejectsBadCursor(t *testing.T) {
	svc, db, _ := testService(t)
	p := mkProject(t, db, "P")
	if _, err := svc.List(context.Background(), p.ID, "!!not-a-cursor!!", 10, ""); err == nil {
		t.Error("bad cursor accepted")
	}
}

func TestSearchScopesAndScores(t *testing.T) {
	svc, db, _ := testService(t)
	p1 := mkProject(t, db, "P1")
	p2 := mkProject(t, db, "P2")
	ctx := context.Background()

	if _, err := svc.Create(ctx, p1.ID, "roadmap", "plans", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Create(ctx, p2.ID, "other", "the roadmap is here", nil); err != nil {
		t.Fatal(err)
	}

	all, err := svc.Search(ctx, nil, "roadmap", search.ModeKeyword, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("cross-project results = %d, want 2", len(all))
	}
	// Exact title match scores strictly higher than content-only match.
	if all[0].Note.Title != "roadmap" || all[0].Score <= all[1].Score {
		t.Errorf("ranking = %+v", all)
	}

	scoped, err := svc.Search(ctx, &p1.ID, "roadmap", search.ModeKeyword, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(scoped) != 1 || scoped[0].Note.ProjectID != p1.ID {
		t.Errorf("scoped results = %+v", scoped)
	}
}

func TestQueueExportEvents(t *testing.T) {
	svc, db, rec := testService(t)
	p := mkProject(t, db, "P")
	ctx := context.Background()
	n, _ := svc.Create(ctx, p.ID, "t", "c", nil)

	if err := svc.QueueExport(ctx, p.ID, n.ID, "md"); err != nil {
		t.Fatal(err)
	}
	versions, _ := svc.ListVersions(ctx, p.ID, n.ID, 1)
	if err := svc.QueueVersionExport(ctx, p.ID, n.ID, versions[0].ID, "pdf"); err != nil {
		t.Fatal(err)
	}

	got := rec.types()
	if got[len(got)-2] != events.NoteExportQueued || got[len(got)-1] != events.VersionExportQueued {
		t.Errorf("events = %v", got)
	}

	if err := svc.QueueExport(ctx, p.ID, "missing", "md"); err != apperr.ErrNotFound {
		t.Errorf("missing note export err = %v", err)
	}
}
