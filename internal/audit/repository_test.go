package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-sequencer/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-sequencer/migrations"
)

func testRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	ctx := context.Background()
	db, err := database.OpenMemory(ctx)
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func TestCreateAndList(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC)
	entries := []Entry{
		{Action: ActionCreate, EntityType: EntitySequence, EntityID: "seq-1", Subject: "admin", Source: SourceAPI},
		{Action: ActionPlay, EntityType: EntitySequence, EntityID: "seq-1", Subject: "stage", Source: SourceAPI,
			Details: map[string]any{"execution_id": "exec-1"}},
		{Action: ActionSkip, EntityType: EntitySequence, EntityID: "seq-2", Source: SourceMQTT},
		{Action: ActionLoginFailed, EntityType: EntitySession, Subject: "mallory", Source: SourceAPI},
	}
	for i := range entries {
		entries[i].CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := repo.Create(ctx, &entries[i]); err != nil {
			t.Fatalf("Create(%d): %v", i, err)
		}
		if entries[i].ID == "" {
			t.Errorf("entry %d got no ID", i)
		}
	}

	tests := []struct {
		name    string
		filter  Filter
		wantIDs []string
		total   int
	}{
		{"all newest first", Filter{}, []string{entries[3].ID, entries[2].ID, entries[1].ID, entries[0].ID}, 4},
		{"by entity", Filter{EntityType: EntitySequence, EntityID: "seq-1"}, []string{entries[1].ID, entries[0].ID}, 2},
		{"by action", Filter{Action: ActionSkip}, []string{entries[2].ID}, 1},
		{"by subject", Filter{Subject: "mallory"}, []string{entries[3].ID}, 1},
		{"paged", Filter{Limit: 2, Offset: 1}, []string{entries[2].ID, entries[1].ID}, 4},
		{"no match", Filter{Action: ActionDelete}, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if page.Total != tt.total {
				t.Errorf("total = %d, want %d", page.Total, tt.total)
			}
			if len(page.Entries) != len(tt.wantIDs) {
				t.Fatalf("got %d entries, want %d", len(page.Entries), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if page.Entries[i].ID != id {
					t.Errorf("entries[%d] = %s, want %s", i, page.Entries[i].ID, id)
				}
			}
		})
	}

	page, err := repo.List(ctx, Filter{Action: ActionPlay})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	got := page.Entries[0]
	if got.Details["execution_id"] != "exec-1" || !got.CreatedAt.Equal(entries[1].CreatedAt) || got.Subject != "stage" {
		t.Errorf("round trip = %+v", got)
	}
}

func TestList_LimitClamp(t *testing.T) {
	repo := testRepo(t)

	tests := []struct {
		limit, want int
	}{
		{0, defaultLimit},
		{-3, defaultLimit},
		{10, 10},
		{5000, maxLimit},
	}
	for _, tt := range tests {
		page, err := repo.List(context.Background(), Filter{Limit: tt.limit, Offset: -1})
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if page.Limit != tt.want || page.Offset != 0 {
			t.Errorf("limit %d: page limit/offset = %d/%d, want %d/0", tt.limit, page.Limit, page.Offset, tt.want)
		}
	}
}

type failingRepo struct{ Repository }

func (failingRepo) Create(context.Context, *Entry) error { return errors.New("disk full") }

type mockLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *mockLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func TestRecorder(t *testing.T) {
	repo := testRepo(t)
	rec := NewRecorder(repo, &mockLogger{})
	ctx := context.Background()

	rec.RecordCommand(ctx, ActionPlay, "lobby", nil)
	rec.RecordCommand(ctx, ActionSkip, "lobby", errors.New("sequence is not running"))

	page, err := repo.List(ctx, Filter{EntityID: "lobby"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 2 {
		t.Fatalf("total = %d, want 2", page.Total)
	}
	for _, e := range page.Entries {
		if e.Source != SourceMQTT || e.EntityType != EntitySequence {
			t.Errorf("entry = %+v", e)
		}
	}
	skip := page.Entries[0]
	if skip.Action != ActionSkip {
		skip = page.Entries[1]
	}
	if skip.Details["error"] != "sequence is not running" {
		t.Errorf("skip details = %v", skip.Details)
	}
}

func TestRecorder_FailureIsLogged(t *testing.T) {
	log := &mockLogger{}
	rec := NewRecorder(failingRepo{}, log)

	rec.Record(context.Background(), Entry{Action: ActionDelete, EntityType: EntitySequence})

	if len(log.warns) != 1 {
		t.Errorf("warnings = %v, want one", log.warns)
	}

	// A nil recorder is a no-op.
	var none *Recorder
	none.Record(context.Background(), Entry{Action: ActionPlay})
}
