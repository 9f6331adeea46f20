package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/AndrewDeWitt/grimlog/internal/game/domain/event"
	"github.com/AndrewDeWitt/grimlog/internal/game/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "game.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSessionRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	record := storage.SessionRecord{
		ID:              "sess-1",
		Name:            "League night vs Tyranids",
		PlayerFaction:   "Adeptus Custodes",
		OpponentFaction: "Tyranids",
		Status:          storage.SessionStatusActive,
	}
	if err := store.PutSession(ctx, record); err != nil {
		t.Fatalf("PutSession: %v", err)
	}

	got, err := store.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Name != record.Name {
		t.Errorf("name = %q, want %q", got.Name, record.Name)
	}
	if got.OpponentFaction != "Tyranids" {
		t.Errorf("opponent faction = %q", got.OpponentFaction)
	}
	if got.Status != storage.SessionStatusActive {
		t.Errorf("status = %q", got.Status)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}
}

func TestGetSessionNotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.GetSession(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestPutSessionRequiresFields(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.PutSession(ctx, storage.SessionRecord{Name: "no id"}); err == nil {
		t.Error("expected error for missing id")
	}
	if err := store.PutSession(ctx, storage.SessionRecord{ID: "no-name"}); err == nil {
		t.Error("expected error for missing name")
	}
}

func TestPutSessionUpsert(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	record := storage.SessionRecord{ID: "sess-2", Name: "Before"}
	if err := store.PutSession(ctx, record); err != nil {
		t.Fatalf("PutSession: %v", err)
	}
	record.Name = "After"
	if err := store.PutSession(ctx, record); err != nil {
		t.Fatalf("PutSession update: %v", err)
	}

	got, err := store.GetSession(ctx, "sess-2")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Name != "After" {
		t.Errorf("name = %q, want After", got.Name)
	}
}

func TestListSessionsFiltersByStatus(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, record := range []storage.SessionRecord{
		{ID: "a", Name: "Active game", Status: storage.SessionStatusActive},
		{ID: "b", Name: "Finished game", Status: storage.SessionStatusEnded},
	} {
		if err := store.PutSession(ctx, record); err != nil {
			t.Fatalf("PutSession %s: %v", record.ID, err)
		}
	}

	all, err := store.ListSessions(ctx, "", 0, 0)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d sessions, want 2", len(all))
	}

	ended, err := store.ListSessions(ctx, storage.SessionStatusEnded, 0, 0)
	if err != nil {
		t.Fatalf("ListSessions ended: %v", err)
	}
	if len(ended) != 1 || ended[0].ID != "b" {
		t.Errorf("ended = %+v, want session b only", ended)
	}
}

func TestSetSessionStatus(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.PutSession(ctx, storage.SessionRecord{ID: "sess-3", Name: "To end"}); err != nil {
		t.Fatalf("PutSession: %v", err)
	}
	if err := store.SetSessionStatus(ctx, "sess-3", storage.SessionStatusEnded); err != nil {
		t.Fatalf("SetSessionStatus: %v", err)
	}

	got, err := store.GetSession(ctx, "sess-3")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Status != storage.SessionStatusEnded {
		t.Errorf("status = %q, want ended", got.Status)
	}

	if err := store.SetSessionStatus(ctx, "missing", storage.SessionStatusEnded); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("missing session err = %v, want ErrNotFound", err)
	}
}

func TestAppendEventAssignsSequence(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	first, err := store.AppendEvent(ctx, event.Event{
		SessionID:   "sess-4",
		Timestamp:   now,
		Type:        event.TypeSessionCreated,
		ActorType:   event.ActorTypePlayer,
		PayloadJSON: []byte(`{"name":"Test"}`),
	})
	if err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}
	if first.Seq != 1 {
		t.Errorf("first seq = %d, want 1", first.Seq)
	}

	second, err := store.AppendEvent(ctx, event.Event{
		SessionID: "sess-4",
		Timestamp: now,
		Type:      event.TypeRoundAdvanced,
		ActorType: event.ActorTypePlayer,
	})
	if err != nil {
		t.Fatalf("AppendEvent second: %v", err)
	}
	if second.Seq != 2 {
		t.Errorf("second seq = %d, want 2", second.Seq)
	}

	// A different session gets its own sequence.
	other, err := store.AppendEvent(ctx, event.Event{
		SessionID: "sess-5",
		Timestamp: now,
		Type:      event.TypeSessionCreated,
		ActorType: event.ActorTypePlayer,
	})
	if err != nil {
		t.Fatalf("AppendEvent other session: %v", err)
	}
	if other.Seq != 1 {
		t.Errorf("other session seq = %d, want 1", other.Seq)
	}
}

func TestAppendEventValidation(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.AppendEvent(ctx, event.Event{Timestamp: time.Now(), Type: event.TypeNoteAdded})
	if err == nil {
		t.Error("expected error for missing session id")
	}
	_, err = store.AppendEvent(ctx, event.Event{SessionID: "s", Timestamp: time.Now()})
	if err == nil {
		t.Error("expected error for missing type")
	}
	_, err = store.AppendEvent(ctx, event.Event{SessionID: "s", Type: event.TypeNoteAdded})
	if err == nil {
		t.Error("expected error for missing timestamp")
	}
}

func TestListEventsRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	types := []event.Type{
		event.TypeSessionCreated,
		event.TypeRoundAdvanced,
		event.TypePhaseSet,
		event.TypeUnitDamaged,
	}
	for _, eventType := range types {
		_, err := store.AppendEvent(ctx, event.Event{
			SessionID:   "sess-6",
			Timestamp:   now,
			Type:        eventType,
			ActorType:   event.ActorTypePlayer,
			ActorID:     "player",
			EntityType:  "unit",
			EntityID:    "u1",
			RequestID:   "req-1",
			PayloadJSON: []byte(`{"k":1}`),
		})
		if err != nil {
			t.Fatalf("AppendEvent %s: %v", eventType, err)
		}
	}

	events, err := store.ListEvents(ctx, "sess-6")
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != len(types) {
		t.Fatalf("got %d events, want %d", len(events), len(types))
	}
	for i, evt := range events {
		if evt.Seq != uint64(i+1) {
			t.Errorf("event %d seq = %d", i, evt.Seq)
		}
		if evt.Type != types[i] {
			t.Errorf("event %d type = %s, want %s", i, evt.Type, types[i])
		}
		if string(evt.PayloadJSON) != `{"k":1}` {
			t.Errorf("event %d payload = %s", i, evt.PayloadJSON)
		}
		if evt.RequestID != "req-1" {
			t.Errorf("event %d request id = %s", i, evt.RequestID)
		}
	}
}

func TestListEventsPage(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 5; i++ {
		_, err := store.AppendEvent(ctx, event.Event{
			SessionID: "sess-7",
			Timestamp: now,
			Type:      event.TypeNoteAdded,
			ActorType: event.ActorTypePlayer,
		})
		if err != nil {
			t.Fatalf("AppendEvent: %v", err)
		}
	}

	page, err := store.ListEventsPage(ctx, "sess-7", 2, 2)
	if err != nil {
		t.Fatalf("ListEventsPage: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("got %d events, want 2", len(page))
	}
	if page[0].Seq != 3 || page[1].Seq != 4 {
		t.Errorf("page seqs = %d, %d, want 3, 4", page[0].Seq, page[1].Seq)
	}
}

func TestGetEvent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	appended, err := store.AppendEvent(ctx, event.Event{
		SessionID: "sess-8",
		Timestamp: time.Now(),
		Type:      event.TypeSessionCreated,
		ActorType: event.ActorTypePlayer,
	})
	if err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}

	got, err := store.GetEvent(ctx, "sess-8", appended.Seq)
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if got.Type != event.TypeSessionCreated {
		t.Errorf("type = %s", got.Type)
	}

	if _, err := store.GetEvent(ctx, "sess-8", 99); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("missing event err = %v, want ErrNotFound", err)
	}
}
