package history_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"foundry/internal/history"
)

func openStore(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordAndQueryRunEvents(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	events := []history.Event{
		{RunID: "run-1", ItemID: "SKY01", ItemName: "Misty Valley", Section: "Environments", Provider: "skybox", Status: history.EventCompleted, ProviderRef: "gen-1", ArtifactPath: "/out/SKY01_Misty_Valley.png", Duration: 42 * time.Second},
		{RunID: "run-1", ItemID: "SKY02", ItemName: "Aurora Ridge", Section: "Environments", Provider: "skybox", Status: history.EventFailed, ErrorMessage: "timeout"},
		{RunID: "run-2", ItemID: "SKY02", ItemName: "Aurora Ridge", Section: "Environments", Provider: "skybox", Status: history.EventCompleted, ProviderRef: "gen-7"},
	}
	for _, event := range events {
		if err := store.RecordEvent(ctx, event); err != nil {
			t.Fatalf("RecordEvent failed: %v", err)
		}
	}

	latest, err := store.LatestRunID(ctx)
	if err != nil {
		t.Fatalf("LatestRunID failed: %v", err)
	}
	if latest != "run-2" {
		t.Fatalf("expected run-2 latest, got %q", latest)
	}

	runOne, err := store.RunEvents(ctx, "run-1")
	if err != nil {
		t.Fatalf("RunEvents failed: %v", err)
	}
	if len(runOne) != 2 {
		t.Fatalf("expected 2 events for run-1, got %d", len(runOne))
	}
	if runOne[0].ItemID != "SKY01" || runOne[1].ItemID != "SKY02" {
		t.Fatalf("insertion order not preserved: %#v", runOne)
	}
	if runOne[0].Duration != 42*time.Second {
		t.Fatalf("duration not round-tripped: %v", runOne[0].Duration)
	}
	if runOne[1].ErrorMessage != "timeout" {
		t.Fatalf("error message lost: %#v", runOne[1])
	}
}

func TestItemEventsNewestFirst(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if err := store.RecordEvent(ctx, history.Event{RunID: "run-1", ItemID: "MUS01", ItemName: "Tavern Theme", Provider: "soundfx", Status: history.EventFailed, ErrorMessage: "quota"}); err != nil {
		t.Fatalf("RecordEvent failed: %v", err)
	}
	if err := store.RecordEvent(ctx, history.Event{RunID: "run-2", ItemID: "MUS01", ItemName: "Tavern Theme", Provider: "soundfx", Status: history.EventCompleted, ProviderRef: "job-2"}); err != nil {
		t.Fatalf("RecordEvent failed: %v", err)
	}

	audit, err := store.ItemEvents(ctx, "MUS01")
	if err != nil {
		t.Fatalf("ItemEvents failed: %v", err)
	}
	if len(audit) != 2 {
		t.Fatalf("expected 2 audit rows, got %d", len(audit))
	}
	if audit[0].RunID != "run-2" || audit[1].RunID != "run-1" {
		t.Fatalf("expected newest first: %#v", audit)
	}
	if audit[0].ProviderRef != "job-2" {
		t.Fatalf("provider ref lost: %#v", audit[0])
	}
}

func TestLatestRunIDEmptyHistory(t *testing.T) {
	store := openStore(t)
	latest, err := store.LatestRunID(context.Background())
	if err != nil {
		t.Fatalf("LatestRunID failed: %v", err)
	}
	if latest != "" {
		t.Fatalf("expected empty run id, got %q", latest)
	}
}

func TestOpenReusesExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	first, err := history.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := first.RecordEvent(context.Background(), history.Event{RunID: "run-1", ItemID: "A1", ItemName: "a", Provider: "skybox", Status: history.EventCompleted}); err != nil {
		t.Fatalf("RecordEvent failed: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	second, err := history.Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer second.Close()
	events, err := second.RunEvents(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("RunEvents failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected persisted event after reopen, got %d", len(events))
	}
}
