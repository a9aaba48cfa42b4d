package checkpoint_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"foundry/internal/checkpoint"
)

func storePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "progress.json")
}

func TestOpenFirstRunIsEmpty(t *testing.T) {
	store, err := checkpoint.Open(storePath(t))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer store.Close()

	if store.IsDone("SKY01") {
		t.Fatal("empty store should not report items done")
	}
	completed, failed := store.Counts()
	if completed != 0 || failed != 0 {
		t.Fatalf("expected zero counts, got %d/%d", completed, failed)
	}
}

func TestRecordSurvivesReopen(t *testing.T) {
	path := storePath(t)

	store, err := checkpoint.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := store.Record("SKY01", checkpoint.StatusCompleted, "gen-123", ""); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := store.Record("SKY02", checkpoint.StatusFailed, "", "timeout"); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := checkpoint.Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	if !reopened.IsDone("SKY01") {
		t.Fatal("completed item lost across reopen")
	}
	if reopened.IsDone("SKY02") {
		t.Fatal("failed item must not count as done")
	}
	record, ok := reopened.Get("SKY02")
	if !ok || record.Reason != "timeout" {
		t.Fatalf("failure reason lost: %#v", record)
	}
	record, ok = reopened.Get("SKY01")
	if !ok || record.ProviderRef != "gen-123" {
		t.Fatalf("provider ref lost: %#v", record)
	}
}

func TestRecordUpsertsExistingEntry(t *testing.T) {
	store, err := checkpoint.Open(storePath(t))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer store.Close()

	if err := store.Record("SKY01", checkpoint.StatusFailed, "", "quota"); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := store.Record("SKY01", checkpoint.StatusCompleted, "gen-9", ""); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if !store.IsDone("SKY01") {
		t.Fatal("retried item should now be done")
	}
	completed, failed := store.Counts()
	if completed != 1 || failed != 0 {
		t.Fatalf("expected 1/0 after upsert, got %d/%d", completed, failed)
	}
}

func TestOpenRejectsMalformedSidecar(t *testing.T) {
	path := storePath(t)
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("seed malformed file: %v", err)
	}
	if _, err := checkpoint.Open(path); err == nil {
		t.Fatal("expected error for malformed sidecar")
	}
}

func TestOpenReadsPermissively(t *testing.T) {
	path := storePath(t)
	// Old sidecars carry only the completed list and a timestamp.
	if err := os.WriteFile(path, []byte(`{"completed": ["A1"], "timestamp": "2026-01-01T00:00:00Z"}`), 0o644); err != nil {
		t.Fatalf("seed legacy file: %v", err)
	}
	store, err := checkpoint.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer store.Close()
	if !store.IsDone("A1") {
		t.Fatal("legacy completed entry not honored")
	}
}

func TestSecondOpenBlockedByLock(t *testing.T) {
	path := storePath(t)
	store, err := checkpoint.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer store.Close()

	if _, err := checkpoint.Open(path); err == nil {
		t.Fatal("expected second open to fail while lock held")
	}
}

func TestLoadDoesNotLock(t *testing.T) {
	path := storePath(t)
	store, err := checkpoint.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer store.Close()
	if err := store.Record("SKY01", checkpoint.StatusCompleted, "", ""); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	records, err := checkpoint.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if records["SKY01"].Status != checkpoint.StatusCompleted {
		t.Fatalf("Load missed recorded entry: %#v", records)
	}
}

func TestSidecarShapeOnDisk(t *testing.T) {
	path := storePath(t)
	store, err := checkpoint.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer store.Close()
	if err := store.Record("B2", checkpoint.StatusFailed, "ref-2", "submit rejected"); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sidecar: %v", err)
	}
	var parsed struct {
		Completed []string `json:"completed"`
		Failed    []struct {
			ID     string `json:"id"`
			Reason string `json:"reason"`
		} `json:"failed"`
		Refs      map[string]string `json:"refs"`
		Timestamp string            `json:"timestamp"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		t.Fatalf("sidecar is not valid JSON: %v", err)
	}
	if len(parsed.Completed) != 0 {
		t.Fatalf("unexpected completed entries: %v", parsed.Completed)
	}
	if len(parsed.Failed) != 1 || parsed.Failed[0].ID != "B2" || parsed.Failed[0].Reason != "submit rejected" {
		t.Fatalf("unexpected failed entries: %#v", parsed.Failed)
	}
	if parsed.Refs["B2"] != "ref-2" {
		t.Fatalf("provider ref not persisted: %#v", parsed.Refs)
	}
	if parsed.Timestamp == "" {
		t.Fatal("timestamp missing from sidecar")
	}
}
