package runner_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"foundry/internal/artifacts"
	"foundry/internal/catalog"
	"foundry/internal/checkpoint"
	"foundry/internal/history"
	"foundry/internal/provider"
	"foundry/internal/runner"
)

type pollStep struct {
	status provider.JobStatus
	err    error
}

type itemScript struct {
	submitErr error
	fetchErr  error
	polls     []pollStep
	artifact  provider.Artifact
}

// fakeGenerator scripts provider behavior per item id and counts calls.
type fakeGenerator struct {
	scripts     map[string]*itemScript
	submitCalls int
	pollCalls   int
	fetchCalls  int
	onSubmit    func(itemID string)
}

func (f *fakeGenerator) Name() string { return "fake" }

func (f *fakeGenerator) Submit(ctx context.Context, item catalog.Item) (provider.JobHandle, error) {
	f.submitCalls++
	if f.onSubmit != nil {
		f.onSubmit(item.ID)
	}
	script := f.scripts[item.ID]
	if script != nil && script.submitErr != nil {
		return provider.JobHandle{}, script.submitErr
	}
	return provider.JobHandle{ID: "h-" + item.ID}, nil
}

func (f *fakeGenerator) Poll(ctx context.Context, handle provider.JobHandle) (provider.JobStatus, error) {
	f.pollCalls++
	script := f.scripts[handle.ID[2:]]
	if script == nil || len(script.polls) == 0 {
		return provider.JobStatus{State: provider.StateSucceeded}, nil
	}
	step := script.polls[0]
	if len(script.polls) > 1 {
		script.polls = script.polls[1:]
	}
	return step.status, step.err
}

func (f *fakeGenerator) Fetch(ctx context.Context, handle provider.JobHandle) (provider.Artifact, error) {
	f.fetchCalls++
	script := f.scripts[handle.ID[2:]]
	if script != nil && script.fetchErr != nil {
		return provider.Artifact{}, script.fetchErr
	}
	if script != nil && script.artifact.Extension != "" {
		return script.artifact, nil
	}
	return provider.Artifact{Data: []byte("data"), Extension: "png"}, nil
}

type harness struct {
	gen    *fakeGenerator
	store  *checkpoint.Store
	writer *artifacts.Writer
	hist   *history.Store
	outDir string
	ckPath string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	ckPath := filepath.Join(dir, "progress.json")
	store, err := checkpoint.Open(ckPath)
	if err != nil {
		t.Fatalf("open checkpoint: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	hist, err := history.Open(filepath.Join(dir, "history.db"))
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	t.Cleanup(func() { _ = hist.Close() })

	outDir := filepath.Join(dir, "out")
	return &harness{
		gen:    &fakeGenerator{scripts: map[string]*itemScript{}},
		store:  store,
		writer: artifacts.NewWriter(outDir),
		hist:   hist,
		outDir: outDir,
		ckPath: ckPath,
	}
}

func (h *harness) reopen(t *testing.T) {
	t.Helper()
	if err := h.store.Close(); err != nil {
		t.Fatalf("close checkpoint: %v", err)
	}
	store, err := checkpoint.Open(h.ckPath)
	if err != nil {
		t.Fatalf("reopen checkpoint: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	h.store = store
}

func fastOptions() runner.Options {
	return runner.Options{
		PollInterval: time.Millisecond,
		ItemDelay:    0,
		WaitTimeout:  250 * time.Millisecond,
		RunID:        "run-test",
	}
}

func (h *harness) run(t *testing.T, items []catalog.Item, opts runner.Options) runner.Summary {
	t.Helper()
	r := runner.New(h.gen, h.store, h.writer, h.hist, nil, opts)
	summary, err := r.Run(context.Background(), items)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return summary
}

func testItems(ids ...string) []catalog.Item {
	items := make([]catalog.Item, 0, len(ids))
	for _, id := range ids {
		items = append(items, catalog.Item{ID: id, Name: "Item " + id, Prompt: "prompt " + id, Section: "Main"})
	}
	return items
}

func TestSingleItemLifecycle(t *testing.T) {
	h := newHarness(t)
	h.gen.scripts["X01"] = &itemScript{
		polls: []pollStep{
			{status: provider.JobStatus{State: provider.StateInProgress, Progress: 10}},
			{status: provider.JobStatus{State: provider.StateSucceeded}},
		},
		artifact: provider.Artifact{Data: make([]byte, 1024), Extension: "png"},
	}

	items := []catalog.Item{{ID: "X01", Name: "Test Item", Prompt: "a test prompt"}}
	summary := h.run(t, items, fastOptions())

	if summary.Completed != 1 || summary.Failed != 0 || summary.Skipped != 0 {
		t.Fatalf("unexpected tally: %#v", summary)
	}
	artifactPath := filepath.Join(h.outDir, "X01_Test_Item.png")
	info, err := os.Stat(artifactPath)
	if err != nil {
		t.Fatalf("artifact missing: %v", err)
	}
	if info.Size() != 1024 {
		t.Fatalf("expected 1024 bytes, got %d", info.Size())
	}
	if !h.store.IsDone("X01") {
		t.Fatal("checkpoint should record X01 completed")
	}
	record, _ := h.store.Get("X01")
	if record.ProviderRef != "h-X01" {
		t.Fatalf("provider ref not stored: %#v", record)
	}
}

func TestIdempotentResume(t *testing.T) {
	h := newHarness(t)
	items := testItems("A1", "A2")

	first := h.run(t, items, fastOptions())
	if first.Completed != 2 {
		t.Fatalf("first run should complete both: %#v", first)
	}
	callsAfterFirst := h.gen.submitCalls

	second := h.run(t, items, fastOptions())
	if second.Completed != 0 || second.Skipped != 2 {
		t.Fatalf("second run should skip everything: %#v", second)
	}
	if h.gen.submitCalls != callsAfterFirst {
		t.Fatalf("second run performed provider calls: %d -> %d", callsAfterFirst, h.gen.submitCalls)
	}
}

func TestPartialFailureIsolation(t *testing.T) {
	h := newHarness(t)
	h.gen.scripts["B2"] = &itemScript{submitErr: errors.New("quota exceeded")}
	items := testItems("B1", "B2", "B3")

	summary := h.run(t, items, fastOptions())
	if summary.Completed != 2 || summary.Failed != 1 {
		t.Fatalf("unexpected tally: %#v", summary)
	}
	if !h.store.IsDone("B1") || !h.store.IsDone("B3") {
		t.Fatal("items around the failure must complete")
	}
	record, ok := h.store.Get("B2")
	if !ok || record.Status != checkpoint.StatusFailed {
		t.Fatalf("B2 should be checkpointed failed: %#v", record)
	}
}

func TestTimeoutEnforcement(t *testing.T) {
	h := newHarness(t)
	h.gen.scripts["T1"] = &itemScript{
		polls: []pollStep{{status: provider.JobStatus{State: provider.StateInProgress, Progress: 50}}},
	}

	opts := fastOptions()
	opts.PollInterval = 5 * time.Millisecond
	opts.WaitTimeout = 40 * time.Millisecond

	started := time.Now()
	summary := h.run(t, testItems("T1"), opts)
	elapsed := time.Since(started)

	if summary.Failed != 1 {
		t.Fatalf("expected timeout failure: %#v", summary)
	}
	record, _ := h.store.Get("T1")
	if record.Reason != "timeout" {
		t.Fatalf("expected reason timeout, got %q", record.Reason)
	}
	if elapsed < opts.WaitTimeout {
		t.Fatalf("gave up before the wait budget: %v < %v", elapsed, opts.WaitTimeout)
	}
	if elapsed > opts.WaitTimeout+200*time.Millisecond {
		t.Fatalf("ran far past the wait budget: %v", elapsed)
	}
}

func TestTransientPollErrorsRetried(t *testing.T) {
	h := newHarness(t)
	h.gen.scripts["R1"] = &itemScript{
		polls: []pollStep{
			{err: errors.New("connection reset")},
			{err: errors.New("connection reset")},
			{status: provider.JobStatus{State: provider.StateSucceeded}},
		},
	}

	summary := h.run(t, testItems("R1"), fastOptions())
	if summary.Completed != 1 {
		t.Fatalf("transient poll errors should not fail the item: %#v", summary)
	}
}

func TestProviderReportedFailure(t *testing.T) {
	h := newHarness(t)
	h.gen.scripts["F1"] = &itemScript{
		polls: []pollStep{{status: provider.JobStatus{State: provider.StateFailed, Reason: "nsfw prompt"}}},
	}

	summary := h.run(t, testItems("F1"), fastOptions())
	if summary.Failed != 1 {
		t.Fatalf("expected failure: %#v", summary)
	}
	if h.gen.fetchCalls != 0 {
		t.Fatal("failed job must not be fetched")
	}
	record, _ := h.store.Get("F1")
	if record.Status != checkpoint.StatusFailed {
		t.Fatalf("F1 not checkpointed failed: %#v", record)
	}
}

func TestCrashResumeProcessesOnlyRemainder(t *testing.T) {
	h := newHarness(t)
	items := testItems("C1", "C2", "C3")

	// Interrupt the run as item C2 submits, as if the process died there.
	ctx, cancel := context.WithCancel(context.Background())
	h.gen.onSubmit = func(itemID string) {
		if itemID == "C2" {
			cancel()
		}
	}
	r := runner.New(h.gen, h.store, h.writer, h.hist, nil, fastOptions())
	if _, err := r.Run(ctx, items); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if !h.store.IsDone("C1") {
		t.Fatal("completed item lost at interrupt")
	}
	if h.store.IsDone("C2") {
		t.Fatal("in-flight item must stay unrecorded")
	}

	// Resume with a fresh process.
	h.gen.onSubmit = nil
	submitsBefore := h.gen.submitCalls
	h.reopen(t)
	summary := h.run(t, items, fastOptions())
	if summary.Completed != 2 || summary.Skipped != 1 {
		t.Fatalf("resume should process exactly the remainder: %#v", summary)
	}
	if h.gen.submitCalls-submitsBefore != 2 {
		t.Fatalf("expected 2 submits on resume, got %d", h.gen.submitCalls-submitsBefore)
	}
}

func TestStartFromSlicesRemaining(t *testing.T) {
	h := newHarness(t)
	opts := fastOptions()
	opts.StartFrom = "S3"

	summary := h.run(t, testItems("S1", "S2", "S3", "S4"), opts)
	if summary.Completed != 2 {
		t.Fatalf("expected S3 and S4 only: %#v", summary)
	}
	if h.store.IsDone("S1") || h.store.IsDone("S2") {
		t.Fatal("items before start id must be untouched")
	}
	if !h.store.IsDone("S3") || !h.store.IsDone("S4") {
		t.Fatal("items from start id must complete")
	}
}

func TestStartFromUnknownIDExcludesNothing(t *testing.T) {
	h := newHarness(t)
	opts := fastOptions()
	opts.StartFrom = "ZZ99"

	summary := h.run(t, testItems("S1", "S2"), opts)
	if summary.Completed != 2 {
		t.Fatalf("unknown start id should process everything: %#v", summary)
	}
}

func TestSectionFilter(t *testing.T) {
	h := newHarness(t)
	items := []catalog.Item{
		{ID: "A1", Name: "a", Prompt: "p", Section: "Environments"},
		{ID: "M1", Name: "m", Prompt: "p", Section: "Music"},
		{ID: "A2", Name: "a2", Prompt: "p", Section: "Environments"},
	}
	opts := fastOptions()
	opts.Sections = []string{"music"}

	summary := h.run(t, items, opts)
	if summary.Completed != 1 {
		t.Fatalf("expected only the music item: %#v", summary)
	}
	if !h.store.IsDone("M1") || h.store.IsDone("A1") || h.store.IsDone("A2") {
		t.Fatal("section filter not applied")
	}
}

func TestLimitCapsRun(t *testing.T) {
	h := newHarness(t)
	opts := fastOptions()
	opts.Limit = 2

	summary := h.run(t, testItems("L1", "L2", "L3"), opts)
	if summary.Completed != 2 {
		t.Fatalf("expected limit of 2: %#v", summary)
	}
	if h.store.IsDone("L3") {
		t.Fatal("limited run must not touch later items")
	}
}

func TestForceReprocessesCompletedItems(t *testing.T) {
	h := newHarness(t)
	items := testItems("F1")
	h.run(t, items, fastOptions())

	opts := fastOptions()
	opts.Force = true
	summary := h.run(t, items, opts)
	if summary.Completed != 1 || summary.Skipped != 0 {
		t.Fatalf("force run should reprocess: %#v", summary)
	}
	if h.gen.submitCalls != 2 {
		t.Fatalf("expected 2 submits across runs, got %d", h.gen.submitCalls)
	}
}

func TestInterItemDelaySkippedAfterLastItem(t *testing.T) {
	h := newHarness(t)
	opts := fastOptions()
	opts.ItemDelay = time.Hour

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.run(t, testItems("D1"), opts)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("single-item run blocked on inter-item delay")
	}
}

func TestHistoryRowsWritten(t *testing.T) {
	h := newHarness(t)
	h.gen.scripts["B2"] = &itemScript{submitErr: errors.New("quota exceeded")}
	h.run(t, testItems("B1", "B2"), fastOptions())

	events, err := h.hist.RunEvents(context.Background(), "run-test")
	if err != nil {
		t.Fatalf("RunEvents failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 history rows, got %d", len(events))
	}
	if events[0].Status != history.EventCompleted || events[0].Provider != "fake" {
		t.Fatalf("unexpected first event: %#v", events[0])
	}
	if events[1].Status != history.EventFailed || events[1].ErrorMessage == "" {
		t.Fatalf("unexpected second event: %#v", events[1])
	}
}
