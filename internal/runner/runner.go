package runner

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"foundry/internal/artifacts"
	"foundry/internal/catalog"
	"foundry/internal/checkpoint"
	"foundry/internal/history"
	"foundry/internal/logging"
	"foundry/internal/provider"
	"foundry/internal/services"
)

// Options controls batch pacing and item selection.
type Options struct {
	// PollInterval is the sleep between job status checks.
	PollInterval time.Duration
	// ItemDelay is the courtesy pause between items; skipped after the last.
	ItemDelay time.Duration
	// WaitTimeout is each item's wall-clock budget for the polling phase.
	WaitTimeout time.Duration
	// StartFrom excludes every item before the first occurrence of this id
	// in the remaining (checkpoint-filtered) sequence. An id that never
	// occurs excludes nothing.
	StartFrom string
	// Sections restricts processing to items whose section matches one of
	// these labels. Empty means all sections.
	Sections []string
	// Force ignores the checkpoint filter so every item is reprocessed.
	Force bool
	// Limit caps how many items are processed this run; 0 means no cap.
	Limit int
	// RunID labels history rows; one is generated by the CLI per run.
	RunID string
}

// Outcome classifies one item's terminal result.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"
)

// ItemResult is the terminal record for one item.
type ItemResult struct {
	Item         catalog.Item
	Outcome      Outcome
	Reason       string
	ProviderRef  string
	ArtifactPath string
	Duration     time.Duration
}

// Summary tallies a finished run.
type Summary struct {
	RunID     string
	Completed int
	Failed    int
	Skipped   int
	Results   []ItemResult
}

// Runner drives catalog items through the provider state machine
// sequentially, one fully processed item at a time.
type Runner struct {
	gen     provider.Generator
	store   *checkpoint.Store
	writer  *artifacts.Writer
	history *history.Store
	logger  *slog.Logger
	opts    Options
}

// New constructs a runner. The history store may be nil; audit rows are then
// not written.
func New(gen provider.Generator, store *checkpoint.Store, writer *artifacts.Writer, hist *history.Store, logger *slog.Logger, opts Options) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = 5 * time.Minute
	}
	return &Runner{gen: gen, store: store, writer: writer, history: hist, logger: logger, opts: opts}
}

// Run processes every selected item in catalog order. Per-item failures are
// recorded and do not stop the batch; only checkpoint persistence failures
// and context cancellation abort the run. The summary covers everything
// decided before the abort.
func (r *Runner) Run(ctx context.Context, items []catalog.Item) (Summary, error) {
	summary := Summary{RunID: r.opts.RunID}

	selected := r.selectItems(items, &summary)
	r.logger.Info("batch starting",
		logging.Args(
			logging.String(logging.FieldProvider, r.gen.Name()),
			logging.String(logging.FieldRun, r.opts.RunID),
			logging.Int("total", len(items)),
			logging.Int("skipped", summary.Skipped),
			logging.Int("remaining", len(selected)),
		)...)

	for i, item := range selected {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		result := r.processItem(ctx, item)
		if ctx.Err() != nil {
			// The interrupted item stays unrecorded so the next run
			// retries it from scratch; prior checkpoints stand.
			return summary, ctx.Err()
		}

		if err := r.record(ctx, result); err != nil {
			return summary, err
		}
		summary.Results = append(summary.Results, result)
		switch result.Outcome {
		case OutcomeCompleted:
			summary.Completed++
		case OutcomeFailed:
			summary.Failed++
		}

		if i < len(selected)-1 && r.opts.ItemDelay > 0 {
			if err := sleepCtx(ctx, r.opts.ItemDelay); err != nil {
				return summary, err
			}
		}
	}

	r.logger.Info("batch finished",
		logging.Args(
			logging.String(logging.FieldRun, r.opts.RunID),
			logging.Int("completed", summary.Completed),
			logging.Int("failed", summary.Failed),
			logging.Int("skipped", summary.Skipped),
		)...)
	return summary, nil
}

// selectItems applies the run's selection rules, recording skipped items
// into the summary.
func (r *Runner) selectItems(items []catalog.Item, summary *Summary) []catalog.Item {
	remaining, skipped := Plan(items, r.store.IsDone, r.opts)
	for _, item := range skipped {
		summary.Skipped++
		summary.Results = append(summary.Results, ItemResult{Item: item, Outcome: OutcomeSkipped})
		r.logger.Debug("item already completed",
			logging.Args(logging.String(logging.FieldItem, item.ID))...)
	}
	return remaining
}

// Plan applies the section filter, the checkpoint filter, the startFrom
// slice, and the limit, in that order. It returns the items a run with these
// options would process plus the items skipped by the checkpoint filter.
// isDone may be nil when no checkpoint exists yet.
func Plan(items []catalog.Item, isDone func(id string) bool, opts Options) (selected, skipped []catalog.Item) {
	for _, item := range items {
		if !sectionSelected(opts.Sections, item.Section) {
			continue
		}
		if !opts.Force && isDone != nil && isDone(item.ID) {
			skipped = append(skipped, item)
			continue
		}
		selected = append(selected, item)
	}

	if opts.StartFrom != "" {
		for i, item := range selected {
			if item.ID == opts.StartFrom {
				selected = selected[i:]
				break
			}
		}
	}

	if opts.Limit > 0 && len(selected) > opts.Limit {
		selected = selected[:opts.Limit]
	}
	return selected, skipped
}

func sectionSelected(sections []string, section string) bool {
	if len(sections) == 0 {
		return true
	}
	for _, want := range sections {
		if strings.EqualFold(strings.TrimSpace(want), section) {
			return true
		}
	}
	return false
}

// processItem walks one item through submit, poll, fetch, and write. Every
// provider or filesystem failure terminates in a failed result; nothing here
// aborts the batch.
func (r *Runner) processItem(ctx context.Context, item catalog.Item) ItemResult {
	started := time.Now()
	result := ItemResult{Item: item}
	itemAttr := logging.String(logging.FieldItem, item.ID)

	r.logger.Info("submitting item",
		logging.Args(itemAttr,
			logging.String(logging.FieldSection, item.Section),
			logging.String("name", item.Name),
		)...)

	handle, err := r.gen.Submit(ctx, item)
	if err != nil {
		return r.fail(result, started, services.Wrap(services.ErrSubmit, r.gen.Name(), "submit", item.ID, err))
	}
	result.ProviderRef = handle.ID

	status, err := r.waitForTerminal(ctx, item, handle)
	if err != nil {
		return r.fail(result, started, err)
	}
	if status.State == provider.StateFailed {
		reason := status.Reason
		if reason == "" {
			reason = "provider reported failure"
		}
		return r.fail(result, started, services.Wrap(services.ErrPoll, r.gen.Name(), "generate", reason, nil))
	}

	artifact, err := r.gen.Fetch(ctx, handle)
	if err != nil {
		return r.fail(result, started, services.Wrap(services.ErrFetch, r.gen.Name(), "fetch", item.ID, err))
	}

	path, skippedWrite, err := r.writer.Write(item, artifact)
	if err != nil {
		return r.fail(result, started, services.Wrap(services.ErrWrite, "artifacts", "write", item.ID, err))
	}

	result.Outcome = OutcomeCompleted
	result.ArtifactPath = path
	result.Duration = time.Since(started)
	r.logger.Info("item completed",
		logging.Args(itemAttr,
			logging.String(logging.FieldPath, path),
			logging.Bool("existing_artifact", skippedWrite),
			logging.Duration("elapsed", result.Duration),
		)...)
	return result
}

// waitForTerminal polls until the job reaches a terminal state or the item's
// wait budget elapses. Transient poll errors are retried within the same
// budget; they only surface if the budget runs out first.
func (r *Runner) waitForTerminal(ctx context.Context, item catalog.Item, handle provider.JobHandle) (provider.JobStatus, error) {
	deadline := time.Now().Add(r.opts.WaitTimeout)
	var lastErr error

	for {
		status, err := r.gen.Poll(ctx, handle)
		if err != nil {
			if ctx.Err() != nil {
				return provider.JobStatus{}, ctx.Err()
			}
			lastErr = err
			r.logger.Warn("poll failed, retrying",
				logging.Args(
					logging.String(logging.FieldItem, item.ID),
					logging.Error(err),
				)...)
		} else {
			if status.State.Terminal() {
				return status, nil
			}
			lastErr = nil
			if status.QueuePosition > 0 {
				r.logger.Debug("item queued",
					logging.Args(
						logging.String(logging.FieldItem, item.ID),
						logging.Int("queue_position", status.QueuePosition),
					)...)
			} else {
				r.logger.Debug("item in progress",
					logging.Args(
						logging.String(logging.FieldItem, item.ID),
						logging.Int("progress", status.Progress),
					)...)
			}
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		wait := r.opts.PollInterval
		if wait > remaining {
			wait = remaining
		}
		if err := sleepCtx(ctx, wait); err != nil {
			return provider.JobStatus{}, err
		}
		if time.Now().After(deadline) {
			break
		}
	}

	if lastErr != nil {
		return provider.JobStatus{}, services.Wrap(services.ErrPoll, r.gen.Name(), "poll", item.ID, lastErr)
	}
	return provider.JobStatus{}, services.Wrap(services.ErrTimeout, r.gen.Name(), "wait", item.ID, nil)
}

func (r *Runner) fail(result ItemResult, started time.Time, err error) ItemResult {
	result.Outcome = OutcomeFailed
	result.Reason = services.FailureReason(err)
	result.Duration = time.Since(started)
	r.logger.Error("item failed",
		logging.Args(
			logging.String(logging.FieldItem, result.Item.ID),
			logging.String(logging.FieldReason, result.Reason),
			logging.Error(err),
		)...)
	return result
}

// record persists the outcome: checkpoint first (it is the source of truth
// for resume), then the audit row. A checkpoint write failure aborts the run;
// a history failure only logs.
func (r *Runner) record(ctx context.Context, result ItemResult) error {
	status := checkpoint.StatusCompleted
	eventStatus := history.EventCompleted
	if result.Outcome == OutcomeFailed {
		status = checkpoint.StatusFailed
		eventStatus = history.EventFailed
	}

	if err := r.store.Record(result.Item.ID, status, result.ProviderRef, result.Reason); err != nil {
		return services.Wrap(services.ErrCheckpoint, "checkpoint", "record", result.Item.ID, err)
	}

	if r.history != nil {
		event := history.Event{
			RunID:        r.opts.RunID,
			ItemID:       result.Item.ID,
			ItemName:     result.Item.Name,
			Section:      result.Item.Section,
			Provider:     r.gen.Name(),
			Status:       eventStatus,
			ProviderRef:  result.ProviderRef,
			ArtifactPath: result.ArtifactPath,
			ErrorMessage: result.Reason,
			Duration:     result.Duration,
		}
		if err := r.history.RecordEvent(ctx, event); err != nil {
			r.logger.Warn("history record failed",
				logging.Args(
					logging.String(logging.FieldItem, result.Item.ID),
					logging.Error(err),
				)...)
		}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
