package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"foundry/internal/checkpoint"
	"foundry/internal/history"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var verify bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show batch progress and the most recent run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			records, err := checkpoint.Load(cfg.Paths.CheckpointFile)
			if err != nil {
				return err
			}
			printCheckpointStatus(out, cfg.Paths.CheckpointFile, records)

			if verify {
				printVerification(out, cfg.Paths.OutputDir, records)
			}

			hist, err := history.Open(cfg.Paths.HistoryDB)
			if err != nil {
				fmt.Fprintf(out, "History unavailable: %v\n", err)
				return nil
			}
			defer hist.Close()
			printLastRun(cmd, out, hist)
			return nil
		},
	}

	cmd.Flags().BoolVar(&verify, "verify", false, "Check that completed items still have an artifact on disk")
	return cmd
}

func printCheckpointStatus(out io.Writer, path string, records map[string]checkpoint.Record) {
	completed, failed := 0, 0
	var failedIDs []string
	for id, record := range records {
		switch record.Status {
		case checkpoint.StatusCompleted:
			completed++
		case checkpoint.StatusFailed:
			failed++
			failedIDs = append(failedIDs, id)
		}
	}

	fmt.Fprintf(out, "Checkpoint: %s\n", path)
	fmt.Fprintf(out, "Completed: %d  Failed: %d\n", completed, failed)
	if len(failedIDs) == 0 {
		return
	}

	sort.Strings(failedIDs)
	rows := make([][]string, 0, len(failedIDs))
	for _, id := range failedIDs {
		reason := records[id].Reason
		if reason == "" {
			reason = "-"
		}
		rows = append(rows, []string{id, truncate(reason, 60)})
	}
	fmt.Fprintln(out, renderTable([]string{"Failed ID", "Reason"}, rows))
}

// printVerification cross-checks the checkpoint against the output
// directory: a completed item with no matching artifact file usually means
// the directory was cleaned while the sidecar survived.
func printVerification(out io.Writer, outputDir string, records map[string]checkpoint.Record) {
	entries, err := os.ReadDir(outputDir)
	if err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(out, "Verify skipped: %v\n", err)
		return
	}

	var missing []string
	for id, record := range records {
		if record.Status != checkpoint.StatusCompleted {
			continue
		}
		if !hasArtifact(entries, id) {
			missing = append(missing, id)
		}
	}

	if len(missing) == 0 {
		fmt.Fprintln(out, "Verify: all completed items have artifacts")
		return
	}
	sort.Strings(missing)
	fmt.Fprintf(out, "Verify: %d completed items missing artifacts: %s\n",
		len(missing), strings.Join(missing, ", "))
	fmt.Fprintln(out, "Re-run with --force or clear their checkpoint entries to regenerate")
}

func hasArtifact(entries []os.DirEntry, id string) bool {
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, id+"_") || strings.HasPrefix(name, id+".") {
			return true
		}
	}
	return false
}

func printLastRun(cmd *cobra.Command, out io.Writer, hist *history.Store) {
	runID, err := hist.LatestRunID(cmd.Context())
	if err != nil {
		fmt.Fprintf(out, "History unavailable: %v\n", err)
		return
	}
	if runID == "" {
		fmt.Fprintln(out, "No runs recorded yet")
		return
	}

	events, err := hist.RunEvents(cmd.Context(), runID)
	if err != nil {
		fmt.Fprintf(out, "History unavailable: %v\n", err)
		return
	}

	fmt.Fprintf(out, "Last run %s (%d items):\n", runID, len(events))
	rows := make([][]string, 0, len(events))
	for _, event := range events {
		detail := event.ArtifactPath
		if event.Status == history.EventFailed {
			detail = truncate(event.ErrorMessage, 50)
		}
		rows = append(rows, []string{
			event.ItemID,
			event.Status,
			formatDuration(event.Duration),
			detail,
		})
	}
	fmt.Fprintln(out, renderTable([]string{"ID", "Status", "Elapsed", "Detail"}, rows, 2))
}
