package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"foundry/internal/artifacts"
	"foundry/internal/catalog"
	"foundry/internal/checkpoint"
	"foundry/internal/config"
	"foundry/internal/history"
	"foundry/internal/runner"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var sections []string
	var startFrom string
	var force bool
	var dryRun bool
	var limit int
	var outputDir string

	cmd := &cobra.Command{
		Use:   "run <catalog.md>",
		Short: "Generate every pending item in a catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			catalogPath, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			items, err := catalog.ParseFile(catalogPath, catalog.DefaultPatterns())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "Catalog contains no generable items")
				return nil
			}

			outDir := cfg.Paths.OutputDir
			checkpointPath := cfg.Paths.CheckpointFile
			if outputDir != "" {
				outDir, err = config.ExpandPath(outputDir)
				if err != nil {
					return err
				}
				checkpointPath = filepath.Join(outDir, "progress.json")
			}

			opts := runner.Options{
				PollInterval: time.Duration(cfg.Runner.PollInterval) * time.Second,
				ItemDelay:    time.Duration(cfg.Runner.ItemDelay) * time.Second,
				WaitTimeout:  time.Duration(cfg.Runner.WaitTimeout) * time.Second,
				StartFrom:    startFrom,
				Sections:     sections,
				Force:        force,
				Limit:        limit,
				RunID:        uuid.NewString(),
			}

			if dryRun {
				return printPlan(out, items, checkpointPath, opts)
			}

			gen, err := newGenerator(cfg)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}

			store, err := checkpoint.Open(checkpointPath)
			if err != nil {
				return err
			}
			defer store.Close()

			hist, err := history.Open(cfg.Paths.HistoryDB)
			if err != nil {
				logger.Warn("history unavailable", "error", err)
				hist = nil
			} else {
				defer hist.Close()
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			r := runner.New(gen, store, artifacts.NewWriter(outDir), hist, logger, opts)
			summary, runErr := r.Run(runCtx, items)
			printSummary(out, summary, outDir)
			if runErr != nil {
				return runErr
			}
			// Item failures are reflected in the summary, not the exit
			// code; only batch-level errors make the command fail.
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&sections, "section", "s", nil, "Only process items from these sections (repeatable)")
	cmd.Flags().StringVar(&startFrom, "start-from", "", "Skip ahead to this item id before processing")
	cmd.Flags().BoolVar(&force, "force", false, "Reprocess items the checkpoint already marks completed")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be processed without calling the provider")
	cmd.Flags().IntVar(&limit, "limit", 0, "Process at most this many items (0 = no limit)")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Override the output directory (checkpoint moves with it)")
	return cmd
}

func printPlan(out io.Writer, items []catalog.Item, checkpointPath string, opts runner.Options) error {
	records, err := checkpoint.Load(checkpointPath)
	if err != nil {
		return err
	}
	isDone := func(id string) bool {
		return records[id].Status == checkpoint.StatusCompleted
	}

	selected, skipped := runner.Plan(items, isDone, opts)
	rows := make([][]string, 0, len(selected))
	for _, item := range selected {
		rows = append(rows, []string{item.ID, item.Section, truncate(item.Name, 40)})
	}
	if len(rows) > 0 {
		fmt.Fprintln(out, renderTable([]string{"ID", "Section", "Name"}, rows))
	}
	fmt.Fprintf(out, "Would process %d of %d items (%d already completed)\n",
		len(selected), len(items), len(skipped))
	return nil
}

func printSummary(out io.Writer, summary runner.Summary, outDir string) {
	fmt.Fprintf(out, "Run %s: %d completed, %d failed, %d skipped\n",
		summary.RunID, summary.Completed, summary.Failed, summary.Skipped)
	if summary.Completed > 0 {
		fmt.Fprintf(out, "Artifacts in %s\n", outDir)
	}

	if summary.Failed == 0 {
		return
	}
	rows := make([][]string, 0, summary.Failed)
	for _, result := range summary.Results {
		if result.Outcome != runner.OutcomeFailed {
			continue
		}
		rows = append(rows, []string{
			result.Item.ID,
			truncate(result.Reason, 60),
			formatDuration(result.Duration),
		})
	}
	fmt.Fprintln(out, "Failed items:")
	fmt.Fprintln(out, renderTable([]string{"ID", "Reason", "Elapsed"}, rows, 2))
}
