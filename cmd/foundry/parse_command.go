package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"foundry/internal/catalog"
	"foundry/internal/config"
)

func newParseCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:         "parse <catalog.md>",
		Short:       "Parse a catalog and list the items it yields",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			catalogPath, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}

			patterns := catalog.DefaultPatterns()
			items, err := catalog.ParseFile(catalogPath, patterns)
			if err != nil {
				return err
			}
			seen, err := countEntryHeadings(catalogPath, patterns)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(items))
			for _, item := range items {
				rows = append(rows, []string{
					item.ID,
					item.Section,
					item.Category,
					truncate(item.Name, 40),
					strconv.Itoa(len(item.Meta)),
				})
			}
			if len(rows) > 0 {
				fmt.Fprintln(out, renderTable([]string{"ID", "Section", "Category", "Name", "Meta"}, rows, 4))
			}

			fmt.Fprintf(out, "%d items from %d entry headings", len(items), seen)
			if dropped := seen - len(items); dropped > 0 {
				fmt.Fprintf(out, " (%d dropped for missing or unterminated prompt blocks)", dropped)
			}
			fmt.Fprintln(out)
			return nil
		},
	}
	return cmd
}

// countEntryHeadings counts lines matching the entry pattern, including
// entries the parser drops for lacking a usable prompt block.
func countEntryHeadings(path string, patterns catalog.Patterns) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	count := 0
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if patterns.Entry.MatchString(scanner.Text()) {
			count++
		}
	}
	return count, scanner.Err()
}
