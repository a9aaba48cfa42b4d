package catalog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

const maxLineBytes = 1 << 20

// ParseFile parses the catalog document at path. An unreadable document is an
// error; a readable document with no matching entries yields an empty slice so
// partial or malformed catalogs never abort a batch run.
func ParseFile(path string, patterns Patterns) ([]Item, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer file.Close()

	items, err := Parse(file, patterns)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return items, nil
}

type pendingEntry struct {
	id   string
	name string
	meta map[string]string

	section  string
	category string
}

// Parse scans the document line by line in a single pass. Section and
// category markers update the current label context, which persists until
// overridden. An entry header opens a pending entry; the first fenced block
// after it becomes the entry's payload, consumed verbatim. An entry that
// reaches the next entry or section marker without a fenced block is dropped.
func Parse(r io.Reader, patterns Patterns) ([]Item, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var (
		items    []Item
		section  string
		category string
		pending  *pendingEntry
	)

	for scanner.Scan() {
		line := scanner.Text()

		// Sections are coarser than categories; when a label line matches
		// both patterns the section interpretation wins.
		if label, ok := patterns.sectionLabel(line); ok {
			section = strings.TrimSpace(label)
			category = ""
			pending = nil
			continue
		}
		if label, ok := patterns.categoryLabel(line); ok {
			category = strings.TrimSpace(label)
			continue
		}
		if match := patterns.Entry.FindStringSubmatch(line); match != nil {
			pending = &pendingEntry{
				id:       match[1],
				name:     strings.TrimSpace(match[2]),
				section:  section,
				category: category,
			}
			continue
		}
		if strings.HasPrefix(strings.TrimSpace(line), patterns.Fence) {
			payload, terminated, err := consumeFence(scanner, patterns.Fence)
			if err != nil {
				return nil, err
			}
			if pending == nil || !terminated {
				continue
			}
			items = append(items, Item{
				ID:       pending.id,
				Name:     pending.name,
				Prompt:   payload,
				Meta:     pending.meta,
				Section:  pending.section,
				Category: pending.category,
			})
			pending = nil
			continue
		}
		if pending != nil && patterns.Metadata != nil {
			if match := patterns.Metadata.FindStringSubmatch(line); match != nil {
				if pending.meta == nil {
					pending.meta = make(map[string]string)
				}
				pending.meta[strings.TrimSpace(match[1])] = strings.TrimSpace(match[2])
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan catalog: %w", err)
	}
	return items, nil
}

// consumeFence reads lines up to the closing fence, returning the trimmed
// payload. An unterminated fence at end of document reports terminated=false
// and the entry it belonged to is dropped by the caller.
func consumeFence(scanner *bufio.Scanner, fence string) (string, bool, error) {
	var lines []string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(strings.TrimSpace(line), fence) {
			return strings.TrimSpace(strings.Join(lines, "\n")), true, nil
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return "", false, fmt.Errorf("scan catalog: %w", err)
	}
	return "", false, nil
}
