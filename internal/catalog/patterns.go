package catalog

import "regexp"

// Patterns declares the line grammar a catalog document uses. Catalog flavors
// vary slightly between asset families; variation lives here as configuration
// rather than in per-catalog parsers.
type Patterns struct {
	// Section matches a top-level section header; submatch 1 is the label.
	Section *regexp.Regexp
	// Category matches a subsection header; submatch 1 is the label.
	Category *regexp.Regexp
	// Entry matches an entry header; submatch 1 is the item ID, submatch 2
	// the display name.
	Entry *regexp.Regexp
	// Metadata matches auxiliary key-value lines between an entry header and
	// its payload; submatch 1 is the key, submatch 2 the value.
	Metadata *regexp.Regexp
	// Fence is the exact prefix of a line that opens or closes a payload
	// block.
	Fence string
}

// DefaultPatterns returns the grammar shared by the stock catalogs.
func DefaultPatterns() Patterns {
	return Patterns{
		Section:  regexp.MustCompile(`^# SECTION (\d+): (.+)$`),
		Category: regexp.MustCompile(`^## \d+\.\d+ (.+)$`),
		Entry:    regexp.MustCompile(`^### ([A-Za-z0-9][A-Za-z0-9_-]*) - (.+)$`),
		Metadata: regexp.MustCompile(`^\*\*([^*]+)\*\*:\s*(.+)$`),
		Fence:    "```",
	}
}

func (p Patterns) sectionLabel(line string) (string, bool) {
	if p.Section == nil {
		return "", false
	}
	match := p.Section.FindStringSubmatch(line)
	if match == nil {
		return "", false
	}
	return match[len(match)-1], true
}

func (p Patterns) categoryLabel(line string) (string, bool) {
	if p.Category == nil {
		return "", false
	}
	match := p.Category.FindStringSubmatch(line)
	if match == nil {
		return "", false
	}
	return match[len(match)-1], true
}
