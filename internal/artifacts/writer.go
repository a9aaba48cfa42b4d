package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"foundry/internal/catalog"
	"foundry/internal/provider"
)

// Writer persists fetched artifacts under a deterministic path per item.
type Writer struct {
	dir string
}

// NewWriter returns a writer rooted at dir. The directory is created on the
// first write.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Dir returns the output directory.
func (w *Writer) Dir() string {
	return w.dir
}

// Path returns the destination for an item with the given extension without
// touching the filesystem.
func (w *Writer) Path(item catalog.Item, extension string) string {
	return filepath.Join(w.dir, Filename(item.ID, item.Name, extension))
}

// Write persists the artifact for item. An existing destination is treated as
// authoritative: the write is skipped and skipped=true is returned, mirroring
// the checkpoint's resume semantics at the filesystem level.
func (w *Writer) Write(item catalog.Item, artifact provider.Artifact) (string, bool, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", false, fmt.Errorf("ensure output directory: %w", err)
	}

	target := w.Path(item, artifact.Extension)
	if _, err := os.Stat(target); err == nil {
		return target, true, nil
	} else if !os.IsNotExist(err) {
		return "", false, fmt.Errorf("stat artifact %s: %w", target, err)
	}

	tmp, err := os.CreateTemp(w.dir, filepath.Base(target)+".tmp-*")
	if err != nil {
		return "", false, fmt.Errorf("create artifact temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(artifact.Data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", false, fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", false, fmt.Errorf("close artifact temp file: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return "", false, fmt.Errorf("place artifact: %w", err)
	}
	return target, false, nil
}

// Filename builds `{id}_{sanitized(name)}.{ext}`. A name that sanitizes to
// nothing falls back to the bare id.
func Filename(id, name, extension string) string {
	stem := id
	if sanitized := SanitizeName(name); sanitized != "" {
		stem = id + "_" + sanitized
	}
	extension = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(extension), "."))
	if extension == "" {
		return stem
	}
	return stem + "." + extension
}

var foldMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// SanitizeName folds diacritics, replaces spaces with underscores, strips
// everything outside [A-Za-z0-9_-], and collapses underscore runs.
func SanitizeName(name string) string {
	folded, _, err := transform.String(foldMarks, name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	b.Grow(len(folded))
	lastUnderscore := false
	for _, r := range folded {
		switch {
		case r == ' ' || r == '_':
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		case r == '-' ||
			(r >= 'a' && r <= 'z') ||
			(r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastUnderscore = false
		}
	}
	return strings.Trim(b.String(), "_")
}
