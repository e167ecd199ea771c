// Package parser extracts wikilinks, tags, and headings from note content.
// All functions are pure: they never touch the registry or the filesystem.
package parser

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/halden/vaultd/internal/models"
)

var (
	wikilinkRe = regexp.MustCompile(`(!?)\[\[([^\[\]|]+)(\|[^\[\]]*)?\]\]`)
	tagRe      = regexp.MustCompile(`(?:^|[^A-Za-z0-9_])#([A-Za-z0-9][A-Za-z0-9_/-]*)`)
	headingRe  = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
)

// Wikilink is one [[target]] token found in a note body.
//
// Raw is the exact source text of the token. Alias keeps the leading "|" and
// is never normalised; the rename rewriter re-emits it verbatim.
type Wikilink struct {
	Raw    string
	Target string // trimmed, original case
	Alias  string // "" or "|…"
	Embed  bool
}

// NormalizedTarget returns the resolution key for the link target.
func (w Wikilink) NormalizedTarget() string {
	return models.NormalizeTitle(w.Target)
}

// ExtractWikilinks returns every wikilink token in order of appearance,
// including embed-marked ones (![[target]]). Duplicate targets are kept:
// the caller decides whether it needs a set.
func ExtractWikilinks(content string) []Wikilink {
	matches := wikilinkRe.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]Wikilink, 0, len(matches))
	for _, m := range matches {
		target := strings.TrimSpace(m[2])
		if target == "" {
			continue
		}
		out = append(out, Wikilink{
			Raw:    m[0],
			Target: target,
			Alias:  m[3],
			Embed:  m[1] == "!",
		})
	}
	return out
}

// ExtractTags collects inline #tags from content, skipping fenced code
// blocks. A tag starts at a "#" preceded by start-of-line or a non-identifier
// character and runs over letters, digits, "/", "_", "-", starting with an
// alphanumeric. Tags are lowercased, deduplicated, and sorted.
func ExtractTags(content string) []string {
	seen := make(map[string]struct{})
	inFence := false
	for _, line := range strings.Split(content, "\n") {
		if isFenceDelimiter(line) {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		for _, m := range tagRe.FindAllStringSubmatch(line, -1) {
			seen[strings.ToLower(m[1])] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// ExtractHeadings returns the outline of a note: #-prefixed lines of level
// 1–6, with the same fence-skipping discipline as tag extraction.
func ExtractHeadings(content string) []models.Heading {
	var out []models.Heading
	inFence := false
	for _, line := range strings.Split(content, "\n") {
		if isFenceDelimiter(line) {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		if m := headingRe.FindStringSubmatch(line); m != nil {
			out = append(out, models.Heading{
				Level: len(m[1]),
				Text:  strings.TrimSpace(m[2]),
			})
		}
	}
	return out
}

// RewriteWikilinks replaces the target text of every wikilink token whose
// target is accepted by resolves, keeping the embed marker and any alias
// segment byte-for-byte. The decision callback receives the normalised
// target, so callers can resolve against a snapshot of the title map.
func RewriteWikilinks(content string, resolves func(normalizedTarget string) bool, newTitle string) string {
	return wikilinkRe.ReplaceAllStringFunc(content, func(raw string) string {
		m := wikilinkRe.FindStringSubmatch(raw)
		inner := m[2]
		target := strings.TrimSpace(inner)
		if target == "" || !resolves(models.NormalizeTitle(target)) {
			return raw
		}
		// Whitespace padding around the target is part of the author's
		// formatting; only the trimmed span is replaced.
		stripped := strings.TrimLeftFunc(inner, unicode.IsSpace)
		lead := inner[:len(inner)-len(stripped)]
		trail := stripped[len(strings.TrimRightFunc(stripped, unicode.IsSpace)):]
		return m[1] + "[[" + lead + newTitle + trail + m[3] + "]]"
	})
}

// isFenceDelimiter reports whether a line toggles a fenced code block.
func isFenceDelimiter(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~")
}
