package engine

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSearchTagFilterIntersectsFreeText(t *testing.T) {
	eng, dir := newTestEngine(t)
	writeNote(t, dir, "A.md", "#beta roadmap for Q3")
	writeNote(t, dir, "B.md", "#beta budget review")
	writeNote(t, dir, "C.md", "roadmap without the tag")
	scan(t, eng)

	results, err := eng.Search("tag:beta roadmap")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Path != "A.md" {
		t.Errorf("results = %+v, want exactly A.md", results)
	}
}

func TestSearchTagOnly(t *testing.T) {
	eng, dir := newTestEngine(t)
	writeNote(t, dir, "zeta.md", "#go stuff")
	writeNote(t, dir, "alpha.md", "#go other")
	writeNote(t, dir, "other.md", "#rust")
	scan(t, eng)

	results, err := eng.Search("tag:#go")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 || results[0].Path != "alpha.md" || results[1].Path != "zeta.md" {
		t.Errorf("results = %+v, want alpha.md then zeta.md", results)
	}
}

func TestSearchMultipleTagFiltersAreANDed(t *testing.T) {
	eng, dir := newTestEngine(t)
	writeNote(t, dir, "both.md", "#one #two")
	writeNote(t, dir, "only-one.md", "#one")
	scan(t, eng)

	results, _ := eng.Search("tag:one tag:two")
	if len(results) != 1 || results[0].Path != "both.md" {
		t.Errorf("results = %+v", results)
	}
}

func TestSearchPrefixMatching(t *testing.T) {
	eng, dir := newTestEngine(t)
	writeNote(t, dir, "A.md", "discussing architecture today")
	writeNote(t, dir, "B.md", "nothing relevant")
	scan(t, eng)

	results, _ := eng.Search("archi")
	if len(results) != 1 || results[0].Path != "A.md" {
		t.Errorf("prefix search results = %+v", results)
	}
}

func TestSearchRequiresAllFreeTokens(t *testing.T) {
	eng, dir := newTestEngine(t)
	writeNote(t, dir, "A.md", "kafka consumer lag")
	writeNote(t, dir, "B.md", "kafka producer")
	scan(t, eng)

	results, _ := eng.Search("kafka consumer")
	if len(results) != 1 || results[0].Path != "A.md" {
		t.Errorf("results = %+v, want only A.md", results)
	}
}

func TestSearchTitleHitsRankAboveBodyHits(t *testing.T) {
	eng, dir := newTestEngine(t)
	writeNote(t, dir, "roadmap.md", "some text")
	writeNote(t, dir, "notes.md", "the roadmap is mentioned here")
	scan(t, eng)

	results, _ := eng.Search("roadmap")
	if len(results) != 2 {
		t.Fatalf("results = %+v", results)
	}
	if results[0].Path != "roadmap.md" {
		t.Errorf("title hit should rank first, got %+v", results)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	eng, dir := newTestEngine(t)
	writeNote(t, dir, "A.md", "x")
	scan(t, eng)

	results, err := eng.Search("   ")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("results = %+v, want none", results)
	}
}

func TestSearchUnknownTag(t *testing.T) {
	eng, dir := newTestEngine(t)
	writeNote(t, dir, "A.md", "#known text")
	scan(t, eng)

	results, _ := eng.Search("tag:unknown text")
	if len(results) != 0 {
		t.Errorf("results = %+v, want none", results)
	}
}

func TestSearchCap(t *testing.T) {
	eng, dir := newTestEngine(t)
	for i := 0; i < 60; i++ {
		writeNote(t, dir, noteName(i), "#bulk common text")
	}
	scan(t, eng)

	results, _ := eng.Search("tag:bulk")
	if len(results) != searchLimit {
		t.Errorf("len = %d, want %d", len(results), searchLimit)
	}
	results, _ = eng.Search("common")
	if len(results) != searchLimit {
		t.Errorf("free-text len = %d, want %d", len(results), searchLimit)
	}
}

func TestSnippetKeepsRuneBoundaries(t *testing.T) {
	// A wall of multi-byte runes around the term forces the window edges
	// into the middle of encoded characters unless they are clamped.
	content := strings.Repeat("日本語", 30) + " findme " + strings.Repeat("日本語", 30)
	s := snippet(content, "findme")
	if !utf8.ValidString(s) {
		t.Errorf("snippet is not valid UTF-8: %q", s)
	}
	if !strings.Contains(s, "findme") {
		t.Errorf("snippet lost the term: %q", s)
	}
}

func noteName(i int) string {
	return "bulk/note-" + string(rune('a'+i/26)) + string(rune('a'+i%26)) + ".md"
}
