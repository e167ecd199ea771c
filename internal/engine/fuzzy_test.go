package engine

import "testing"

func TestFuzzyScoreSubsequence(t *testing.T) {
	cases := []struct {
		query, target string
		wantZero      bool
	}{
		{"abc", "a-b-c", false},
		{"abc", "acb", true},     // out of order
		{"xyz", "project", true}, // not present
		{"PRO", "project", false},
		{"notes", "no", true}, // query longer than target
	}
	for _, c := range cases {
		got := fuzzyScore(c.query, c.target)
		if c.wantZero && got != 0 {
			t.Errorf("fuzzyScore(%q, %q) = %v, want 0", c.query, c.target, got)
		}
		if !c.wantZero && got <= 0 {
			t.Errorf("fuzzyScore(%q, %q) = %v, want > 0", c.query, c.target, got)
		}
	}
}

func TestFuzzyScoreRewardsContiguityAndBrevity(t *testing.T) {
	// Contiguous run in a same-length target beats a scattered match.
	tight := fuzzyScore("abc", "abcxxx")
	loose := fuzzyScore("abc", "axbxcx")
	if tight <= loose {
		t.Errorf("contiguous %v should beat scattered %v", tight, loose)
	}
	// Same match in a shorter target scores higher.
	short := fuzzyScore("ab", "abc")
	long := fuzzyScore("ab", "abcdefgh")
	if short <= long {
		t.Errorf("shorter target %v should beat longer %v", short, long)
	}
}

func TestFuzzyScoreEmptyQueryMatchesEverything(t *testing.T) {
	if got := fuzzyScore("", "anything"); got != 1 {
		t.Errorf("empty query score = %v, want 1", got)
	}
}

func TestQuickSwitch(t *testing.T) {
	eng, dir := newTestEngine(t)
	writeNote(t, dir, "Project Plan.md", "x")
	writeNote(t, dir, "archive/plans-old.md", "x")
	writeNote(t, dir, "Unrelated.md", "x")
	scan(t, eng)

	resp, err := eng.QuickSwitch("plan")
	if err != nil {
		t.Fatalf("QuickSwitch: %v", err)
	}
	if len(resp.Results) < 2 {
		t.Fatalf("results = %+v", resp.Results)
	}
	// Title matches outrank path-only matches regardless of score.
	if resp.Results[0].Path != "Project Plan.md" && resp.Results[0].Path != "archive/plans-old.md" {
		t.Fatalf("unexpected top result %+v", resp.Results[0])
	}
	for i, r := range resp.Results {
		if r.Path == "Unrelated.md" {
			t.Errorf("non-matching note ranked at %d", i)
		}
	}
	if resp.HasExactMatch {
		t.Error("no note is titled exactly 'plan'")
	}

	resp, _ = eng.QuickSwitch("Project Plan")
	if !resp.HasExactMatch {
		t.Error("expected exact title match")
	}
	if len(resp.Results) == 0 || resp.Results[0].Path != "Project Plan.md" {
		t.Errorf("results = %+v", resp.Results)
	}
}

func TestQuickSwitchTitleTierOutranksPathTier(t *testing.T) {
	eng, dir := newTestEngine(t)
	// "plan/deep/nested-note.md" matches "plan" only via its path;
	// "Weekly Planning.md" matches via title.
	writeNote(t, dir, "plan/deep/nested-note.md", "x")
	writeNote(t, dir, "Weekly Planning.md", "x")
	scan(t, eng)

	resp, _ := eng.QuickSwitch("plan")
	if len(resp.Results) != 2 {
		t.Fatalf("results = %+v", resp.Results)
	}
	if resp.Results[0].Path != "Weekly Planning.md" {
		t.Errorf("title-tier note should rank first, got %+v", resp.Results)
	}
}

func TestQuickSwitchEmptyQuery(t *testing.T) {
	eng, dir := newTestEngine(t)
	writeNote(t, dir, "A.md", "x")
	scan(t, eng)

	resp, err := eng.QuickSwitch("   ")
	if err != nil {
		t.Fatalf("QuickSwitch: %v", err)
	}
	if len(resp.Results) != 0 || resp.HasExactMatch {
		t.Errorf("empty query should return nothing, got %+v", resp)
	}
}
