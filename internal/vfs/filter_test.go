package vfs

import "testing"

func testListing() []Entry {
	return []Entry{
		{Name: "..", Kind: KindParent},
		{Name: "docs", Kind: KindDirectory},
		{Name: ".git", Kind: KindDirectory, Hidden: true},
		{Name: "main.go", Kind: KindFile},
		{Name: "main_test.go", Kind: KindFile},
		{Name: ".env", Kind: KindFile, Hidden: true},
	}
}

func names(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

func TestFilterEntriesPassThrough(t *testing.T) {
	entries := testListing()
	got := FilterEntries(entries, Filter{ShowHidden: true})
	if len(got) != len(entries) {
		t.Errorf("Expected unfiltered listing, got %v", names(got))
	}
}

func TestFilterEntriesHidesDotfiles(t *testing.T) {
	got := FilterEntries(testListing(), Filter{})
	for _, e := range got {
		if e.Hidden {
			t.Errorf("Expected hidden entry %s to be dropped", e.Name)
		}
	}
	if len(got) != 4 {
		t.Errorf("Expected 4 entries, got %v", names(got))
	}
}

func TestFilterEntriesGlob(t *testing.T) {
	got := FilterEntries(testListing(), Filter{Pattern: "*.go", ShowHidden: true})
	if len(got) != 3 {
		t.Fatalf("Expected parent plus two .go files, got %v", names(got))
	}
	if got[0].Kind != KindParent {
		t.Error("Expected parent entry to survive filtering")
	}
}

func TestFilterEntriesGlobCaseInsensitive(t *testing.T) {
	entries := []Entry{{Name: "README.MD", Kind: KindFile}}
	got := FilterEntries(entries, Filter{Pattern: "*.md", ShowHidden: true})
	if len(got) != 1 {
		t.Errorf("Expected case-insensitive match, got %v", names(got))
	}
}

func TestFilterEntriesDirectoriesOnly(t *testing.T) {
	got := FilterEntries(testListing(), Filter{DirectoriesOnly: true, ShowHidden: true})
	for _, e := range got {
		if e.Kind == KindFile {
			t.Errorf("Expected file %s to be dropped", e.Name)
		}
	}
	if len(got) != 3 {
		t.Errorf("Expected parent and two directories, got %v", names(got))
	}
}
