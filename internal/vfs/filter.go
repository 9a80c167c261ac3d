package vfs

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Filter narrows a directory listing. Zero value means no filtering.
type Filter struct {
	// Pattern is a doublestar glob matched against the entry name,
	// case-insensitively. Empty matches everything.
	Pattern string
	// ShowHidden keeps dotfiles in the listing.
	ShowHidden bool
	// DirectoriesOnly drops plain files.
	DirectoriesOnly bool
}

// FilterEntries returns the entries passing the filter. The parent
// pseudo-entry always passes so navigation never dead-ends.
func FilterEntries(entries []Entry, f Filter) []Entry {
	if f.Pattern == "" && f.ShowHidden && !f.DirectoriesOnly {
		return entries
	}
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Kind == KindParent {
			out = append(out, e)
			continue
		}
		if !f.ShowHidden && e.Hidden {
			continue
		}
		if f.DirectoriesOnly && e.Kind != KindDirectory {
			continue
		}
		if f.Pattern != "" {
			ok, err := doublestar.Match(strings.ToLower(f.Pattern), strings.ToLower(e.Name))
			if err != nil || !ok {
				continue
			}
		}
		out = append(out, e)
	}
	return out
}
