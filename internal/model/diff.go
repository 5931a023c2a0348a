package model

import "sort"

// BuildDiff is the page-level difference between two builds.
type BuildDiff struct {
	// From and To are the compared build IDs.
	From string `json:"from"`
	To   string `json:"to"`

	// Added are URLs present only in the newer build.
	Added []string `json:"added"`

	// Removed are URLs present only in the older build.
	Removed []string `json:"removed"`

	// Changed are URLs whose content digest differs.
	Changed []string `json:"changed"`

	// Unchanged is the number of URLs with identical content.
	Unchanged int `json:"unchanged"`
}

// HasChanges reports whether the builds differ at all.
func (d *BuildDiff) HasChanges() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0 || len(d.Changed) > 0
}

// Diff compares the pages of two builds by URL and digest.
func Diff(from, to *BuildReport) *BuildDiff {
	d := &BuildDiff{
		From:    from.ID,
		To:      to.ID,
		Added:   make([]string, 0),
		Removed: make([]string, 0),
		Changed: make([]string, 0),
	}

	older := make(map[string]string, len(from.Pages))
	for _, p := range from.Pages {
		older[p.URL] = p.Digest
	}

	seen := make(map[string]struct{}, len(to.Pages))
	for _, p := range to.Pages {
		seen[p.URL] = struct{}{}
		digest, ok := older[p.URL]
		switch {
		case !ok:
			d.Added = append(d.Added, p.URL)
		case digest != p.Digest:
			d.Changed = append(d.Changed, p.URL)
		default:
			d.Unchanged++
		}
	}
	for url := range older {
		if _, ok := seen[url]; !ok {
			d.Removed = append(d.Removed, url)
		}
	}

	sort.Strings(d.Added)
	sort.Strings(d.Removed)
	sort.Strings(d.Changed)
	return d
}
