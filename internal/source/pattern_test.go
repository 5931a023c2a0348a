package source

import "testing"

func TestMatchPattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pattern string
		path    string
		want    bool
	}{
		{name: "directory prefix", pattern: "_layouts/*", path: "_layouts/base.gohtml", want: true},
		{name: "directory prefix nested", pattern: "drafts/*", path: "drafts/2024/post.gohtml", want: true},
		{name: "directory itself", pattern: "drafts/*", path: "drafts", want: true},
		{name: "directory prefix miss", pattern: "drafts/*", path: "draftsman.gohtml", want: false},
		{name: "extension anywhere", pattern: "*.partial.gohtml", path: "blog/nav.partial.gohtml", want: true},
		{name: "base name glob", pattern: "_*", path: "blog/_nav.gohtml", want: true},
		{name: "exact match", pattern: "about.gohtml", path: "about.gohtml", want: true},
		{name: "no match", pattern: "about.gohtml", path: "blog/about.gohtml", want: false},
		{name: "bad pattern", pattern: "[", path: "x", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := MatchPattern(tt.pattern, tt.path); got != tt.want {
				t.Errorf("MatchPattern(%q, %q) = %v, want %v", tt.pattern, tt.path, got, tt.want)
			}
		})
	}
}
