package model

import (
	"sort"
	"sync"
	"time"
)

// Mode is the seeding mode of a crawl.
type Mode string

const (
	// ModeSingleRoot crawls the link graph reachable from one root URL.
	ModeSingleRoot Mode = "root"

	// ModeExhaustive seeds the crawl with every logical path of the source
	// directory.
	ModeExhaustive Mode = "exhaustive"
)

// BuildReport is the result of one crawl run.
//
// The crawler appends to a report from many goroutines, so the Add methods
// are safe for concurrent use. Read the exported slices only after the crawl
// has returned.
type BuildReport struct {
	// ID uniquely identifies the build in the history database.
	ID string `json:"id"`

	// Site is the name of the configured site, or empty for ad-hoc builds.
	Site string `json:"site,omitempty"`

	// Mode is the seeding mode.
	Mode Mode `json:"mode"`

	// Root is the seed URL for single-root crawls.
	Root string `json:"root,omitempty"`

	// StartedAt is when the crawl started.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the crawl returned.
	FinishedAt time.Time `json:"finished_at"`

	// Pages are the URLs rendered and written, sorted by URL once the crawl
	// is finished.
	Pages []PageRecord `json:"pages"`

	// Broken are same-host links that resolved to no route.
	Broken []BrokenLink `json:"broken,omitempty"`

	// Skipped are public URLs that could not be crawled, such as URLs with
	// parameter placeholders in exhaustive mode.
	Skipped []string `json:"skipped,omitempty"`

	// Pruned are output files removed by the post-crawl cleanup.
	Pruned []string `json:"pruned,omitempty"`

	// ErrorMessage is set when the build failed.
	ErrorMessage string `json:"error,omitempty"` //nolint:tagliatelle // error is conventional

	mu sync.Mutex
}

// NewBuildReport creates a report for a crawl that starts now.
func NewBuildReport(id string, mode Mode) *BuildReport {
	return &BuildReport{
		ID:        id,
		Mode:      mode,
		StartedAt: time.Now(),
		Pages:     make([]PageRecord, 0),
	}
}

// AddPage records a materialized page.
func (r *BuildReport) AddPage(page PageRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Pages = append(r.Pages, page)
}

// AddBroken records a broken link.
func (r *BuildReport) AddBroken(link BrokenLink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Broken = append(r.Broken, link)
}

// AddSkipped records a URL that was not crawled.
func (r *BuildReport) AddSkipped(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Skipped = append(r.Skipped, url)
}

// Finish stamps the finish time, records err and sorts the collected
// entries so the report is deterministic regardless of crawl order.
func (r *BuildReport) Finish(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.FinishedAt = time.Now()
	if err != nil {
		r.ErrorMessage = err.Error()
	}

	sort.Slice(r.Pages, func(i, j int) bool { return r.Pages[i].URL < r.Pages[j].URL })
	sort.Slice(r.Broken, func(i, j int) bool {
		if r.Broken[i].URL != r.Broken[j].URL {
			return r.Broken[i].URL < r.Broken[j].URL
		}
		return r.Broken[i].Referrer < r.Broken[j].Referrer
	})
	sort.Strings(r.Skipped)
	sort.Strings(r.Pruned)
}

// Duration returns how long the crawl took.
// Returns zero if the crawl has not finished.
func (r *BuildReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Page returns the record for url.
func (r *BuildReport) Page(url string) (PageRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.Pages {
		if p.URL == url {
			return p, true
		}
	}
	return PageRecord{}, false
}

// Counts summarizes the report.
type Counts struct {
	Rendered  int `json:"rendered"`
	Redirects int `json:"redirects"`
	Broken    int `json:"broken"`
	Skipped   int `json:"skipped"`
	Bytes     int `json:"bytes"`
}

// Counts returns summary counts of the report.
func (r *BuildReport) Counts() Counts {
	r.mu.Lock()
	defer r.mu.Unlock()

	var c Counts
	for _, p := range r.Pages {
		if p.IsRedirect() {
			c.Redirects++
		} else {
			c.Rendered++
		}
		c.Bytes += p.Size
	}
	c.Broken = len(r.Broken)
	c.Skipped = len(r.Skipped)
	return c
}

// Failed reports whether the build recorded an error.
func (r *BuildReport) Failed() bool {
	return r.ErrorMessage != ""
}
