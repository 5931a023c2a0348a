package model

import (
	"encoding/hex"
	"net/http"

	"golang.org/x/crypto/sha3"
)

// PageRecord describes one URL materialized by a crawl.
type PageRecord struct {
	// URL is the canonical request path, e.g. "/blog/post-1".
	URL string `json:"url"`

	// Path is the output file path relative to the output root.
	// Empty for pages that were not written.
	Path string `json:"path,omitempty"`

	// Status is the status code the site answered with.
	Status int `json:"status"`

	// Handler is the handler reference that rendered the page.
	// Empty for redirects.
	Handler string `json:"handler,omitempty"`

	// Digest is the SHA3-256 hex digest of the written content.
	// Used to detect changed pages between builds.
	Digest string `json:"digest,omitempty"`

	// Size is the number of bytes written.
	Size int `json:"size"`

	// Links is the number of same-host links extracted from the page.
	Links int `json:"links"`
}

// NewPageRecord creates a record for a page written with the given body.
func NewPageRecord(url, path string, status int, body []byte) PageRecord {
	return PageRecord{
		URL:    url,
		Path:   path,
		Status: status,
		Digest: Digest(body),
		Size:   len(body),
	}
}

// Digest returns the SHA3-256 hex digest of content.
// Empty content produces an empty digest.
func Digest(content []byte) string {
	if len(content) == 0 {
		return ""
	}
	sum := sha3.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// IsRedirect reports whether the page was a canonicalizing redirect.
func (p PageRecord) IsRedirect() bool {
	return p.Status == http.StatusMovedPermanently
}

// BrokenLink is a same-host link whose target resolved to no route.
type BrokenLink struct {
	// URL is the link target.
	URL string `json:"url"`

	// Referrer is the page the link was found on.
	// Empty for seed URLs.
	Referrer string `json:"referrer,omitempty"`
}
