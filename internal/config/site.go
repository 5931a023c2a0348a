package config

import (
	"maps"
	"slices"
)

// S3Config configures the optional S3 upload of a site.
type S3Config struct {
	Bucket   string `yaml:"bucket,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
	Region   string `yaml:"region,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`
}

// SiteConfig holds the configuration of one named site.
type SiteConfig struct {
	// Dir is the content directory holding the page templates.
	Dir string `yaml:"dir,omitempty"`

	// Enumerate selects enumerate-all mode for the given subdirectory of Dir.
	Enumerate string `yaml:"enumerate,omitempty"`

	// Output is the directory the static site is written to.
	Output string `yaml:"output,omitempty"`

	// Root is the URL the crawl starts from.
	Root string `yaml:"root,omitempty"`

	// TemplateExt overrides the page template extension.
	TemplateExt string `yaml:"templateExt,omitempty"`

	// Host is the public host name; absolute links to it are crawled.
	Host string `yaml:"host,omitempty"`

	// Concurrency overrides the number of pages rendered at once.
	Concurrency int `yaml:"concurrency,omitempty"`

	// FailOnBroken fails the build when a crawled link is broken.
	FailOnBroken bool `yaml:"failOnBroken,omitempty"`

	// Partials are glob patterns of shared layout templates.
	Partials []string `yaml:"partials,omitempty"`

	// Ignore are glob patterns of source files excluded from routing.
	Ignore []string `yaml:"ignore,omitempty"`

	// CrawlIgnore are URL patterns the crawler never requests.
	CrawlIgnore []string `yaml:"crawlIgnore,omitempty"`

	// Prune are glob patterns of output files removed after the crawl.
	Prune []string `yaml:"prune,omitempty"`

	// Headers are forwarded with every crawl request.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Global is exposed to every template as .Global.
	Global map[string]any `yaml:"global,omitempty"`

	// S3 configures uploading the built site.
	S3 S3Config `yaml:"s3,omitempty"`
}

// File represents the structure of the .sitegen.yaml configuration file.
type File struct {
	// Sites maps site names to their configurations.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults contains configuration applied to all sites
	// unless overridden in the site-specific configuration.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// SiteNames returns the configured site names in sorted order.
func (cf *File) SiteNames() []string {
	return slices.Sorted(maps.Keys(cf.Sites))
}

// HasSite reports whether name is configured.
func (cf *File) HasSite(name string) bool {
	_, ok := cf.Sites[name]
	return ok
}

// GetSiteConfig returns the configuration for a named site merged over
// the defaults. An unknown or empty name yields the defaults.
func (cf *File) GetSiteConfig(name string) SiteConfig {
	result := cf.Defaults
	result.Headers = mergeStrings(nil, cf.Defaults.Headers)
	result.Global = mergeAny(nil, cf.Defaults.Global)

	site, ok := cf.Sites[name]
	if !ok {
		return result
	}

	if site.Dir != "" {
		result.Dir = site.Dir
	}
	if site.Enumerate != "" {
		result.Enumerate = site.Enumerate
	}
	if site.Output != "" {
		result.Output = site.Output
	}
	if site.Root != "" {
		result.Root = site.Root
	}
	if site.TemplateExt != "" {
		result.TemplateExt = site.TemplateExt
	}
	if site.Host != "" {
		result.Host = site.Host
	}
	if site.Concurrency != 0 {
		result.Concurrency = site.Concurrency
	}
	if site.FailOnBroken {
		result.FailOnBroken = true
	}
	if len(site.Partials) > 0 {
		result.Partials = site.Partials
	}
	if len(site.Ignore) > 0 {
		result.Ignore = site.Ignore
	}
	if len(site.CrawlIgnore) > 0 {
		result.CrawlIgnore = site.CrawlIgnore
	}
	if len(site.Prune) > 0 {
		result.Prune = site.Prune
	}
	result.Headers = mergeStrings(result.Headers, site.Headers)
	result.Global = mergeAny(result.Global, site.Global)
	if site.S3.Bucket != "" {
		result.S3.Bucket = site.S3.Bucket
	}
	if site.S3.Prefix != "" {
		result.S3.Prefix = site.S3.Prefix
	}
	if site.S3.Region != "" {
		result.S3.Region = site.S3.Region
	}
	if site.S3.Endpoint != "" {
		result.S3.Endpoint = site.S3.Endpoint
	}

	return result
}
