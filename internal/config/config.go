package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "sitegen"

	// DefaultContentDir is where page templates live when neither the
	// command line nor .sitegen.yaml names a directory.
	DefaultContentDir = "pages"

	// DefaultOutputDir is the directory the static site is written to.
	DefaultOutputDir = "build"

	// DefaultRoot is the URL the single-root crawl starts from.
	DefaultRoot = "/"

	// DefaultTemplateExt is the extension that marks a file as a page template.
	// It is stripped from logical paths and from request URLs.
	DefaultTemplateExt = ".gohtml"

	// DefaultConcurrency bounds the number of pages rendered and written at once.
	// Rendering is mostly CPU bound, so a small multiple of the core count
	// keeps the workers busy while writes are in flight.
	DefaultConcurrency = 8

	// DefaultTimeout is the deadline for a whole build.
	// A build that takes longer is most likely rendering an unbounded link space.
	DefaultTimeout = 10 * time.Minute

	// DefaultAddr is the listen address of the development server.
	DefaultAddr = "127.0.0.1:3000"

	// DefaultAssetsDir holds static files served under /assets/ by `sitegen serve`.
	DefaultAssetsDir = "assets"

	// DefaultS3Region is used for uploads when no region is configured.
	DefaultS3Region = "us-east-1"
)

// Config holds all configuration options for sitegen.
// It is populated from CLI flags and the .sitegen.yaml file and passed
// through the application explicitly rather than kept in global state.
//
// A flat struct keeps flag binding simple; site-specific values from the
// config file are folded in by ApplySite.
type Config struct {
	// ContentDir is the root directory of the page templates.
	// Logical paths and therefore URLs are relative to it.
	ContentDir string

	// Dir switches the build to enumerate-all mode. Every template under
	// ContentDir/Dir is rendered directly instead of being discovered by
	// following links from Root. Empty means single-root mode; "." means
	// the whole content directory.
	Dir string

	// OutputDir is the directory the rendered pages are written to.
	OutputDir string

	// Root is the URL the single-root crawl starts from.
	Root string

	// TemplateExt is the page template extension, including the dot.
	TemplateExt string

	// Partials are glob patterns of shared layout templates parsed
	// together with every page.
	Partials []string

	// Concurrency is the maximum number of pages in flight during a crawl.
	Concurrency int

	// Timeout bounds a whole build. Zero disables the deadline.
	Timeout time.Duration

	// Ignore are glob patterns of source files excluded from routing.
	Ignore []string

	// CrawlIgnore are URL patterns the crawler never requests.
	CrawlIgnore []string

	// Prune are glob patterns of files removed from OutputDir after the crawl.
	// Use it to clean up server-only artifacts copied into the output.
	Prune []string

	// Host is the public host name of the site. Absolute links to it are
	// followed like relative ones.
	Host string

	// Headers are forwarded with every crawl request to the templates.
	Headers map[string]string

	// Global is the data exposed to every template as .Global.
	Global map[string]any

	// FailOnBroken makes a build fail when a crawled link leads to a 404.
	FailOnBroken bool

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, FindConfigFile searches the default locations.
	ConfigFilePath string

	// SiteConfigs holds the parsed configuration file, if any.
	SiteConfigs *File

	// Site is the name of the site entry in SiteConfigs this build uses.
	Site string

	// Sites lists several named sites to build in one invocation.
	Sites []string

	// JSONReport enables JSON report output instead of human-readable format.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport enables Markdown report output instead of human-readable format.
	// Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the report.
	// When set, the report is written to this file instead of stdout.
	// Directories are created automatically if they don't exist.
	ReportFile string

	// DBDir is the directory path for storing the build history database.
	// Defaults to XDG data directory (~/.local/share/sitegen on Linux).
	DBDir string

	// SaveToDB indicates whether finished builds are recorded in the database.
	SaveToDB bool

	// S3Bucket enables uploading every written page to this bucket.
	S3Bucket string

	// S3Prefix is prepended to every uploaded object key.
	S3Prefix string

	// S3Region is the bucket region.
	S3Region string

	// S3Endpoint overrides the S3 endpoint, e.g. for MinIO or LocalStack.
	S3Endpoint string

	// Addr is the listen address of `sitegen serve`.
	Addr string

	// AssetsDir is served under /assets/ by `sitegen serve`.
	AssetsDir string

	// Watch rebuilds the route table when templates are added or removed.
	Watch bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		ContentDir:  DefaultContentDir,
		OutputDir:   DefaultOutputDir,
		Root:        DefaultRoot,
		TemplateExt: DefaultTemplateExt,
		Concurrency: DefaultConcurrency,
		Timeout:     DefaultTimeout,
		DBDir:       XDGDataDir(),
		Addr:        DefaultAddr,
		AssetsDir:   DefaultAssetsDir,
		S3Region:    DefaultS3Region,
	}
}

// XDGDataDir returns the XDG data directory for sitegen.
// On Linux: ~/.local/share/sitegen
// On macOS: ~/Library/Application Support/sitegen
// On Windows: %LOCALAPPDATA%\sitegen
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for sitegen.
// On Linux: ~/.config/sitegen
// On macOS: ~/Library/Application Support/sitegen
// On Windows: %APPDATA%\sitegen
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for sitegen.
// On Linux: ~/.cache/sitegen
// On macOS: ~/Library/Caches/sitegen
// On Windows: %LOCALAPPDATA%\sitegen\cache
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Exhaustive reports whether the build renders every template instead of
// crawling from Root.
func (c *Config) Exhaustive() bool {
	return c.Dir != ""
}

// UploadEnabled reports whether pages are also written to S3.
func (c *Config) UploadEnabled() bool {
	return c.S3Bucket != ""
}

// ApplySite overlays the non-zero values of sc onto c.
// Maps are merged key by key with sc winning.
func (c *Config) ApplySite(sc SiteConfig) {
	if sc.Dir != "" {
		c.ContentDir = sc.Dir
	}
	if sc.Enumerate != "" {
		c.Dir = sc.Enumerate
	}
	if sc.Output != "" {
		c.OutputDir = sc.Output
	}
	if sc.Root != "" {
		c.Root = sc.Root
	}
	if sc.TemplateExt != "" {
		c.TemplateExt = sc.TemplateExt
	}
	if sc.Host != "" {
		c.Host = sc.Host
	}
	if sc.Concurrency > 0 {
		c.Concurrency = sc.Concurrency
	}
	if sc.FailOnBroken {
		c.FailOnBroken = true
	}
	if len(sc.Partials) > 0 {
		c.Partials = sc.Partials
	}
	if len(sc.Ignore) > 0 {
		c.Ignore = sc.Ignore
	}
	if len(sc.CrawlIgnore) > 0 {
		c.CrawlIgnore = sc.CrawlIgnore
	}
	if len(sc.Prune) > 0 {
		c.Prune = sc.Prune
	}
	c.Headers = mergeStrings(c.Headers, sc.Headers)
	c.Global = mergeAny(c.Global, sc.Global)
	if sc.S3.Bucket != "" {
		c.S3Bucket = sc.S3.Bucket
	}
	if sc.S3.Prefix != "" {
		c.S3Prefix = sc.S3.Prefix
	}
	if sc.S3.Region != "" {
		c.S3Region = sc.S3.Region
	}
	if sc.S3.Endpoint != "" {
		c.S3Endpoint = sc.S3.Endpoint
	}
}

// Clone returns a copy of c whose slices and maps can be modified
// without affecting the original. Batch builds clone the base config
// once per site.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Partials = append([]string(nil), c.Partials...)
	clone.Ignore = append([]string(nil), c.Ignore...)
	clone.CrawlIgnore = append([]string(nil), c.CrawlIgnore...)
	clone.Prune = append([]string(nil), c.Prune...)
	clone.Sites = append([]string(nil), c.Sites...)
	clone.Headers = mergeStrings(nil, c.Headers)
	clone.Global = mergeAny(nil, c.Global)
	return &clone
}

// Validate checks if the configuration is valid.
// It returns the first problem found; fixing one often makes others irrelevant.
func (c *Config) Validate() error {
	if c.ContentDir == "" {
		return ErrNoContentDir
	}
	if c.OutputDir == "" {
		return ErrNoOutputDir
	}
	if !strings.HasPrefix(c.Root, "/") {
		return ErrInvalidRoot
	}
	if !strings.HasPrefix(c.TemplateExt, ".") || len(c.TemplateExt) < 2 {
		return ErrInvalidTemplateExt
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.Timeout < 0 {
		return ErrInvalidTimeout
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.S3Bucket == "" && (c.S3Prefix != "" || c.S3Endpoint != "") {
		return ErrIncompleteS3
	}
	return nil
}

func mergeStrings(dst, src map[string]string) map[string]string {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]string, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func mergeAny(dst, src map[string]any) map[string]any {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
