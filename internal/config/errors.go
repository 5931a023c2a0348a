package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() so callers can use
// errors.Is() to tell a bad flag combination apart from runtime failures.
var (
	// ErrNoContentDir is returned when no template directory is configured.
	ErrNoContentDir = errors.New("no content directory specified: use --pages or set dir in .sitegen.yaml")

	// ErrNoOutputDir is returned when the output directory is empty.
	ErrNoOutputDir = errors.New("no output directory specified: use --output")

	// ErrInvalidRoot is returned when the crawl root is not an absolute URL path.
	ErrInvalidRoot = errors.New("invalid root: must start with /")

	// ErrInvalidTemplateExt is returned when the template extension lacks a leading dot.
	ErrInvalidTemplateExt = errors.New("invalid template extension: must start with '.'")

	// ErrInvalidConcurrency is returned when the crawl concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidTimeout is returned when the build timeout is negative.
	// Zero disables the deadline.
	ErrInvalidTimeout = errors.New("invalid timeout: must be non-negative")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrIncompleteS3 is returned when S3 options are given without a bucket.
	ErrIncompleteS3 = errors.New("incomplete S3 configuration: bucket is required when prefix or endpoint is set")
)
