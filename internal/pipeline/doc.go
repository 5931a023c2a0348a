// Package pipeline runs a site build as a sequence of steps.
//
// A build scans the content directory into a route trie, crawls the site
// into the output store, prunes server-only files from the output and
// records the result in the build history. Each stage is a Step that reads
// and extends the shared Build state, so the CLI can assemble only the
// stages a command needs.
//
// BatchProcessor builds several named sites concurrently with errgroup,
// giving each its own pipeline.
package pipeline
