// Package model defines the data structures shared by the crawler, the
// build-history database and the report writers.
//
// This package contains the following main types:
//   - PageRecord: One URL materialized by a crawl, with its output path and digest
//   - BuildReport: The result of one crawl run
//   - BuildDiff: The page-level difference between two recorded builds
//
// The models are serializable to JSON for report output and database storage.
package model
