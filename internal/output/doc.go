// Package output maps crawled URLs to output file paths and writes rendered
// pages to an output store.
//
// Two stores are provided: DirStore writes below a local directory and
// S3Store uploads to an S3 bucket. Both implement Store, so the crawler does
// not care where pages end up.
package output
