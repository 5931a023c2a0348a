// Package database stores sitegen build history in SQLite.
//
// Every finished build is recorded with its full report and one row per
// written page. The page rows carry the content digest, which is what
// `sitegen history diff` compares and what PageHistory walks to show when
// a URL last changed.
//
// The driver is modernc.org/sqlite, a CGO-free implementation, so the
// database is a single file under the XDG data directory and the binary
// still cross-compiles.
package database
