// Package source discovers page templates under a content root and keeps the
// route table in sync with them.
//
// Scanner walks the content root and maps every template's logical path
// (relative, forward-slash separated, extension-bearing) to its absolute file
// path, which serves as the route's handler reference. Watcher rebuilds the
// trie when templates are added, removed or renamed and swaps it into a
// route.Table; a failed rebuild leaves the previous trie in place.
package source
