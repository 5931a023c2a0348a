// Package main provides the entry point for the sitegen CLI.
//
// sitegen turns a directory of page templates into a website. Files map to
// URLs through a route trie; `sitegen serve` renders pages on request and
// `sitegen build` crawls the rendered site into static files.
//
// Usage:
//
//	sitegen build
//	sitegen build --dir blog
//	sitegen serve --watch
//
// See --help for all available options.
package main

func main() {
	Execute()
}
