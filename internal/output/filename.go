package output

import "strings"

// FileName maps a URL path to its output file path relative to the output
// root. A URL ending in "/" maps to "index.html" in that directory, any other
// URL gets an ".html" suffix:
//
//	/        -> index.html
//	/about   -> about.html
//	/blog/   -> blog/index.html
func FileName(url string) string {
	name := url
	if strings.HasSuffix(name, "/") {
		name += "index.html"
	} else {
		name += ".html"
	}
	return strings.TrimLeft(name, "/")
}
