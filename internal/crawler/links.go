package crawler

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// ExtractLinks returns the href targets of <a> and <area> elements in
// document order, without duplicates. Absolute URLs whose host differs from
// host are dropped, as are non-HTTP schemes (mailto:, javascript:, ...) and
// fragment-only links. Everything else is returned unchanged.
func ExtractLinks(r io.Reader, host string) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	links := make([]string, 0)
	seen := make(map[string]struct{})

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "a" || n.Data == "area") {
			href := strings.TrimSpace(getAttr(n, "href"))
			if keepLink(href, host) {
				if _, dup := seen[href]; !dup {
					seen[href] = struct{}{}
					links = append(links, href)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return links, nil
}

// keepLink reports whether href points into the site.
func keepLink(href, host string) bool {
	if href == "" || strings.HasPrefix(href, "#") {
		return false
	}

	u, err := url.Parse(href)
	if err != nil {
		return false
	}

	switch strings.ToLower(u.Scheme) {
	case "", "http", "https":
	default:
		return false
	}

	if u.Host != "" && !strings.EqualFold(u.Hostname(), hostname(host)) {
		return false
	}
	return true
}

// hostname strips the port from host.
func hostname(host string) string {
	if host == "" {
		return ""
	}
	u := url.URL{Host: host}
	return u.Hostname()
}

// getAttr gets an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// resolveLink resolves a link found on page against the page URL and
// returns the path to crawl. Query and fragment are dropped.
func resolveLink(page, link string) (string, bool) {
	base, err := url.Parse(page)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(link)
	if err != nil {
		return "", false
	}

	resolved := base.ResolveReference(ref)
	p := resolved.EscapedPath()
	if p == "" {
		p = "/"
	}
	return p, true
}

// PublicURL returns the URL a logical path is served at: the template
// extension is stripped, a final "index" segment is elided and the result is
// rooted at "/". It is the inverse of the route key derivation, so
// "blog/index.gohtml" is served at "/blog" and "index.gohtml" at "/".
func PublicURL(logical, ext string) string {
	p := strings.TrimPrefix(logical, "/")
	if ext != "" {
		p = strings.TrimSuffix(p, ext)
	}
	if p == "index" {
		p = ""
	}
	p = strings.TrimSuffix(p, "/index")
	return "/" + strings.TrimSuffix(p, "/")
}

// hasPlaceholder reports whether u contains a ":param" segment.
func hasPlaceholder(u string) bool {
	return strings.Contains(u, "/:")
}
