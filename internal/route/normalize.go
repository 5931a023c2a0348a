package route

import (
	"fmt"
	"strings"
)

// Normalized is the canonical form of a request path.
type Normalized struct {
	// Path is the canonical path without its leading slash. The root is "".
	Path string

	// Query is the query string without the leading "?".
	Query string

	// Canonical is "/" + Path.
	Canonical string

	// Redirect reports whether the request path differs from Canonical and
	// must be answered with a redirect instead of a render.
	Redirect bool
}

// Location returns the redirect target, keeping the query string.
func (n Normalized) Location() string {
	if n.Query == "" {
		return n.Canonical
	}
	return n.Canonical + "?" + n.Query
}

// Segments returns the canonical path split into raw segments.
func (n Normalized) Segments() []string {
	if n.Path == "" {
		return nil
	}
	return strings.Split(n.Path, "/")
}

// Normalize canonicalizes raw using DefaultTemplateExt.
func Normalize(raw string) (Normalized, error) {
	return NormalizeExt(raw, DefaultTemplateExt)
}

// NormalizeExt canonicalizes raw, a request path that may carry a query
// string. Leading slashes are stripped and repeated slashes collapsed, then a
// trailing slash, a trailing template extension or ".html", and a trailing
// "/index" are stripped until none applies. A lone "index" is the root.
//
// NormalizeExt is pure and idempotent: the canonical path of a canonical path
// is itself, so a redirect target never redirects again.
func NormalizeExt(raw, ext string) (Normalized, error) {
	pathPart, query, _ := strings.Cut(raw, "?")
	if err := validatePath(pathPart); err != nil {
		return Normalized{}, err
	}

	exts := []string{".html"}
	if ext != "" && ext != ".html" {
		exts = append([]string{ext}, exts...)
	}

	p := strings.TrimLeft(pathPart, "/")
	for {
		prev := p
		for strings.Contains(p, "//") {
			p = strings.ReplaceAll(p, "//", "/")
		}
		p = strings.TrimSuffix(p, "/")
		for _, e := range exts {
			p = strings.TrimSuffix(p, e)
		}
		if p == indexSegment {
			p = ""
		}
		p = strings.TrimSuffix(p, "/"+indexSegment)
		if p == prev {
			break
		}
	}

	canonical := "/" + p
	return Normalized{
		Path:      p,
		Query:     query,
		Canonical: canonical,
		Redirect:  canonical != pathPart,
	}, nil
}

// validatePath rejects paths that cannot name a route.
func validatePath(p string) error {
	for i := 0; i < len(p); i++ {
		c := p[i]
		switch {
		case c < 0x20 || c == 0x7f:
			return fmt.Errorf("%w: control character at offset %d", ErrInvalidPath, i)
		case c == '\\':
			return fmt.Errorf("%w: backslash in %q", ErrInvalidPath, p)
		case c == '%':
			if i+2 >= len(p) || !isHexDigit(p[i+1]) || !isHexDigit(p[i+2]) {
				return fmt.Errorf("%w: bad percent escape in %q", ErrInvalidPath, p)
			}
			if p[i+1] == '0' && p[i+2] == '0' {
				return fmt.Errorf("%w: encoded NUL in %q", ErrInvalidPath, p)
			}
			i += 2
		}
	}
	return nil
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
