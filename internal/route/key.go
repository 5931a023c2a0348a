package route

import (
	"fmt"
	"strings"
)

// DefaultTemplateExt is the extension of page templates under a content root.
const DefaultTemplateExt = ".gohtml"

// indexSegment is the final segment that is elided from route keys.
const indexSegment = "index"

// HandlerRef identifies whatever produces a page's content. The route package
// never interprets it; the source scanner uses the template's absolute path.
type HandlerRef string

// ListingRef is the handler of synthetic directory-listing matches.
const ListingRef HandlerRef = "$$index"

// Segment is one element of a route key.
type Segment struct {
	// Name is the static segment text, or the parameter name without ':'.
	Name string

	// Param reports whether the segment matches any single path segment.
	Param bool
}

// String returns the segment as it appears in a logical path.
func (s Segment) String() string {
	if s.Param {
		return ":" + s.Name
	}
	return s.Name
}

// Key is the ordered segment sequence of one route.
type Key struct {
	// Segments are the route's path segments. Empty for the root.
	Segments []Segment

	// Index reports whether the key came from an "index" file and therefore
	// names the index handler of the node rather than its file handler.
	Index bool
}

// Pattern returns the URL pattern of the key, e.g. "/users/:id".
func (k Key) Pattern() string {
	parts := make([]string, len(k.Segments))
	for i, seg := range k.Segments {
		parts[i] = seg.String()
	}
	return "/" + strings.Join(parts, "/")
}

// ParseKey derives a route key from a logical path.
//
// The logical path is relative and forward-slash separated. ext is stripped
// from the final segment when present; pass "" to keep the path as is.
func ParseKey(logical, ext string) (Key, error) {
	trimmed := strings.TrimPrefix(logical, "/")
	if ext != "" {
		trimmed = strings.TrimSuffix(trimmed, ext)
	}
	if trimmed == "" {
		return Key{}, fmt.Errorf("%w: %q is empty", ErrInvalidKey, logical)
	}

	parts := strings.Split(trimmed, "/")
	var key Key
	if parts[len(parts)-1] == indexSegment {
		key.Index = true
		parts = parts[:len(parts)-1]
	}

	key.Segments = make([]Segment, 0, len(parts))
	for _, part := range parts {
		switch {
		case part == "":
			return Key{}, fmt.Errorf("%w: %q has an empty segment", ErrInvalidKey, logical)
		case strings.HasPrefix(part, ":"):
			name := part[1:]
			if name == "" {
				return Key{}, fmt.Errorf("%w: %q has an unnamed parameter", ErrInvalidKey, logical)
			}
			key.Segments = append(key.Segments, Segment{Name: name, Param: true})
		default:
			key.Segments = append(key.Segments, Segment{Name: part})
		}
	}

	return key, nil
}
