package route

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Node is one path segment of the trie. A node may be a directory (it has
// children), a terminal (it has a handler), or both.
type Node struct {
	// static children keyed by exact segment text.
	static map[string]*Node

	// param is the single parameter child, if any.
	param *Node

	// paramName is set on parameter nodes.
	paramName string

	// file is the handler of the file named after this node ("blog.gohtml").
	file       HandlerRef
	fileSource string

	// index is the handler of this node's index file ("blog/index.gohtml").
	index       HandlerRef
	indexSource string

	// dirs and files are the child names shown by directory listings.
	dirs  []string
	files []string
}

func newNode() *Node {
	return &Node{static: make(map[string]*Node)}
}

// child returns the child for seg, creating it when missing.
func (n *Node) child(seg Segment, logical string) (*Node, error) {
	if !seg.Param {
		c, ok := n.static[seg.Name]
		if !ok {
			c = newNode()
			n.static[seg.Name] = c
		}
		return c, nil
	}

	if n.param == nil {
		n.param = newNode()
		n.param.paramName = seg.Name
		return n.param, nil
	}
	if n.param.paramName != seg.Name {
		return nil, fmt.Errorf("%w: %s declares :%s where :%s already exists",
			ErrAmbiguousRoute, logical, seg.Name, n.param.paramName)
	}
	return n.param, nil
}

// hasEntries reports whether the node has anything to list.
func (n *Node) hasEntries() bool {
	return len(n.dirs) > 0 || len(n.files) > 0
}

// Trie is an immutable route tree built by Build.
type Trie struct {
	root *Node
	ext  string
	size int
}

// BuildOption configures Build.
type BuildOption func(*Trie)

// WithTemplateExt sets the template extension stripped from logical paths and
// request paths. Defaults to DefaultTemplateExt.
func WithTemplateExt(ext string) BuildOption {
	return func(t *Trie) {
		t.ext = ext
	}
}

// Build creates a trie from logical paths mapped to handler references.
//
// Build fails with ErrAmbiguousRoute when two logical paths land on the same
// terminal, when one node gets parameter children with different names, when
// a parameter name repeats along one path, or when a route's URL is not
// canonical (e.g. "docs/index/index.gohtml" or "page.html.gohtml"), since
// requests for it always redirect elsewhere.
func Build(entries map[string]HandlerRef, opts ...BuildOption) (*Trie, error) {
	t := &Trie{root: newNode(), ext: DefaultTemplateExt}
	for _, opt := range opts {
		opt(t)
	}

	logicals := make([]string, 0, len(entries))
	for logical := range entries {
		logicals = append(logicals, logical)
	}
	sort.Strings(logicals)

	dirNames := make(map[*Node]map[string]struct{})
	fileNames := make(map[*Node]map[string]struct{})
	record := func(set map[*Node]map[string]struct{}, n *Node, name string) {
		if set[n] == nil {
			set[n] = make(map[string]struct{})
		}
		set[n][name] = struct{}{}
	}

	for _, logical := range logicals {
		key, err := ParseKey(logical, t.ext)
		if err != nil {
			return nil, err
		}
		if err := checkCanonical(key, logical, t.ext); err != nil {
			return nil, err
		}

		node := t.root
		seen := make(map[string]struct{})
		for i, seg := range key.Segments {
			if seg.Param {
				if _, dup := seen[seg.Name]; dup {
					return nil, fmt.Errorf("%w: %s binds :%s twice", ErrAmbiguousRoute, logical, seg.Name)
				}
				seen[seg.Name] = struct{}{}
			}

			last := i == len(key.Segments)-1 && !key.Index
			if last {
				record(fileNames, node, seg.String())
			} else {
				record(dirNames, node, seg.String())
			}

			node, err = node.child(seg, logical)
			if err != nil {
				return nil, err
			}
		}

		ref := entries[logical]
		if key.Index {
			if node.index != "" {
				return nil, fmt.Errorf("%w: %s and %s both define the index of %s",
					ErrAmbiguousRoute, node.indexSource, logical, key.Pattern())
			}
			node.index, node.indexSource = ref, logical
		} else {
			if node.file != "" {
				return nil, fmt.Errorf("%w: %s and %s both define %s",
					ErrAmbiguousRoute, node.fileSource, logical, key.Pattern())
			}
			node.file, node.fileSource = ref, logical
		}
		t.size++
	}

	for n, names := range dirNames {
		n.dirs = sortedNames(names)
	}
	for n, names := range fileNames {
		n.files = sortedNames(names)
	}

	return t, nil
}

// checkCanonical rejects keys whose URL the normalizer redirects.
func checkCanonical(key Key, logical, ext string) error {
	pattern := key.Pattern()
	n, err := NormalizeExt(pattern, ext)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidKey, logical, err)
	}
	if n.Redirect {
		return fmt.Errorf("%w: %s defines %s, which redirects to %s",
			ErrAmbiguousRoute, logical, pattern, n.Canonical)
	}
	return nil
}

func sortedNames(set map[string]struct{}) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of routes in the trie.
func (t *Trie) Len() int {
	return t.size
}

// TemplateExt returns the template extension the trie was built with.
func (t *Trie) TemplateExt() string {
	return t.ext
}

// Lookup matches already-normalized, decoded path segments. An empty slice
// addresses the root. Query and Pathname of the result are left empty.
func (t *Trie) Lookup(segments []string) Match {
	if m, ok := t.root.lookup(segments, nil); ok {
		return m
	}
	return Match{Kind: NotFound}
}

// lookup walks one segment at a time: static child, then parameter child.
func (n *Node) lookup(segments []string, params Params) (Match, bool) {
	if len(segments) == 0 {
		return n.terminal(params)
	}

	seg, rest := segments[0], segments[1:]

	if child, ok := n.static[seg]; ok {
		if m, ok := child.lookup(rest, params); ok {
			return m, true
		}
	}

	if n.param != nil {
		bound := params.with(Param{Name: n.param.paramName, Value: seg})
		if m, ok := n.param.lookup(rest, bound); ok {
			return m, true
		}
	}

	return Match{}, false
}

// terminal applies the end-of-path rules: file, then index, then listing.
func (n *Node) terminal(params Params) (Match, bool) {
	switch {
	case n.file != "":
		return Match{Kind: Found, Handler: n.file, Params: params}, true
	case n.index != "":
		return Match{Kind: Found, Handler: n.index, Params: params}, true
	case n.hasEntries():
		return Match{
			Kind:    Found,
			Handler: ListingRef,
			Params:  params,
			Listing: &Listing{
				Dirs:  append([]string{}, n.dirs...),
				Files: append([]string{}, n.files...),
			},
		}, true
	default:
		return Match{}, false
	}
}

// Resolve normalizes rawURL and matches it. Non-canonical paths produce a
// Redirect match; unmatched paths produce a NotFound match. Only malformed
// paths return an error.
func (t *Trie) Resolve(rawURL string) (Match, error) {
	norm, err := NormalizeExt(rawURL, t.ext)
	if err != nil {
		return Match{}, err
	}

	if norm.Redirect {
		return Match{Kind: Redirect, Location: norm.Location(), Query: norm.Query}, nil
	}

	raw := norm.Segments()
	segments := make([]string, len(raw))
	for i, seg := range raw {
		decoded, err := url.PathUnescape(seg)
		if err != nil {
			return Match{}, fmt.Errorf("%w: %v", ErrInvalidPath, err)
		}
		segments[i] = decoded
	}

	m := t.Lookup(segments)
	m.Query = norm.Query
	m.Pathname = norm.Canonical
	return m, nil
}

// RouteInfo describes one route of the trie.
type RouteInfo struct {
	// Pattern is the URL pattern, e.g. "/users/:id".
	Pattern string

	// Handler is the route's handler reference.
	Handler HandlerRef

	// Source is the logical path the route was built from.
	Source string

	// Index reports whether the route is a directory index.
	Index bool
}

// Routes returns every route of the trie sorted by pattern, files before
// indexes of the same pattern.
func (t *Trie) Routes() []RouteInfo {
	var routes []RouteInfo
	var walk func(n *Node, parts []string)
	walk = func(n *Node, parts []string) {
		pattern := "/" + strings.Join(parts, "/")
		if n.file != "" {
			routes = append(routes, RouteInfo{Pattern: pattern, Handler: n.file, Source: n.fileSource})
		}
		if n.index != "" {
			routes = append(routes, RouteInfo{Pattern: pattern, Handler: n.index, Source: n.indexSource, Index: true})
		}
		for name, c := range n.static {
			walk(c, append(parts[:len(parts):len(parts)], name))
		}
		if n.param != nil {
			walk(n.param, append(parts[:len(parts):len(parts)], ":"+n.param.paramName))
		}
	}
	walk(t.root, nil)

	sort.SliceStable(routes, func(i, j int) bool {
		if routes[i].Pattern != routes[j].Pattern {
			return routes[i].Pattern < routes[j].Pattern
		}
		return !routes[i].Index && routes[j].Index
	})
	return routes
}
