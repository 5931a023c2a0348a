// Package route turns a set of template file paths into a path-matching trie
// and resolves request paths against it.
//
// # Route keys
//
// A logical path such as "blog/:slug.gohtml" becomes the key
// ["blog", ":slug"]. The template extension is stripped and a final "index"
// segment is elided, so "blog/index.gohtml" is recorded as the index handler of
// the "blog" node. Segments of the form ":name" are parameter segments.
//
// # Matching
//
// Lookup walks one segment at a time. At each node a static child whose key
// equals the segment is tried first; the parameter child is tried only when
// the static branch fails. When the segments are exhausted the node's own
// file handler wins over its index handler, and a node with neither yields a
// directory-listing match.
//
// # Canonical paths
//
// Normalize maps every request path to a canonical form. A request whose path
// differs from "/" + canonical form is answered with a single redirect; the
// canonical form is a fixed point of Normalize.
//
// # Lifecycle
//
// A Trie is immutable once Build returns. Table holds the live trie behind an
// atomic pointer so a rebuilt trie can be swapped in while requests are being
// resolved.
//
//	trie, err := route.Build(map[string]route.HandlerRef{
//	    "index.gohtml":       "/site/index.gohtml",
//	    "users/:id.gohtml":   "/site/users/:id.gohtml",
//	    "users/settings.gohtml": "/site/users/settings.gohtml",
//	})
//	m, err := trie.Resolve("/users/42?tab=posts")
//	// m.Kind == route.Found, m.Params.Get("id") == "42", m.Query == "tab=posts"
package route
