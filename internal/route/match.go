package route

// Kind classifies the outcome of resolving a request path.
type Kind int

const (
	// NotFound means no route matches the path.
	NotFound Kind = iota

	// Found means a handler matched. Directory listings are Found matches
	// whose Handler is ListingRef.
	Found

	// Redirect means the path is not canonical; Location holds the target.
	Redirect
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case Found:
		return "found"
	case Redirect:
		return "redirect"
	default:
		return "not_found"
	}
}

// Param is one bound parameter segment.
type Param struct {
	Name  string
	Value string
}

// Params holds bound parameters in the order their segments appear in the
// matched route.
type Params []Param

// Get returns the value bound to name.
func (p Params) Get(name string) (string, bool) {
	for _, param := range p {
		if param.Name == name {
			return param.Value, true
		}
	}
	return "", false
}

// Map returns the parameters as a map, for template data.
func (p Params) Map() map[string]string {
	m := make(map[string]string, len(p))
	for _, param := range p {
		m[param.Name] = param.Value
	}
	return m
}

// with returns a copy of p with param appended. p itself is never modified,
// so a branch abandoned during lookup leaves no trace.
func (p Params) with(param Param) Params {
	next := make(Params, len(p), len(p)+1)
	copy(next, p)
	return append(next, param)
}

// Listing enumerates the children of a directory node without an index.
type Listing struct {
	// Dirs are child directory names, sorted.
	Dirs []string `json:"dirs"`

	// Files are child file names, sorted.
	Files []string `json:"files"`
}

// Match is the result of resolving a request path.
type Match struct {
	Kind Kind

	// Handler is the matched handler. ListingRef for directory listings.
	Handler HandlerRef

	// Params are the bound parameter segments.
	Params Params

	// Listing is set for directory-listing matches.
	Listing *Listing

	// Query is the request's query string without "?".
	Query string

	// Pathname is the request path without its query string.
	Pathname string

	// Location is the redirect target for Redirect matches.
	Location string
}

// IsListing reports whether the match is a synthetic directory listing.
func (m Match) IsListing() bool {
	return m.Kind == Found && m.Listing != nil
}
