package render

import (
	"fmt"
	"io"
	"path"
	"strings"
)

// listingTemplate is the built-in directory-listing page.
const listingTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Heading}}</title></head>
<body>
<h1>{{.Heading}}</h1>
<ul>
{{- range .Dirs}}
<li>{{if .Href}}<a href="{{.Href}}">{{.Name}}/</a>{{else}}{{.Name}}/{{end}}</li>
{{- end}}
{{- range .Files}}
<li>{{if .Href}}<a href="{{.Href}}">{{.Name}}</a>{{else}}{{.Name}}{{end}}</li>
{{- end}}
</ul>
</body>
</html>
`

// listingEntry is one link of a listing page. Parameter entries have no
// Href: there is no concrete URL to link to.
type listingEntry struct {
	Name string
	Href string
}

// listingPage is the data of the listing template.
type listingPage struct {
	Heading string
	Dirs    []listingEntry
	Files   []listingEntry
}

func (r *TemplateRenderer) renderListing(w io.Writer, data Data) error {
	if data.Listing == nil {
		return fmt.Errorf("listing page for %s has no entries", data.Pathname)
	}

	base := strings.TrimSuffix(data.Pathname, "/")
	page := listingPage{Heading: listingHeading(data.Pathname)}
	for _, name := range data.Listing.Dirs {
		page.Dirs = append(page.Dirs, newListingEntry(base, name))
	}
	for _, name := range data.Listing.Files {
		page.Files = append(page.Files, newListingEntry(base, name))
	}

	if err := r.listing.Execute(w, page); err != nil {
		return fmt.Errorf("failed to execute listing for %s: %w", data.Pathname, err)
	}
	return nil
}

// listingHeading title-cases the last segment of pathname; the root is
// "Index".
func listingHeading(pathname string) string {
	name := path.Base(strings.TrimSuffix(pathname, "/"))
	if name == "/" || name == "." || name == "" {
		name = "index"
	}
	return titleCase(name)
}

func newListingEntry(base, name string) listingEntry {
	if strings.HasPrefix(name, ":") {
		return listingEntry{Name: name}
	}
	return listingEntry{Name: name, Href: base + "/" + name}
}
