package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/nao1215/sitegen/internal/crawler"
	"github.com/nao1215/sitegen/internal/route"
	"github.com/nao1215/sitegen/internal/source"
	"github.com/spf13/cobra"
)

// NewRoutesCmd creates the routes command.
func NewRoutesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Print the route table",
		Long: `Routes scans the content directory and prints every route in match order:
its URL pattern, the public URL a build writes it under and the template
that handles it.

Templates that cannot share one route table, such as users/:id.gohtml next
to users/:name/edit.gohtml, are reported as an error.

Examples:
  sitegen routes
  sitegen routes --pages docs/pages --json`,
		Args: cobra.NoArgs,
		RunE: runRoutesCmd,
	}

	addContentFlags(cmd)
	cmd.Flags().BoolP("json", "j", false, "Output the routes as JSON")

	return cmd
}

// routeEntry is one line of the routes listing.
type routeEntry struct {
	Pattern   string `json:"pattern"`
	PublicURL string `json:"public_url"`
	Handler   string `json:"handler"`
	Source    string `json:"source"`
	Index     bool   `json:"index,omitempty"`
}

func runRoutesCmd(cmd *cobra.Command, _ []string) error {
	file, path, err := loadConfigFile(cmd)
	if err != nil {
		return err
	}
	name, err := cmd.Flags().GetString("site")
	if err != nil {
		return err
	}
	cfg, err := resolveConfig(cmd, file, path, name)
	if err != nil {
		return err
	}
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	logger, err := setupLogger(cmd)
	if err != nil {
		return err
	}

	scanner, err := source.NewScanner(cfg.ContentDir,
		source.WithTemplateExt(cfg.TemplateExt),
		source.WithIgnore(cfg.Ignore),
		source.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	trie, err := scanner.Build(cmd.Context())
	if err != nil {
		return err
	}

	entries := routeEntries(trie)
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}
	printRoutes(cmd.OutOrStdout(), entries)
	return nil
}

func routeEntries(trie *route.Trie) []routeEntry {
	routes := trie.Routes()
	entries := make([]routeEntry, len(routes))
	for i, r := range routes {
		entries[i] = routeEntry{
			Pattern:   r.Pattern,
			PublicURL: crawler.PublicURL(r.Source, trie.TemplateExt()),
			Handler:   string(r.Handler),
			Source:    r.Source,
			Index:     r.Index,
		}
	}
	return entries
}

func printRoutes(w io.Writer, entries []routeEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No routes found.")
		return
	}

	patternWidth, urlWidth := len("PATTERN"), len("PUBLIC URL")
	for _, e := range entries {
		patternWidth = max(patternWidth, len(e.Pattern))
		urlWidth = max(urlWidth, len(e.PublicURL))
	}

	fmt.Fprintf(w, "%-*s  %-*s  %s\n", patternWidth, "PATTERN", urlWidth, "PUBLIC URL", "SOURCE")
	for _, e := range entries {
		fmt.Fprintf(w, "%-*s  %-*s  %s\n", patternWidth, e.Pattern, urlWidth, e.PublicURL, e.Source)
	}
	fmt.Fprintf(w, "\n%d route(s)\n", len(entries))
}
