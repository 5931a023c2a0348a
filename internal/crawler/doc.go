// Package crawler materializes a site by rendering pages and following the
// links they contain.
//
// # Components
//
//   - ExtractLinks: reads same-host hyperlink targets out of rendered HTML
//   - visitedSet: the per-run set of scheduled URLs, the only point where
//     duplicate URLs are dropped
//   - Crawler: drives Serve -> write -> extract -> schedule over the link graph
//
// # Seeding
//
// CrawlFrom starts at one URL, usually "/", and follows every link it finds.
// CrawlAll starts from the public URL of every logical path of the content
// root; URLs that still contain a ":param" placeholder are skipped because
// there is no concrete value to render them with.
//
// # Failure policy
//
// A crawl fails fast: the first render or write error cancels the run and is
// returned. Links that resolve to no route are recorded as broken links in the
// report and not written; they fail the crawl only with WithFailOnBroken.
//
// # Usage
//
//	c := crawler.New(s, output.NewDirStore("build"), crawler.WithConcurrency(8))
//	report, err := c.CrawlFrom(ctx, "/")
package crawler
