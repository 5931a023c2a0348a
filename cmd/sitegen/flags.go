package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/sitegen/internal/config"
	"github.com/spf13/cobra"
)

// addContentFlags registers the flags shared by every command that reads
// the content directory.
func addContentFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("pages", "p", config.DefaultContentDir, "Content directory holding the page templates")
	cmd.Flags().String("ext", config.DefaultTemplateExt, "Page template extension")
	cmd.Flags().StringSlice("ignore", nil, "Glob patterns of source files excluded from routing")
	cmd.Flags().StringP("site", "s", "", "Named site from the configuration file")
}

// addRenderFlags registers the flags that shape how pages are rendered.
func addRenderFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("partials", nil, "Glob patterns of shared layout templates")
	cmd.Flags().StringToString("global", nil, "Template data exposed as .Global (key=value)")
	cmd.Flags().String("host", "", "Public host name; absolute links to it are same-site")
}

// loadConfigFile finds and parses the configuration file. An explicitly
// requested file must exist; otherwise a missing file yields an empty one.
func loadConfigFile(cmd *cobra.Command) (*config.File, string, error) {
	explicit, err := cmd.Flags().GetString("config")
	if err != nil {
		explicit = ""
	}

	path := config.FindConfigFile(explicit)
	switch {
	case path != "":
		file, err := config.LoadConfigFile(path)
		if err != nil {
			return nil, "", fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		return file, path, nil
	case explicit != "":
		return nil, "", fmt.Errorf("%w: %s", config.ErrConfigNotFound, explicit)
	default:
		return &config.File{Sites: make(map[string]config.SiteConfig)}, "", nil
	}
}

// resolveConfig layers the defaults, the configuration file entry for site
// and the flags the user set on cmd, then validates the result.
func resolveConfig(cmd *cobra.Command, file *config.File, path, site string) (*config.Config, error) {
	if site != "" && !file.HasSite(site) {
		return nil, fmt.Errorf("unknown site %q (known: %v)", site, file.SiteNames())
	}

	cfg := config.NewConfig()
	cfg.ConfigFilePath = path
	cfg.SiteConfigs = file
	cfg.Site = site
	cfg.Verbose = getVerboseFlag(cmd)
	cfg.ApplySite(file.GetSiteConfig(site))

	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

// applyFlags copies the flags the user explicitly set into cfg. Flags a
// command does not define are never reported as changed.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	var global map[string]string
	err := errors.Join(
		stringFlag(cmd, "pages", &cfg.ContentDir),
		stringFlag(cmd, "dir", &cfg.Dir),
		stringFlag(cmd, "output", &cfg.OutputDir),
		stringFlag(cmd, "root", &cfg.Root),
		stringFlag(cmd, "ext", &cfg.TemplateExt),
		stringFlag(cmd, "host", &cfg.Host),
		stringFlag(cmd, "report", &cfg.ReportFile),
		stringFlag(cmd, "db-dir", &cfg.DBDir),
		stringFlag(cmd, "s3-bucket", &cfg.S3Bucket),
		stringFlag(cmd, "s3-prefix", &cfg.S3Prefix),
		stringFlag(cmd, "s3-region", &cfg.S3Region),
		stringFlag(cmd, "s3-endpoint", &cfg.S3Endpoint),
		stringFlag(cmd, "addr", &cfg.Addr),
		stringFlag(cmd, "assets", &cfg.AssetsDir),
		intFlag(cmd, "concurrency", &cfg.Concurrency),
		durationFlag(cmd, "timeout", &cfg.Timeout),
		sliceFlag(cmd, "partials", &cfg.Partials),
		sliceFlag(cmd, "ignore", &cfg.Ignore),
		sliceFlag(cmd, "crawl-ignore", &cfg.CrawlIgnore),
		sliceFlag(cmd, "prune", &cfg.Prune),
		boolFlag(cmd, "fail-on-broken", &cfg.FailOnBroken),
		boolFlag(cmd, "json", &cfg.JSONReport),
		boolFlag(cmd, "markdown", &cfg.MarkdownReport),
		boolFlag(cmd, "watch", &cfg.Watch),
		mapFlag(cmd, "header", &cfg.Headers),
		mapFlag(cmd, "global", &global),
	)
	if err != nil {
		return err
	}

	if len(global) > 0 {
		if cfg.Global == nil {
			cfg.Global = make(map[string]any, len(global))
		}
		for k, v := range global {
			cfg.Global[k] = v
		}
	}

	if cmd.Flags().Changed("no-history") {
		noHistory, err := cmd.Flags().GetBool("no-history")
		if err != nil {
			return err
		}
		cfg.SaveToDB = !noHistory
	}
	return nil
}

func stringFlag(cmd *cobra.Command, name string, dst *string) error {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func intFlag(cmd *cobra.Command, name string, dst *int) error {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, err := cmd.Flags().GetInt(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func boolFlag(cmd *cobra.Command, name string, dst *bool) error {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func durationFlag(cmd *cobra.Command, name string, dst *time.Duration) error {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, err := cmd.Flags().GetDuration(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func sliceFlag(cmd *cobra.Command, name string, dst *[]string) error {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, err := cmd.Flags().GetStringSlice(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

// mapFlag merges a key=value flag into dst; keys from the flag win.
func mapFlag(cmd *cobra.Command, name string, dst *map[string]string) error {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, err := cmd.Flags().GetStringToString(name)
	if err != nil {
		return err
	}
	if *dst == nil {
		*dst = make(map[string]string, len(v))
	}
	for k, val := range v {
		(*dst)[k] = val
	}
	return nil
}
