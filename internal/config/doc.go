// Package config provides configuration structures and utilities for sitegen.
// It defines the build options (content and output directories, crawl mode,
// upload targets, report format) and the .sitegen.yaml site file.
package config
