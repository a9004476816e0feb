// Package config is volscan's flat configuration struct, built the way the
// teacher binds CLI options: a plain struct with defaults, filled in by
// each cobra command's own pflag registrations, then passed down
// explicitly — there is no global config singleton.
package config

import (
	"time"

	"github.com/spf13/pflag"
)

// Config holds every flag volscan's commands accept. Each subcommand
// registers the flag groups it needs; the scan group (including --timeout)
// is registered by scan, query and serve, and only scan applies ScanTimeout.
type Config struct {
	// Device is the raw block device path to scan (spec.md §6 "raw volume
	// read contract").
	Device string
	// RootLabel prefixes every rendered path (e.g. "C:").
	RootLabel string

	// Verbose enables debug-level logging with caller reporting.
	Verbose bool

	// Pattern search options (spec.md §4.7).
	Pattern         string
	PatternMode     string // "verbatim", "glob", or "regex"
	CaseInsensitive bool
	WholeString     bool
	MatchStreams    bool
	MatchAttributes bool

	// Sort options (spec.md §4.7).
	SortColumn  string
	DeeperFirst bool
	SpaceSaved  bool
	Bulkiness   bool

	// ListenAddress is the HTTP bind address for `serve` (SPEC_FULL.md §2
	// item 9).
	ListenAddress string

	// ScanTimeout bounds a `scan` run; zero means no timeout.
	ScanTimeout time.Duration
}

// Default returns a Config populated with volscan's defaults.
func Default() *Config {
	return &Config{
		RootLabel:     "C:",
		PatternMode:   "glob",
		SortColumn:    "name",
		ListenAddress: "127.0.0.1:8080",
	}
}

// RegisterScanFlags binds the `scan` subcommand's flags into cfg.
func (cfg *Config) RegisterScanFlags(flags *pflag.FlagSet) {
	flags.StringVar(&cfg.Device, "device", cfg.Device, "raw NTFS volume device to scan (e.g. /dev/sdb1)")
	flags.StringVar(&cfg.RootLabel, "root-label", cfg.RootLabel, "path prefix rendered for the volume root")
	flags.DurationVar(&cfg.ScanTimeout, "timeout", cfg.ScanTimeout, "abort the scan after this long (0 = no timeout)")
}

// RegisterQueryFlags binds the `query` subcommand's flags into cfg.
func (cfg *Config) RegisterQueryFlags(flags *pflag.FlagSet) {
	flags.StringVar(&cfg.Pattern, "pattern", cfg.Pattern, "search pattern")
	flags.StringVar(&cfg.PatternMode, "mode", cfg.PatternMode, "pattern mode: verbatim, glob, or regex")
	flags.BoolVar(&cfg.CaseInsensitive, "ignore-case", cfg.CaseInsensitive, "case-insensitive match")
	flags.BoolVar(&cfg.WholeString, "whole-string", cfg.WholeString, "match the whole string rather than a substring")
	flags.BoolVar(&cfg.MatchStreams, "streams", cfg.MatchStreams, "also match named alternate data streams")
	flags.BoolVar(&cfg.MatchAttributes, "attributes", cfg.MatchAttributes, "also match non-$DATA NTFS attributes")
	flags.StringVar(&cfg.SortColumn, "sort", cfg.SortColumn, "sort column: name, path, type, size, size-on-disk, created, modified, accessed, descendants, attributes")
	flags.BoolVar(&cfg.DeeperFirst, "deeper-first", cfg.DeeperFirst, "sort deeper results before shallower ones")
	flags.BoolVar(&cfg.SpaceSaved, "space-saved", cfg.SpaceSaved, "for size columns, sort by length-allocated instead of the raw size")
	flags.BoolVar(&cfg.Bulkiness, "bulkiness", cfg.Bulkiness, "for size columns, sort by rolled-up bulkiness instead of the raw size")
}

// RegisterServeFlags binds the `serve` subcommand's flags into cfg.
func (cfg *Config) RegisterServeFlags(flags *pflag.FlagSet) {
	flags.StringVar(&cfg.ListenAddress, "listen", cfg.ListenAddress, "HTTP address to listen on")
}
