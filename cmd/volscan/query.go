package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/volscan/volscan/internal/config"
	"github.com/volscan/volscan/internal/index"
	"github.com/volscan/volscan/internal/search"
)

func newQueryCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Scan a volume and run a single search against it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, cfg)
		},
	}
	cfg.RegisterScanFlags(cmd.Flags())
	cfg.RegisterQueryFlags(cmd.Flags())
	return cmd
}

func runQuery(cmd *cobra.Command, cfg *config.Config) error {
	if cfg.Device == "" {
		return fmt.Errorf("query: --device is required")
	}
	if cfg.Pattern == "" {
		return fmt.Errorf("query: --pattern is required")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	ix := index.New(cfg.RootLabel)
	if err := ix.Scan(ctx, cfg.Device); err != nil {
		return fmt.Errorf("query: scan: %w", err)
	}

	mode, err := parsePatternMode(cfg.PatternMode)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	pat, err := search.Compile(cfg.Pattern, mode, cfg.CaseInsensitive, cfg.WholeString)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}

	indexes := map[uuid.UUID]*index.Index{ix.ID: ix}
	results, err := search.Search(ctx, indexes, pat, true, cfg.MatchStreams, cfg.MatchAttributes, nil)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}

	column, err := parseSortColumn(cfg.SortColumn)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	variant := search.Variant{DeeperFirst: cfg.DeeperFirst, SpaceSaved: cfg.SpaceSaved, Bulkiness: cfg.Bulkiness}
	var sorter search.Sorter
	if err := sorter.Sort(ctx, results, indexes, column, variant, nil); err != nil {
		return fmt.Errorf("query: sort: %w", err)
	}

	out := cmd.OutOrStdout()
	for _, r := range results {
		path, ok := ix.GetPath(r.Key)
		if !ok {
			continue
		}
		sizes, _ := ix.GetSizes(r.Key)
		fmt.Fprintf(out, "%-10s  %s\n", humanize.Bytes(uint64(sizes.Length())), path)
	}
	fmt.Fprintf(out, "%s matches\n", humanize.Comma(int64(len(results))))
	return nil
}

func parsePatternMode(s string) (search.Mode, error) {
	switch s {
	case "verbatim":
		return search.Verbatim, nil
	case "glob", "":
		return search.Glob, nil
	case "regex":
		return search.Regex, nil
	default:
		return 0, fmt.Errorf("unknown pattern mode %q", s)
	}
}

func parseSortColumn(s string) (search.Column, error) {
	switch s {
	case "name", "":
		return search.ByName, nil
	case "path":
		return search.ByPath, nil
	case "type":
		return search.ByType, nil
	case "size":
		return search.BySize, nil
	case "size-on-disk":
		return search.BySizeOnDisk, nil
	case "created":
		return search.ByCreated, nil
	case "modified":
		return search.ByModified, nil
	case "accessed":
		return search.ByAccessed, nil
	case "descendants":
		return search.ByDescendantCount, nil
	case "attributes":
		return search.ByAttributes, nil
	default:
		return 0, fmt.Errorf("unknown sort column %q", s)
	}
}
