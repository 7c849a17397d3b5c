package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	mserrors "github.com/mosaicsearch/mosaic/internal/errors"
	"github.com/mosaicsearch/mosaic/internal/output"
	"github.com/mosaicsearch/mosaic/internal/search"
	"github.com/mosaicsearch/mosaic/internal/store"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit      int
	modalities []string
	strategy   string
	format     string // "text", "json"
	offline    bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the library",
		Long: `Search the ingested library across text, image, and video content.

Each modality is searched in parallel, the ranked lists merge with
rank fusion, and the fused results are packed into a citation-annotated
context bundle.

Examples:
  mosaic search "how do solar panels work"
  mosaic search "sunset photos" --modality image --limit 5
  mosaic search "installation walkthrough" --strategy weighted
  mosaic search "inverter specs" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum fused results (default from config)")
	cmd.Flags().StringSliceVarP(&opts.modalities, "modality", "m", nil, "Restrict to modalities: text, image, video (repeatable)")
	cmd.Flags().StringVarP(&opts.strategy, "strategy", "s", "", "Fusion strategy: rrf, weighted")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "Use the offline hash embedder (no network)")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, raw string, opts searchOptions) error {
	out := output.New(cmd.OutOrStdout())

	searchOpts := search.Options{Limit: opts.limit}
	for _, m := range opts.modalities {
		parsed, err := store.ParseModality(m)
		if err != nil {
			return err
		}
		searchOpts.Modalities = append(searchOpts.Modalities, parsed)
	}
	if opts.strategy != "" {
		strategy, err := search.ParseStrategy(opts.strategy)
		if err != nil {
			return err
		}
		searchOpts.Strategy = strategy
	}

	a, err := openApp(ctx, ".", true, opts.offline)
	if err != nil {
		return err
	}
	defer a.Close()

	if n, err := a.content.Count(ctx); err == nil && n == 0 {
		return fmt.Errorf("library is empty. Run 'mosaic ingest' first")
	}

	pipeline, err := a.newPipeline()
	if err != nil {
		return err
	}

	b, err := pipeline.Search(ctx, raw, searchOpts)
	if err != nil {
		out.Error("%s", strings.TrimRight(mserrors.FormatForCLI(err), "\n"))
		return err
	}

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(b)
	}

	fmt.Fprintln(cmd.OutOrStdout(), b.Narrative)
	if len(b.Citations) > 0 {
		out.Newline()
		fmt.Fprintln(cmd.OutOrStdout(), "Sources:")
		for _, c := range b.Citations {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s %s (%s)\n", c.Marker, c.SourceID, c.ContentType)
		}
	}
	for _, w := range b.Warnings {
		out.Warning("%s", w)
	}
	return nil
}
