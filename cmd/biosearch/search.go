package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/biosearch/internal/cache"
	"github.com/pdiddy/biosearch/internal/search"
	"github.com/pdiddy/biosearch/pkg/types"
)

const dateLayout = "2006-01-02"

var searchCmd = &cobra.Command{
	Use:   "search [terms...]",
	Short: "Search dataset registries and citation indexes",
	Long: `Search queries NCBI GEO, Europe PMC, OpenAlex and (optionally) Semantic
Scholar concurrently for the given terms. Records are merged across sources,
ranked, and cached by normalized query. A source that fails or times out is
reported but never fails the search.

Terms are positional arguments or repeated --term flags; --query-file
re-runs a saved query.`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringArray("term", nil, "search term (repeatable)")
	searchCmd.Flags().String("text", "", "free-text question kept with the query")
	searchCmd.Flags().String("organism", "", "filter by organism (e.g. \"Homo sapiens\")")
	searchCmd.Flags().String("category", "", "filter datasets by category (e.g. \"Expression profiling by high throughput sequencing\")")
	searchCmd.Flags().String("from", "", "release or publication date range start (YYYY-MM-DD)")
	searchCmd.Flags().String("to", "", "release or publication date range end (YYYY-MM-DD)")
	searchCmd.Flags().Int("max-results", 0, "per-source result cap (default from config)")
	searchCmd.Flags().String("format", "table", "output format: table, json or csl")
	searchCmd.Flags().String("save", "", "save the query and result to a YAML file")
	searchCmd.Flags().String("query-file", "", "run a previously saved query")
	searchCmd.Flags().Bool("refresh", false, "drop any cached result before searching")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query, maxResults, err := queryFromFlags(cmd, args)
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "table", "json", "csl":
	default:
		return fmt.Errorf("unknown format %q (want table, json or csl)", format)
	}

	store, _, err := openStore(cfg.Cache)
	if err != nil {
		return err
	}
	defer store.Close()

	sc := cfg.Search
	sc.MaxResults = maxResults
	orch := newOrchestrator(sc, store)

	ctx := cmd.Context()
	if refresh, _ := cmd.Flags().GetBool("refresh"); refresh {
		if err := orch.Invalidate(ctx, query); err != nil {
			return err
		}
	}

	res, err := orch.Search(ctx, query)
	if err != nil {
		return err
	}

	if path, _ := cmd.Flags().GetString("save"); path != "" {
		if err := search.WriteQueryFile(path, query, maxResults, res); err != nil {
			return err
		}
		log.Info("saved query", zap.String("path", path), zap.Int("results", len(res.Results)))
	}

	out := cmd.OutOrStdout()
	switch format {
	case "json":
		return search.FormatJSON(res, out)
	case "csl":
		return search.FormatCSL(res, out)
	default:
		search.FormatTable(res, out)
		return nil
	}
}

func newOrchestrator(sc types.SearchConfig, store cache.Store) *search.Orchestrator {
	client := &http.Client{Timeout: sc.Timeout}
	return search.NewOrchestrator(search.NewBackends(sc, client), search.Options{
		Config:    sc,
		Store:     store,
		Namespace: cfg.Cache.Namespace,
		Log:       log,
		Metrics:   mets,
	})
}

// queryFromFlags builds the query from a saved file or from flags and
// positional terms.
func queryFromFlags(cmd *cobra.Command, args []string) (types.SearchQuery, int, error) {
	maxResults, _ := cmd.Flags().GetInt("max-results")

	if path, _ := cmd.Flags().GetString("query-file"); path != "" {
		qf, err := search.ReadQueryFile(path)
		if err != nil {
			return types.SearchQuery{}, 0, err
		}
		q, err := qf.Query.ToQuery()
		if err != nil {
			return types.SearchQuery{}, 0, err
		}
		if maxResults == 0 {
			maxResults = qf.Config.MaxResults
		}
		if maxResults == 0 {
			maxResults = cfg.Search.MaxResults
		}
		return q, maxResults, nil
	}

	terms, _ := cmd.Flags().GetStringArray("term")
	terms = append(terms, args...)
	text, _ := cmd.Flags().GetString("text")
	organism, _ := cmd.Flags().GetString("organism")
	category, _ := cmd.Flags().GetString("category")
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")

	q, err := buildQuery(text, terms, organism, category, from, to)
	if err != nil {
		return types.SearchQuery{}, 0, err
	}
	if maxResults == 0 {
		maxResults = cfg.Search.MaxResults
	}
	return q, maxResults, nil
}

func buildQuery(text string, terms []string, organism, category, from, to string) (types.SearchQuery, error) {
	f := types.Filters{Organism: strings.TrimSpace(organism), Category: strings.TrimSpace(category)}
	var err error
	if f.DateFrom, err = parseDate("from", from); err != nil {
		return types.SearchQuery{}, err
	}
	if f.DateTo, err = parseDate("to", to); err != nil {
		return types.SearchQuery{}, err
	}
	if !f.DateFrom.IsZero() && !f.DateTo.IsZero() && f.DateTo.Before(f.DateFrom) {
		return types.SearchQuery{}, fmt.Errorf("%w: --to %s is before --from %s", types.ErrInvalidQuery, to, from)
	}
	return types.NewSearchQuery(text, terms, f), nil
}

func parseDate(flag, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: --%s %q is not YYYY-MM-DD", types.ErrInvalidQuery, flag, s)
	}
	return t, nil
}
