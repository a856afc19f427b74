package main

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/biosearch/internal/acquire"
	"github.com/pdiddy/biosearch/internal/container"
	"github.com/pdiddy/biosearch/internal/convert"
	"github.com/pdiddy/biosearch/internal/fulltext"
	"github.com/pdiddy/biosearch/internal/search"
	"github.com/pdiddy/biosearch/pkg/types"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [identifiers...]",
	Short: "Resolve documents to sectioned full text",
	Long: `Fetch resolves DOIs, PMIDs, PMCIDs or URLs to open-access full text by
trying content sources in a fixed order (Europe PMC, Unpaywall, OpenAlex,
then the DOI or URL itself) and stopping at the first success. Each document
is split into title, abstract, introduction, methods, results, discussion and
conclusion and written as YAML to --out.

--query-file fetches every publication in a saved search result.`,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().String("out", "fulltext", "directory for parsed documents")
	fetchCmd.Flags().String("query-file", "", "fetch the publications of a saved search result")
	fetchCmd.Flags().StringSlice("skip", nil, "content sources to skip (e.g. europepmc,unpaywall)")
	fetchCmd.Flags().Int("concurrency", 0, "documents resolved at once (default from config)")
	fetchCmd.Flags().Bool("stats", false, "print per-source statistics")

	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	reqs, err := fetchRequests(cmd, args)
	if err != nil {
		return err
	}
	if len(reqs) == 0 {
		return fmt.Errorf("provide one or more identifiers (DOIs, PMIDs, PMCIDs or URLs) or --query-file")
	}

	outDir, _ := cmd.Flags().GetString("out")
	fc := cfg.FullText
	if n, _ := cmd.Flags().GetInt("concurrency"); n > 0 {
		fc.MaxConcurrent = n
	}

	store, locker, err := openStore(cfg.Cache)
	if err != nil {
		return err
	}
	defer store.Close()

	sources, err := acquire.NewSources(fc, &http.Client{Timeout: fc.Timeout})
	if err != nil {
		return err
	}
	m, err := fulltext.NewManager(fulltext.Options{
		Config:  fc,
		Sources: sources,
		Parser:  convert.NewParser(pdfExtractor(fc), log),
		Cache:   newContentCache(store),
		Locker:  locker,
		Log:     log,
		Metrics: mets,
	})
	if err != nil {
		return err
	}

	results, err := m.ResolveBatch(cmd.Context(), reqs)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	found := 0
	for _, r := range results {
		switch {
		case r.Err != nil:
			fmt.Fprintf(out, "%-40s  invalid: %v\n", r.DocumentID, r.Err)
		case !r.Found():
			fmt.Fprintf(out, "%-40s  not found (%s)\n", r.DocumentID, attemptSummary(r.Attempts))
		default:
			path, err := fulltext.WriteDocument(outDir, r.Document)
			if err != nil {
				return err
			}
			found++
			status := r.Document.Source
			if r.Cached {
				status += ", cached"
			}
			if r.Document.Degraded {
				status += ", degraded"
			}
			fmt.Fprintf(out, "%-40s  %s  [%s]  %s\n", r.DocumentID, path, status, strings.Join(r.Document.SectionNames(), ","))
		}
	}
	fmt.Fprintf(out, "\n%d of %d documents resolved\n", found, len(results))

	if showStats, _ := cmd.Flags().GetBool("stats"); showStats {
		printStats(out, m.Stats())
	}
	return nil
}

// fetchRequests collects requests from positional identifiers and a saved
// search result, dropping repeats.
func fetchRequests(cmd *cobra.Command, args []string) ([]types.FullTextRequest, error) {
	skip, _ := cmd.Flags().GetStringSlice("skip")
	var reqs []types.FullTextRequest
	seen := make(map[string]bool)
	add := func(r types.FullTextRequest) {
		if r.DocumentID == "" || seen[r.DocumentID] {
			return
		}
		seen[r.DocumentID] = true
		r.Skip = skip
		reqs = append(reqs, r)
	}

	for _, arg := range args {
		r, err := requestFor(arg)
		if err != nil {
			return nil, err
		}
		add(r)
	}

	if path, _ := cmd.Flags().GetString("query-file"); path != "" {
		qf, err := search.ReadQueryFile(path)
		if err != nil {
			return nil, err
		}
		if qf.Result == nil {
			return nil, fmt.Errorf("query file %s has no saved result; run search --save first", path)
		}
		for _, rr := range qf.Result.Results {
			if rr.Record.Kind == types.KindPublication && rr.Record.Publication != nil {
				add(types.RequestFor(*rr.Record.Publication))
			}
		}
	}
	return reqs, nil
}

// requestFor accepts a bare identifier or a prefixed document id.
func requestFor(arg string) (types.FullTextRequest, error) {
	return acquire.RequestForIdentifier(strings.TrimPrefix(strings.TrimSpace(arg), "url:"))
}

// pdfExtractor returns the configured PDF text extractor, or nil when PDFs
// should be recorded as degraded.
func pdfExtractor(fc types.FullTextConfig) convert.Extractor {
	if fc.PDFExtractor != "markitdown" {
		return nil
	}
	sb := container.DefaultSandbox
	if fc.ExtractorMemory != "" {
		sb.Memory = fc.ExtractorMemory
	}
	rt, err := container.Detect(container.Options{Preferred: fc.ContainerRuntime, Sandbox: sb})
	if err != nil {
		log.Warn("no container runtime; PDFs will not be parsed", zap.Error(err))
		return nil
	}
	ex, err := convert.NewMarkitdownExtractor(rt)
	if err != nil {
		log.Warn("markitdown unavailable; PDFs will not be parsed", zap.Error(err))
		return nil
	}
	return ex
}

func attemptSummary(attempts []types.SourceAttemptResult) string {
	if len(attempts) == 0 {
		return "no sources tried"
	}
	parts := make([]string, 0, len(attempts))
	for _, a := range attempts {
		parts = append(parts, fmt.Sprintf("%s#%d=%s", a.Source, a.Try, a.Outcome))
	}
	return strings.Join(parts, " ")
}

func printStats(w io.Writer, stats []types.SourceStats) {
	fmt.Fprintf(w, "\n%-10s  %8s  %8s  %9s  %12s  %6s  %7s  %7s  %12s\n",
		"Source", "Attempts", "Success", "NotFound", "RateLimited", "Errors", "Rate", "Recent", "LimiterWaits")
	fmt.Fprintln(w, strings.Repeat("-", 94))
	for _, s := range stats {
		fmt.Fprintf(w, "%-10s  %8d  %8d  %9d  %12d  %6d  %6.1f%%  %6.1f%%  %12d\n",
			s.Source, s.Attempts, s.Successes, s.NotFound, s.RateLimited, s.Errors,
			100*s.SuccessRate, 100*s.RollingSuccessRate, s.LimiterWaits)
	}
}
