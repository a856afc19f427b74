// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the biosearch CLI: a thin harness over
// the search orchestrator and the full-text waterfall.
package main

import (
	"context"
	"os"
	"os/signal"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/biosearch/internal/logging"
	"github.com/pdiddy/biosearch/internal/metrics"
	"github.com/pdiddy/biosearch/internal/secrets"
	"github.com/pdiddy/biosearch/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// Process-wide state built in PersistentPreRunE.
var (
	cfg  types.Config
	log  = zap.NewNop()
	mets *metrics.Metrics
)

// rootCmd is the base command for the biosearch CLI.
var rootCmd = &cobra.Command{
	Use:   "biosearch",
	Short: "Search biomedical registries and retrieve open-access full text",
	Long: `biosearch fans a query out to dataset and publication registries (NCBI GEO,
Europe PMC, OpenAlex, Semantic Scholar), merges and ranks the answers, and
resolves documents to sectioned full text through a fixed waterfall of
open-access sources.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig()
		if err != nil {
			return err
		}
		if debug, _ := cmd.Flags().GetBool("debug"); debug {
			c.Log.Level = "debug"
		}

		l, err := logging.New(c.Log)
		if err != nil {
			return err
		}
		log = l
		if used := configFileUsed(); used != "" {
			log.Debug("using config file", zap.String("path", used))
		}

		secretsDir, _ := cmd.Flags().GetString("secrets-dir")
		s, err := secrets.Load(secretsDir, log)
		if err != nil {
			return err
		}
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			log.Debug("loaded secrets", zap.Strings("keys", keys))
		}
		applySecrets(&c, s)

		cfg = c
		mets = metrics.New()
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		defer log.Sync() //nolint:errcheck
		path, _ := cmd.Flags().GetString("metrics-file")
		if path == "" {
			return nil
		}
		return mets.WriteTextfile(path)
	},
}

// applySecrets fills credentials the config file left empty.
func applySecrets(c *types.Config, s map[string]string) {
	fill := func(dst *string, key string) {
		if *dst == "" {
			*dst = s[key]
		}
	}
	fill(&c.Search.SemanticScholarAPIKey, secrets.KeySemanticScholar)
	fill(&c.Search.NCBIAPIKey, secrets.KeyNCBI)
	fill(&c.Search.Email, secrets.KeyContactEmail)
	fill(&c.FullText.Email, secrets.KeyContactEmail)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./biosearch.yaml or ~/.config/biosearch/biosearch.yaml)")
	rootCmd.PersistentFlags().String("secrets-dir", ".secrets/", "directory of API key files")
	rootCmd.PersistentFlags().String("metrics-file", "", "write Prometheus metrics in textfile format on exit")
	rootCmd.PersistentFlags().Bool("debug", false, "log at debug level")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
