package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/biosearch/internal/cache"
	"github.com/pdiddy/biosearch/internal/search"
	"github.com/pdiddy/biosearch/pkg/types"
)

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("biosearch")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "biosearch"))
		}
	}

	viper.SetEnvPrefix("BIOSEARCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// loadConfig overlays the config file and environment on the defaults.
func loadConfig() (types.Config, error) {
	c := types.DefaultConfig()
	if err := viper.ReadInConfig(); err != nil {
		if _, missing := err.(viper.ConfigFileNotFoundError); !missing {
			return c, fmt.Errorf("reading config: %w", err)
		}
	}
	if err := viper.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("decoding config: %w", err)
	}
	return c, nil
}

func configFileUsed() string { return viper.ConfigFileUsed() }

// openStore opens the cache backend and, when enabled, the Redis lock that
// extends full-text coalescing across processes.
func openStore(c types.CacheConfig) (cache.Store, cache.Locker, error) {
	store, err := cache.Open(c, log)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s cache: %w", c.Backend, err)
	}
	var locker cache.Locker = cache.NopLocker{}
	if c.DistributedLock {
		rs, ok := store.(*cache.RedisStore)
		if !ok {
			store.Close()
			return nil, nil, fmt.Errorf("distributed_lock requires the redis cache backend, got %q", c.Backend)
		}
		locker = cache.NewRedisLocker(rs.Client(), c.Namespace+":lock:", log)
	}
	return store, locker, nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	Long: `Config prints the configuration after defaults, the config file, environment
variables (BIOSEARCH_*) and secrets have been applied. Secret values are
masked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := cfg
		mask := func(s *string) {
			if *s != "" {
				*s = "****"
			}
		}
		mask(&c.Search.SemanticScholarAPIKey)
		mask(&c.Search.NCBIAPIKey)
		mask(&c.Cache.RedisPassword)

		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(c)
	},
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and invalidate cached results",
}

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate [document-ids...]",
	Short: "Drop cached full text or a cached search result",
	Long: `Invalidate removes cache entries so the next request recomputes them.
Document ids (or bare DOIs, PMIDs, PMCIDs and URLs) drop the resolved location
and parsed text; raw downloads are content-addressed and kept. --query-file
drops the cached search result for a saved query.`,
	RunE: runCacheInvalidate,
}

func init() {
	cacheInvalidateCmd.Flags().String("query-file", "", "saved query whose search result should be dropped")

	cacheCmd.AddCommand(cacheInvalidateCmd)
	rootCmd.AddCommand(cacheCmd, configCmd)
}

func runCacheInvalidate(cmd *cobra.Command, args []string) error {
	queryFile, _ := cmd.Flags().GetString("query-file")
	if len(args) == 0 && queryFile == "" {
		return fmt.Errorf("provide document ids or --query-file")
	}

	store, _, err := openStore(cfg.Cache)
	if err != nil {
		return err
	}
	defer store.Close()
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if queryFile != "" {
		qf, err := search.ReadQueryFile(queryFile)
		if err != nil {
			return err
		}
		q, err := qf.Query.ToQuery()
		if err != nil {
			return err
		}
		maxResults := qf.Config.MaxResults
		if maxResults == 0 {
			maxResults = cfg.Search.MaxResults
		}
		sc := cfg.Search
		sc.MaxResults = maxResults
		orch := newOrchestrator(sc, store)
		if err := orch.Invalidate(ctx, q); err != nil {
			return err
		}
		fmt.Fprintf(out, "invalidated search %s\n", queryFile)
	}

	cc := newContentCache(store)
	for _, arg := range args {
		req, err := requestFor(arg)
		if err != nil {
			return err
		}
		if err := cc.Invalidate(ctx, req.DocumentID); err != nil {
			return err
		}
		fmt.Fprintf(out, "invalidated %s\n", req.DocumentID)
	}
	return nil
}

func newContentCache(store cache.Store) *cache.ContentCache {
	return cache.NewContentCache(store, cache.ContentOptions{
		Namespace:   cfg.Cache.Namespace,
		LocationTTL: cfg.FullText.LocationTTL,
		RawTTL:      cfg.FullText.RawTTL,
		ParsedTTL:   cfg.FullText.ParsedTTL,
		Log:         log,
		Observe:     mets.ObserveCache,
	})
}
