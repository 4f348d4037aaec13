// Package main is the Wordstat CLI entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/komyaka/wordstat/internal/cache"
	"github.com/komyaka/wordstat/internal/cli"
	"github.com/komyaka/wordstat/internal/config"
	"github.com/komyaka/wordstat/internal/engine"
	"github.com/komyaka/wordstat/internal/events"
	"github.com/komyaka/wordstat/internal/export"
	"github.com/komyaka/wordstat/internal/filter"
	"github.com/komyaka/wordstat/internal/models"
	"github.com/komyaka/wordstat/internal/ratelimit"
	"github.com/komyaka/wordstat/internal/server"
	"github.com/komyaka/wordstat/internal/watcher"
	"github.com/komyaka/wordstat/internal/wordstat"
	"github.com/komyaka/wordstat/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/wordstat/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used. Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "expand":
		runExpand()
	case "cache":
		runCache()
	case "version", "--version", "-v":
		fmt.Printf("wordstat version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (API requests, cache activity, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()
	if components.Cache != nil {
		go components.Cache.RunSweeper(sweepCtx, cfg.Cache.SweepInterval())
	}

	srv := server.NewServer(
		components.Runner,
		components.Limiter,
		components.Cache,
		cfg,
		resolvedConfigPath,
		logger,
	)

	watchOpts := []watcher.Option{}
	if debugMode {
		watchOpts = append(watchOpts, watcher.WithLogger(logger))
	}
	cfgWatcher := watcher.New(resolvedConfigPath, func(newCfg *config.Config) {
		if err := components.Limiter.Configure(
			newCfg.Limits.PerSecond, newCfg.Limits.PerHour, newCfg.Limits.PerDay,
		); err != nil {
			logger.Warn("reloaded limits rejected", zap.Error(err))
			return
		}
		srv.SetConfig(newCfg)
		logger.Info("limits reconfigured",
			zap.Int("per_second", newCfg.Limits.PerSecond),
			zap.Int("per_hour", newCfg.Limits.PerHour),
			zap.Int("per_day", newCfg.Limits.PerDay),
		)
	}, watchOpts...)
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if err := cfgWatcher.Start(watchCtx); err != nil {
		logger.Warn("config watcher failed to start, runtime reload disabled", zap.Error(err))
	}
	defer cfgWatcher.Stop()

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	sweepCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func printExpandUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: wordstat expand [flags] <seed phrase> [<seed phrase> ...]\n\n")
	fmt.Fprintf(fs.Output(), "Each positional argument is one seed phrase; use --seeds-file to read one phrase per line instead.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  wordstat expand "купить ноутбук"
  wordstat expand --depth 2 --top-n 20 ноутбук планшет
  wordstat expand --seeds-file seeds.txt --output tsv > keywords.tsv
  wordstat expand --cache-mode only --export keywords.xlsx ноутбук
`)
}

func runExpand() {
	fs := flag.NewFlagSet("expand", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	depth := fs.Int("depth", -1, "expansion depth (default from config)")
	topN := fs.Int("top-n", -1, "children expanded per phrase, by count (default from config; 0 = no limit)")
	seedsFile := fs.String("seeds-file", "", "read seed phrases from file, one per line (use - for stdin)")
	outputFormat := fs.String("output", "text", "output format: text, json, or tsv")
	cacheMode := fs.String("cache-mode", "", "cache mode: on, off, only, or refresh (default from config)")
	exportPath := fs.String("export", "", "also write results to an .xlsx file at this path")
	fs.Usage = func() { printExpandUsage(fs) }
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	seeds := fs.Args()
	if *seedsFile != "" {
		f := os.Stdin
		if *seedsFile != "-" {
			f, err = os.Open(*seedsFile)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to open seeds file: %v\n", err)
				os.Exit(1)
			}
			defer f.Close()
		}
		fileSeeds, err := cli.ReadSeeds(f)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		seeds = append(seeds, fileSeeds...)
	}
	if len(seeds) == 0 {
		printExpandUsage(fs)
		os.Exit(1)
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *cacheMode != "" {
		cfg.Cache.Mode = *cacheMode
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer components.Close()

	req := models.RunRequest{
		Seeds:    seeds,
		MaxDepth: cfg.Expand.MaxDepth,
		TopN:     cfg.Expand.TopN,
	}
	if *depth >= 0 {
		req.MaxDepth = *depth
	}
	if *topN >= 0 {
		req.TopN = *topN
	}
	if err := req.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "cancelling…")
		cancel()
	}()

	var results []models.KeywordRecord
	sink := events.SinkFunc(func(e events.Event) {
		switch e.Type {
		case events.TypeProgress:
			fmt.Fprintf(os.Stderr, "\r%d processed, %d queued  (%s)", e.Processed, e.Remaining, cli.Truncate(e.Phrase, 40))
		case events.TypeWarning, events.TypeError:
			fmt.Fprintf(os.Stderr, "\n%s: %s: %s\n", e.Type, e.Phrase, e.Message)
		default:
			if e.Type.Terminal() {
				fmt.Fprintln(os.Stderr)
				results = e.Results
			}
		}
	})

	status := components.Engine.Run(ctx, "cli", req, sink)
	if status == models.StatusFailed {
		fmt.Fprintln(os.Stderr, "Run failed")
		os.Exit(1)
	}

	if err := cli.WriteResults(os.Stdout, results, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
	if *exportPath != "" {
		f, err := os.Create(*exportPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		if err := export.Excel(f, results); err != nil {
			fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Exported %d keywords to %s\n", len(results), *exportPath)
	}
	if status == models.StatusCancelled {
		os.Exit(130)
	}
}

func runCache() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: wordstat cache <stats|sweep|clear>")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("cache", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[3:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	c, err := cache.Open(cfg.Cache.Path, logger)
	if err != nil {
		fmt.Printf("Failed to open cache: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	ctx := context.Background()
	switch sub {
	case "stats":
		stats := c.Stats(ctx)
		fmt.Printf("rows:           %d\n", stats.Rows)
		if !stats.OldestExpiry.IsZero() {
			fmt.Printf("oldest_expiry:  %s\n", stats.OldestExpiry.Format(time.RFC3339))
			fmt.Printf("newest_expiry:  %s\n", stats.NewestExpiry.Format(time.RFC3339))
		}
	case "sweep":
		removed := c.SweepExpired(ctx)
		fmt.Printf("Removed %d expired entr%s\n", removed, pluralSuffix(removed))
	case "clear":
		c.Clear(ctx)
		fmt.Println("Cache cleared")
	default:
		fmt.Printf("Unknown cache subcommand: %s\n", sub)
		os.Exit(1)
	}
}

func pluralSuffix(n int64) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}

// Components holds initialized services.
type Components struct {
	Client  wordstat.Client
	Limiter *ratelimit.Limiter
	Cache   *cache.Cache
	Engine  *engine.Engine
	Runner  *engine.Runner
}

func (c *Components) Close() {
	if c.Cache != nil {
		_ = c.Cache.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	limiter, err := ratelimit.New(
		cfg.Limits.PerSecond, cfg.Limits.PerHour, cfg.Limits.PerDay,
		ratelimit.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize rate limiter: %w", err)
	}

	params := wordstat.Params{
		Limit:   cfg.API.NumPhrases,
		Regions: cfg.API.Regions,
		Device:  cfg.API.Device,
	}
	clientOpts := []wordstat.HTTPClientOption{wordstat.WithLogger(logger)}
	if cfg.API.Endpoint != "" {
		clientOpts = append(clientOpts, wordstat.WithEndpoint(cfg.API.Endpoint))
	}
	client, err := wordstat.NewHTTPClient(cfg.API.APIKey, params, cfg.API.Timeout(), clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize API client: %w", err)
	}

	mode, err := engine.ParseCacheMode(cfg.Cache.Mode)
	if err != nil {
		return nil, err
	}
	var store *cache.Cache
	if mode != engine.CacheOff {
		store, err = cache.Open(cfg.Cache.Path, logger)
		if err != nil {
			// A broken cache degrades to uncached operation, not a refusal to start.
			logger.Warn("cache unavailable, continuing without it", zap.Error(err))
			store = nil
		}
	}

	flt, err := filter.New(cfg.Filter)
	if err != nil {
		return nil, fmt.Errorf("invalid filter config: %w", err)
	}

	eng, err := engine.New(client, limiter, store, flt, engine.Options{
		CacheTTL:       cfg.Cache.TTL(),
		CacheMode:      mode,
		AcquireTimeout: cfg.Limits.WaitTimeout(),
		MaxRetries:     cfg.API.MaxRetries,
		ParamsKey:      params.Key(),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize engine: %w", err)
	}

	return &Components{
		Client:  client,
		Limiter: limiter,
		Cache:   store,
		Engine:  eng,
		Runner:  engine.NewRunner(eng, logger),
	}, nil
}

func printUsage() {
	fmt.Println(`wordstat - Yandex Wordstat keyword expansion tool

Usage:
  wordstat server [flags]             Start the HTTP server
  wordstat expand [flags] <seeds...>  Expand seed phrases into a keyword set
  wordstat cache <stats|sweep|clear>  Manage the result cache
  wordstat version                    Show version
  wordstat help                       Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/wordstat/config.yaml)
  --debug            Enable debug logging (API requests, cache activity, etc.)

Expand Flags:
  --config string      Config file path
  --depth int          Expansion depth (default from config)
  --top-n int          Children expanded per phrase, by count (default from config; 0 = no limit)
  --seeds-file string  Read seed phrases from a file, one per line (use - for stdin)
  --output string      Output format: text, json, or tsv (default: text)
  --cache-mode string  Cache mode: on, off, only, or refresh (default from config)
  --export string      Also write results to an .xlsx file at this path

Cache Flags:
  --config string    Config file path

Examples:
  wordstat server
  wordstat expand "купить ноутбук"
  wordstat expand --depth 2 --top-n 20 --output tsv ноутбук > keywords.tsv
  wordstat expand --seeds-file seeds.txt --export keywords.xlsx
  wordstat cache stats
  wordstat cache sweep`)
}
