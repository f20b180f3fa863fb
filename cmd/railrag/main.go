// Package main is the railrag CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/MariusDragic/RailwayRAG/internal/cli"
	"github.com/MariusDragic/RailwayRAG/internal/config"
	"github.com/MariusDragic/RailwayRAG/internal/embedding"
	"github.com/MariusDragic/RailwayRAG/internal/extract"
	"github.com/MariusDragic/RailwayRAG/internal/indexer"
	"github.com/MariusDragic/RailwayRAG/internal/models"
	"github.com/MariusDragic/RailwayRAG/internal/search"
	"github.com/MariusDragic/RailwayRAG/internal/server"
	"github.com/MariusDragic/RailwayRAG/internal/storage"
	"github.com/MariusDragic/RailwayRAG/internal/watcher"
	"github.com/MariusDragic/RailwayRAG/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "config.yaml"

// loadConfig loads config from path, falling back to built-in defaults when path is the
// default and no such file exists. Variables from .env and the environment are applied
// last, then the result is validated.
func loadConfig(path string, lookup func(string) (string, bool)) (*config.Config, error) {
	var cfg *config.Config
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && path == defaultConfigPath {
		cfg = config.Default()
	} else {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := config.ApplyEnv(cfg, lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "build":
		runBuild()
	case "search":
		runSearch()
	case "server":
		runServer()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("railrag version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// mustSetup loads the config and creates the logger, exiting on failure.
func mustSetup(configPath string, debug bool) (*config.Config, *zap.Logger) {
	cfg, err := loadConfig(configPath, os.LookupEnv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug || debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return cfg, logger
}

func parseOutputFormat(s string) (cli.OutputFormat, error) {
	switch s {
	case "text":
		return cli.OutputText, nil
	case "json":
		return cli.OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

func mustOutputFormat(s string) cli.OutputFormat {
	format, err := parseOutputFormat(s)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return format
}

func runBuild() {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	datasetDir := fs.String("dataset", "", "directory of source documents (default from config)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])
	format := mustOutputFormat(*outputFormat)

	cfg, logger := mustSetup(*configPath, *debug)
	defer logger.Sync()
	if *datasetDir != "" {
		cfg.Ingest.DatasetDir = *datasetDir
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := build(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Build failed: %v\n", err)
		os.Exit(exitCode(err))
	}
	if err := cli.WriteBuildResult(os.Stdout, res, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// build collects the dataset directory and commits a new generation.
func build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*indexer.BuildResult, error) {
	docs, err := indexer.CollectDirectory(ctx, cfg.Ingest.DatasetDir, cfg.Ingest.Extensions, extract.NewExtractor(), logger)
	if err != nil {
		return nil, fmt.Errorf("collect documents: %w", err)
	}
	chunker, err := indexer.NewChunker(cfg.Search.ChunkSize, cfg.Search.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		return nil, err
	}
	defer embedder.Close()
	batch, err := embedding.NewBatchEmbedder(embedder, cfg.Embedding.BatchSize,
		embedding.WithWorkers(cfg.Embedding.Workers),
		embedding.WithDimensions(cfg.Embedding.Dimensions),
		embedding.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	opts := []indexer.BuilderOption{
		indexer.WithLogger(logger),
		indexer.WithEmbedderName(embedding.Name(cfg.Embedding)),
	}
	if cfg.Storage.CatalogPath != "" {
		opts = append(opts, indexer.WithCatalogOpener(func() (storage.Catalog, error) {
			catalog, err := storage.NewSQLiteCatalog(cfg.Storage.CatalogPath)
			if err != nil {
				return nil, err
			}
			return catalog, nil
		}))
	}
	store := storage.NewStore(cfg.Storage.StoreDir, storage.WithLogger(logger))
	return indexer.NewBuilder(chunker, batch, store, opts...).Build(ctx, docs)
}

// openCatalog opens the build catalog; failures are logged since the catalog is informational.
func openCatalog(cfg *config.Config, logger *zap.Logger) *storage.SQLiteCatalog {
	if cfg.Storage.CatalogPath == "" {
		return nil
	}
	catalog, err := storage.NewSQLiteCatalog(cfg.Storage.CatalogPath)
	if err != nil {
		logger.Warn("catalog unavailable", zap.String("path", cfg.Storage.CatalogPath), zap.Error(err))
		return nil
	}
	return catalog
}

// newEngine creates an engine over the configured store with the configured query embedder.
func newEngine(cfg *config.Config, logger *zap.Logger) (*search.Engine, embedding.Embedder, *storage.Store, error) {
	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		return nil, nil, nil, err
	}
	store := storage.NewStore(cfg.Storage.StoreDir, storage.WithLogger(logger))
	engine := search.NewEngine(embedder, cfg.Search.TopK,
		search.WithStore(store),
		search.WithLogger(logger),
		search.WithEmbedTimeout(cfg.Embedding.Timeout),
		search.WithEmbedderName(embedding.Name(cfg.Embedding)))
	return engine, embedder, store, nil
}

// printSearchUsage prints search subcommand usage.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: railrag search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  railrag search signal maintenance interval
  railrag search --top-k 10 "level crossing barriers"
  railrag search --server http://localhost:8080 --output json ballast renewal
`)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves flags (and their values) that appear among the query words to
// the front so that flag.Parse sees them, since Go's flag package stops at the first
// non-flag argument. Query words keep their relative order. Everything after "--" is
// part of the query.
func searchArgsReorder(fs *flag.FlagSet, args []string) []string {
	flags := make([]string, 0, len(args)+1)
	words := make([]string, 0, len(args))
	var rest []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			rest = args[i:]
			break
		}
		if len(a) < 2 || a[0] != '-' {
			words = append(words, a)
			continue
		}
		flags = append(flags, a)
		name := strings.TrimLeft(a, "-")
		if strings.Contains(name, "=") {
			continue
		}
		if takesValue(fs, name) && i+1 < len(args) {
			i++
			flags = append(flags, args[i])
		}
	}
	if rest != nil {
		// Words before "--" go after it so flag.Parse leaves them alone too.
		return append(append(append(flags, "--"), words...), rest[1:]...)
	}
	return append(flags, words...)
}

// takesValue reports whether the named flag consumes the following argument.
func takesValue(fs *flag.FlagSet, name string) bool {
	f := fs.Lookup(name)
	if f == nil {
		return false
	}
	if b, ok := f.Value.(interface{ IsBoolFlag() bool }); ok && b.IsBoolFlag() {
		return false
	}
	return true
}

// searchFlags holds the search subcommand's flags.
type searchFlags struct {
	fs         *flag.FlagSet
	configPath *string
	serverURL  *string
	topK       *int
	output     *string
}

func newSearchFlags(handling flag.ErrorHandling) *searchFlags {
	fs := flag.NewFlagSet("search", handling)
	sf := &searchFlags{
		fs:         fs,
		configPath: fs.String("config", defaultConfigPath, "config file path"),
		serverURL:  fs.String("server", "", "server URL (empty = load the store directly)"),
		topK:       fs.Int("top-k", 0, "number of passages (default from config)"),
		output:     fs.String("output", "text", "output format: text or json"),
	}
	fs.Usage = func() { printSearchUsage(fs) }
	return sf
}

func runSearch() {
	sf := newSearchFlags(flag.ExitOnError)
	fs := sf.fs
	configPath, serverURL, topK, outputFormat := sf.configPath, sf.serverURL, sf.topK, sf.output
	_ = fs.Parse(searchArgsReorder(fs, os.Args[2:]))

	queryStr := buildSearchQuery(fs.Args())
	if queryStr == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}
	format := mustOutputFormat(*outputFormat)
	query := models.SearchQuery{Query: queryStr, TopK: *topK}

	var (
		response *models.SearchResponse
		err      error
	)
	if *serverURL != "" {
		response, err = newAPIClient(*serverURL, 60*time.Second).Search(context.Background(), query)
	} else {
		response, err = searchLocal(*configPath, query)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(exitCode(err))
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func searchLocal(configPath string, query models.SearchQuery) (*models.SearchResponse, error) {
	cfg, logger := mustSetup(configPath, false)
	defer logger.Sync()
	engine, embedder, _, err := newEngine(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer embedder.Close()
	ctx := context.Background()
	if _, err := engine.Reload(ctx); err != nil {
		return nil, err
	}
	return engine.Search(ctx, query)
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger := mustSetup(*configPath, *debug)
	defer logger.Sync()
	logger.Info("config loaded",
		zap.String("config_path", *configPath),
		zap.String("store_dir", cfg.Storage.StoreDir),
		zap.String("embedder", embedding.Name(cfg.Embedding)))

	engine, embedder, store, err := newEngine(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize embedder", zap.Error(err))
	}
	defer embedder.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	if err := embedding.Ping(pingCtx, embedder); err != nil {
		logger.Warn("embedding backend unreachable; searches fail until it is", zap.Error(err))
	}
	pingCancel()
	if _, err := engine.Reload(ctx); err != nil {
		if !errors.Is(err, models.ErrIndexNotLoaded) {
			logger.Fatal("Failed to load index", zap.Error(err))
		}
		logger.Warn("no build committed yet; searches fail until one is", zap.String("store_dir", store.Dir()))
	}

	if cfg.Watch.EnabledOrDefault() {
		w := watcher.NewWatcher(store.Dir(), []string{storage.CurrentFile}, func(string) {
			_, _ = engine.Reload(ctx)
		}, watcher.WithDebounce(cfg.Watch.Debounce), watcher.WithLogger(logger))
		if err := w.Start(ctx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer w.Stop()
	}

	srvOpts := []server.Option{server.WithStore(store)}
	if catalog := openCatalog(cfg, logger); catalog != nil {
		defer catalog.Close()
		srvOpts = append(srvOpts, server.WithCatalog(catalog))
	}
	srv := server.NewServer(engine, cfg.Server, logger, srvOpts...)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = read the store directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := mustOutputFormat(*outputFormat)

	var (
		st  *cli.Status
		err error
	)
	if *serverURL != "" {
		st, err = newAPIClient(*serverURL, 10*time.Second).Status(context.Background())
	} else {
		cfg, logger := mustSetup(*configPath, false)
		defer logger.Sync()
		st, err = localStatus(context.Background(), cfg, logger)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(exitCode(err))
	}
	if err := cli.WriteStatus(os.Stdout, st, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// localStatus reads the current generation and the latest catalog entry from disk.
func localStatus(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*cli.Status, error) {
	store := storage.NewStore(cfg.Storage.StoreDir)
	st := &cli.Status{StoreDir: store.Dir()}
	// Status never embeds, so the cheap hash backend stands in for the configured one.
	engine := search.NewEngine(embedding.NewHashEmbedder(0), cfg.Search.TopK, search.WithStore(store))
	if _, err := engine.Reload(ctx); err != nil && !errors.Is(err, models.ErrIndexNotLoaded) {
		return nil, err
	}
	st.Index = engine.Stats()
	if usage, err := store.Usage(); err == nil {
		st.DiskUsage = usage
	}
	if _, err := os.Stat(cfg.Storage.CatalogPath); err == nil {
		if catalog := openCatalog(cfg, logger); catalog != nil {
			defer catalog.Close()
			if rec, err := catalog.LatestBuild(ctx); err == nil {
				st.Latest = rec
			}
		}
	}
	return st, nil
}

// exitCode maps failures to process exit codes: 2 for invalid input or configuration,
// 3 when the index or the embedder is unavailable, 1 otherwise.
func exitCode(err error) int {
	switch {
	case errors.Is(err, models.ErrConfig), errors.Is(err, models.ErrInvalidQuery):
		return 2
	case errors.Is(err, models.ErrIndexNotLoaded), errors.Is(err, models.ErrEmbeddingUnavailable):
		return 3
	default:
		return 1
	}
}

func printUsage() {
	fmt.Println(`railrag - Retrieval over railway documents

Usage:
  railrag build [flags]           Index the dataset directory into a new generation
  railrag search [flags] <query>  Retrieve the most relevant passages
  railrag server [flags]          Start the HTTP query server
  railrag status [flags]          Show the committed generation and store usage
  railrag version                 Show version
  railrag help                    Show this help

Build Flags:
  --config string    Config file path (default: config.yaml, built-in defaults when absent)
  --dataset string   Directory of source documents (default from config)
  --output string    Output format: text or json (default: text)
  --debug            Enable debug logging

Search Flags:
  --config string    Config file path (for direct store access)
  --server string    Server URL; empty loads the store directly (default: "")
  --top-k int        Number of passages (default from config)
  --output string    Output format: text or json (default: text)

Server Flags:
  --config string    Config file path
  --debug            Enable debug logging

Status Flags:
  --config string    Config file path (for direct store access)
  --server string    Server URL; empty reads the store directly (default: "")
  --output string    Output format: text or json (default: text)

Environment (also read from .env):
  CHUNK_SIZE, CHUNK_OVERLAP, TOP_K, OLLAMA_ENDPOINT, EMBEDDING_MODEL, RAILRAG_STORE_DIR

Examples:
  railrag build --dataset ./dataset
  railrag search "signal maintenance interval"
  railrag search --server http://localhost:8080 --output json ballast renewal
  railrag server
  railrag status --output json`)
}
