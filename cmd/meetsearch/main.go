// Package main is the meetsearch CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/openmeetings/meetsearch/internal/cli"
	"github.com/openmeetings/meetsearch/internal/config"
	"github.com/openmeetings/meetsearch/internal/engine"
	"github.com/openmeetings/meetsearch/internal/engine/local"
	"github.com/openmeetings/meetsearch/internal/engine/typesense"
	"github.com/openmeetings/meetsearch/internal/indexer"
	"github.com/openmeetings/meetsearch/internal/models"
	"github.com/openmeetings/meetsearch/internal/search"
	"github.com/openmeetings/meetsearch/internal/server"
	"github.com/openmeetings/meetsearch/internal/urlstate"
	"github.com/openmeetings/meetsearch/internal/watcher"
	"github.com/openmeetings/meetsearch/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/meetsearch/config.yaml"

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory wins if present, and a missing default file falls back to built-in defaults.
// Returns the config and the path that was actually loaded ("" for built-in defaults).
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
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			cfg := &config.Config{}
			config.ApplyDefaults(cfg)
			config.ApplyEnv(cfg)
			if err := cfg.Validate(); err != nil {
				return nil, "", err
			}
			return cfg, "", nil
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
	case "serve", "server":
		runServe()
	case "search":
		runSearch()
	case "meeting":
		runMeeting()
	case "index":
		runIndex()
	case "clear":
		runClear()
	case "version", "--version", "-v":
		fmt.Printf("meetsearch version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads config, builds the logger and opens the configured engine. Callers close the
// engine and sync the logger.
func setup(configPath string, debugFlag bool) (*config.Config, *zap.Logger, engine.Engine) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debugFlag
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("config loaded",
		zap.String("config_path", resolved),
		zap.String("backend", cfg.Engine.Backend),
		zap.Bool("debug", debugMode),
	)
	eng, err := openEngine(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open search engine", zap.Error(err))
	}
	return cfg, logger, eng
}

// openEngine returns the backend selected by cfg.Engine.Backend.
func openEngine(cfg *config.Config, logger *zap.Logger) (engine.Engine, error) {
	switch cfg.Engine.Backend {
	case config.BackendTypesense:
		ts := cfg.Engine.Typesense
		client, err := typesense.NewClient(typesense.Config{
			URL:            ts.URL,
			APIKey:         ts.APIKey,
			Collection:     ts.Collection,
			Timeout:        ts.Timeout,
			PerPage:        cfg.Search.PerPage,
			MaxFacetValues: cfg.Search.MaxFacetValues,
		}, typesense.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to create typesense client: %w", err)
		}
		return client, nil
	case config.BackendLocal:
		eng, err := local.Open(local.Config{
			DatabasePath:   cfg.Storage.DatabasePath,
			IndexPath:      cfg.Storage.IndexPath,
			PerPage:        cfg.Search.PerPage,
			MaxFacetValues: cfg.Search.MaxFacetValues,
		}, local.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to open local engine: %w", err)
		}
		return eng, nil
	default:
		return nil, fmt.Errorf("unknown engine backend %q", cfg.Engine.Backend)
	}
}

func runServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	watch := fs.Bool("watch", false, "re-import watch.files when they change")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, eng := setup(*configPath, *debug)
	defer logger.Sync()
	defer eng.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *watch {
		if len(cfg.Watch.Files) == 0 {
			logger.Fatal("--watch needs at least one entry in watch.files")
		}
		idx := indexer.NewIndexer(eng, indexer.WithLogger(logger))
		w := watcher.NewWatcher(cfg.Watch.Files, func(path string) {
			report, err := idx.IndexFile(ctx, path)
			if err != nil {
				logger.Warn("watch re-import failed", zap.String("path", path), zap.Error(err))
				return
			}
			logger.Info("watch re-import finished",
				zap.String("path", path),
				zap.Int("imported", report.Imported),
				zap.Int("total", report.Total))
		}, watcher.WithLogger(logger), watcher.WithDebounce(cfg.Watch.Debounce))
		if err := w.Start(ctx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer w.Stop()
	}

	srv, err := server.NewServer(eng, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create server", zap.Error(err))
	}
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

// printSearchUsage prints search subcommand usage.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: meetsearch search [flags] <keyphrase>\n\n")
	fmt.Fprintf(fs.Output(), "The keyphrase is all remaining arguments joined by spaces; none searches every meeting.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  meetsearch search budget taskforce
  meetsearch search --body "School Committee" budget
  meetsearch search --from 2023-03-01 --to 2023-03-31 zoning
  meetsearch search --url "keyphrase=budget&body=all&dateStart=2023-03-01"
  meetsearch search --output json budget
`)
}

// buildSearchQuery joins all positional args with spaces so multi-word keyphrases
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves any flags (and their values) that appear after the keyphrase
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// searchRequest builds a request the same way a search page URL is decoded. A non-empty
// rawQuery takes precedence over the individual values.
func searchRequest(rawQuery, keyphrase, body, from, to string, loc *time.Location) (models.SearchRequest, error) {
	if rawQuery != "" {
		values, err := url.ParseQuery(strings.TrimPrefix(rawQuery, "?"))
		if err != nil {
			return models.SearchRequest{}, fmt.Errorf("invalid --url: %w", err)
		}
		return urlstate.Decode(values, loc)
	}
	values := url.Values{}
	values.Set(urlstate.ParamKeyphrase, keyphrase)
	values.Set(urlstate.ParamBody, body)
	values.Set(urlstate.ParamDateStart, from)
	values.Set(urlstate.ParamDateEnd, to)
	return urlstate.Decode(values, loc)
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	fs.Usage = func() { printSearchUsage(fs) }
	configPath := fs.String("config", defaultConfigPath, "config file path")
	body := fs.String("body", urlstate.AllBodies, "public body to filter by")
	from := fs.String("from", "", "first meeting date, yyyy-mm-dd")
	to := fs.String("to", "", "last meeting date, yyyy-mm-dd")
	rawQuery := fs.String("url", "", "search page query string; overrides the other filters")
	output := fs.String("output", string(cli.OutputText), "output format: text or json")
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	cfg, logger, eng := setup(*configPath, false)
	defer logger.Sync()
	defer eng.Close()

	loc, err := cfg.Search.LoadLocation()
	if err != nil {
		logger.Fatal("Invalid search location", zap.Error(err))
	}
	req, err := searchRequest(*rawQuery, buildSearchQuery(fs.Args()), *body, *from, *to, loc)
	if err != nil {
		fmt.Printf("Invalid search: %v\n", err)
		os.Exit(1)
	}

	c := search.NewController(eng,
		search.WithLogger(logger),
		search.WithQueryTimeout(cfg.Search.QueryTimeout))
	defer c.Close()
	c.Load(req)
	c.Wait()
	if err := c.Err(); err != nil {
		fmt.Printf("Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteState(os.Stdout, c.State(), format); err != nil {
		fmt.Printf("Failed to write results: %v\n", err)
		os.Exit(1)
	}
}

func runMeeting() {
	fs := flag.NewFlagSet("meeting", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	output := fs.String("output", string(cli.OutputText), "output format: text or json")
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: meetsearch meeting [flags] <meeting-id>")
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	cfg, logger, eng := setup(*configPath, false)
	defer logger.Sync()
	defer eng.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Search.QueryTimeout)
	defer cancel()
	m, err := search.GetMeeting(ctx, eng, fs.Arg(0))
	if errors.Is(err, engine.ErrNotFound) {
		fmt.Printf("Could not retrieve meeting %s\n", fs.Arg(0))
		os.Exit(1)
	}
	if err != nil {
		fmt.Printf("Lookup failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteMeeting(os.Stdout, m, format); err != nil {
		fmt.Printf("Failed to write meeting: %v\n", err)
		os.Exit(1)
	}
}

func runIndex() {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: meetsearch index [flags] <meetings.json>")
		os.Exit(1)
	}
	_, logger, eng := setup(*configPath, *debug)
	defer logger.Sync()
	defer eng.Close()

	idx := indexer.NewIndexer(eng, indexer.WithLogger(logger))
	report, err := idx.IndexFile(context.Background(), fs.Arg(0))
	if err != nil {
		fmt.Printf("Indexing failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Successfully imported %d out of %d meetings (%d invalid records skipped)\n",
		report.Imported, report.Total, report.Skipped)
}

func runClear() {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, eng := setup(*configPath, false)
	defer logger.Sync()
	defer eng.Close()

	name := collectionName(cfg)
	deleted, err := indexer.NewIndexer(eng, indexer.WithLogger(logger)).Clear(context.Background())
	if err != nil {
		fmt.Printf("Clear failed: %v\n", err)
		os.Exit(1)
	}
	if !deleted {
		fmt.Printf("Could not find collection named %s.\n", name)
		return
	}
	fmt.Printf("Deleted %s collection.\n", name)
}

func collectionName(cfg *config.Config) string {
	if cfg.Engine.Backend == config.BackendLocal {
		return "local"
	}
	return cfg.Engine.Typesense.Collection
}

func printUsage() {
	fmt.Println(`meetsearch - public meeting records search

Usage:
  meetsearch serve [flags]              Start the HTTP and websocket server
  meetsearch search [flags] <keyphrase> Search meetings
  meetsearch meeting [flags] <id>       Show one meeting
  meetsearch index [flags] <file>       Replace the collection with a meetings JSON file
  meetsearch clear [flags]              Delete the collection
  meetsearch version                    Show version
  meetsearch help                       Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/meetsearch/config.yaml)

Serve Flags:
  --debug            Enable debug logging
  --watch            Re-import watch.files whenever they change

Search Flags:
  --body string      Public body filter (default: all)
  --from string      First meeting date, yyyy-mm-dd
  --to string        Last meeting date, yyyy-mm-dd
  --url string       Search page query string (keyphrase, body, dateStart, dateEnd)
  --output string    Output format: text or json (default: text)

Meeting Flags:
  --output string    Output format: text or json (default: text)

Environment:
  TYPESENSE_API_KEY  Overrides engine.typesense.api_key
  MEETSEARCH_ENGINE  Overrides engine.backend (typesense or local)

Examples:
  meetsearch serve --watch
  meetsearch index data/meetings.json
  meetsearch search budget taskforce
  meetsearch search --body "Planning Board" --from 2023-01-01 zoning
  meetsearch meeting 8f1c2a
  meetsearch clear`)
}
