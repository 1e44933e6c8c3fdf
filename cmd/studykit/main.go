// Package main is the StudyKit CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/studykit/studykit/internal/archive"
	"github.com/studykit/studykit/internal/cli"
	"github.com/studykit/studykit/internal/config"
	"github.com/studykit/studykit/internal/extract"
	"github.com/studykit/studykit/internal/index"
	"github.com/studykit/studykit/internal/ingest"
	"github.com/studykit/studykit/internal/models"
	"github.com/studykit/studykit/internal/server"
	"github.com/studykit/studykit/internal/storage"
	"github.com/studykit/studykit/internal/watcher"
	"github.com/studykit/studykit/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/studykit/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used, so "studykit server" from the project dir picks up the local config.
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
	case "ingest":
		runIngest()
	case "search":
		runSearch()
	case "reindex":
		runReindex()
	case "delete":
		runDelete()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("studykit version %s\n", version)
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
	debug := fs.Bool("debug", false, "enable debug logging")
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

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	inboxCtx, inboxCancel := context.WithCancel(context.Background())
	defer inboxCancel()
	var inbox *watcher.Inbox
	if cfg.Inbox.Directory != "" {
		ing := components.Ingestor
		inboxOpts := []watcher.InboxOption{}
		if debugMode {
			inboxOpts = append(inboxOpts, watcher.WithLogger(logger))
		}
		inbox = watcher.NewInbox(cfg.Inbox.Directory, cfg.Inbox.Extensions, func(path string) {
			if _, err := ing.Ingest(context.Background(), path, filepath.Base(path)); err != nil {
				logger.Warn("inbox ingestion failed", zap.String("path", path), zap.Error(err))
				return
			}
			// The ingestor keeps its own copy; the inbox drop is consumed.
			if err := os.Remove(path); err != nil {
				logger.Warn("failed to remove inbox file", zap.String("path", path), zap.Error(err))
			}
		}, inboxOpts...)
		if err := inbox.Start(inboxCtx); err != nil {
			logger.Fatal("Failed to start inbox watcher", zap.Error(err))
		}
		inbox.SyncExisting()
	}

	srv := server.NewServer(
		components.Engine,
		components.Ingestor,
		components.Storage,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	inboxCancel()
	if inbox != nil {
		inbox.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: studykit ingest [flags] <file> [file...]")
		os.Exit(1)
	}
	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	components := mustInitialize(*configPath)
	defer components.Close()

	ctx := context.Background()
	var all []*models.Document
	for _, path := range fs.Args() {
		docs, err := components.Ingestor.Ingest(ctx, path, filepath.Base(path))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ingestion failed for %s: %v\n", path, err)
			os.Exit(1)
		}
		all = append(all, docs...)
	}
	if format == cli.OutputJSON {
		_ = cli.WriteDocuments(os.Stdout, all, format)
		return
	}
	for _, doc := range all {
		fmt.Printf("Ingested %s (document %d, %s)\n", doc.OriginalFilename, doc.ID, doc.Status)
	}
}

// searchArgsReorder moves any flags (and their values) that appear after the
// query to the front of the slice so that flag.Parse() sees them. Go's flag
// package stops at the first non-flag argument.
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

func runSearch() {
	searchArgs := searchArgsReorder(os.Args[2:])

	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage when server is not running)")
	limit := fs.Int("limit", 10, "number of results")
	filename := fs.String("filename", "", "restrict results to this original filename")
	topic := fs.String("topic", "", "restrict results to this topic")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(searchArgs)

	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	// Empty query is valid: it lists the whole corpus in reading order.
	queryStr := strings.TrimSpace(strings.Join(fs.Args(), " "))

	req := &models.SearchRequest{
		Query:    queryStr,
		Limit:    *limit,
		Filename: *filename,
		Topic:    *topic,
	}

	if *serverURL != "" {
		// Use the HTTP API when the server is running (avoids Bleve/SQLite lock conflict).
		response, err := searchViaHTTP(*serverURL, req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	components := mustInitialize(*configPath)
	defer components.Close()

	ctx := context.Background()
	start := time.Now()
	var results []*models.SearchResult
	if req.Filename != "" || req.Topic != "" {
		results, err = components.Engine.SearchWithFilters(ctx, req.Query, req.Filename, req.Topic, req.Limit)
	} else {
		results, err = components.Engine.Search(ctx, req.Query, req.Limit)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	response := &models.SearchResponse{
		Results:   results,
		Total:     len(results),
		QueryTime: time.Since(start).Milliseconds(),
		Query:     req.Query,
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func searchViaHTTP(serverURL string, req *models.SearchRequest) (*models.SearchResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/search", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

func runReindex() {
	fs := flag.NewFlagSet("reindex", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = use direct storage)")
	_ = fs.Parse(os.Args[2:])

	if *serverURL != "" {
		url := *serverURL + "/api/v1/reindex"
		if fs.NArg() > 0 {
			url = fmt.Sprintf("%s/api/v1/documents/%s/reindex", *serverURL, fs.Arg(0))
		}
		resp, err := http.Post(url, "application/json", nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "Reindex failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		fmt.Println("Reindex complete")
		return
	}

	components := mustInitialize(*configPath)
	defer components.Close()

	ctx := context.Background()
	if fs.NArg() > 0 {
		id, err := strconv.ParseInt(fs.Arg(0), 10, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid document id: %s\n", fs.Arg(0))
			os.Exit(1)
		}
		doc, err := components.Ingestor.Reindex(ctx, id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Reindex failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Reindexed %s (document %d, %s)\n", doc.OriginalFilename, doc.ID, doc.Status)
		return
	}
	if err := components.Ingestor.RebuildIndex(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Index rebuild failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Search index rebuilt")
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: studykit delete [flags] <document-id>")
		os.Exit(1)
	}
	id, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid document id: %s\n", fs.Arg(0))
		os.Exit(1)
	}

	components := mustInitialize(*configPath)
	defer components.Close()

	if err := components.Ingestor.Delete(context.Background(), id); err != nil {
		fmt.Fprintf(os.Stderr, "Deletion failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Document deleted: %d\n", id)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	var stats models.Stats
	if *serverURL != "" {
		res, err := statsViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		stats = *res
	} else {
		components := mustInitialize(*configPath)
		defer components.Close()

		ctx := context.Background()
		docCount, err := components.Storage.CountDocuments(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Count documents failed: %v\n", err)
			os.Exit(1)
		}
		chunkCount, err := components.Storage.CountChunks(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Count chunks failed: %v\n", err)
			os.Exit(1)
		}
		entries, err := components.Engine.EntryCount()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Index entry count failed: %v\n", err)
			os.Exit(1)
		}
		stats = models.Stats{
			Documents:      docCount,
			Chunks:         chunkCount,
			IndexedEntries: entries,
			IndexPath:      components.Config.Storage.IndexPath,
		}
		stats.DiskUsageBytes = storage.DiskUsageBytes(
			components.Config.Storage.DatabasePath,
			components.Config.Storage.IndexPath,
			components.Config.Storage.UploadDir,
		)
	}

	if err := cli.WriteStats(os.Stdout, &stats, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func statsViaHTTP(serverURL string) (*models.Stats, error) {
	resp, err := http.Get(serverURL + "/api/v1/stats")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var stats models.Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &stats, nil
}

// Components holds initialized services.
type Components struct {
	Config   *config.Config
	Storage  storage.Storage
	Engine   *index.Engine
	Ingestor *ingest.Ingestor
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Engine != nil {
		_ = c.Engine.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	engine, err := index.NewEngine(cfg.Storage.IndexPath)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize search index: %w", err)
	}

	extractOpts := []extract.ExtractorOption{}
	unpackOpts := []archive.UnpackerOption{
		archive.WithMaxEntries(cfg.Ingest.MaxArchiveEntries),
		archive.WithTimeout(time.Duration(cfg.Ingest.ArchiveTimeoutMinutes) * time.Minute),
	}
	if debug && logger != nil {
		extractOpts = append(extractOpts, extract.WithLogger(logger))
		unpackOpts = append(unpackOpts, archive.WithUnpackerLogger(logger))
	}

	ingestor := ingest.NewIngestor(
		store,
		extract.NewExtractor(extractOpts...),
		archive.NewUnpacker(unpackOpts...),
		engine,
		cfg.Storage.UploadDir,
		logger,
	)

	return &Components{
		Config:   cfg,
		Storage:  store,
		Engine:   engine,
		Ingestor: ingestor,
	}, nil
}

// mustInitialize loads config and builds components for direct-storage commands.
func mustInitialize(configPath string) *Components {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	return components
}

func printUsage() {
	fmt.Println(`studykit - Study material ingestion and full-text search

Usage:
  studykit server [flags]            Start the HTTP server
  studykit ingest [flags] <file>...  Ingest documents or ZIP batches
  studykit search [flags] [query]    Search indexed content (empty query lists everything)
  studykit reindex [flags] [id]      Rebuild the index, or re-extract one document
  studykit delete [flags] <id>       Delete a document
  studykit status [flags]            Show storage and index statistics
  studykit version                   Show version
  studykit help                      Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/studykit/config.yaml)
  --debug            Enable debug logging

Search Flags:
  --config string    Config file path (for direct storage mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for direct storage.
  --limit int        Number of results (default: 10)
  --filename string  Restrict results to one original filename
  --topic string     Restrict results to one topic
  --output string    Output format: text or json (default: text)

Examples:
  studykit server
  studykit ingest lecture-notes.pdf week3-slides.pptx
  studykit ingest semester-materials.zip
  studykit search query optimization
  studykit search --topic "General Content" sorting
  studykit search --output json indexes
  studykit reindex          # full rebuild
  studykit reindex 42       # re-extract document 42
  studykit delete 42
  studykit status`)
}
