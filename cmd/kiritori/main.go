// Package main is the kiritori CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/kiritori/internal/cli"
	"github.com/hyperjump/kiritori/internal/config"
	"github.com/hyperjump/kiritori/internal/indexer"
	"github.com/hyperjump/kiritori/internal/models"
	"github.com/hyperjump/kiritori/internal/server"
	"github.com/hyperjump/kiritori/internal/watcher"
	"github.com/hyperjump/kiritori/pkg/utils"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/kiritori/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory; if neither exists the built-in defaults and
// environment overlay are used. Returns the config and the path that was loaded, or ""
// when no file was read.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(fallback); err == nil {
				cfg, err := config.Load(fallback)
				if err != nil {
					return nil, "", err
				}
				return cfg, fallback, nil
			}
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			cfg := &config.Config{}
			if err := config.ApplyEnv(cfg, os.Getenv); err != nil {
				return nil, "", err
			}
			config.ApplyDefaults(cfg)
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
	_ = godotenv.Load()
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	args := os.Args[2:]
	var err error
	switch command {
	case "server":
		err = runServer(args)
	case "ingest":
		err = runIngest(args)
	case "retrieve":
		err = runRetrieve(args, false)
	case "query":
		err = runRetrieve(args, true)
	case "list":
		err = runList(args)
	case "chunks":
		err = runChunks(args)
	case "analyze":
		err = runAnalyze(args)
	case "chunk":
		err = runChunkPreview(args)
	case "reprocess":
		err = runReprocess(args)
	case "delete":
		err = runDelete(args)
	case "status":
		err = runStatus(args)
	case "version", "--version", "-v":
		fmt.Printf("kiritori version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", command, err)
		os.Exit(1)
	}
}

// session loads config, builds a logger and initializes components for one command.
type session struct {
	cfg        *config.Config
	configPath string
	logger     *zap.Logger
	*Components
}

func openSession(configPath string, debug bool) (*session, error) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	debugMode := cfg.Debug || debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	if !debugMode {
		logger = logger.WithOptions(zap.IncreaseLevel(zap.WarnLevel))
	}
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return &session{cfg: cfg, configPath: resolved, logger: logger, Components: components}, nil
}

func (s *session) close() {
	s.Components.Close()
	_ = s.logger.Sync()
}

func runServer(args []string) error {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(args)

	cfg, resolved, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()
	logger.Info("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode))

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchSvc := watcher.New(components.Indexer, watcher.Config{
		Roots:      cfg.Watch.Directories,
		Extensions: cfg.Watch.Extensions,
		Recursive:  cfg.Watch.RecursiveOrDefault(),
	}, watcher.WithLogger(logger))
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if err := watchSvc.Start(watchCtx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	defer watchSvc.Stop()
	go watchSvc.SyncExistingFiles()

	srv := server.NewServer(components.Indexer, components.Engine, components.Composer,
		&cfg.Server, logger, watchSvc, resolved, cfg)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(ctx)
}

func chunkFlags(fs *flag.FlagSet) *indexer.Options {
	opts := &indexer.Options{}
	fs.StringVar(&opts.Strategy, "strategy", "", "chunking strategy: auto, fixed_size, paragraph, sentence, hybrid")
	fs.IntVar(&opts.ChunkSize, "chunk-size", 0, "target chunk size in characters (0 = configured default)")
	fs.IntVar(&opts.ChunkOverlap, "chunk-overlap", 0, "chunk overlap in characters (0 = configured default)")
	return opts
}

func runIngest(args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	opts := chunkFlags(fs)
	_ = fs.Parse(reorderArgs(args))
	if fs.NArg() < 1 {
		return errors.New("usage: kiritori ingest [flags] <file-or-directory>")
	}
	path := fs.Arg(0)
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat path: %w", err)
	}

	s, err := openSession(*configPath, false)
	if err != nil {
		return err
	}
	defer s.close()
	ctx := context.Background()

	if !info.IsDir() {
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		doc, err := s.Indexer.Ingest(ctx, indexer.Upload{Filename: filepath.Base(path), Content: content, Options: *opts})
		if err != nil {
			return err
		}
		fmt.Printf("Document ingested: %s (%d chunks, %s)\n", doc.FileID, doc.ChunkCount, doc.Strategy)
		return nil
	}

	files, err := indexer.CollectFiles(path, s.cfg.Watch.Extensions)
	if err != nil {
		return err
	}
	bar := progressbar.NewOptions(len(files),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan]Ingesting[reset]"),
		progressbar.OptionOnCompletion(func() { fmt.Println() }),
	)
	var failed []string
	for _, f := range files {
		if _, err := s.Indexer.IngestPath(ctx, f); err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", f, err))
		}
		_ = bar.Add(1)
	}
	fmt.Printf("Ingested %d of %d file(s) from %s\n", len(files)-len(failed), len(files), path)
	for _, f := range failed {
		fmt.Printf("  failed %s\n", f)
	}
	return nil
}

func printRetrieveUsage(fs *flag.FlagSet, answer bool) {
	cmd := "retrieve"
	if answer {
		cmd = "query"
	}
	fmt.Fprintf(fs.Output(), "Usage: kiritori %s [flags] <query>\n\n", cmd)
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Strategies: semantic, keyword, hybrid (default), ensemble, basic.
  • --file-id may be repeated or comma-separated to scope the search.
  • --from and --to bound results by document date (YYYY-MM-DD).
`)
}

type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			*l = append(*l, p)
		}
	}
	return nil
}

func runRetrieve(args []string, answer bool) error {
	fs := flag.NewFlagSet("retrieve", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = open the stores directly)")
	topK := fs.Int("top-k", 0, "number of results (0 = configured default)")
	strategy := fs.String("strategy", "", "retrieval strategy")
	from := fs.String("from", "", "earliest document date, YYYY-MM-DD")
	to := fs.String("to", "", "latest document date, YYYY-MM-DD")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	var fileIDs listFlag
	fs.Var(&fileIDs, "file-id", "restrict to these file ids")
	fs.Usage = func() { printRetrieveUsage(fs, answer) }
	_ = fs.Parse(reorderArgs(args))

	queryStr := buildQuery(fs.Args())
	if queryStr == "" {
		printRetrieveUsage(fs, answer)
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		return err
	}
	req := &models.RetrievalRequest{
		Query:    queryStr,
		FileIDs:  fileIDs,
		TopK:     *topK,
		Strategy: models.RetrievalStrategy(*strategy),
	}
	if *from != "" || *to != "" {
		req.DateRange = &models.DateRange{Start: *from, End: *to}
	}

	if *serverURL != "" {
		if answer {
			var ans models.Answer
			if err := postJSON(*serverURL+"/api/v1/query", req, &ans); err != nil {
				return err
			}
			return cli.WriteAnswer(os.Stdout, &ans, format)
		}
		var resp models.RetrievalResponse
		if err := postJSON(*serverURL+"/api/v1/retrieve", req, &resp); err != nil {
			return err
		}
		return cli.WriteRetrieval(os.Stdout, &resp, format)
	}

	s, err := openSession(*configPath, false)
	if err != nil {
		return err
	}
	defer s.close()
	ctx := context.Background()
	resp := s.Engine.Retrieve(ctx, req)
	if !answer {
		return cli.WriteRetrieval(os.Stdout, resp, format)
	}
	return cli.WriteAnswer(os.Stdout, s.Composer.Answer(ctx, queryStr, resp), format)
}

func postJSON(url string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func getJSON(url string, out interface{}) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out interface{}) error {
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func runList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	offset := fs.Int("offset", 0, "skip this many documents")
	limit := fs.Int("limit", 50, "maximum documents to list (0 = all)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(args)
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		return err
	}
	s, err := openSession(*configPath, false)
	if err != nil {
		return err
	}
	defer s.close()
	docs, err := s.Registry.ListDocuments(context.Background(), *offset, *limit)
	if err != nil {
		return err
	}
	return cli.WriteDocuments(os.Stdout, docs, format)
}

func runChunks(args []string) error {
	fs := flag.NewFlagSet("chunks", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(reorderArgs(args))
	if fs.NArg() < 1 {
		return errors.New("usage: kiritori chunks [flags] <file-id>")
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		return err
	}
	s, err := openSession(*configPath, false)
	if err != nil {
		return err
	}
	defer s.close()
	hits, err := s.Indexer.Chunks(context.Background(), fs.Arg(0))
	if err != nil {
		return err
	}
	return cli.WriteHits(os.Stdout, hits, format)
}

// runAnalyze profiles a stored document by id, or a local text file with -file.
func runAnalyze(args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	file := fs.String("file", "", "analyze a local text file instead of a stored document")
	_ = fs.Parse(reorderArgs(args))

	if *file != "" {
		text, err := os.ReadFile(*file)
		if err != nil {
			return err
		}
		a := indexer.AnalyzeText(string(text))
		a.Filename = filepath.Base(*file)
		return cli.WriteJSON(os.Stdout, a)
	}
	if fs.NArg() < 1 {
		return errors.New("usage: kiritori analyze [flags] <file-id> | -file <path>")
	}
	s, err := openSession(*configPath, false)
	if err != nil {
		return err
	}
	defer s.close()
	a, err := s.Indexer.Analyze(context.Background(), fs.Arg(0))
	if err != nil {
		return err
	}
	return cli.WriteJSON(os.Stdout, a)
}

func runChunkPreview(args []string) error {
	fs := flag.NewFlagSet("chunk", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	opts := chunkFlags(fs)
	_ = fs.Parse(reorderArgs(args))
	if fs.NArg() < 1 {
		return errors.New("usage: kiritori chunk [flags] <text-file>")
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		return err
	}
	text, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	s, err := openSession(*configPath, false)
	if err != nil {
		return err
	}
	defer s.close()
	chunks, err := s.Indexer.Preview(string(text), filepath.Base(fs.Arg(0)), *opts)
	if err != nil {
		return err
	}
	return cli.WriteChunks(os.Stdout, chunks, format)
}

func runReprocess(args []string) error {
	fs := flag.NewFlagSet("reprocess", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	opts := chunkFlags(fs)
	_ = fs.Parse(reorderArgs(args))
	if fs.NArg() < 1 {
		return errors.New("usage: kiritori reprocess [flags] <file-id>")
	}
	s, err := openSession(*configPath, false)
	if err != nil {
		return err
	}
	defer s.close()
	doc, err := s.Indexer.Reprocess(context.Background(), fs.Arg(0), *opts)
	if err != nil {
		return err
	}
	fmt.Printf("Document reprocessed: %s (generation %d, %d chunks, %s)\n",
		doc.FileID, doc.Generation, doc.ChunkCount, doc.Strategy)
	return nil
}

func runDelete(args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(reorderArgs(args))
	if fs.NArg() < 1 {
		return errors.New("usage: kiritori delete [flags] <file-id>")
	}
	s, err := openSession(*configPath, false)
	if err != nil {
		return err
	}
	defer s.close()
	if err := s.Indexer.Delete(context.Background(), fs.Arg(0)); err != nil {
		return err
	}
	fmt.Printf("Document deleted: %s\n", fs.Arg(0))
	return nil
}

// statusResponse is the shape of GET /api/v1/status.
type statusResponse struct {
	Index          *indexer.Status `json:"index"`
	DiskUsageBytes *int64          `json:"disk_usage_bytes,omitempty"`
}

func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = open the stores directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(args)
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		return err
	}

	var status statusResponse
	if *serverURL != "" {
		if err := getJSON(*serverURL+"/api/v1/status", &status); err != nil {
			return err
		}
	} else {
		s, err := openSession(*configPath, false)
		if err != nil {
			return err
		}
		defer s.close()
		st, err := s.Indexer.Status(context.Background())
		if err != nil {
			return err
		}
		status.Index = st
	}
	if status.Index == nil {
		status.Index = &indexer.Status{}
	}

	if format == cli.OutputJSON {
		return cli.WriteJSON(os.Stdout, status)
	}
	fmt.Printf("documents:          %d\n", status.Index.Documents)
	fmt.Printf("chunks:             %d\n", status.Index.Chunks)
	fmt.Printf("fulltext_entries:   %d\n", status.Index.FullTextDocs)
	fmt.Printf("upload_bytes:       %d\n", status.Index.UploadBytes)
	if status.DiskUsageBytes != nil {
		fmt.Printf("disk_usage_bytes:   %d\n", *status.DiskUsageBytes)
	}
	return nil
}

// buildQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// reorderArgs moves any flags (and their values) that appear after the positional
// arguments to the front so that flag.Parse sees them. The flag package stops at
// the first non-flag argument.
func reorderArgs(args []string) []string {
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

func printUsage() {
	fmt.Println(`kiritori - document chunking and retrieval engine

Usage:
  kiritori server [flags]               Start the HTTP server and inbox watcher
  kiritori ingest [flags] <path>        Ingest a file or every supported file in a directory
  kiritori retrieve [flags] <query>     Retrieve matching chunks
  kiritori query [flags] <query>        Answer a question from retrieved chunks
  kiritori list [flags]                 List ingested documents
  kiritori chunks [flags] <file-id>     Show the stored chunks of a document
  kiritori analyze [flags] <file-id>    Profile a document and recommend chunking
  kiritori chunk [flags] <text-file>    Preview chunking without storing anything
  kiritori reprocess [flags] <file-id>  Re-chunk a stored document
  kiritori delete [flags] <file-id>     Delete a document and its chunks
  kiritori status [flags]               Show index and storage status
  kiritori version                      Show version

Common Flags:
  --config string    Config file path (default: /usr/local/etc/kiritori/config.yaml)

Chunking Flags (ingest, chunk, reprocess):
  --strategy string      auto, fixed_size, paragraph, sentence, hybrid
  --chunk-size int       Target chunk size in characters
  --chunk-overlap int    Overlap in characters

Retrieval Flags (retrieve, query):
  --server string    Server URL (default: http://localhost:8080). Use --server "" to open the stores directly.
  --top-k int        Number of results
  --strategy string  semantic, keyword, hybrid, ensemble, basic
  --file-id string   Restrict to a file id (repeatable)
  --from, --to       Date bounds, YYYY-MM-DD
  --output string    text, compact, or json

Examples:
  kiritori server
  kiritori ingest --strategy paragraph ./contracts
  kiritori retrieve --strategy keyword "invoice total"
  kiritori query --file-id 3f1c... "what is the payment term?"
  kiritori chunk --strategy sentence notes.txt
  kiritori status --output json`)
}
