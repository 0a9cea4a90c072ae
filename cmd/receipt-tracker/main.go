package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"golang.org/x/sync/errgroup"

	"github.com/zombor/receipt-tracker/internal/extraction"
	"github.com/zombor/receipt-tracker/internal/receipt"
	"github.com/zombor/receipt-tracker/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

type config struct {
	port            int
	dbBackend       string
	dbPath          string
	storageBackend  string
	storagePath     string
	storageBucket   string
	scannerType     string
	geminiKey       string
	geminiModel     string
	ollamaURL       string
	ollamaModel     string
	taskPrompt      string
	defaultCategory string
	modelTimeout    time.Duration
	logLevel        string
	logFormat       string
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// A missing .env file is fine
	_ = godotenv.Load()

	var cfg config
	fs := ff.NewFlagSet("receipt-tracker")
	fs.IntVar(&cfg.port, 0, "port", 8080, "HTTP server port")
	fs.StringVar(&cfg.dbBackend, 0, "db-backend", "bolt", "Database backend: 'bolt' or 'sqlite'")
	fs.StringVar(&cfg.dbPath, 0, "db", "receipt-tracker.db", "Database file path")
	fs.StringVar(&cfg.storageBackend, 0, "storage-backend", "local", "File storage backend: 'local' or 'gcs'")
	fs.StringVar(&cfg.storagePath, 0, "storage", "./receipts", "Storage directory, or object prefix for gcs")
	fs.StringVar(&cfg.storageBucket, 0, "storage-bucket", "", "Cloud Storage bucket for the gcs backend")
	fs.StringVar(&cfg.scannerType, 0, "scanner", "gemini", "Scanner type: 'gemini' or 'ollama'")
	fs.StringVar(&cfg.geminiKey, 0, "gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
	fs.StringVar(&cfg.geminiModel, 0, "gemini-model", "gemini-2.5-pro", "Google Gemini model name")
	fs.StringVar(&cfg.ollamaURL, 0, "ollama-url", "http://localhost:11434", "Ollama API base URL")
	fs.StringVar(&cfg.ollamaModel, 0, "ollama-model", "llava", "Ollama model name (e.g., llava, llava-phi3, qwen2-vl)")
	fs.StringVar(&cfg.taskPrompt, 0, "task-prompt", scanning.DefaultTaskPrompt, "Instruction sent to the model with each document")
	fs.StringVar(&cfg.defaultCategory, 0, "default-category", "Dining", "Category given to new receipts (empty for none)")
	fs.DurationVar(&cfg.modelTimeout, 0, "model-timeout", receipt.DefaultModelTimeout, "Maximum time for one model call")
	fs.StringVar(&cfg.logLevel, 0, "log-level", "info", "Log level: debug, info, warn or error")
	fs.StringVar(&cfg.logFormat, 0, "log-format", "text", "Log format: 'text' or 'json'")
	showVersion := fs.BoolLong("version", "Show version information")

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("RECEIPT_TRACKER"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	logger, err := newLogger(os.Stderr, cfg.logLevel, cfg.logFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	if err := run(cfg); err != nil {
		slog.Error("Fatal error", "error", err)
		os.Exit(1)
	}
}

// newLogger builds the process logger from the --log-level and --log-format flags
func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch format {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("invalid log format %q: want text or json", format)
}

func openDB(cfg config) (receipt.DB, error) {
	switch cfg.dbBackend {
	case "bolt":
		return receipt.NewBoltDB(cfg.dbPath)
	case "sqlite":
		return receipt.NewSQLiteDB(cfg.dbPath)
	}
	return nil, fmt.Errorf("invalid db backend %q: want bolt or sqlite", cfg.dbBackend)
}

func openStorage(ctx context.Context, cfg config) (receipt.Storage, func() error, error) {
	switch cfg.storageBackend {
	case "local":
		store, err := receipt.NewLocalStorage(cfg.storagePath)
		return store, func() error { return nil }, err
	case "gcs":
		store, err := receipt.NewGCSStorage(ctx, cfg.storageBucket, strings.Trim(cfg.storagePath, "./"))
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}
	return nil, nil, fmt.Errorf("invalid storage backend %q: want local or gcs", cfg.storageBackend)
}

// modelLoader returns the loader for the configured scanner
func modelLoader(cfg config) func() (scanning.Analyzer, error) {
	return func() (scanning.Analyzer, error) {
		switch cfg.scannerType {
		case "gemini":
			apiKey := cfg.geminiKey
			if apiKey == "" {
				apiKey = os.Getenv("GEMINI_API_KEY")
			}
			if apiKey == "" {
				return nil, errors.New("gemini API key is required: set --gemini-key or GEMINI_API_KEY")
			}
			slog.Info("Initializing Gemini scanner...", "model", cfg.geminiModel)
			return scanning.NewGemini(apiKey, cfg.geminiModel)
		case "ollama":
			slog.Info("Initializing Ollama scanner...", "url", cfg.ollamaURL, "model", cfg.ollamaModel)
			return scanning.NewOllama(cfg.ollamaURL, cfg.ollamaModel)
		}
		return nil, fmt.Errorf("invalid scanner type %q: want gemini or ollama", cfg.scannerType)
	}
}

func run(cfg config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Initializing database...", "backend", cfg.dbBackend, "path", cfg.dbPath)
	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	slog.Info("Initializing storage...", "backend", cfg.storageBackend)
	store, closeStore, err := openStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	defer closeStore()

	// A model that fails to load leaves the server up; uploads answer 503
	model := scanning.Load(modelLoader(cfg))
	defer model.Close()

	pipeline := extraction.NewPipeline(extraction.Config{
		TaskPrompt:      cfg.taskPrompt,
		DefaultCategory: cfg.defaultCategory,
	})

	service := receipt.NewService(db, store, model, scanning.NewDecoder(), pipeline)
	service.SetModelTimeout(cfg.modelTimeout)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.port),
		Handler:           receipt.NewServer(service).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", httpServer.Addr), "version", version)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
