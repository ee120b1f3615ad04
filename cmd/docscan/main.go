package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/docscan/internal/capture"
	"github.com/zombor/docscan/internal/document"
	"github.com/zombor/docscan/internal/nlp"
	"github.com/zombor/docscan/internal/pipeline"
	"github.com/zombor/docscan/internal/remote"
	"github.com/zombor/docscan/internal/scanning"
	"github.com/zombor/docscan/internal/server"
	"github.com/zombor/docscan/internal/settings"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("docscan")
	var (
		port          = fs.IntLong("port", 8080, "HTTP server port")
		settingsPath  = fs.StringLong("db", "docscan.db", "Settings database file path")
		ocrType       = fs.StringLong("ocr", "gemini", "Text recognition backend: 'gemini', 'ollama' or 'none'")
		geminiKey     = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel   = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		ollamaURL     = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel   = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, qwen2-vl)")
		ocrRate       = fs.Float64Long("ocr-rate", 1, "Maximum text recognition requests per second (0 disables the limit)")
		languages     = fs.StringLong("languages", "", "Comma separated recognition languages such as en-US,de-DE (default: all supported)")
		cameraDir     = fs.StringLong("camera-dir", "", "Spool directory with back/ and front/ frame folders (optional)")
		thumbnailSize = fs.IntLong("thumbnail-size", pipeline.DefaultThumbnailSize, "Longest side of thumbnails in pixels")
		remoteURL     = fs.StringLong("remote-url", "", "Base URL of the docscan server hosting the scan store")
		remoteUser    = fs.StringLong("remote-user", "", "Basic auth username for the remote scan store")
		remotePass    = fs.StringLong("remote-pass", "", "Basic auth password for the remote scan store")
		hostDB        = fs.StringLong("host-db", "", "Host a scan store for other instances in this database (optional)")
		hostStorage   = fs.StringLong("host-storage", "./scans", "Image directory of the hosted scan store")
		metricsOn     = fs.BoolLong("metrics", "Expose Prometheus metrics on /metrics")
		authUser      = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass      = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		showVersion   = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("DOCSCAN"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	// Initialize settings
	slog.Info("Initializing settings...", "path", *settingsPath)
	settingsRepo, err := settings.NewBoltRepository(*settingsPath)
	if err != nil {
		slog.Error("Failed to initialize settings database", "error", err)
		os.Exit(1)
	}
	defer settingsRepo.Close()

	manager, err := settings.NewManager(settingsRepo)
	if err != nil {
		slog.Error("Failed to load settings", "error", err)
		os.Exit(1)
	}

	// Initialize text recognition based on type
	var recognizer scanning.Recognizer
	switch *ocrType {
	case "gemini":
		// Get Gemini API key from flag or environment
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini recognizer...", "model", *geminiModel)
		recognizer, err = scanning.NewGemini(apiKey, *geminiModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
	case "ollama":
		slog.Info("Initializing Ollama recognizer...", "url", *ollamaURL, "model", *ollamaModel)
		recognizer, err = scanning.NewOllama(*ollamaURL, *ollamaModel)
		if err != nil {
			slog.Error("Failed to initialize Ollama", "error", err)
			os.Exit(1)
		}
	case "none":
		slog.Warn("Text recognition disabled; documents will have no text")
		recognizer = scanning.Nop{}
	default:
		slog.Error("Invalid recognizer type", "type", *ocrType, "valid", "gemini, ollama or none")
		os.Exit(1)
	}
	if *ocrRate > 0 {
		recognizer = scanning.NewLimited(recognizer, *ocrRate, 1)
	}
	defer recognizer.Close()

	// Initialize the pipeline
	store := document.NewStore()
	cfg := pipeline.DefaultConfig()
	cfg.ThumbnailSize = *thumbnailSize
	if *languages != "" {
		cfg.Languages = strings.Split(*languages, ",")
	}
	proc := pipeline.New(store, recognizer, nlp.NewWhatlangDetector(cfg.Languages...), nlp.NewTagger(nlp.ProseEntities{}))
	proc.SetConfig(cfg)
	proc.ApplySettings(manager.Current())
	manager.OnChange(proc.ApplySettings)
	proc.SetFolders(manager)

	opts := server.Options{
		Store:         store,
		Pipeline:      proc,
		Settings:      manager,
		ThumbnailSize: *thumbnailSize,
		BasicAuth: server.BasicAuth{
			Username: *authUser,
			Password: *authPass,
		},
	}

	if *metricsOn {
		metrics := pipeline.NewMetrics()
		proc.SetMetrics(metrics)
		opts.Metrics = metrics.Handler()
	}

	// Initialize the camera
	if *cameraDir != "" {
		slog.Info("Initializing camera...", "spool", *cameraDir)
		hw, err := capture.NewSpoolHardware(*cameraDir)
		if err != nil {
			slog.Error("Failed to initialize camera", "error", err)
			os.Exit(1)
		}
		device := capture.NewDevice(hw)
		defer device.Close()
		opts.Camera = device
	}

	// Initialize the hosted scan store
	if *hostDB != "" {
		slog.Info("Initializing hosted scan store...", "db", *hostDB, "storage", *hostStorage)
		storage, err := remote.NewLocalStorage(*hostStorage)
		if err != nil {
			slog.Error("Failed to initialize storage", "error", err)
			os.Exit(1)
		}
		host, err := remote.NewBoltStore(*hostDB, storage)
		if err != nil {
			slog.Error("Failed to initialize hosted scan store", "error", err)
			os.Exit(1)
		}
		defer host.Close()
		opts.ScanHost = host
	}

	// Initialize sync with a remote scan store
	if *remoteURL != "" {
		slog.Info("Initializing remote scan store...", "url", *remoteURL)
		client, err := remote.NewHTTPStore(*remoteURL, *remoteUser, *remotePass)
		if err != nil {
			slog.Error("Failed to initialize remote scan store", "error", err)
			os.Exit(1)
		}
		syncer := remote.NewSyncer(remote.NewResilient(client, remote.DefaultPolicy()), store)
		proc.SetUploader(syncer)
		opts.Syncer = syncer
	}

	srv := server.NewServer(opts)

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := srv.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}
	current := manager.Current()
	slog.Info("Settings loaded",
		"cloud_sync", current.CloudSync,
		"edge_detection", current.EdgeDetection,
		"smart_folders", len(current.SmartFolders),
	)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Shutdown error", "error", err)
	}
}
