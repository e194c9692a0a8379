package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pdfrag/internal/chunker"
	"pdfrag/internal/config"
	"pdfrag/internal/embedding"
	"pdfrag/internal/llmservice"
	"pdfrag/internal/rag"
	"pdfrag/internal/tui"
	"pdfrag/internal/vectordb"
)

const defaultConfigPath = "./configs/config.yaml"

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", defaultConfigPath, "path to the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatalf("could not load config %s: %v", *configPath, err)
	}

	if cfg.LLM.APIKey() == "" {
		fatalf("no API key found: set the %s environment variable (or put it in a .env file)", cfg.LLM.APIKeyEnv)
	}

	logFile, err := setupLogging(&cfg.Log)
	if err != nil {
		fatalf("could not open log file: %v", err)
	}
	defer logFile.Close()

	store, err := vectordb.New(&cfg.Store)
	if err != nil {
		fatalf("could not open vector store: %v", err)
	}
	defer store.Close()

	embedder, err := embedding.NewClient(&cfg.LLM)
	if err != nil {
		fatalf("could not initialize embedding client: %v", err)
	}

	generator, err := llmservice.NewGenerator(&cfg.LLM, cfg.RAG.HistoryTurns)
	if err != nil {
		fatalf("could not initialize chat client: %v", err)
	}

	splitter, err := chunker.New(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	if err != nil {
		fatalf("invalid chunking config: %v", err)
	}

	session := rag.NewSession(store, embedder, generator, splitter, cfg.RAG.TopK)

	log.Info().Str("store", cfg.Store.Type).Str("chat_model", cfg.LLM.ChatModel).
		Str("embedding_model", cfg.LLM.EmbeddingModel).Msg("starting")

	if _, err := tea.NewProgram(tui.New(session), tea.WithAltScreen()).Run(); err != nil {
		fatalf("%v", err)
	}
}

// setupLogging sends zerolog to a file: the TUI owns the terminal.
func setupLogging(cfg *config.LogConfig) (*os.File, error) {
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(f).With().Timestamp().Caller().Logger()
	return f, nil
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "pdfrag: "+format+"\n", args...)
	os.Exit(1)
}
