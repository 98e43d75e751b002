package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pdf-rag/internal/chromemdb"
	"pdf-rag/internal/config"
	"pdf-rag/internal/db"
	"pdf-rag/internal/embedding"
	"pdf-rag/internal/handler"
	"pdf-rag/internal/index"
	"pdf-rag/internal/llmservice"
	"pdf-rag/internal/parser"
	"pdf-rag/internal/rag"
)

const configFilePath = "./configs/config.yaml"

func main() {
	configPath := flag.String("config", configFilePath, "Path to the YAML config file")
	addr := flag.String("addr", "", "Listen address, overrides server.addr")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("Error loading .env")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	setupLogger(&cfg.Log)
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid config")
	}

	log.Debug().
		Str("llm_model", cfg.LLM.Model).
		Str("embed_provider", cfg.EmbedLLM.Provider).
		Str("embed_model", cfg.EmbedLLM.Model).
		Str("index", cfg.Index.Backend).
		Int("chunk_size", cfg.RAG.ChunkSize).
		Int("top_k", cfg.RAG.TopK).
		Msg("Loaded config")

	ctx := context.Background()

	embedder, err := embedding.New(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}

	chatModel, err := llmservice.NewChatModel(&cfg.LLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing chat model")
	}

	newIndex, closeIndex, err := indexFactory(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing vector index")
	}
	defer closeIndex()

	svc := rag.NewRAG(
		parser.NewPDFExtractor(),
		embedder,
		newIndex,
		llmservice.NewComposer(chatModel, &cfg.LLM),
		&cfg.RAG,
	)

	gin.SetMode(cfg.Server.Mode)
	r := handler.NewRouter(handler.NewDocumentHandler(svc, cfg.Server.MaxUploadMB<<20))

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
}

func setupLogger(cfg *config.LogConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.JSON {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()
}

// indexFactory returns the constructor for the configured vector index and a
// cleanup func.
func indexFactory(ctx context.Context, cfg *config.Config) (index.Factory, func(), error) {
	switch cfg.Index.Backend {
	case "chromem":
		return func() (index.Index, error) { return chromemdb.NewIndex(), nil }, func() {}, nil
	case "pgvector":
		dbInstance := db.NewDB(db.ConnectDB(&cfg.Database), cfg.Database.Debug)
		if err := db.InitDB(ctx, dbInstance, cfg.Database.Table); err != nil {
			dbInstance.Close()
			return nil, nil, err
		}
		factory := func() (index.Index, error) { return db.NewIndex(dbInstance, cfg.Database.Table), nil }
		return factory, func() { dbInstance.Close() }, nil
	default:
		return func() (index.Index, error) { return index.NewFlat(), nil }, func() {}, nil
	}
}
