package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/snapsolve/snapsolve/internal/config"
	"github.com/snapsolve/snapsolve/internal/core"
	"github.com/snapsolve/snapsolve/internal/core/cache"
	db "github.com/snapsolve/snapsolve/internal/core/database"
	"github.com/snapsolve/snapsolve/internal/core/llm"
	objectclient "github.com/snapsolve/snapsolve/internal/core/object-client"
	"github.com/snapsolve/snapsolve/internal/core/session"
	"github.com/snapsolve/snapsolve/internal/services"
)

type App struct {
	DBClient    core.DbClient
	LLM         *llm.GeminiLLM
	ClassifyLLM *llm.GeminiLLM
	Embedder    *llm.GeminiEmbedder
	Server      *Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	log.Println("Database initialized and ready.")

	llmProvider, err := llm.NewGeminiLLM(appCtx, cfg.AIAPIKey, cfg.GenModel)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the LLM provider, %w", err)
	}

	// Classification runs on its own, usually cheaper, model.
	classifyLLM, err := llm.NewGeminiLLM(appCtx, cfg.AIAPIKey, cfg.ClassifyModel)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the classification model, %w", err)
	}

	embedder, err := llm.NewGeminiEmbedder(appCtx, cfg.AIAPIKey, cfg.EmbedModel)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the embedder, %w", err)
	}

	var storage core.ObjectClient
	if cfg.ArchiveEnabled() {
		storage, err = objectclient.NewS3Client(appCtx, cfg)
		if err != nil {
			return nil, err
		}
		log.Println("Object client initialized and ready.")
	} else {
		log.Println("S3 archival not configured; originals stay in the database only.")
	}

	ttlCache := cache.New(cache.Config{TTL: time.Duration(cfg.CacheTTLSecs) * time.Second})
	sessions := session.NewManager(session.Config{SigningKey: []byte(cfg.SessionSecret)})

	userService := services.NewUserService(dbClient)
	problemService := services.NewProblemService(dbClient, ttlCache)
	classifierService := services.NewClassifierService(dbClient, classifyLLM)
	embeddingService := services.NewEmbeddingService(dbClient, embedder)
	analysisService := services.NewAnalysisService(
		dbClient, problemService, classifierService, embeddingService,
		llmProvider, storage, cfg.BucketName, cfg.MaxUploadBytes,
	)

	server := NewServer(cfg, sessions, ttlCache, userService, problemService, classifierService, embeddingService, analysisService)

	return &App{DBClient: dbClient, LLM: llmProvider, ClassifyLLM: classifyLLM, Embedder: embedder, Server: server}, nil
}

func (a *App) Close() {
	if a.LLM != nil {
		_ = a.LLM.Close()
	}
	if a.ClassifyLLM != nil {
		_ = a.ClassifyLLM.Close()
	}
	if a.Embedder != nil {
		_ = a.Embedder.Close()
	}
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
}
