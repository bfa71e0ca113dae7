package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/auditkit/evidence-pipeline/internal/config"
	"github.com/auditkit/evidence-pipeline/internal/core/ports"
	"github.com/auditkit/evidence-pipeline/internal/core/usecase"
	graphneo4j "github.com/auditkit/evidence-pipeline/internal/infrastructure/graph/neo4j"
	lexicalpg "github.com/auditkit/evidence-pipeline/internal/infrastructure/lexical/postgres"
	"github.com/auditkit/evidence-pipeline/internal/infrastructure/llm/ollama"
	"github.com/auditkit/evidence-pipeline/internal/infrastructure/queue/nats"
	"github.com/auditkit/evidence-pipeline/internal/infrastructure/rerank/tei"
	"github.com/auditkit/evidence-pipeline/internal/infrastructure/repository/postgres"
	"github.com/auditkit/evidence-pipeline/internal/infrastructure/resilience"
	"github.com/auditkit/evidence-pipeline/internal/infrastructure/vector/qdrant"
)

type App struct {
	Config config.Config

	AuditBus *nats.AuditBus
	Chunks   ports.ChunkStore
	AuditLog ports.AuditLogStore
	Pipeline ports.EvidenceQueryService
	Verifier ports.AnswerVerifier

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	chunkRepo := postgres.NewChunkRepository(db)
	if err := chunkRepo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure chunk schema: %w", err)
	}
	auditRepo := postgres.NewAuditRepository(db)
	if err := auditRepo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure audit schema: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	auditBus, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init audit bus: %w", err)
	}

	embedder := ollama.NewResilientEmbedder(
		ollama.NewEmbedder(ollama.New(cfg.OllamaURL, cfg.OllamaEmbedModel)),
		executor,
	)
	denseRetriever := qdrant.NewResilientRetriever(
		qdrant.New(cfg.QdrantURL, cfg.QdrantCollection),
		executor,
	)
	sparseRetriever := lexicalpg.NewResilientRetriever(lexicalpg.NewRetriever(db), executor)
	reranker := tei.NewResilientClient(tei.New(cfg.RerankURL), executor)

	retrievers := []ports.Retriever{denseRetriever, sparseRetriever}

	var graphRetriever *graphneo4j.Retriever
	if cfg.Neo4jEnabled {
		graphRetriever, err = graphneo4j.New(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, cfg.Neo4jIndex)
		if err != nil {
			return nil, fmt.Errorf("init graph retriever: %w", err)
		}
		retrievers = append(retrievers, graphneo4j.NewResilientRetriever(graphRetriever, executor))
	}

	access := usecase.NewAccessControl(usecase.DefaultAccessConfig(), auditBus)
	pipeline := usecase.NewEvidencePipeline(
		access,
		retrievers,
		embedder,
		reranker,
		chunkRepo,
		logger,
		usecase.PipelineConfig{
			RRFK:             cfg.RRFK,
			DedupeWindow:     cfg.DedupeWindow,
			DedupeSimilarity: cfg.DedupeSimilarity,
			MaxPerSource:     cfg.MaxPerSource,
			CandidateBudget:  cfg.RerankCandidates,
			FinalBudget:      cfg.EvidenceBudget,
			TrustEpsilon:     cfg.TrustEpsilon,
			DefaultKDense:    cfg.DefaultKDense,
			DefaultKSparse:   cfg.DefaultKSparse,
			RetrieverTimeout: time.Duration(cfg.RetrieverTimeoutMS) * time.Millisecond,
			RerankTimeout:    time.Duration(cfg.RerankTimeoutMS) * time.Millisecond,
		},
	)
	verifier := usecase.NewGroundingVerifier(nil, nil)

	return &App{
		Config: cfg,

		AuditBus: auditBus,
		Chunks:   chunkRepo,
		AuditLog: auditRepo,
		Pipeline: pipeline,
		Verifier: verifier,

		closeFn: func() {
			auditBus.Close()
			if graphRetriever != nil {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = graphRetriever.Close(closeCtx)
			}
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
