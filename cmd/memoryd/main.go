// cmd/memoryd is the entry point for the memory subsystem daemon. It wires
// the observation buffer, memory store, vector index, relationship graph,
// categorical stores, and consolidation engine behind the memory service,
// then serves JSON-RPC 2.0 tool calls on stdin/stdout.
//
// Startup sequence:
//  1. Load .env (if present) and configuration from MEMOS_ environment
//     variables plus the optional MEMOS_CONFIG YAML file.
//  2. Construct the embedding and summarization collaborators: an
//     OpenAI-compatible client when an API key is configured, deterministic
//     local fallbacks otherwise.
//  3. Open the optional snapshot store (SQLite or pgvector) and the optional
//     remote graph tier (Postgres).
//  4. Assemble the memory service and the tool gateway.
//  5. Optionally start the WebSocket observation intake endpoint.
//  6. Serve JSON-RPC 2.0 requests from stdin, writing responses to stdout.
//
// CRITICAL: ALL logging MUST go to stderr.  Any bytes written to stdout that
// are not valid JSON-RPC 2.0 response frames will corrupt the protocol.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/jinruoxinchen/one-unlimit-os/internal/api/mcp"
	"github.com/jinruoxinchen/one-unlimit-os/internal/config"
	"github.com/jinruoxinchen/one-unlimit-os/internal/engine"
	"github.com/jinruoxinchen/one-unlimit-os/internal/graph"
	"github.com/jinruoxinchen/one-unlimit-os/internal/index"
	"github.com/jinruoxinchen/one-unlimit-os/internal/intake"
	"github.com/jinruoxinchen/one-unlimit-os/internal/llm"
	"github.com/jinruoxinchen/one-unlimit-os/internal/observation"
	"github.com/jinruoxinchen/one-unlimit-os/internal/persist"
	"github.com/jinruoxinchen/one-unlimit-os/internal/store"
)

func main() {
	// Redirect the default logger to stderr so that any incidental log calls
	// (including from imported packages) never pollute the stdout stream.
	log.SetOutput(os.Stderr)
	log.SetPrefix("memoryd: ")
	log.SetFlags(log.LstdFlags)

	// Best effort: a missing .env file is the normal case in production.
	if err := godotenv.Load(); err == nil {
		log.Println("loaded environment from .env")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	// Root context cancelled on SIGINT / SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("received shutdown signal")
		cancel()
	}()

	embedder, summarizer := buildCollaborators(cfg)

	snapshotter, err := buildSnapshotter(cfg)
	if err != nil {
		log.Fatalf("failed to open snapshot store: %v", err)
	}
	if snapshotter != nil {
		defer snapshotter.Close()
	}

	memories, err := store.NewMemoryStore(snapshotter)
	if err != nil {
		log.Fatalf("failed to create memory store: %v", err)
	}

	vectors := index.NewVectorIndex(embedder, index.Options{
		QueueSize:    cfg.Embedding.QueueSize,
		RatePerSec:   cfg.Embedding.RatePerSec,
		EmbedTimeout: cfg.Embedding.Timeout,
		CacheSize:    cfg.Embedding.CacheSize,
	})

	relations := buildGraph(cfg)
	defer relations.Close()

	buffer := observation.NewBuffer(cfg.Observation.BufferSize)

	consolidator := engine.NewConsolidator(memories, vectors, relations, summarizer,
		cfg.Consolidation, cfg.Summarizer.Timeout)

	service := engine.NewService(memories, vectors, relations, buffer, consolidator)
	defer service.Close()

	// Optional WebSocket intake for UI/system event producers.
	if cfg.Intake.Enabled {
		intakeSrv, err := intake.NewServer(cfg.Intake.Addr, service)
		if err != nil {
			log.Fatalf("failed to bind intake endpoint on %s: %v", cfg.Intake.Addr, err)
		}
		go func() {
			log.Printf("observation intake listening on ws://%s/observations", intakeSrv.Addr())
			if err := intakeSrv.Serve(); err != nil {
				log.Printf("intake server stopped: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := intakeSrv.Shutdown(shutdownCtx); err != nil {
				log.Printf("intake shutdown error: %v", err)
			}
		}()
	}

	srv := mcp.NewServer(service)
	transport := mcp.NewStdioTransport(srv, os.Stdin, os.Stdout)

	log.Println("ready, serving JSON-RPC 2.0 on stdin/stdout")

	if err := transport.Serve(ctx); err != nil {
		// Context cancellation lands here too; informational only.
		log.Printf("transport stopped: %v", err)
	}
}

// buildCollaborators selects the embedding and summarization backends. An
// OpenAI-compatible client is used when configured with an API key; otherwise
// both concerns fall back to deterministic local implementations.
func buildCollaborators(cfg *config.Config) (llm.Embedder, llm.Summarizer) {
	if cfg.Embedding.Provider == "openai" && cfg.Embedding.APIKey != "" {
		client, err := llm.NewOpenAIClient(llm.OpenAIConfig{
			APIKey:         cfg.Embedding.APIKey,
			BaseURL:        cfg.Embedding.BaseURL,
			EmbeddingModel: cfg.Embedding.Model,
			SummaryModel:   cfg.Summarizer.Model,
			Dimension:      cfg.Embedding.Dimension,
		})
		if err == nil {
			log.Printf("using OpenAI-compatible collaborators (embedding model %s)", cfg.Embedding.Model)
			return client, client
		}
		log.Printf("OpenAI client unavailable, using local fallbacks: %v", err)
	} else {
		log.Println("no embedding endpoint configured, using local fallbacks")
	}
	return llm.NewHashEmbedder(cfg.Embedding.Dimension), &llm.FallbackSummarizer{}
}

// buildSnapshotter opens the configured snapshot store, or returns nil when
// persistence is disabled.
func buildSnapshotter(cfg *config.Config) (persist.Snapshotter, error) {
	switch cfg.Persistence.Driver {
	case "":
		return nil, nil
	case "sqlite":
		log.Printf("snapshotting memories to SQLite at %s", cfg.Persistence.DSN)
		return persist.NewSQLiteSnapshotter(cfg.Persistence.DSN)
	case "pgvector":
		log.Println("snapshotting memories to Postgres/pgvector")
		return persist.NewPgvectorSnapshotter(cfg.Persistence.DSN, cfg.Embedding.Dimension)
	default:
		log.Printf("unknown persistence driver %q, snapshotting disabled", cfg.Persistence.Driver)
		return nil, nil
	}
}

// buildGraph assembles the relationship graph, attaching the remote Postgres
// tier when a DSN is configured. Remote failures degrade to local-only.
func buildGraph(cfg *config.Config) *graph.Graph {
	if cfg.Graph.RemoteDSN == "" {
		return graph.New()
	}
	remote, err := graph.NewPostgresTier(cfg.Graph.RemoteDSN)
	if err != nil {
		log.Printf("remote graph tier unavailable, running local-only: %v", err)
		return graph.New()
	}
	log.Println("mirroring relationship graph to Postgres")
	return graph.New(graph.WithRemoteTier(remote, cfg.Graph.RemoteTimeout))
}
