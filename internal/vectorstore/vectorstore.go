package vectorstore

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/vectorstores"

	"pdf-rag/internal/chromemdb"
	"pdf-rag/internal/config"
	"pdf-rag/internal/db"
)

// Collection is a named vector collection that ingestion rebuilds and
// queries search.
type Collection interface {
	vectorstores.VectorStore
	// Recreate drops the collection, if present, and creates it empty.
	Recreate(ctx context.Context) error
	Close() error
}

var (
	_ Collection = (*db.Store)(nil)
	_ Collection = (*chromemdb.VectorDBManager)(nil)
)

// Open returns a handle on the configured collection for the configured backend.
func Open(ctx context.Context, cfg *config.Config, embedder embeddings.Embedder) (Collection, error) {
	switch cfg.VectorStore.Backend {
	case config.BackendPGVector, "":
		store, err := db.Open(ctx, &cfg.Database, cfg.RAG.Collection, cfg.EmbedLLM.Model, embedder)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendChromem:
		m, err := chromemdb.NewVectorDBManager(cfg.VectorStore.Path, cfg.RAG.Collection, cfg.VectorStore.Compress, cfg.EmbedLLM.Model, embedder)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown vector store backend %q", cfg.VectorStore.Backend)
	}
}
