package chromemdb

import (
	"context"
	"fmt"
	"runtime"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"

	"pdf-rag/internal/helper"
	"pdf-rag/internal/models"
)

// VectorDBManager encapsulates the chromem-go database operations for one
// named collection.
type VectorDBManager struct {
	db             *chromem.DB
	name           string
	embedder       embeddings.Embedder
	embeddingModel string
	dbPath         string
}

var _ vectorstores.VectorStore = (*VectorDBManager)(nil)

// NewVectorDBManager opens a persistent database under dbPath, or an
// in-memory one when dbPath is empty.
func NewVectorDBManager(dbPath, collectionName string, compress bool, embeddingModel string, embedder embeddings.Embedder) (*VectorDBManager, error) {
	var db *chromem.DB
	if dbPath == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(dbPath, compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %v", err)
		}
	}

	return &VectorDBManager{
		db:             db,
		name:           collectionName,
		embedder:       embedder,
		embeddingModel: embeddingModel,
		dbPath:         dbPath,
	}, nil
}

func (m *VectorDBManager) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return m.embedder.EmbedQuery(ctx, text)
	}
}

// Recreate deletes the collection and creates it again empty.
func (m *VectorDBManager) Recreate(_ context.Context) error {
	if err := m.db.DeleteCollection(m.name); err != nil {
		return fmt.Errorf("failed to drop collection: %v", err)
	}
	meta := map[string]string{models.MetaEmbeddingModel: m.embeddingModel}
	if _, err := m.db.CreateCollection(m.name, meta, m.embeddingFunc()); err != nil {
		return fmt.Errorf("failed to create collection: %v", err)
	}
	log.Debug().Str("collection", m.name).Str("path", m.dbPath).Msg("Recreated chromem collection")
	return nil
}

func (m *VectorDBManager) collection() (*chromem.Collection, error) {
	c := m.db.GetCollection(m.name, m.embeddingFunc())
	if c == nil {
		return nil, fmt.Errorf("%w: %s", models.ErrCollectionNotFound, m.name)
	}
	return c, nil
}

// AddDocuments embeds the batch in one call and adds it to the collection.
func (m *VectorDBManager) AddDocuments(ctx context.Context, docs []schema.Document, options ...vectorstores.Option) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	c, err := m.collection()
	if err != nil {
		return nil, err
	}
	embedder := m.embedder
	if opts := parseOptions(options); opts.Embedder != nil {
		embedder = opts.Embedder
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.PageContent
	}
	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(docs))
	}

	ids := make([]string, len(docs))
	chromemDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		id, err := helper.GenerateUUID()
		if err != nil {
			return nil, err
		}
		ids[i] = id
		chromemDocs[i] = chromem.Document{
			ID:        id,
			Content:   doc.PageContent,
			Metadata:  stringMetadata(doc.Metadata, m.embeddingModel),
			Embedding: vectors[i],
		}
	}

	if err := c.AddDocuments(ctx, chromemDocs, runtime.NumCPU()); err != nil {
		return nil, fmt.Errorf("failed to add documents: %v", err)
	}
	return ids, nil
}

// SimilaritySearch returns up to numDocuments results, most similar first.
func (m *VectorDBManager) SimilaritySearch(ctx context.Context, query string, numDocuments int, options ...vectorstores.Option) ([]schema.Document, error) {
	c, err := m.collection()
	if err != nil {
		return nil, err
	}
	opts := parseOptions(options)
	embedder := m.embedder
	if opts.Embedder != nil {
		embedder = opts.Embedder
	}

	// chromem rejects nResults above the document count
	n := min(numDocuments, c.Count())
	if n <= 0 {
		return nil, nil
	}

	vector, err := embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	results, err := c.QueryEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %v", err)
	}

	docs := make([]schema.Document, 0, len(results))
	for _, r := range results {
		if stored := r.Metadata[models.MetaEmbeddingModel]; stored != "" && stored != m.embeddingModel {
			return nil, fmt.Errorf("%w: stored %q, configured %q", models.ErrEmbeddingModelMismatch, stored, m.embeddingModel)
		}
		if opts.ScoreThreshold > 0 && r.Similarity < opts.ScoreThreshold {
			continue
		}
		meta := make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			meta[k] = v
		}
		docs = append(docs, schema.Document{PageContent: r.Content, Metadata: meta, Score: r.Similarity})
	}
	return docs, nil
}

func (m *VectorDBManager) Close() error {
	return nil
}

// chromem metadata is string-only
func stringMetadata(meta map[string]any, embeddingModel string) map[string]string {
	out := make(map[string]string, len(meta)+1)
	for k, v := range meta {
		out[k] = fmt.Sprint(v)
	}
	out[models.MetaEmbeddingModel] = embeddingModel
	return out
}

func parseOptions(options []vectorstores.Option) vectorstores.Options {
	var opts vectorstores.Options
	for _, o := range options {
		o(&opts)
	}
	return opts
}
