package chromemdb

import (
	"context"
	"errors"
	"testing"

	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"

	"pdf-rag/internal/models"
	"pdf-rag/internal/ragtest"
)

var corpus = []schema.Document{
	{PageContent: "A refund is issued within 30 days. Refund requests need a receipt.", Metadata: map[string]any{models.MetaPage: 1}},
	{PageContent: "Shipping is free above 50 euros. Shipping takes 5 days.", Metadata: map[string]any{models.MetaPage: 2}},
	{PageContent: "The warranty covers two years. Warranty claims go to support.", Metadata: map[string]any{models.MetaPage: 3}},
}

func newManager(t *testing.T, path, model string, e *ragtest.KeywordEmbedder) *VectorDBManager {
	t.Helper()
	m, err := NewVectorDBManager(path, "manual", false, model, e)
	if err != nil {
		t.Fatalf("NewVectorDBManager() error = %v", err)
	}
	return m
}

func TestSearchRanksClosestFirst(t *testing.T) {
	ctx := context.Background()
	e := &ragtest.KeywordEmbedder{}
	m := newManager(t, "", "kw", e)

	if err := m.Recreate(ctx); err != nil {
		t.Fatalf("Recreate() error = %v", err)
	}
	ids, err := m.AddDocuments(ctx, corpus)
	if err != nil {
		t.Fatalf("AddDocuments() error = %v", err)
	}
	if len(ids) != len(corpus) {
		t.Fatalf("AddDocuments() returned %d ids, want %d", len(ids), len(corpus))
	}
	if e.DocumentCalls != 1 {
		t.Errorf("EmbedDocuments called %d times, want 1 per batch", e.DocumentCalls)
	}

	docs, err := m.SimilaritySearch(ctx, "how long does shipping take?", 10)
	if err != nil {
		t.Fatalf("SimilaritySearch() error = %v", err)
	}
	if len(docs) != len(corpus) {
		t.Fatalf("SimilaritySearch() returned %d docs, want %d (clamped to collection size)", len(docs), len(corpus))
	}
	if docs[0].PageContent != corpus[1].PageContent {
		t.Errorf("top result = %q, want the shipping chunk", docs[0].PageContent)
	}
	if docs[0].Metadata[models.MetaPage] != "2" {
		t.Errorf("metadata page = %v, want \"2\"", docs[0].Metadata[models.MetaPage])
	}
	for i := 1; i < len(docs); i++ {
		if docs[i].Score > docs[i-1].Score {
			t.Errorf("results not ordered by score: %v after %v", docs[i].Score, docs[i-1].Score)
		}
	}
}

func TestSearchTopK(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, "", "kw", &ragtest.KeywordEmbedder{})
	if err := m.Recreate(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := m.AddDocuments(ctx, corpus); err != nil {
		t.Fatal(err)
	}
	docs, err := m.SimilaritySearch(ctx, "warranty", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].PageContent != corpus[2].PageContent {
		t.Errorf("SimilaritySearch(k=1) = %+v", docs)
	}

	docs, err = m.SimilaritySearch(ctx, "warranty", 3, vectorstores.WithScoreThreshold(0.99))
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 {
		t.Errorf("SimilaritySearch(threshold 0.99) returned %d docs, want 1", len(docs))
	}
}

func TestRecreateDropsPreviousDocuments(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, "", "kw", &ragtest.KeywordEmbedder{})

	for run := 0; run < 2; run++ {
		if err := m.Recreate(ctx); err != nil {
			t.Fatal(err)
		}
		if _, err := m.AddDocuments(ctx, corpus[:2]); err != nil {
			t.Fatal(err)
		}
	}
	docs, err := m.SimilaritySearch(ctx, "refund", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 {
		t.Errorf("collection holds %d docs after two runs, want 2", len(docs))
	}
}

func TestSearchMissingCollection(t *testing.T) {
	m := newManager(t, "", "kw", &ragtest.KeywordEmbedder{})
	_, err := m.SimilaritySearch(context.Background(), "refund", 10)
	if !errors.Is(err, models.ErrCollectionNotFound) {
		t.Errorf("SimilaritySearch() error = %v, want ErrCollectionNotFound", err)
	}
	_, err = m.AddDocuments(context.Background(), corpus)
	if !errors.Is(err, models.ErrCollectionNotFound) {
		t.Errorf("AddDocuments() error = %v, want ErrCollectionNotFound", err)
	}
}

func TestEmptyCollectionSearch(t *testing.T) {
	ctx := context.Background()
	e := &ragtest.KeywordEmbedder{}
	m := newManager(t, "", "kw", e)
	if err := m.Recreate(ctx); err != nil {
		t.Fatal(err)
	}
	docs, err := m.SimilaritySearch(ctx, "refund", 10)
	if err != nil || len(docs) != 0 {
		t.Errorf("SimilaritySearch() on empty collection = %v, %v", docs, err)
	}
}

func TestPersistentEmbeddingModelGuard(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	writer := newManager(t, dir, "model-a", &ragtest.KeywordEmbedder{})
	if err := writer.Recreate(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := writer.AddDocuments(ctx, corpus); err != nil {
		t.Fatal(err)
	}

	same := newManager(t, dir, "model-a", &ragtest.KeywordEmbedder{})
	docs, err := same.SimilaritySearch(ctx, "refund", 2)
	if err != nil {
		t.Fatalf("reopened SimilaritySearch() error = %v", err)
	}
	if len(docs) != 2 || docs[0].PageContent != corpus[0].PageContent {
		t.Errorf("reopened SimilaritySearch() = %+v", docs)
	}

	other := newManager(t, dir, "model-b", &ragtest.KeywordEmbedder{})
	_, err = other.SimilaritySearch(ctx, "refund", 2)
	if !errors.Is(err, models.ErrEmbeddingModelMismatch) {
		t.Errorf("SimilaritySearch() with another model error = %v, want ErrEmbeddingModelMismatch", err)
	}
}

func TestAddDocumentsEmbedderFailure(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, "", "kw", &ragtest.KeywordEmbedder{Err: errors.New("rate limited")})
	if err := m.Recreate(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := m.AddDocuments(ctx, corpus); err == nil {
		t.Error("AddDocuments() expected embedder error")
	}
}
