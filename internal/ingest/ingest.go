package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"

	"pdf-rag/internal/config"
	"pdf-rag/internal/db"
	"pdf-rag/internal/embedding"
	"pdf-rag/internal/helper"
	"pdf-rag/internal/parser"
	"pdf-rag/internal/vectorstore"
)

var ErrDocumentNotFound = errors.New("document not found")

// Stats summarises one ingestion run.
type Stats struct {
	Pages   int
	Chunks  int
	Batches int
}

type (
	StoreOpener func(ctx context.Context) (vectorstore.Collection, error)
	LoaderFunc  func(path string) (documentloaders.Loader, error)
	SleepFunc   func(ctx context.Context, d time.Duration) error
)

// Ingestor rebuilds the vector collection from one document.
type Ingestor struct {
	cfg       *config.Config
	openStore StoreOpener
	newLoader LoaderFunc
	splitter  textsplitter.TextSplitter
	sleep     SleepFunc
}

type Option func(*Ingestor)

func WithStoreOpener(f StoreOpener) Option { return func(i *Ingestor) { i.openStore = f } }

func WithLoader(f LoaderFunc) Option { return func(i *Ingestor) { i.newLoader = f } }

func WithSplitter(s textsplitter.TextSplitter) Option { return func(i *Ingestor) { i.splitter = s } }

func WithSleep(f SleepFunc) Option { return func(i *Ingestor) { i.sleep = f } }

func New(cfg *config.Config, opts ...Option) *Ingestor {
	i := &Ingestor{
		cfg:       cfg,
		newLoader: parser.NewLoader,
		splitter:  parser.NewSplitter(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap),
		sleep:     sleepContext,
	}
	i.openStore = i.defaultOpenStore
	for _, o := range opts {
		o(i)
	}
	return i
}

func (i *Ingestor) defaultOpenStore(ctx context.Context) (vectorstore.Collection, error) {
	embedder, err := embedding.NewEmbedder(ctx, &i.cfg.EmbedLLM)
	if err != nil {
		return nil, err
	}
	return vectorstore.Open(ctx, i.cfg, embedder)
}

// Preflight checks the configuration preconditions. It touches neither the
// database nor the embedding API.
func Preflight(cfg *config.Config) error {
	if err := checkDocument(cfg.PDFPath); err != nil {
		return err
	}

	backend := cfg.VectorStore.Backend
	if (backend == config.BackendPGVector || backend == "") && strings.TrimSpace(cfg.Database.URL) == "" {
		return db.ErrMissingDatabaseURL
	}
	return nil
}

// checkDocument reports ErrDocumentNotFound unless path names a readable file.
func checkDocument(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("%w: no path configured", ErrDocumentNotFound)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDocumentNotFound, path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrDocumentNotFound, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDocumentNotFound, path, err)
	}
	return f.Close()
}

// Load reads and splits the configured document.
func (i *Ingestor) Load(ctx context.Context) (pages, chunks []schema.Document, err error) {
	loader, err := i.newLoader(i.cfg.PDFPath)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("path", i.cfg.PDFPath).Msg("Loading document")
	pages, err = loader.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", i.cfg.PDFPath, err)
	}
	log.Info().Int("pages", len(pages)).Msg("Document loaded")

	chunks, err = parser.SplitDocuments(i.splitter, pages)
	if err != nil {
		return nil, nil, fmt.Errorf("split %s: %w", i.cfg.PDFPath, err)
	}
	return pages, chunks, nil
}

// Run rebuilds the collection. The first batch recreates the collection;
// every later batch waits BatchDelay first to stay under the embedding API
// rate limit. A failing batch aborts the run and leaves earlier batches in place.
func (i *Ingestor) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	if err := Preflight(i.cfg); err != nil {
		return stats, err
	}

	pages, chunks, err := i.Load(ctx)
	if err != nil {
		return stats, err
	}
	stats.Pages = len(pages)
	stats.Chunks = len(chunks)

	batches := helper.Batches(chunks, i.cfg.RAG.BatchSize)
	log.Info().Int("chunks", len(chunks)).Int("batches", len(batches)).Msg("Document split")
	if len(batches) == 0 {
		return stats, fmt.Errorf("no text extracted from %s", i.cfg.PDFPath)
	}

	store, err := i.openStore(ctx)
	if err != nil {
		return stats, fmt.Errorf("open vector store: %w", err)
	}
	defer store.Close()

	for n, batch := range batches {
		if n == 0 {
			if err := store.Recreate(ctx); err != nil {
				return stats, fmt.Errorf("recreate collection %s: %w", i.cfg.RAG.Collection, err)
			}
		} else {
			log.Info().Dur("delay", i.cfg.RAG.BatchDelay).Msg("Waiting for the embedding rate limit")
			if err := i.sleep(ctx, i.cfg.RAG.BatchDelay); err != nil {
				return stats, err
			}
		}
		if _, err := store.AddDocuments(ctx, batch); err != nil {
			return stats, fmt.Errorf("batch %d/%d: %w", n+1, len(batches), err)
		}
		stats.Batches++
		log.Info().Msgf("Batch %d/%d: %d chunks saved", n+1, len(batches), len(batch))
	}

	log.Info().Str("collection", i.cfg.RAG.Collection).Msg("Ingestion completed")
	return stats, nil
}

// DryRun loads and splits the document and prints the chunks to w.
func (i *Ingestor) DryRun(ctx context.Context, w io.Writer) (Stats, error) {
	if err := checkDocument(i.cfg.PDFPath); err != nil {
		return Stats{}, err
	}
	pages, chunks, err := i.Load(ctx)
	if err != nil {
		return Stats{}, err
	}
	helper.PrettyPrint(w, chunks)
	return Stats{Pages: len(pages), Chunks: len(chunks)}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
