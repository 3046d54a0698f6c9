package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"
	"github.com/tmc/langchaingo/schema"

	"pdf-rag/internal/config"
	"pdf-rag/internal/embedding"
	"pdf-rag/internal/llmservice"
	"pdf-rag/internal/models"
	"pdf-rag/internal/vectorstore"
)

// Kind classifies the outcome of a query.
type Kind int

const (
	KindAnswer Kind = iota
	KindConnectivity
	KindSearch
	KindGeneration
)

func (k Kind) String() string {
	switch k {
	case KindAnswer:
		return "answer"
	case KindConnectivity:
		return "connectivity_error"
	case KindSearch:
		return "search_error"
	case KindGeneration:
		return "generation_error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Result is what a query produced. Err is set for every kind but KindAnswer.
type Result struct {
	Kind    Kind
	Answer  string
	Sources []schema.Document
	Err     error
}

// String returns the model answer or the fixed user-facing message for the
// failure kind.
func (r Result) String() string {
	switch r.Kind {
	case KindAnswer:
		return r.Answer
	case KindConnectivity:
		return models.ConnectivityErrorMessage
	case KindSearch:
		return models.SearchErrorMessage
	default:
		return models.GenerationErrorMessage
	}
}

type (
	StoreOpener  func(ctx context.Context) (vectorstore.Collection, error)
	ModelFactory func(ctx context.Context) (llms.Model, error)
)

type RAG struct {
	cfg       *config.Config
	openStore StoreOpener
	newModel  ModelFactory
	prompt    prompts.PromptTemplate
}

type Option func(*RAG)

func WithStoreOpener(f StoreOpener) Option { return func(r *RAG) { r.openStore = f } }

func WithModelFactory(f ModelFactory) Option { return func(r *RAG) { r.newModel = f } }

func NewRAG(cfg *config.Config, opts ...Option) *RAG {
	r := &RAG{
		cfg:    cfg,
		prompt: NewPromptTemplate(),
	}
	r.openStore = r.defaultOpenStore
	r.newModel = func(ctx context.Context) (llms.Model, error) {
		return llmservice.NewModel(ctx, &cfg.LLM)
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *RAG) defaultOpenStore(ctx context.Context) (vectorstore.Collection, error) {
	embedder, err := embedding.NewEmbedder(ctx, &r.cfg.EmbedLLM)
	if err != nil {
		return nil, err
	}
	return vectorstore.Open(ctx, r.cfg, embedder)
}

// NewPromptTemplate returns the grounded-answer template with the
// "context" and "question" inputs.
func NewPromptTemplate() prompts.PromptTemplate {
	return prompts.PromptTemplate{
		Template:       models.PromptTemplate,
		InputVariables: []string{"context", "question"},
		TemplateFormat: prompts.TemplateFormatGoTemplate,
	}
}

// Query answers question from the configured collection. Every failure is
// reported through the Result; Query never returns an error.
func (r *RAG) Query(ctx context.Context, question string) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic", p).Msg("Query panicked")
			res = Result{Kind: KindGeneration, Err: fmt.Errorf("panic: %v", p)}
		}
	}()

	store, err := r.openStore(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to connect to the vector store")
		return Result{Kind: KindConnectivity, Err: err}
	}
	defer store.Close()

	docs, err := store.SimilaritySearch(ctx, question, r.cfg.RAG.TopK)
	if err != nil {
		log.Error().Err(err).Msg("Semantic search failed")
		return Result{Kind: KindSearch, Err: err}
	}
	log.Debug().Int("results", len(docs)).Msg("Retrieved context")

	prompt, err := r.BuildPrompt(docs, question)
	if err != nil {
		log.Error().Err(err).Msg("Failed to build prompt")
		return Result{Kind: KindGeneration, Sources: docs, Err: err}
	}

	model, err := r.newModel(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create the language model")
		return Result{Kind: KindGeneration, Sources: docs, Err: err}
	}
	answer, err := llmservice.GenerateContent(ctx, model, prompt)
	if err != nil {
		log.Error().Err(err).Msg("Failed to call the language model")
		return Result{Kind: KindGeneration, Sources: docs, Err: err}
	}
	return Result{Kind: KindAnswer, Answer: answer, Sources: docs}
}

// BuildPrompt joins the chunk texts in retrieval order and fills the template.
func (r *RAG) BuildPrompt(docs []schema.Document, question string) (string, error) {
	parts := make([]string, len(docs))
	for i, doc := range docs {
		parts[i] = doc.PageContent
	}
	return r.prompt.Format(map[string]any{
		"context":  strings.Join(parts, models.ContextSeparator),
		"question": question,
	})
}
