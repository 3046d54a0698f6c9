// Package ragtest holds in-process fakes of the langchaingo interfaces used
// by the pipeline.
package ragtest

import (
	"context"
	"errors"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
)

// Topics are the axes of the KeywordEmbedder vector space.
var Topics = []string{"refund", "shipping", "warranty"}

// KeywordEmbedder maps text to keyword counts over Topics, so texts about the
// same topic end up close to each other.
type KeywordEmbedder struct {
	Err           error
	DocumentCalls int
	QueryCalls    int
}

var _ embeddings.Embedder = (*KeywordEmbedder)(nil)

func (e *KeywordEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.DocumentCalls++
	if e.Err != nil {
		return nil, e.Err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = vectorFor(t)
	}
	return out, nil
}

func (e *KeywordEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	e.QueryCalls++
	if e.Err != nil {
		return nil, e.Err
	}
	return vectorFor(text), nil
}

func vectorFor(text string) []float32 {
	text = strings.ToLower(text)
	v := make([]float32, len(Topics))
	for i, topic := range Topics {
		v[i] = float32(strings.Count(text, topic)) + 0.01
	}
	return v
}

// Model is a scripted llms.Model that records the prompts it receives.
type Model struct {
	Answer  string
	Err     error
	Prompts []string
}

var _ llms.Model = (*Model)(nil)

func (m *Model) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	var prompt strings.Builder
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if tc, ok := part.(llms.TextContent); ok {
				prompt.WriteString(tc.Text)
			}
		}
	}
	m.Prompts = append(m.Prompts, prompt.String())
	if m.Err != nil {
		return nil, m.Err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.Answer}}}, nil
}

func (m *Model) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

// Collection records every call made against it.
type Collection struct {
	Results   []schema.Document
	SearchErr error
	AddErr    error
	// FailAddOn makes the n-th AddDocuments call (1-based) fail.
	FailAddOn int

	Recreates int
	Added     [][]schema.Document
	Searches  []string
	TopK      []int
	Closed    bool
	// Calls is the ordered log: "recreate", "add" or "search".
	Calls []string
}

func (c *Collection) Recreate(_ context.Context) error {
	c.Recreates++
	c.Calls = append(c.Calls, "recreate")
	return nil
}

func (c *Collection) AddDocuments(_ context.Context, docs []schema.Document, _ ...vectorstores.Option) ([]string, error) {
	c.Calls = append(c.Calls, "add")
	c.Added = append(c.Added, docs)
	if c.AddErr != nil {
		return nil, c.AddErr
	}
	if c.FailAddOn > 0 && len(c.Added) == c.FailAddOn {
		return nil, errors.New("embedding quota exhausted")
	}
	return make([]string, len(docs)), nil
}

func (c *Collection) SimilaritySearch(_ context.Context, query string, numDocuments int, _ ...vectorstores.Option) ([]schema.Document, error) {
	c.Calls = append(c.Calls, "search")
	c.Searches = append(c.Searches, query)
	c.TopK = append(c.TopK, numDocuments)
	if c.SearchErr != nil {
		return nil, c.SearchErr
	}
	return c.Results, nil
}

func (c *Collection) Close() error {
	c.Closed = true
	return nil
}
