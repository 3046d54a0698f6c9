package parser

import (
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"

	"pdf-rag/internal/models"
)

// NewSplitter returns the recursive character splitter used for ingestion.
// Sizes are measured in runes.
func NewSplitter(chunkSize, chunkOverlap int) textsplitter.TextSplitter {
	return textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
	)
}

// SplitDocuments splits every page and numbers the chunks across the whole
// document. Each chunk gets its own copy of the page metadata.
func SplitDocuments(splitter textsplitter.TextSplitter, docs []schema.Document) ([]schema.Document, error) {
	var chunks []schema.Document
	for _, doc := range docs {
		texts, err := splitter.SplitText(doc.PageContent)
		if err != nil {
			return nil, err
		}
		for _, t := range texts {
			meta := make(map[string]any, len(doc.Metadata)+1)
			for k, v := range doc.Metadata {
				meta[k] = v
			}
			meta[models.MetaChunk] = len(chunks) + 1
			chunks = append(chunks, schema.Document{PageContent: t, Metadata: meta})
		}
	}
	return chunks, nil
}
