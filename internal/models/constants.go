package models

const (
	ContextSeparator = "\n"

	// RefusalMessage is the exact answer the model is told to give when the
	// context does not contain the answer.
	RefusalMessage = "I don't have the necessary information to answer your question."

	ConnectivityErrorMessage = "Error: could not connect to the vector database. Check that PostgreSQL is running."
	SearchErrorMessage       = "Error: the semantic search failed."
	GenerationErrorMessage   = "Error: failed to generate an answer. Check your GOOGLE_API_KEY."

	// metadata keys stored with every chunk
	MetaSource         = "source"
	MetaPage           = "page"
	MetaChunk          = "chunk"
	MetaEmbeddingModel = "embedding_model"
)

var (
	PromptTemplate = `
CONTEXT:
{{.context}}

RULES:
- Answer only from the CONTEXT.
- If the information is not explicitly in the CONTEXT, answer:
  "` + RefusalMessage + `"
- Never make things up or use outside knowledge.
- Never give opinions or interpretations beyond what is written.

EXAMPLES OF OUT-OF-CONTEXT QUESTIONS:
Question: "What is the capital of France?"
Answer: "` + RefusalMessage + `"

Question: "How many customers did we have in 2024?"
Answer: "` + RefusalMessage + `"

Question: "Do you think this is good or bad?"
Answer: "` + RefusalMessage + `"

USER QUESTION:
{{.question}}

ANSWER THE "USER QUESTION"
`
)
