package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendPGVector = "pgvector"
	BackendChromem  = "chromem"

	ProviderGoogleAI = "googleai"
	ProviderOpenAI   = "openai"
	ProviderOllama   = "ollama"

	DefaultChunkSize      = 1000
	DefaultChunkOverlap   = 150
	DefaultBatchSize      = 10
	DefaultBatchDelay     = 60 * time.Second
	DefaultTopK           = 10
	DefaultCollection     = "documents"
	DefaultLLMModel       = "gemini-2.5-flash-lite"
	DefaultEmbeddingModel = "text-embedding-004"
	DefaultChromemPath    = "./chromemdb"
)

type Config struct {
	PDFPath     string            `yaml:"pdf_path"`
	Database    DatabaseConfig    `yaml:"database"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	EmbedLLM    LLMConfig         `yaml:"embed_llm"`
	LLM         LLMConfig         `yaml:"llm"`
	RAG         RAGConfig         `yaml:"rag"`
	LogLevel    string            `yaml:"log_level"`
}

type DatabaseConfig struct {
	URL   string `yaml:"url"`
	Debug bool   `yaml:"debug"`
}

type VectorStoreConfig struct {
	Backend string `yaml:"backend"`
	// Path is the chromem persistence directory; empty keeps the collection in memory.
	Path     string `yaml:"path"`
	Compress bool   `yaml:"compress"`
}

type LLMConfig struct {
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	Key      string `yaml:"key"`
	Model    string `yaml:"model"`
}

type RAGConfig struct {
	Collection   string        `yaml:"collection"`
	ChunkSize    int           `yaml:"chunk_size"`
	ChunkOverlap int           `yaml:"chunk_overlap"`
	BatchSize    int           `yaml:"batch_size"`
	BatchDelay   time.Duration `yaml:"batch_delay"`
	TopK         int           `yaml:"top_k"`
}

// Default returns the configuration used when neither a file nor the
// environment says otherwise.
func Default() *Config {
	return &Config{
		VectorStore: VectorStoreConfig{
			Backend: BackendPGVector,
			Path:    DefaultChromemPath,
		},
		EmbedLLM: LLMConfig{
			Provider: ProviderGoogleAI,
			Model:    DefaultEmbeddingModel,
		},
		LLM: LLMConfig{
			Provider: ProviderGoogleAI,
			Model:    DefaultLLMModel,
		},
		RAG: RAGConfig{
			Collection:   DefaultCollection,
			ChunkSize:    DefaultChunkSize,
			ChunkOverlap: DefaultChunkOverlap,
			BatchSize:    DefaultBatchSize,
			BatchDelay:   DefaultBatchDelay,
			TopK:         DefaultTopK,
		},
		LogLevel: "info",
	}
}

// LoadConfig reads the YAML file at path on top of the defaults and then
// applies environment overrides. An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.PDFPath, "PDF_PATH")
	setString(&cfg.Database.URL, "DATABASE_URL")
	setString(&cfg.VectorStore.Backend, "VECTOR_STORE")
	setString(&cfg.VectorStore.Path, "CHROMEM_PATH")
	setString(&cfg.RAG.Collection, "PG_VECTOR_COLLECTION_NAME")
	setString(&cfg.EmbedLLM.Model, "GOOGLE_EMBEDDING_MODEL")
	setString(&cfg.LLM.Model, "GOOGLE_LLM_MODEL")
	setString(&cfg.LogLevel, "LOG_LEVEL")

	for _, llm := range []*LLMConfig{&cfg.LLM, &cfg.EmbedLLM} {
		setString(&llm.Provider, "LLM_PROVIDER")
		setString(&llm.Key, "GOOGLE_API_KEY")
		setString(&llm.BaseURL, "LLM_BASE_URL")
	}

	if v, ok := lookup("DB_DEBUG"); ok {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("DB_DEBUG: %w", err)
		}
		cfg.Database.Debug = debug
	}
	if err := setInt(&cfg.RAG.BatchSize, "INGEST_BATCH_SIZE"); err != nil {
		return err
	}
	if err := setInt(&cfg.RAG.TopK, "SEARCH_TOP_K"); err != nil {
		return err
	}
	if v, ok := lookup("INGEST_BATCH_DELAY"); ok {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("INGEST_BATCH_DELAY: %w", err)
		}
		if secs < 0 {
			return fmt.Errorf("INGEST_BATCH_DELAY: must not be negative, got %d", secs)
		}
		cfg.RAG.BatchDelay = time.Duration(secs) * time.Second
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.VectorStore.Backend == "" {
		cfg.VectorStore.Backend = BackendPGVector
	}
	if cfg.EmbedLLM.Provider == "" {
		cfg.EmbedLLM.Provider = ProviderGoogleAI
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = ProviderGoogleAI
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = DefaultLLMModel
	}
	if cfg.EmbedLLM.Model == "" {
		cfg.EmbedLLM.Model = DefaultEmbeddingModel
	}
	if cfg.RAG.Collection == "" {
		cfg.RAG.Collection = DefaultCollection
	}
	if cfg.RAG.ChunkSize <= 0 {
		cfg.RAG.ChunkSize = DefaultChunkSize
	}
	if cfg.RAG.ChunkOverlap < 0 || cfg.RAG.ChunkOverlap >= cfg.RAG.ChunkSize {
		cfg.RAG.ChunkOverlap = min(DefaultChunkOverlap, cfg.RAG.ChunkSize-1)
	}
	if cfg.RAG.BatchSize <= 0 {
		cfg.RAG.BatchSize = DefaultBatchSize
	}
	if cfg.RAG.BatchDelay < 0 {
		cfg.RAG.BatchDelay = DefaultBatchDelay
	}
	if cfg.RAG.TopK <= 0 {
		cfg.RAG.TopK = DefaultTopK
	}
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func setString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}
