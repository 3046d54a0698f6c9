package embedding

import (
	"context"
	"testing"

	"pdf-rag/internal/config"
)

func TestNewEmbedder(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LLMConfig
		wantErr bool
	}{
		{
			name: "ollama",
			cfg:  config.LLMConfig{Provider: config.ProviderOllama, BaseURL: "http://127.0.0.1:11434", Model: "nomic-embed-text"},
		},
		{
			name: "openai compatible",
			cfg:  config.LLMConfig{Provider: config.ProviderOpenAI, BaseURL: "http://127.0.0.1:8080/v1", Key: "Bearer test", Model: "text-embedding-3-small"},
		},
		{
			name:    "unknown provider",
			cfg:     config.LLMConfig{Provider: "carrier-pigeon", Model: "x"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewEmbedder(context.Background(), &tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewEmbedder() error = %v", err)
			}
			if e == nil {
				t.Fatal("NewEmbedder() returned nil")
			}
		})
	}
}
