package cortex

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaEmbedderSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaEmbedRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "nomic-embed-text" {
			t.Errorf("expected nomic-embed-text, got %s", req.Model)
		}
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float64{{0.5, -0.3, 0.8}}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder("nomic-embed-text", 3, WithOllamaHost(srv.URL))
	vec, err := e.Embed(context.Background(), "test text", "RETRIEVAL_DOCUMENT")
	if err != nil {
		t.Fatal(err)
	}
	if len(vec) != 3 || vec[0] != float32(0.5) {
		t.Fatalf("expected [0.5 -0.3 0.8], got %v", vec)
	}
}

func TestOllamaEmbedderHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder("nonexistent", 768, WithOllamaHost(srv.URL))
	if _, err := e.Embed(context.Background(), "test", ""); err == nil {
		t.Fatal("expected error for HTTP 404")
	}
}

func TestOllamaEmbedderEmptyEmbeddingErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float64{{}}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder("model", 768, WithOllamaHost(srv.URL))
	if _, err := e.Embed(context.Background(), "test", ""); err == nil {
		t.Fatal("expected error for empty embedding")
	}
}

func TestOllamaEmbedderDefaults(t *testing.T) {
	e := NewOllamaEmbedder("all-minilm", 384)
	if e.host != "http://localhost:11434" || e.Dimension() != 384 {
		t.Fatalf("unexpected defaults: host=%s dim=%d", e.host, e.Dimension())
	}
}

func TestOpenAIEmbedderSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("wrong auth header: %s", r.Header.Get("Authorization"))
		}
		json.NewEncoder(w).Encode(openAIEmbedResponse{Data: []openAIEmbedData{{Embedding: []float64{0.1, 0.2, 0.3}}}})
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder("test-key", WithOpenAIBaseURL(srv.URL), WithOpenAIDimension(3))
	vec, err := e.Embed(context.Background(), "test text", "RETRIEVAL_QUERY")
	if err != nil {
		t.Fatal(err)
	}
	if len(vec) != 3 || vec[2] != float32(0.3) {
		t.Fatalf("expected [0.1 0.2 0.3], got %v", vec)
	}
}

func TestOpenAIEmbedderEmptyKeyErrors(t *testing.T) {
	e := NewOpenAIEmbedder("")
	if _, err := e.Embed(context.Background(), "test", ""); err == nil {
		t.Fatal("expected error for empty API key")
	}
}

func TestOpenAIEmbedderDefaults(t *testing.T) {
	e := NewOpenAIEmbedder("key")
	if e.model != "text-embedding-3-small" || e.dimension != 1536 || e.baseURL != "https://api.openai.com" {
		t.Fatalf("unexpected defaults: %+v", e)
	}
}

func TestGeminiEmbedderEmptyKeyErrors(t *testing.T) {
	e := NewGeminiEmbedder("", 768)
	if _, err := e.Embed(context.Background(), "test", ""); err == nil {
		t.Fatal("expected error for empty API key")
	}
}

func TestGeminiEmbedderDimension(t *testing.T) {
	e := NewGeminiEmbedder("key", 768)
	if e.Dimension() != 768 {
		t.Fatalf("expected 768, got %d", e.Dimension())
	}
}
