package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestOllamaEmbedder_EmbedBatch(t *testing.T) {
	var got ollamaEmbedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		out := ollamaEmbedResponse{}
		for range got.Input {
			out.Embeddings = append(out.Embeddings, []float32{3, 4, 0})
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL+"/", "nomic-embed-text", 3, time.Second)
	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	if got.Model != "nomic-embed-text" || len(got.Input) != 2 {
		t.Errorf("unexpected request %+v", got)
	}
	if len(vecs) != 2 {
		t.Fatalf("len = %d", len(vecs))
	}
	if math.Abs(float64(vecs[0][0])-0.6) > 1e-6 || math.Abs(float64(vecs[0][1])-0.8) > 1e-6 {
		t.Errorf("expected normalized vector, got %v", vecs[0])
	}
	if e.Name() != "ollama:nomic-embed-text" {
		t.Errorf("Name = %q", e.Name())
	}
}

func TestOllamaEmbedder_errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model not found", http.StatusNotFound)
		}},
		{"dimension", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float32{{1, 2}}})
		}},
		{"count", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{})
		}},
		{"body", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("not json"))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			e := NewOllamaEmbedder(srv.URL, "m", 3, time.Second)
			if _, err := e.Embed(context.Background(), "x"); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestOllamaEmbedder_emptyBatch(t *testing.T) {
	e := NewOllamaEmbedder("http://127.0.0.1:1", "m", 3, time.Second)
	vecs, err := e.EmbedBatch(context.Background(), nil)
	if err != nil || len(vecs) != 0 {
		t.Errorf("expected empty result without a request, got %v %v", vecs, err)
	}
}
