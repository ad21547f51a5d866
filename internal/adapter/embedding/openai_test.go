package embedding

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newEmbeddingServer(t *testing.T, batchSizes *[]int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		*batchSizes = append(*batchSizes, len(req.Input))

		resp := embeddingResponse{Data: make([]embeddingData, len(req.Input))}
		for i := range resp.Data {
			resp.Data[i] = embeddingData{Embedding: []float32{1, 0}, Index: i}
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Errorf("failed to encode response: %v", err)
		}
	}))
}

func TestEmbedBatchesByConfiguredSize(t *testing.T) {
	var batchSizes []int
	srv := newEmbeddingServer(t, &batchSizes)
	defer srv.Close()

	e, err := NewOllamaEmbedder("test-model", srv.URL, 2, 2)
	if err != nil {
		t.Fatal(err)
	}

	vecs, err := e.Embed([]string{"a", "b", "c", "d", "e"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 5 {
		t.Fatalf("expected 5 vectors, got %d", len(vecs))
	}

	want := []int{2, 2, 1}
	if len(batchSizes) != len(want) {
		t.Fatalf("expected %d requests, got %d (%v)", len(want), len(batchSizes), batchSizes)
	}
	for i, n := range want {
		if batchSizes[i] != n {
			t.Errorf("request %d: expected batch of %d, got %d", i, n, batchSizes[i])
		}
	}
}

func TestEmbedBatchSizeDefaults(t *testing.T) {
	e, err := NewOllamaEmbedder("test-model", "http://localhost:11434/v1", 768, 0)
	if err != nil {
		t.Fatal(err)
	}
	if e.batchSize != defaultBatchSize {
		t.Errorf("expected default batch size %d, got %d", defaultBatchSize, e.batchSize)
	}
}
