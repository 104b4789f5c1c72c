package qdrant_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobintel/jobintel/internal/adapter/vector/qdrant"
)

func TestEnsureCollectionExisting(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := qdrant.New(srv.URL, "")
	require.NoError(t, c.EnsureCollection(context.Background(), "jobs", 384))
}

func TestEnsureCollectionCreates(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPut:
			var payload map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			vectors := payload["vectors"].(map[string]any)
			assert.Equal(t, float64(384), vectors["size"])
			assert.Equal(t, "Cosine", vectors["distance"])
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	c := qdrant.New(srv.URL, "")
	require.NoError(t, c.EnsureCollection(context.Background(), "jobs", 384))
}

func TestUpsertPoints(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "secret", r.Header.Get("api-key"))
		var payload struct {
			Points []map[string]any `json:"points"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Len(t, payload.Points, 1)
		assert.Equal(t, "job-1", payload.Points[0]["id"])
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := qdrant.New(srv.URL, "secret")
	err := c.UpsertPoints(context.Background(), "jobs", []qdrant.Point{
		{ID: "job-1", Vector: []float32{0.1, 0.2}, Payload: map[string]any{"job_id": "job-1"}},
	})
	require.NoError(t, err)
}

func TestUpsertPointsEmptyIsNoop(t *testing.T) {
	t.Parallel()
	c := qdrant.New("http://unreachable.invalid", "")
	require.NoError(t, c.UpsertPoints(context.Background(), "jobs", nil))
}

func TestSearchWithRecencyFilter(t *testing.T) {
	t.Parallel()
	cutoff := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(20), body["limit"])
		require.Contains(t, body, "filter")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": []map[string]any{
				{"id": "job-2", "score": 0.91, "payload": map[string]any{"job_id": "job-2"}},
			},
		})
	}))
	defer srv.Close()

	c := qdrant.New(srv.URL, "")
	hits, err := c.Search(context.Background(), "jobs", []float32{0.5}, 20, &cutoff)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "job-2", hits[0].ID)
	assert.InDelta(t, 0.91, hits[0].Score, 1e-9)
}
