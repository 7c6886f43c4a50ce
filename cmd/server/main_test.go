package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dennisdiepolder/monti/wfm/internal/cache"
	"github.com/dennisdiepolder/monti/wfm/internal/config"
	"github.com/dennisdiepolder/monti/wfm/internal/storage"
)

func TestHealthHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	healthHandler(rec, req)

	// Check status code
	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	// Check content type
	contentType := rec.Header().Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", contentType)
	}

	// Parse response body
	var response map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}

	// Check response fields
	if response["status"] != "ok" {
		t.Errorf("expected status ok, got %s", response["status"])
	}
	if response["service"] != "wfm-backend" {
		t.Errorf("expected service wfm-backend, got %s", response["service"])
	}
}

func TestStoresFallBackToMemory(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{}

	store := openStore(ctx, cfg)
	defer store.Close()
	if _, ok := store.(*storage.MemoryStore); !ok {
		t.Errorf("expected in-memory store without DATABASE_URL, got %T", store)
	}

	statuses := openStatusStore(ctx, cfg)
	if _, ok := statuses.(*cache.MemoryStatusStore); !ok {
		t.Errorf("expected in-memory status store without REDIS_URL, got %T", statuses)
	}
}
