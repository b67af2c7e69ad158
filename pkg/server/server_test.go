package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/moegi/roomstat/internal/analytics"
	"github.com/moegi/roomstat/internal/clicks"
	"github.com/moegi/roomstat/internal/ingest"
	"github.com/moegi/roomstat/internal/store"
)

func setupServer(t *testing.T) (http.Handler, *store.SQLiteStore) {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	srv := New(s, analytics.New(s), ingest.New(s, nil), clicks.New(s), 0)
	return srv.Router(), s
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h, _ := setupServer(t)

	rec := doJSON(t, h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestSnapshotLifecycle(t *testing.T) {
	h, _ := setupServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/snapshots",
		`{"date":"2025-06-01","follow_count":10,"follower_count":5}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body)
	}

	var created struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/v1/series", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("series status = %d", rec.Code)
	}
	var series struct {
		Count int `json:"count"`
	}
	json.Unmarshal(rec.Body.Bytes(), &series)
	if series.Count != 1 {
		t.Errorf("series count = %d, want 1", series.Count)
	}

	rec = doJSON(t, h, http.MethodDelete, "/api/v1/snapshots/1", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", rec.Code)
	}
}

func TestAddSnapshotValidation(t *testing.T) {
	h, _ := setupServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/snapshots",
		`{"date":"01/06/2025","follow_count":10,"follower_count":5}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/v1/snapshots",
		`{"date":"2025-06-01","follow_count":-1,"follower_count":5}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestProgressStates(t *testing.T) {
	h, _ := setupServer(t)

	rec := doJSON(t, h, http.MethodGet, "/api/v1/progress", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("empty store: status = %d, want 404", rec.Code)
	}

	doJSON(t, h, http.MethodPost, "/api/v1/snapshots",
		`{"date":"2025-06-01","follow_count":10,"follower_count":5}`)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/progress", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var p struct {
		GoalSet bool `json:"goal_set"`
	}
	json.Unmarshal(rec.Body.Bytes(), &p)
	if p.GoalSet {
		t.Error("expected goal_set=false before any goal exists")
	}

	rec = doJSON(t, h, http.MethodPut, "/api/v1/goals/2025-06",
		`{"follow_goal":100,"follower_goal":200}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("set goal status = %d: %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/v1/progress", "")
	json.Unmarshal(rec.Body.Bytes(), &p)
	if !p.GoalSet {
		t.Error("expected goal_set=true after setting a goal")
	}
}

func TestSetGoalInvalidMonth(t *testing.T) {
	h, _ := setupServer(t)

	rec := doJSON(t, h, http.MethodPut, "/api/v1/goals/June",
		`{"follow_goal":1,"follower_goal":1}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestAddPostInvalidLikes(t *testing.T) {
	h, _ := setupServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/posts",
		`{"filename":"a.png","likes":"twenty"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestAddPostExtractsFromRawText(t *testing.T) {
	h, _ := setupServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/posts",
		`{"filename":"a.png","raw_text":"♡ 77\n価 shopA"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}

	var p store.Post
	json.Unmarshal(rec.Body.Bytes(), &p)
	if !p.Likes.Valid || p.Likes.Int64 != 77 {
		t.Errorf("likes = %+v, want 77 extracted from raw text", p.Likes)
	}
}

func TestImportClicksEndpoint(t *testing.T) {
	h, s := setupServer(t)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/clicks/import",
		"shop_name,clicks\nA,100\nB,50\n")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}

	rows, _ := s.ListShopClicks(context.Background())
	if len(rows) != 2 {
		t.Errorf("expected 2 imported rows, got %d", len(rows))
	}

	rec = doJSON(t, h, http.MethodPost, "/api/v1/clicks/import",
		"shop_name,clicks\nA,oops\n")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed import status = %d, want 400", rec.Code)
	}
}

func TestExportCSVEndpoint(t *testing.T) {
	h, _ := setupServer(t)

	doJSON(t, h, http.MethodPost, "/api/v1/snapshots",
		`{"date":"2025-06-01","follow_count":10,"follower_count":5}`)

	rec := doJSON(t, h, http.MethodGet, "/api/v1/export.csv", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("content type = %q, want text/csv", ct)
	}
	if !strings.HasPrefix(rec.Body.String(), "id,date,follow_count,follower_count\n") {
		t.Errorf("unexpected csv body: %q", rec.Body.String())
	}
}
