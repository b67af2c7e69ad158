package analytics

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/moegi/roomstat/internal/store"
)

func setupAggregator(t *testing.T) (*Aggregator, *store.SQLiteStore) {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return New(s), s
}

func addPost(t *testing.T, s *store.SQLiteStore, filename string, likes int64, shop, createdDate string) {
	t.Helper()
	err := s.InsertPost(context.Background(), &store.Post{
		Filename:    filename,
		Likes:       sql.NullInt64{Int64: likes, Valid: true},
		Shop:        sql.NullString{String: shop, Valid: true},
		CreatedDate: createdDate,
	})
	if err != nil {
		t.Fatalf("insert post %s: %v", filename, err)
	}
}

func TestSeriesDiffs(t *testing.T) {
	agg, s := setupAggregator(t)
	ctx := context.Background()

	s.AddSnapshot(ctx, "2025-06-01", 10, 5)
	s.AddSnapshot(ctx, "2025-06-02", 15, 8)
	s.AddSnapshot(ctx, "2025-06-03", 12, 8)

	points, err := agg.Series(ctx)
	if err != nil {
		t.Fatalf("Series failed: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}

	wantFollow := []int{0, 5, -3}
	wantFollower := []int{0, 3, 0}
	for i, p := range points {
		if p.FollowDiff != wantFollow[i] {
			t.Errorf("point %d: follow diff = %d, want %d", i, p.FollowDiff, wantFollow[i])
		}
		if p.FollowerDiff != wantFollower[i] {
			t.Errorf("point %d: follower diff = %d, want %d", i, p.FollowerDiff, wantFollower[i])
		}
	}
}

func TestProgressWithGoal(t *testing.T) {
	agg, s := setupAggregator(t)
	ctx := context.Background()

	s.AddSnapshot(ctx, "2025-06-10", 120, 340)
	s.SetGoal(ctx, "2025-06", 100, 400)

	p, err := agg.Progress(ctx)
	if err != nil {
		t.Fatalf("Progress failed: %v", err)
	}
	if !p.GoalSet {
		t.Fatal("expected GoalSet")
	}
	if p.Month != "2025-06" {
		t.Errorf("month = %s, want 2025-06", p.Month)
	}
	if p.FollowDelta != 20 || p.FollowerDelta != -60 {
		t.Errorf("deltas = %d/%d, want 20/-60", p.FollowDelta, p.FollowerDelta)
	}
}

func TestProgressNoGoal(t *testing.T) {
	agg, s := setupAggregator(t)
	ctx := context.Background()

	s.AddSnapshot(ctx, "2025-06-10", 120, 340)

	p, err := agg.Progress(ctx)
	if err != nil {
		t.Fatalf("Progress failed: %v", err)
	}
	if p.GoalSet {
		t.Error("expected no-goal state, not an error")
	}
	if p.FollowNow != 120 || p.FollowerNow != 340 {
		t.Errorf("counts = %d/%d, want 120/340", p.FollowNow, p.FollowerNow)
	}
}

func TestProgressNoSnapshots(t *testing.T) {
	agg, _ := setupAggregator(t)

	if _, err := agg.Progress(context.Background()); !errors.Is(err, store.ErrNoSnapshots) {
		t.Errorf("expected ErrNoSnapshots, got %v", err)
	}
}

func TestReactionRanking(t *testing.T) {
	agg, s := setupAggregator(t)
	ctx := context.Background()

	s.ReplaceShopClicks(ctx, []store.ShopClick{
		{ShopName: "A", Clicks: 100},
		{ShopName: "B", Clicks: 50},
	})

	// Old observation of a.png must be shadowed by the later one.
	addPost(t, s, "a.png", 999, "A", "2025-06-01 10:00:00")
	addPost(t, s, "a.png", 20, "A", "2025-06-05 10:00:00")
	addPost(t, s, "b.png", 0, "B", "2025-06-05 10:00:00")

	rows, err := agg.ReactionRanking(ctx, 10)
	if err != nil {
		t.Fatalf("ReactionRanking failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	if rows[0].ShopName != "A" {
		t.Fatalf("expected A ranked first, got %s", rows[0].ShopName)
	}
	if !rows[0].ReactionRate.Valid || rows[0].ReactionRate.Float64 != 5.0 {
		t.Errorf("A rate = %+v, want 5.0", rows[0].ReactionRate)
	}
	if rows[0].TotalLikes.Int64 != 20 {
		t.Errorf("A total likes = %d, want 20 (latest observation only)", rows[0].TotalLikes.Int64)
	}

	// Zero likes means an undefined rate, sorted last.
	if rows[1].ShopName != "B" {
		t.Fatalf("expected B ranked last, got %s", rows[1].ShopName)
	}
	if rows[1].ReactionRate.Valid {
		t.Errorf("B rate should be NULL, got %v", rows[1].ReactionRate.Float64)
	}
}

func TestReactionRankingLimit(t *testing.T) {
	agg, s := setupAggregator(t)
	ctx := context.Background()

	s.ReplaceShopClicks(ctx, []store.ShopClick{
		{ShopName: "A", Clicks: 10},
		{ShopName: "B", Clicks: 20},
		{ShopName: "C", Clicks: 30},
	})

	rows, err := agg.ReactionRanking(ctx, 2)
	if err != nil {
		t.Fatalf("ReactionRanking failed: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("expected limit of 2 rows, got %d", len(rows))
	}
}

func TestExportCSV(t *testing.T) {
	agg, s := setupAggregator(t)
	ctx := context.Background()

	s.AddSnapshot(ctx, "2025-06-01", 10, 5)
	s.AddSnapshot(ctx, "2025-06-02", 15, 8)

	var buf bytes.Buffer
	if err := agg.ExportCSV(ctx, &buf); err != nil {
		t.Fatalf("ExportCSV failed: %v", err)
	}

	want := "id,date,follow_count,follower_count\n1,2025-06-01,10,5\n2,2025-06-02,15,8\n"
	if buf.String() != want {
		t.Errorf("csv mismatch:\ngot:  %q\nwant: %q", buf.String(), want)
	}
}

func TestExportSeriesCSV(t *testing.T) {
	agg, s := setupAggregator(t)
	ctx := context.Background()

	s.AddSnapshot(ctx, "2025-06-01", 10, 5)
	s.AddSnapshot(ctx, "2025-06-02", 15, 8)

	var buf bytes.Buffer
	if err := agg.ExportSeriesCSV(ctx, &buf); err != nil {
		t.Fatalf("ExportSeriesCSV failed: %v", err)
	}

	want := "id,date,follow_count,follower_count,follow_diff,follower_diff\n" +
		"1,2025-06-01,10,5,0,0\n2,2025-06-02,15,8,5,3\n"
	if buf.String() != want {
		t.Errorf("csv mismatch:\ngot:  %q\nwant: %q", buf.String(), want)
	}
}
