// Package analytics derives progress metrics, time-series diffs and the
// reaction-rate ranking from the recorded tables. All views are computed
// on read; the underlying rows are never mutated.
package analytics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/moegi/roomstat/internal/store"
)

// Progress compares the latest snapshot against the goal of its month.
// GoalSet distinguishes "no goal for this month" from a zero target.
type Progress struct {
	Date          string `json:"date"`
	Month         string `json:"month"`
	FollowNow     int    `json:"follow_now"`
	FollowerNow   int    `json:"follower_now"`
	GoalSet       bool   `json:"goal_set"`
	FollowGoal    int    `json:"follow_goal,omitempty"`
	FollowerGoal  int    `json:"follower_goal,omitempty"`
	FollowDelta   int    `json:"follow_delta,omitempty"`
	FollowerDelta int    `json:"follower_delta,omitempty"`
}

// SeriesPoint is a snapshot enriched with day-over-day deltas. The first
// point of a series carries zero diffs.
type SeriesPoint struct {
	store.Snapshot
	FollowDiff   int `json:"follow_diff"`
	FollowerDiff int `json:"follower_diff"`
}

// RankingRow is one shop in the reaction-rate ranking. ReactionRate is
// NULL when the shop has no likes to divide by.
type RankingRow struct {
	ShopName     string          `db:"shop_name" json:"shop_name"`
	Clicks       int64           `db:"clicks" json:"clicks"`
	TotalLikes   sql.NullInt64   `db:"total_likes" json:"total_likes"`
	ReactionRate sql.NullFloat64 `db:"reaction_rate" json:"reaction_rate"`
}

// rankingQuery joins click totals against the latest observation per
// (filename, shop) pairing so historical re-observations of the same
// product are not double-counted. MAX(clicks) guards against duplicate
// shop rows; NULLIF suppresses division by a zero likes sum. SQLite
// sorts NULL rates last under ORDER BY ... DESC.
const rankingQuery = `
SELECT
    a.shop_name,
    MAX(a.clicks) AS clicks,
    SUM(b.likes) AS total_likes,
    CAST(MAX(a.clicks) AS FLOAT) / NULLIF(SUM(b.likes), 0) AS reaction_rate
FROM shop_csv a
LEFT JOIN (
    SELECT p.filename, p.likes, p.shop, p.created_date
    FROM posts p
    INNER JOIN (
        SELECT filename, shop, MAX(created_date) AS max_date
        FROM posts
        GROUP BY filename, shop
    ) latest
    ON p.filename = latest.filename AND p.shop = latest.shop AND p.created_date = latest.max_date
) b
ON a.shop_name = b.shop
GROUP BY a.shop_name
ORDER BY reaction_rate DESC
LIMIT ?
`

// Aggregator computes derived views over a Store.
type Aggregator struct {
	store store.Store
}

// New creates an Aggregator.
func New(s store.Store) *Aggregator {
	return &Aggregator{store: s}
}

// Progress combines the latest snapshot with the goal set for its month.
// A missing goal is a displayable state, not an error; a missing snapshot
// surfaces store.ErrNoSnapshots.
func (a *Aggregator) Progress(ctx context.Context) (*Progress, error) {
	latest, err := a.store.LatestSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	p := &Progress{
		Date:        latest.Date,
		Month:       latest.Month(),
		FollowNow:   latest.FollowCount,
		FollowerNow: latest.FollowerCount,
	}

	goal, err := a.store.GoalFor(ctx, p.Month)
	if errors.Is(err, store.ErrNoGoal) {
		return p, nil
	}
	if err != nil {
		return nil, err
	}

	p.GoalSet = true
	p.FollowGoal = goal.FollowGoal
	p.FollowerGoal = goal.FollowerGoal
	p.FollowDelta = p.FollowNow - goal.FollowGoal
	p.FollowerDelta = p.FollowerNow - goal.FollowerGoal
	return p, nil
}

// Series returns all snapshots in date order with computed diffs.
func (a *Aggregator) Series(ctx context.Context) ([]SeriesPoint, error) {
	snaps, err := a.store.ListSnapshots(ctx)
	if err != nil {
		return nil, err
	}

	points := make([]SeriesPoint, len(snaps))
	for i, s := range snaps {
		points[i] = SeriesPoint{Snapshot: s}
		if i > 0 {
			points[i].FollowDiff = s.FollowCount - snaps[i-1].FollowCount
			points[i].FollowerDiff = s.FollowerCount - snaps[i-1].FollowerCount
		}
	}
	return points, nil
}

// ReactionRanking returns the top shops by clicks per latest-post like.
func (a *Aggregator) ReactionRanking(ctx context.Context, limit int) ([]RankingRow, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []RankingRow
	if err := a.store.DB().SelectContext(ctx, &rows, rankingQuery, limit); err != nil {
		return nil, fmt.Errorf("reaction ranking: %w", err)
	}
	return rows, nil
}
