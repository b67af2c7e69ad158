package analytics

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// ExportCSV writes the raw snapshot series as UTF-8 CSV with the header
// id,date,follow_count,follower_count.
func (a *Aggregator) ExportCSV(ctx context.Context, w io.Writer) error {
	snaps, err := a.store.ListSnapshots(ctx)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "date", "follow_count", "follower_count"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, s := range snaps {
		rec := []string{
			strconv.FormatInt(s.ID, 10),
			s.Date,
			strconv.Itoa(s.FollowCount),
			strconv.Itoa(s.FollowerCount),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv row %d: %w", s.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportSeriesCSV writes the enriched series including day-over-day diffs.
func (a *Aggregator) ExportSeriesCSV(ctx context.Context, w io.Writer) error {
	points, err := a.Series(ctx)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	header := []string{"id", "date", "follow_count", "follower_count", "follow_diff", "follower_diff"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, p := range points {
		rec := []string{
			strconv.FormatInt(p.ID, 10),
			p.Date,
			strconv.Itoa(p.FollowCount),
			strconv.Itoa(p.FollowerCount),
			strconv.Itoa(p.FollowDiff),
			strconv.Itoa(p.FollowerDiff),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv row %d: %w", p.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
