// Package clicks imports the shop click CSV exported from the shop
// console. Each import replaces the whole table: only current totals are
// kept, never history.
package clicks

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/moegi/roomstat/internal/store"
)

var (
	ErrMissingColumns = errors.New("csv must have shop_name and clicks columns")
	ErrBadRow         = errors.New("malformed csv row")
)

// ParseCSV reads (shop_name, clicks) rows. The header row must name both
// columns; extra columns are ignored. Any malformed row fails the whole
// parse so a bad file never reaches the store.
func ParseCSV(r io.Reader) ([]store.ShopClick, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	shopIdx, clicksIdx := -1, -1
	for i, col := range header {
		switch strings.TrimSpace(col) {
		case "shop_name":
			shopIdx = i
		case "clicks":
			clicksIdx = i
		}
	}
	if shopIdx < 0 || clicksIdx < 0 {
		return nil, fmt.Errorf("%w: got %v", ErrMissingColumns, header)
	}

	var rows []store.ShopClick
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		if shopIdx >= len(rec) || clicksIdx >= len(rec) {
			return nil, fmt.Errorf("%w: line %d has %d fields", ErrBadRow, line, len(rec))
		}

		name := strings.TrimSpace(rec[shopIdx])
		if name == "" {
			return nil, fmt.Errorf("%w: line %d has empty shop name", ErrBadRow, line)
		}
		n, err := strconv.ParseInt(strings.TrimSpace(rec[clicksIdx]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d clicks %q is not an integer", ErrBadRow, line, rec[clicksIdx])
		}

		rows = append(rows, store.ShopClick{ShopName: name, Clicks: n})
	}
	return rows, nil
}

// Importer replaces the shop click table from parsed CSV data.
type Importer struct {
	store store.Store
}

// New creates an Importer.
func New(s store.Store) *Importer {
	return &Importer{store: s}
}

// Import parses r and atomically replaces the shop click table. Parse
// errors are returned before the store is touched at all.
func (im *Importer) Import(ctx context.Context, r io.Reader) (int, error) {
	rows, err := ParseCSV(r)
	if err != nil {
		return 0, err
	}
	if err := im.store.ReplaceShopClicks(ctx, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// ImportFile imports the CSV at path.
func (im *Importer) ImportFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open csv %s: %w", path, err)
	}
	defer f.Close()
	return im.Import(ctx, f)
}
