// Package ingest turns product screenshot text into post records:
// best-effort field extraction from OCR output, manual overrides, and
// batch directory scans.
package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/moegi/roomstat/internal/ocr"
	"github.com/moegi/roomstat/internal/store"
)

// ErrInvalidLikes is returned when a user-provided likes value cannot be
// parsed as an integer.
var ErrInvalidLikes = errors.New("likes must be an integer")

// Fields are the user-visible values committed for one screenshot.
// Non-empty Likes/Shop always win over whatever extraction produced.
type Fields struct {
	Likes string
	Shop  string
	Memo  string
}

// Ingestor registers posts from extracted text.
type Ingestor struct {
	store  store.Store
	engine ocr.Engine
	now    func() time.Time
}

// New creates an Ingestor. engine may be nil if only Register is used.
func New(s store.Store, engine ocr.Engine) *Ingestor {
	return &Ingestor{store: s, engine: engine, now: time.Now}
}

// Resolve merges extraction results from rawText with manual overrides.
// Override values take precedence; extracted values only fill the gaps.
func Resolve(rawText string, overrides Fields) Fields {
	f := overrides
	likes, shop := ExtractFields(rawText)
	if f.Likes == "" && likes != nil {
		f.Likes = strconv.FormatInt(*likes, 10)
	}
	if f.Shop == "" && shop != nil {
		f.Shop = *shop
	}
	return f
}

// Register inserts one post record stamped with the ingestion time. An
// empty likes value is stored as NULL; a non-empty one must parse as an
// integer. An exact composite-key duplicate surfaces
// store.ErrDuplicatePost.
func (g *Ingestor) Register(ctx context.Context, filename string, f Fields) (*store.Post, error) {
	p := &store.Post{
		Filename:    filename,
		Memo:        f.Memo,
		CreatedDate: g.now().Format(store.TimestampFormat),
	}

	if v := strings.TrimSpace(f.Likes); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidLikes, f.Likes)
		}
		p.Likes = sql.NullInt64{Int64: n, Valid: true}
	}
	if v := strings.TrimSpace(f.Shop); v != "" {
		p.Shop = sql.NullString{String: v, Valid: true}
	}

	if err := g.store.InsertPost(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ScanDir OCRs every image in dir and registers one post per file, with
// per-file memos keyed by filename. Individual failures (unreadable
// image, duplicate key) are reported to stderr and skipped so one bad
// screenshot does not abort the batch. Returns the number registered.
func (g *Ingestor) ScanDir(ctx context.Context, dir string, memos map[string]string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read image dir %s: %w", dir, err)
	}

	registered := 0
	for _, e := range entries {
		if e.IsDir() || !isImage(e.Name()) {
			continue
		}

		text, err := g.engine.ExtractText(ctx, filepath.Join(dir, e.Name()))
		if err != nil {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", e.Name(), err)
			continue
		}

		f := Resolve(text, Fields{Memo: memos[e.Name()]})
		if _, err := g.Register(ctx, e.Name(), f); err != nil {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", e.Name(), err)
			continue
		}
		registered++
	}
	return registered, nil
}

func isImage(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}
