package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Canonical formats for the TEXT date columns.
const (
	DateFormat      = "2006-01-02"
	MonthFormat     = "2006-01"
	TimestampFormat = "2006-01-02 15:04:05"
)

var (
	ErrInvalidDate   = errors.New("date must be a valid YYYY-MM-DD calendar date")
	ErrInvalidMonth  = errors.New("month must be in YYYY-MM format")
	ErrNegativeCount = errors.New("counts must be non-negative")
	ErrNoSnapshots   = errors.New("no snapshots recorded")
	ErrNoGoal        = errors.New("no goal set for month")
	ErrDuplicatePost = errors.New("post already recorded")
	ErrMalformedRow  = errors.New("malformed shop click row")
)

// Snapshot is one dated observation of follow/follower counts.
type Snapshot struct {
	ID            int64  `db:"id" json:"id"`
	Date          string `db:"date" json:"date"`
	FollowCount   int    `db:"follow_count" json:"follow_count"`
	FollowerCount int    `db:"follower_count" json:"follower_count"`
}

// Month returns the YYYY-MM prefix of the snapshot date, used to look up
// the goal the snapshot is measured against.
func (s Snapshot) Month() string {
	if len(s.Date) < len(MonthFormat) {
		return s.Date
	}
	return s.Date[:len(MonthFormat)]
}

// Goal is a per-month target pair for follow and follower counts.
type Goal struct {
	Month        string `db:"month" json:"month"`
	FollowGoal   int    `db:"follow_goal" json:"follow_goal"`
	FollowerGoal int    `db:"follower_goal" json:"follower_goal"`
}

// Post is one recorded observation of a product screenshot: the likes
// count and shop name extracted from it, plus a free-form memo. The
// composite primary key (filename, likes, created_date) lets the same
// product be re-observed later while rejecting exact double submissions.
type Post struct {
	Filename    string         `db:"filename" json:"filename"`
	Likes       sql.NullInt64  `db:"likes" json:"likes"`
	Shop        sql.NullString `db:"shop" json:"shop"`
	Memo        string         `db:"memo" json:"memo"`
	CreatedDate string         `db:"created_date" json:"created_date"`
}

// ShopClick is the current click total for one shop. The table holds no
// history: every import replaces it wholesale.
type ShopClick struct {
	ShopName string `db:"shop_name" json:"shop_name"`
	Clicks   int64  `db:"clicks" json:"clicks"`
}

// Store is the persistence interface.
type Store interface {
	AddSnapshot(ctx context.Context, date string, follow, follower int) (int64, error)
	DeleteSnapshot(ctx context.Context, id int64) error
	ListSnapshots(ctx context.Context) ([]Snapshot, error)
	LatestSnapshot(ctx context.Context) (*Snapshot, error)

	SetGoal(ctx context.Context, month string, followGoal, followerGoal int) error
	GoalFor(ctx context.Context, month string) (*Goal, error)

	InsertPost(ctx context.Context, p *Post) error
	DeletePost(ctx context.Context, filename string, likes int64, createdDate string) error
	ListRecentPosts(ctx context.Context, limit int) ([]Post, error)

	ReplaceShopClicks(ctx context.Context, rows []ShopClick) error
	ListShopClicks(ctx context.Context) ([]ShopClick, error)

	DB() *sqlx.DB
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for read-only aggregation queries.
func (s *SQLiteStore) DB() *sqlx.DB {
	return s.db
}

func (s *SQLiteStore) AddSnapshot(ctx context.Context, date string, follow, follower int) (int64, error) {
	if _, err := time.Parse(DateFormat, date); err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	if follow < 0 || follower < 0 {
		return 0, ErrNegativeCount
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO follow_stats (date, follow_count, follower_count)
		VALUES (?, ?, ?)
	`, date, follow, follower)
	if err != nil {
		return 0, fmt.Errorf("add snapshot %s: %w", date, err)
	}
	id, _ := res.LastInsertId()
	return id, nil
}

// DeleteSnapshot removes the snapshot with the given id. Deleting an id
// that does not exist is a no-op.
func (s *SQLiteStore) DeleteSnapshot(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM follow_stats WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete snapshot %d: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) ListSnapshots(ctx context.Context) ([]Snapshot, error) {
	var snaps []Snapshot
	err := s.db.SelectContext(ctx, &snaps,
		"SELECT * FROM follow_stats ORDER BY date, id")
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return snaps, nil
}

// LatestSnapshot returns the snapshot with the maximum date. When several
// rows share that date the one inserted last (highest id) wins.
func (s *SQLiteStore) LatestSnapshot(ctx context.Context) (*Snapshot, error) {
	var snap Snapshot
	err := s.db.GetContext(ctx, &snap,
		"SELECT * FROM follow_stats ORDER BY date DESC, id DESC LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSnapshots
	}
	if err != nil {
		return nil, fmt.Errorf("latest snapshot: %w", err)
	}
	return &snap, nil
}

func (s *SQLiteStore) SetGoal(ctx context.Context, month string, followGoal, followerGoal int) error {
	if _, err := time.Parse(MonthFormat, month); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidMonth, month)
	}
	if followGoal < 0 || followerGoal < 0 {
		return ErrNegativeCount
	}

	_, err := s.db.ExecContext(ctx, `
		REPLACE INTO monthly_goals (month, follow_goal, follower_goal)
		VALUES (?, ?, ?)
	`, month, followGoal, followerGoal)
	if err != nil {
		return fmt.Errorf("set goal %s: %w", month, err)
	}
	return nil
}

func (s *SQLiteStore) GoalFor(ctx context.Context, month string) (*Goal, error) {
	var g Goal
	err := s.db.GetContext(ctx, &g,
		"SELECT * FROM monthly_goals WHERE month = ?", month)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNoGoal, month)
	}
	if err != nil {
		return nil, fmt.Errorf("goal for %s: %w", month, err)
	}
	return &g, nil
}

func (s *SQLiteStore) InsertPost(ctx context.Context, p *Post) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO posts (filename, likes, shop, memo, created_date)
		VALUES (?, ?, ?, ?, ?)
	`, p.Filename, p.Likes, p.Shop, p.Memo, p.CreatedDate)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return fmt.Errorf("%w: %s@%s", ErrDuplicatePost, p.Filename, p.CreatedDate)
		}
		return fmt.Errorf("insert post %s: %w", p.Filename, err)
	}
	return nil
}

// DeletePost removes the post matching the exact composite key. Deleting
// a key that does not exist is a no-op.
func (s *SQLiteStore) DeletePost(ctx context.Context, filename string, likes int64, createdDate string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM posts WHERE filename = ? AND likes = ? AND created_date = ?",
		filename, likes, createdDate)
	if err != nil {
		return fmt.Errorf("delete post %s: %w", filename, err)
	}
	return nil
}

func (s *SQLiteStore) ListRecentPosts(ctx context.Context, limit int) ([]Post, error) {
	if limit <= 0 {
		limit = 50
	}
	var posts []Post
	err := s.db.SelectContext(ctx, &posts,
		"SELECT * FROM posts ORDER BY created_date DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

// ReplaceShopClicks swaps in a complete new shop click table. Delete and
// re-insert run inside one transaction so a concurrent reader never sees
// an empty or half-written table, and a malformed row leaves the previous
// contents untouched.
func (s *SQLiteStore) ReplaceShopClicks(ctx context.Context, rows []ShopClick) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM shop_csv"); err != nil {
		return fmt.Errorf("clear shop clicks: %w", err)
	}

	for i, row := range rows {
		if strings.TrimSpace(row.ShopName) == "" {
			return fmt.Errorf("%w: row %d has empty shop name", ErrMalformedRow, i+1)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO shop_csv (shop_name, clicks) VALUES (?, ?)",
			row.ShopName, row.Clicks); err != nil {
			return fmt.Errorf("insert shop click %q: %w", row.ShopName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListShopClicks(ctx context.Context) ([]ShopClick, error) {
	var rows []ShopClick
	err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM shop_csv ORDER BY shop_name")
	if err != nil {
		return nil, fmt.Errorf("list shop clicks: %w", err)
	}
	return rows, nil
}
