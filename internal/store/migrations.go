package store

const schema = `
CREATE TABLE IF NOT EXISTS follow_stats (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    date           TEXT NOT NULL,
    follow_count   INTEGER NOT NULL,
    follower_count INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_follow_stats_date ON follow_stats(date);

CREATE TABLE IF NOT EXISTS monthly_goals (
    month         TEXT PRIMARY KEY,
    follow_goal   INTEGER,
    follower_goal INTEGER
);

CREATE TABLE IF NOT EXISTS posts (
    filename     TEXT,
    likes        INTEGER,
    shop         TEXT,
    memo         TEXT,
    created_date TEXT,
    PRIMARY KEY (filename, likes, created_date)
);

CREATE INDEX IF NOT EXISTS idx_posts_created ON posts(created_date);
CREATE INDEX IF NOT EXISTS idx_posts_shop ON posts(shop);

CREATE TABLE IF NOT EXISTS shop_csv (
    shop_name TEXT,
    clicks    INTEGER
);
`
