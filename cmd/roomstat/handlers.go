package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/moegi/roomstat/internal/analytics"
	"github.com/moegi/roomstat/internal/clicks"
	"github.com/moegi/roomstat/internal/config"
	"github.com/moegi/roomstat/internal/ingest"
	"github.com/moegi/roomstat/internal/ocr"
	"github.com/moegi/roomstat/internal/store"
	"github.com/moegi/roomstat/pkg/server"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func openStore() (*config.Config, *store.SQLiteStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return cfg, db, nil
}

func runRecord(date string, follow, follower int) error {
	_, db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	if date == "" {
		date = time.Now().Format(store.DateFormat)
	}

	id, err := db.AddSnapshot(context.Background(), date, follow, follower)
	if err != nil {
		return err
	}

	fmt.Printf("recorded snapshot %d: %s follow=%d follower=%d\n", id, date, follow, follower)
	return nil
}

func runDeleteRecord(rawID string) error {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q: %w", rawID, err)
	}

	_, db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.DeleteSnapshot(context.Background(), id); err != nil {
		return err
	}
	fmt.Printf("deleted snapshot %d\n", id)
	return nil
}

func runGoal(month string, follow, follower int) error {
	_, db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.SetGoal(context.Background(), month, follow, follower); err != nil {
		return err
	}
	fmt.Printf("goal for %s: follow=%d follower=%d\n", month, follow, follower)
	return nil
}

func runIngest(dir string, rawMemos []string) error {
	cfg, db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	if dir == "" {
		dir = cfg.Ingest.ImageDir
	}

	memos := make(map[string]string)
	for _, m := range rawMemos {
		name, text, ok := strings.Cut(m, "=")
		if !ok {
			return fmt.Errorf("invalid --memo %q (want filename=text)", m)
		}
		memos[name] = text
	}

	engine := ocr.NewTesseract(cfg.OCR.Binary, cfg.OCR.Lang)
	ing := ingest.New(db, engine)

	fmt.Fprintf(os.Stderr, "scanning %s...\n", dir)
	n, err := ing.ScanDir(context.Background(), dir, memos)
	if err != nil {
		return err
	}
	fmt.Printf("registered %d posts\n", n)
	return nil
}

func runPosts(limit int) error {
	_, db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	posts, err := db.ListRecentPosts(context.Background(), limit)
	if err != nil {
		return err
	}

	if len(posts) == 0 {
		fmt.Println("no posts registered (try: roomstat ingest)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FILENAME\tLIKES\tSHOP\tMEMO\tCREATED")
	for _, p := range posts {
		likes := "-"
		if p.Likes.Valid {
			likes = strconv.FormatInt(p.Likes.Int64, 10)
		}
		shop := "-"
		if p.Shop.Valid {
			shop = p.Shop.String
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.Filename, likes, shop, p.Memo, p.CreatedDate)
	}
	return w.Flush()
}

func runDeletePost(filename, rawLikes, createdDate string) error {
	likes, err := strconv.ParseInt(rawLikes, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid likes %q: %w", rawLikes, err)
	}

	_, db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.DeletePost(context.Background(), filename, likes, createdDate); err != nil {
		return err
	}
	fmt.Printf("deleted post %s\n", filename)
	return nil
}

func runImportClicks(path string) error {
	_, db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := clicks.New(db).ImportFile(context.Background(), path)
	if err != nil {
		return err
	}
	fmt.Printf("imported %d shop click rows\n", n)
	return nil
}

func runDashboard(limit int) error {
	cfg, db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	if limit <= 0 {
		limit = cfg.Dashboard.RankingLimit
	}

	ctx := context.Background()
	agg := analytics.New(db)

	progress, err := agg.Progress(ctx)
	if errors.Is(err, store.ErrNoSnapshots) {
		fmt.Println("no snapshots recorded yet (try: roomstat record)")
		return nil
	}
	if err != nil {
		return err
	}

	printProgress(progress)

	points, err := agg.Series(ctx)
	if err != nil {
		return err
	}
	printSeries(points)

	ranking, err := agg.ReactionRanking(ctx, limit)
	if err != nil {
		return err
	}
	printRanking(ranking)
	return nil
}

func printProgress(p *analytics.Progress) {
	bold := color.New(color.Bold)
	bold.Printf("progress as of %s\n", p.Date)

	if !p.GoalSet {
		color.Yellow("no goal set for %s", p.Month)
		fmt.Printf("  follow: %d  follower: %d\n\n", p.FollowNow, p.FollowerNow)
		return
	}

	fmt.Printf("  follow:   %d / %d (%s)\n", p.FollowNow, p.FollowGoal, delta(p.FollowDelta))
	fmt.Printf("  follower: %d / %d (%s)\n\n", p.FollowerNow, p.FollowerGoal, delta(p.FollowerDelta))
}

func delta(d int) string {
	if d >= 0 {
		return color.GreenString("+%d", d)
	}
	return color.RedString("%d", d)
}

func printSeries(points []analytics.SeriesPoint) {
	if len(points) == 0 {
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tFOLLOW\tΔ\tFOLLOWER\tΔ")
	for _, p := range points {
		fmt.Fprintf(w, "%d\t%s\t%d\t%+d\t%d\t%+d\n",
			p.ID, p.Date, p.FollowCount, p.FollowDiff, p.FollowerCount, p.FollowerDiff)
	}
	w.Flush()
	fmt.Println()
}

func printRanking(rows []analytics.RankingRow) {
	if len(rows) == 0 {
		fmt.Println("no shop clicks imported (try: roomstat import-clicks)")
		return
	}

	color.New(color.Bold).Println("reaction-rate ranking")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SHOP\tCLICKS\tLIKES\tRATE")
	for _, row := range rows {
		likes := "-"
		if row.TotalLikes.Valid {
			likes = strconv.FormatInt(row.TotalLikes.Int64, 10)
		}
		rate := "-"
		if row.ReactionRate.Valid {
			rate = fmt.Sprintf("%.2f", row.ReactionRate.Float64)
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", row.ShopName, row.Clicks, likes, rate)
	}
	w.Flush()
}

func runExport(out string, diffs bool) error {
	_, db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	w := os.Stdout
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("create %s: %w", out, err)
		}
		defer f.Close()
		w = f
	}

	agg := analytics.New(db)
	if diffs {
		return agg.ExportSeriesCSV(context.Background(), w)
	}
	return agg.ExportCSV(context.Background(), w)
}

func runServe(port int) error {
	cfg, db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	if port == 0 {
		port = cfg.Server.Port
	}

	agg := analytics.New(db)
	engine := ocr.NewTesseract(cfg.OCR.Binary, cfg.OCR.Lang)
	ing := ingest.New(db, engine)
	importer := clicks.New(db)

	srv := server.New(db, agg, ing, importer, port)
	return srv.ListenAndServe()
}
