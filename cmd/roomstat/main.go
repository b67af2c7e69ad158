package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "roomstat",
		Short: "Record and analyze ROOM follow metrics and product post performance",
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(recordCmd())
	root.AddCommand(deleteRecordCmd())
	root.AddCommand(goalCmd())
	root.AddCommand(ingestCmd())
	root.AddCommand(postsCmd())
	root.AddCommand(deletePostCmd())
	root.AddCommand(importClicksCmd())
	root.AddCommand(dashboardCmd())
	root.AddCommand(exportCmd())
	root.AddCommand(serveCmd())

	return root
}

func recordCmd() *cobra.Command {
	var (
		date     string
		follow   int
		follower int
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record today's follow/follower counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecord(date, follow, follower)
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "snapshot date YYYY-MM-DD (default: today)")
	cmd.Flags().IntVar(&follow, "follow", -1, "follow count")
	cmd.Flags().IntVar(&follower, "follower", -1, "follower count")
	cmd.MarkFlagRequired("follow")
	cmd.MarkFlagRequired("follower")
	return cmd
}

func deleteRecordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-record <id>",
		Short: "Delete a recorded snapshot by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeleteRecord(args[0])
		},
	}
}

func goalCmd() *cobra.Command {
	var (
		follow   int
		follower int
	)

	cmd := &cobra.Command{
		Use:   "goal <month>",
		Short: "Set the follow/follower goals for a month (YYYY-MM)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGoal(args[0], follow, follower)
		},
	}

	cmd.Flags().IntVar(&follow, "follow", 0, "follow goal")
	cmd.Flags().IntVar(&follower, "follower", 0, "follower goal")
	return cmd
}

func ingestCmd() *cobra.Command {
	var memos []string

	cmd := &cobra.Command{
		Use:   "ingest [dir]",
		Short: "OCR product screenshots and register them as posts",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) > 0 {
				dir = args[0]
			}
			return runIngest(dir, memos)
		},
	}

	cmd.Flags().StringArrayVar(&memos, "memo", nil, "per-file memo as filename=text (repeatable)")
	return cmd
}

func postsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "posts",
		Short: "List recently registered posts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPosts(limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "max posts to show")
	return cmd
}

func deletePostCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-post <filename> <likes> <created-date>",
		Short: "Delete a post by its exact composite key",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeletePost(args[0], args[1], args[2])
		},
	}
}

func importClicksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-clicks <csv>",
		Short: "Replace the shop click table from a CSV export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImportClicks(args[0])
		},
	}
}

func dashboardCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show goal progress, the follow series, and the reaction-rate ranking",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDashboard(limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "ranking size (default: from config)")
	return cmd
}

func exportCmd() *cobra.Command {
	var (
		out   string
		diffs bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the snapshot series as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(out, diffs)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: stdout)")
	cmd.Flags().BoolVar(&diffs, "diffs", false, "include day-over-day diff columns")
	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}
