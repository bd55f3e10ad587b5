package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"media-porter/internal/database"
	"media-porter/internal/logging"
	"media-porter/internal/mediatypes"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	// Default timeout for database operations
	defaultTimeout = 30 * time.Second
	// Matches the server's DB_DSN default
	defaultDatabasePath = "./data/downloads.db"
)

var headerStyle = lipgloss.NewStyle().Bold(true)

// app carries the state shared by all subcommands.
type app struct {
	dbPath     string
	jsonOutput bool
	verbose    bool
	out        io.Writer
	isTerminal func() bool

	db *database.Database
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{
		out: os.Stdout,
		isTerminal: func() bool {
			return term.IsTerminal(int(os.Stdout.Fd()))
		},
	}

	if err := newRootCmd(a).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the media porter download ledger",
		Long: `ledger reads the SQLite download ledger written by the media porter server.
Output is a table on a terminal and JSON otherwise; --json forces JSON.`,
		SilenceUsage:       true,
		PersistentPreRunE:  a.open,
		PersistentPostRunE: a.close,
	}

	root.PersistentFlags().StringVar(&a.dbPath, "db", envOr("DB_DSN", defaultDatabasePath), "Path to the ledger database (env DB_DSN)")
	root.PersistentFlags().BoolVarP(&a.jsonOutput, "json", "j", false, "Output JSON even on a terminal")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Log database activity to stderr")

	root.AddCommand(newListCmd(a))
	root.AddCommand(newStatsCmd(a))
	root.SetOut(a.out)

	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// open refuses to create a ledger: a typo in --db should not produce an empty one.
func (a *app) open(cmd *cobra.Command, _ []string) error {
	if !a.verbose {
		logging.SetOutput(io.Discard)
	}

	if _, err := os.Stat(a.dbPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("no ledger at %s (set --db or DB_DSN)", a.dbPath)
		}
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), defaultTimeout)
	defer cancel()

	db, err := database.OpenReadOnly(ctx, a.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	a.db = db
	return nil
}

func (a *app) close(*cobra.Command, []string) error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

func (a *app) wantJSON() bool {
	return a.jsonOutput || a.isTerminal == nil || !a.isTerminal()
}

func (a *app) writeJSON(v interface{}) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeTable aligns header and rows, then styles the header line. Styling
// before alignment would make the escape codes count toward column widths.
func (a *app) writeTable(header []string, rows [][]string) error {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(header, "\t"))
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	head, rest, _ := strings.Cut(buf.String(), "\n")
	if a.isTerminal != nil && a.isTerminal() {
		head = headerStyle.Render(head)
	}
	_, err := fmt.Fprintf(a.out, "%s\n%s", head, rest)
	return err
}

func newListCmd(a *app) *cobra.Command {
	var (
		opts  database.ListOptions
		since string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded downloads, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if since != "" {
				t, err := parseSince(since, time.Now())
				if err != nil {
					return err
				}
				opts.Since = t
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), defaultTimeout)
			defer cancel()

			entries, err := a.db.ListDownloads(ctx, opts)
			if err != nil {
				return err
			}

			if a.wantJSON() {
				if entries == nil {
					entries = []database.LedgerEntry{}
				}
				return a.writeJSON(entries)
			}
			return a.printEntries(entries)
		},
	}

	cmd.Flags().StringVarP(&opts.Platform, "platform", "p", "", "Only downloads from this platform (youtube, tiktok, instagram)")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Only downloads in this format (mp3, mp4)")
	cmd.Flags().StringVar(&since, "since", "", "Only downloads after this time (RFC 3339 or a duration such as 24h)")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", database.DefaultListLimit, "Maximum number of rows")

	return cmd
}

// parseSince accepts an RFC 3339 timestamp or a duration counted back from now.
func parseSince(s string, now time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return now.Add(-d), nil
	}
	return time.Time{}, fmt.Errorf("invalid --since %q: want RFC 3339 time or positive duration", s)
}

func (a *app) printEntries(entries []database.LedgerEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(a.out, "No downloads recorded.")
		return err
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			strconv.FormatInt(e.ID, 10),
			e.CompletedAt.Local().Format("2006-01-02 15:04:05"),
			e.Platform,
			e.Format,
			mediatypes.FormatBytes(e.SizeBytes),
			e.SourceURL,
		})
	}
	return a.writeTable([]string{"ID", "DOWNLOADED", "PLATFORM", "FORMAT", "SIZE", "URL"}, rows)
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize downloads per platform and format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), defaultTimeout)
			defer cancel()

			stats, err := a.db.GetStats(ctx)
			if err != nil {
				return err
			}

			if a.wantJSON() {
				if stats.Counts == nil {
					stats.Counts = []database.PlatformFormatCount{}
				}
				return a.writeJSON(stats)
			}
			return a.printStats(stats)
		},
	}
}

func (a *app) printStats(stats database.Stats) error {
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Total downloads:\t%d\n", stats.TotalDownloads)
	fmt.Fprintf(w, "Total size:\t%s\n", mediatypes.FormatBytes(stats.TotalBytes))
	if !stats.FirstDownload.IsZero() {
		fmt.Fprintf(w, "First download:\t%s\n", stats.FirstDownload.Local().Format(time.RFC1123))
		fmt.Fprintf(w, "Last download:\t%s\n", stats.LastDownload.Local().Format(time.RFC1123))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if len(stats.Counts) == 0 {
		return nil
	}

	rows := make([][]string, 0, len(stats.Counts))
	for _, c := range stats.Counts {
		rows = append(rows, []string{c.Platform, c.Format, strconv.Itoa(c.Downloads), mediatypes.FormatBytes(c.Bytes)})
	}
	if _, err := fmt.Fprintln(a.out); err != nil {
		return err
	}
	return a.writeTable([]string{"PLATFORM", "FORMAT", "DOWNLOADS", "SIZE"}, rows)
}
