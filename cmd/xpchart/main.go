// Command xpchart renders the dashboard charts of a stored snapshot to SVG or
// PNG files, without a browser.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"xpdash/internal/aggregate"
	"xpdash/internal/chart"
	"xpdash/internal/core"
	"xpdash/internal/log"
	"xpdash/internal/render"
	"xpdash/internal/storage"
)

const appName = "xpchart"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	snapshotFile string
	dbPath       string
	userID       int64
	format       string
	out          string
	width        float64
	height       float64
	timezone     string
	logLevel     string
}

func rootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Render progress charts offline",
		Long: `xpchart draws the XP line chart and the skills radar chart of a user
snapshot. The snapshot is read from a JSON file (--snapshot) or from the
dashboard's SQLite store (--db with --user).`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.snapshotFile, "snapshot", "s", "", "Snapshot JSON file")
	flags.StringVar(&opts.dbPath, "db", "", "SQLite snapshot database path")
	flags.Int64Var(&opts.userID, "user", 0, "User id to load from --db")
	flags.StringVarP(&opts.format, "format", "f", "svg", "Output format (svg, png)")
	flags.StringVarP(&opts.out, "out", "o", "", "Output file (default stdout)")
	flags.Float64Var(&opts.width, "width", 0, "Chart width in pixels (0 uses the chart default)")
	flags.Float64Var(&opts.height, "height", 0, "Chart height in pixels (0 uses the chart default)")
	flags.StringVar(&opts.timezone, "tz", "UTC", "Timezone for monthly buckets")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		chartCmd(opts, "xp", "Render the cumulative XP line chart", buildXP),
		chartCmd(opts, "skills", "Render the skills radar chart", buildSkills),
	)
	return cmd
}

type buildFunc func(s core.Snapshot, vp core.ViewportSpec, loc *time.Location) (*chart.Geometry, error)

func chartCmd(opts *options, name, short string, build buildFunc) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, build, cmd.OutOrStdout())
		},
	}
}

func buildXP(s core.Snapshot, vp core.ViewportSpec, loc *time.Location) (*chart.Geometry, error) {
	return chart.BuildLineChart(aggregate.New(loc).AggregateMonthly(s.Transactions), vp)
}

func buildSkills(s core.Snapshot, vp core.ViewportSpec, _ *time.Location) (*chart.Geometry, error) {
	skills := s.Skills
	if len(skills) == 0 {
		skills = core.ZeroSkills()
	}
	return chart.BuildRadarChart(skills, vp)
}

func run(ctx context.Context, opts *options, build buildFunc, stdout io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	// stdout may carry the rendered chart
	logger := log.New(log.Config{
		Level:     log.ParseLevel(opts.logLevel),
		Format:    "text",
		Component: appName,
		Output:    os.Stderr,
	})

	loc, err := time.LoadLocation(opts.timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", opts.timezone, err)
	}
	format := strings.ToLower(opts.format)
	if format != "svg" && format != "png" {
		return fmt.Errorf("unsupported format %q: must be svg or png", opts.format)
	}

	snap, err := loadSnapshot(ctx, opts, logger)
	if err != nil {
		return err
	}

	g, err := build(snap, core.ViewportSpec{Width: opts.width, Height: opts.height}, loc)
	if err != nil {
		return err
	}

	w := stdout
	if opts.out != "" {
		f, err := os.Create(opts.out)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}

	if format == "png" {
		err = render.PNG(w, g)
	} else {
		err = render.SVG(w, g)
	}
	if err != nil {
		return err
	}
	logger.Info("Chart rendered", log.FieldLogin, snap.Login, "format", format, "out", opts.out, "empty", g.Empty)
	return nil
}

func loadSnapshot(ctx context.Context, opts *options, logger *log.Logger) (core.Snapshot, error) {
	switch {
	case opts.snapshotFile != "" && opts.dbPath != "":
		return core.Snapshot{}, fmt.Errorf("use either --snapshot or --db, not both")
	case opts.snapshotFile != "":
		b, err := os.ReadFile(filepath.Clean(opts.snapshotFile))
		if err != nil {
			return core.Snapshot{}, fmt.Errorf("read snapshot: %w", err)
		}
		var s core.Snapshot
		if err := json.Unmarshal(b, &s); err != nil {
			return core.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
		}
		return s, nil
	case opts.dbPath != "":
		if opts.userID == 0 {
			return core.Snapshot{}, fmt.Errorf("--user is required with --db")
		}
		repo, err := storage.NewSQLiteRepository(opts.dbPath, logger)
		if err != nil {
			return core.Snapshot{}, err
		}
		defer repo.Close()
		return repo.LoadSnapshot(ctx, opts.userID)
	default:
		return core.Snapshot{}, fmt.Errorf("one of --snapshot or --db is required")
	}
}
