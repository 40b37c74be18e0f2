package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/capstone-impacta/engagement-cli/internal/backfill"
	"github.com/capstone-impacta/engagement-cli/internal/metrics"
	"github.com/capstone-impacta/engagement-cli/internal/store"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Load every CSV under the configured prefix into the fact tables",
	Long: "Lists the configured bucket prefix, parses each .csv object and upserts its rows " +
		"into the table its key routes to. A bad file is reported and skipped; an unreachable " +
		"store aborts the run with a non-zero exit.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if p, _ := cmd.Flags().GetString("prefix"); p != "" {
			cfg.ObjectStore.Prefix = p
		}
		if s, _ := cmd.Flags().GetString("suffix"); s != "" {
			cfg.ObjectStore.Suffix = s
		}
		if cmd.Flags().Changed("bulk") {
			cfg.Backfill.Bulk, _ = cmd.Flags().GetBool("bulk")
		}
		if err := cfg.Validate("backfill"); err != nil {
			return err
		}

		be, err := openBackend(ctx, cfg)
		if err != nil {
			return err
		}
		defer be.Close() //nolint:errcheck

		objects, err := openObjectStore(cfg)
		if err != nil {
			return err
		}

		engine := backfill.NewEngine(objects, be.facts, be.runs, backfill.Options{
			Prefix: cfg.ObjectStore.Prefix,
			Suffix: cfg.ObjectStore.Suffix,
		})
		sum, runErr := engine.Run(ctx)
		if sum != nil {
			formatSummary(os.Stdout, sum)
		}

		if err := metrics.Push(cfg.Metrics.PushgatewayURL, cfg.Metrics.Job); err != nil {
			zap.L().Warn("backfill: push metrics", zap.Error(err))
		}

		if runErr != nil {
			return eris.Wrap(runErr, "backfill aborted")
		}
		return nil
	},
}

var backfillStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List recent backfill runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("status"); err != nil {
			return err
		}
		be, err := openBackend(ctx, cfg)
		if err != nil {
			return err
		}
		defer be.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := be.runs.ListRuns(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "backfill status")
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

func init() {
	backfillCmd.Flags().String("prefix", "", "object key prefix (default from config)")
	backfillCmd.Flags().String("suffix", "", "eligible key suffix (default from config)")
	backfillCmd.Flags().Bool("bulk", false, "use the temp table + COPY upsert path (postgres)")

	backfillStatusCmd.Flags().Int("limit", 20, "max number of runs to display")

	backfillCmd.AddCommand(backfillStatusCmd)
	rootCmd.AddCommand(backfillCmd)
}

// formatSummary writes a run summary and its per-file failures to w.
func formatSummary(out io.Writer, s *backfill.Summary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if s.RunID != "" {
		_, _ = fmt.Fprintf(w, "Run:\t%s\n", s.RunID)
	}
	_, _ = fmt.Fprintf(w, "Files:\t%d\n", s.Files)
	_, _ = fmt.Fprintf(w, "Loaded:\t%d\n", s.Loaded)
	_, _ = fmt.Fprintf(w, "Skipped:\t%d\n", s.Skipped)
	_, _ = fmt.Fprintf(w, "Failed:\t%d\n", s.Failed)
	_, _ = fmt.Fprintf(w, "Rows upserted:\t%d\n", s.Rows)
	_, _ = fmt.Fprintf(w, "Elapsed:\t%s\n", s.Elapsed.Round(time.Millisecond))
	_ = w.Flush()

	if len(s.Failures) == 0 {
		return
	}
	_, _ = fmt.Fprintln(out, "\nFailed files:")
	for _, f := range s.Failures {
		_, _ = fmt.Fprintf(out, "  %s: %v\n", f.Key, f.Err)
	}
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []store.RunEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tPREFIX\tSTATUS\tFILES\tLOADED\tFAILED\tROWS\tSTARTED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t------\t------\t-----\t------\t------\t----\t-------\t--------")

	for _, r := range runs {
		dur := "-"
		if r.CompletedAt != nil {
			dur = r.CompletedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
			truncateID(r.ID),
			r.Prefix,
			r.Status,
			r.Files,
			r.Loaded,
			r.Failed,
			r.Rows,
			r.StartedAt.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
