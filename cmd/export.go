package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/capstone-impacta/engagement-cli/internal/dashboard"
	"github.com/capstone-impacta/engagement-cli/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the dashboard for a filter selection to an xlsx workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		sel, err := selectionFromFlags(cmd.Flags())
		if err != nil {
			return err
		}
		if err := cfg.Validate("export"); err != nil {
			return err
		}

		be, err := openBackend(ctx, cfg)
		if err != nil {
			return err
		}
		defer be.Close() //nolint:errcheck

		v := dashboard.NewService(dashboard.NewStoreSource(be.facts)).Snapshot(ctx, sel)
		if v.Error != "" {
			return eris.New(v.Error)
		}

		out, _ := cmd.Flags().GetString("out")
		if err := export.Save(out, v); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Wrote %s (%d faculty rows, %d network rows)\n", out, v.Faculty.Rows, v.Network.Rows)
		return nil
	},
}

func init() {
	exportCmd.Flags().String("out", "dashboard.xlsx", "output workbook path")
	exportCmd.Flags().String("start", "", "first date, YYYY-MM-DD (default: earliest)")
	exportCmd.Flags().String("end", "", "last date, YYYY-MM-DD (default: latest)")
	exportCmd.Flags().StringArray("faculty", nil, "faculty to include, repeatable (default: all; empty value selects none)")
	exportCmd.Flags().StringArray("network", nil, "network to include, repeatable (default: all; empty value selects none)")
	rootCmd.AddCommand(exportCmd)
}

// selectionFromFlags maps the filter flags to a selection. An unset flag
// keeps the default; a flag set to "" selects nothing.
func selectionFromFlags(fs *pflag.FlagSet) (dashboard.Selection, error) {
	var sel dashboard.Selection
	for _, d := range []struct {
		name string
		dst  **time.Time
	}{{"start", &sel.Start}, {"end", &sel.End}} {
		raw, _ := fs.GetString(d.name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return sel, eris.Errorf("invalid --%s %q: want YYYY-MM-DD", d.name, raw)
		}
		*d.dst = &t
	}
	for _, c := range []struct {
		name string
		dst  *[]string
	}{{"faculty", &sel.Faculties}, {"network", &sel.Networks}} {
		if !fs.Changed(c.name) {
			continue
		}
		vals, _ := fs.GetStringArray(c.name)
		out := []string{}
		for _, v := range vals {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
		*c.dst = out
	}
	return sel, nil
}
