package dashboard

import (
	"slices"
	"time"

	"github.com/capstone-impacta/engagement-cli/internal/model"
)

// Filter is an explicit dashboard selection. Start and End are inclusive
// calendar dates; a zero bound is unbounded. A nil or empty category list
// selects nothing.
type Filter struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Faculties []string  `json:"faculties"`
	Networks  []string  `json:"networks"`
}

// Options are the values a filter can choose from.
type Options struct {
	MinDate   time.Time `json:"min_date"`
	MaxDate   time.Time `json:"max_date"`
	Faculties []string  `json:"faculties"`
	Networks  []string  `json:"networks"`
}

// FilterOptions returns the date span across both tables and the sorted
// distinct categories of each.
func FilterOptions(ds *Dataset) Options {
	var opts Options
	if ds == nil {
		return opts
	}
	for _, rows := range [][]model.FactRow{ds.Faculty, ds.Network} {
		for _, r := range rows {
			if opts.MinDate.IsZero() || r.Date.Before(opts.MinDate) {
				opts.MinDate = r.Date
			}
			if r.Date.After(opts.MaxDate) {
				opts.MaxDate = r.Date
			}
		}
	}
	opts.Faculties = categories(ds.Faculty)
	opts.Networks = categories(ds.Network)
	return opts
}

// DefaultFilter selects the full date range and every category.
func DefaultFilter(opts Options) Filter {
	return Filter{
		Start:     opts.MinDate,
		End:       opts.MaxDate,
		Faculties: slices.Clone(opts.Faculties),
		Networks:  slices.Clone(opts.Networks),
	}
}

// Selection is a partially specified filter as received from a caller.
// Nil dates and nil category slices take the default; a non-nil empty
// slice is an explicit empty selection.
type Selection struct {
	Start     *time.Time
	End       *time.Time
	Faculties []string
	Networks  []string
}

// Resolve fills unspecified fields of s from the defaults for opts.
func (s Selection) Resolve(opts Options) Filter {
	f := DefaultFilter(opts)
	if s.Start != nil {
		f.Start = *s.Start
	}
	if s.End != nil {
		f.End = *s.End
	}
	if s.Faculties != nil {
		f.Faculties = s.Faculties
	}
	if s.Networks != nil {
		f.Networks = s.Networks
	}
	return f
}

// Apply keeps the rows whose date is within [start, end] and whose category
// is in cats.
func Apply(rows []model.FactRow, start, end time.Time, cats []string) []model.FactRow {
	if len(cats) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(cats))
	for _, c := range cats {
		set[c] = struct{}{}
	}
	var out []model.FactRow
	for _, r := range rows {
		if !start.IsZero() && r.Date.Before(start) {
			continue
		}
		if !end.IsZero() && r.Date.After(end) {
			continue
		}
		if _, ok := set[r.Category]; !ok {
			continue
		}
		out = append(out, r)
	}
	return out
}

func categories(rows []model.FactRow) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range rows {
		if _, ok := seen[r.Category]; ok {
			continue
		}
		seen[r.Category] = struct{}{}
		out = append(out, r.Category)
	}
	slices.Sort(out)
	return out
}
