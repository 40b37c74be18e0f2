package dashboard

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"time"

	"github.com/capstone-impacta/engagement-cli/internal/model"
)

// Stability labels.
const (
	StabilityHigh   = "High"
	StabilityMedium = "Medium"
	StabilityLow    = "Low"
	NoValue         = "-"
)

// TrendDays is the number of most recent dates in the trend window.
const TrendDays = 3

// EngagementRate is (likes + comments) / views * 100, or 0 when views is 0.
func EngagementRate(r model.FactRow) float64 {
	if r.Views <= 0 {
		return 0
	}
	return float64(r.Likes+r.Comments) / float64(r.Views) * 100
}

// CategoryValue is one category's aggregate.
type CategoryValue struct {
	Category string  `json:"category"`
	Value    float64 `json:"value"`
}

// group collects rows per category in ascending category order.
func group(rows []model.FactRow) ([]string, map[string][]model.FactRow) {
	byCat := make(map[string][]model.FactRow)
	for _, r := range rows {
		byCat[r.Category] = append(byCat[r.Category], r)
	}
	names := make([]string, 0, len(byCat))
	for c := range byCat {
		names = append(names, c)
	}
	slices.Sort(names)
	return names, byCat
}

// maxByValue returns the first entry with the greatest value. vals must be
// in category order so ties go to the alphabetically first category.
func maxByValue(vals []CategoryValue) (CategoryValue, bool) {
	if len(vals) == 0 {
		return CategoryValue{}, false
	}
	best := vals[0]
	for _, v := range vals[1:] {
		if v.Value > best.Value {
			best = v
		}
	}
	return best, true
}

// ViewsByCategory sums views per category, in category order.
func ViewsByCategory(rows []model.FactRow) []CategoryValue {
	names, byCat := group(rows)
	out := make([]CategoryValue, len(names))
	for i, c := range names {
		var sum int64
		for _, r := range byCat[c] {
			sum += r.Views
		}
		out[i] = CategoryValue{Category: c, Value: float64(sum)}
	}
	return out
}

// Share is the leading category by total views.
type Share struct {
	Category string  `json:"category"`
	Views    int64   `json:"views"`
	Percent  float64 `json:"percent"`
}

// Leader returns the category with the most views and its share of the
// total. When all views are 0 the share is 0.
func Leader(rows []model.FactRow) (Share, bool) {
	byCat := ViewsByCategory(rows)
	best, ok := maxByValue(byCat)
	if !ok {
		return Share{Category: NoValue}, false
	}
	var total float64
	for _, v := range byCat {
		total += v.Value
	}
	if total == 0 {
		total = 1
	}
	return Share{
		Category: best.Category,
		Views:    int64(best.Value),
		Percent:  best.Value / total * 100,
	}, true
}

// MeanEngagementByCategory averages the per-row engagement rate per category.
func MeanEngagementByCategory(rows []model.FactRow) []CategoryValue {
	names, byCat := group(rows)
	out := make([]CategoryValue, len(names))
	for i, c := range names {
		var sum float64
		for _, r := range byCat[c] {
			sum += EngagementRate(r)
		}
		out[i] = CategoryValue{Category: c, Value: sum / float64(len(byCat[c]))}
	}
	return out
}

// BestEngagement returns the category with the highest mean engagement rate.
func BestEngagement(rows []model.FactRow) (CategoryValue, bool) {
	best, ok := maxByValue(MeanEngagementByCategory(rows))
	if !ok {
		return CategoryValue{Category: NoValue}, false
	}
	return best, true
}

// DailyTotal is one category's summed views on one date.
type DailyTotal struct {
	Category string    `json:"category"`
	Date     time.Time `json:"date"`
	Views    int64     `json:"views"`
}

// DailyTotals sums views per (category, date), ordered by category then date.
func DailyTotals(rows []model.FactRow) []DailyTotal {
	type key struct {
		cat  string
		date int64
	}
	idx := make(map[key]int)
	var out []DailyTotal
	for _, r := range rows {
		k := key{r.Category, r.Date.Unix()}
		if i, ok := idx[k]; ok {
			out[i].Views += r.Views
			continue
		}
		idx[k] = len(out)
		out = append(out, DailyTotal{Category: r.Category, Date: r.Date, Views: r.Views})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// CoefficientOfVariation is the population standard deviation over the mean.
// It is undefined (false) for an empty series or a zero mean.
func CoefficientOfVariation(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	if mean == 0 {
		return 0, false
	}
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq/float64(len(values))) / mean, true
}

// StabilityLabel maps a coefficient of variation to High, Medium or Low.
func StabilityLabel(cv float64, ok bool) string {
	switch {
	case !ok || math.IsNaN(cv):
		return NoValue
	case cv <= 0.25:
		return StabilityHigh
	case cv <= 0.50:
		return StabilityMedium
	default:
		return StabilityLow
	}
}

// Stable is the category with the least volatile daily volume.
type Stable struct {
	Category string  `json:"category"`
	CV       float64 `json:"cv"`
	Label    string  `json:"label"`
}

// Stability ranks categories by the coefficient of variation of their daily
// totals and returns the lowest. Categories with an undefined coefficient
// are not ranked.
func Stability(daily []DailyTotal) (Stable, bool) {
	series := make(map[string][]float64)
	var names []string
	for _, d := range daily {
		if _, ok := series[d.Category]; !ok {
			names = append(names, d.Category)
		}
		series[d.Category] = append(series[d.Category], float64(d.Views))
	}
	slices.Sort(names)

	best := Stable{Category: NoValue, Label: NoValue}
	found := false
	for _, c := range names {
		cv, ok := CoefficientOfVariation(series[c])
		if !ok {
			continue
		}
		if !found || cv < best.CV {
			best = Stable{Category: c, CV: cv}
			found = true
		}
	}
	best.Label = StabilityLabel(best.CV, found)
	return best, found
}

// DailyAverage is each category's mean daily total, highest first.
func DailyAverage(daily []DailyTotal) []CategoryValue {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, d := range daily {
		sums[d.Category] += float64(d.Views)
		counts[d.Category]++
	}
	out := make([]CategoryValue, 0, len(sums))
	for c, s := range sums {
		out = append(out, CategoryValue{Category: c, Value: s / float64(counts[c])})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// TrendPoint is one category's daily total within the trend window.
type TrendPoint struct {
	Day   string    `json:"day"`
	Date  time.Time `json:"date"`
	Views int64     `json:"views"`
}

// TrendSeries is one category's line in the trend chart.
type TrendSeries struct {
	Category string       `json:"category"`
	Points   []TrendPoint `json:"points"`
}

// TrendWindow covers the most recent distinct dates.
type TrendWindow struct {
	Days   []string      `json:"days"`
	Series []TrendSeries `json:"series"`
}

// Trend selects the TrendDays most recent distinct dates in daily and labels
// them "Day 1".."Day N" by dense chronological rank.
func Trend(daily []DailyTotal) TrendWindow {
	var dates []time.Time
	seen := make(map[int64]bool)
	for _, d := range daily {
		if !seen[d.Date.Unix()] {
			seen[d.Date.Unix()] = true
			dates = append(dates, d.Date)
		}
	}
	slices.SortFunc(dates, func(a, b time.Time) int { return a.Compare(b) })
	if len(dates) > TrendDays {
		dates = dates[len(dates)-TrendDays:]
	}

	rank := make(map[int64]string, len(dates))
	var w TrendWindow
	for i, d := range dates {
		label := fmt.Sprintf("Day %d", i+1)
		rank[d.Unix()] = label
		w.Days = append(w.Days, label)
	}

	// daily is ordered by category then date, so points come out in order.
	bySeries := make(map[string]int)
	for _, d := range daily {
		label, ok := rank[d.Date.Unix()]
		if !ok {
			continue
		}
		i, ok := bySeries[d.Category]
		if !ok {
			i = len(w.Series)
			bySeries[d.Category] = i
			w.Series = append(w.Series, TrendSeries{Category: d.Category})
		}
		w.Series[i].Points = append(w.Series[i].Points, TrendPoint{Day: label, Date: d.Date, Views: d.Views})
	}
	return w
}

// KPIs are the faculty headline numbers.
type KPIs struct {
	Views          int64   `json:"views"`
	Likes          int64   `json:"likes"`
	Comments       int64   `json:"comments"`
	MeanEngagement float64 `json:"mean_engagement"`
}

// FacultyKPIs totals views, likes and comments and averages the per-row
// engagement rate. An empty selection yields zeros.
func FacultyKPIs(rows []model.FactRow) KPIs {
	var k KPIs
	var rate float64
	for _, r := range rows {
		k.Views += r.Views
		k.Likes += r.Likes
		k.Comments += r.Comments
		rate += EngagementRate(r)
	}
	if len(rows) > 0 {
		k.MeanEngagement = rate / float64(len(rows))
	}
	return k
}

// DatePoint is a views value on a date.
type DatePoint struct {
	Date  time.Time `json:"date"`
	Views int64     `json:"views"`
}

// Series is one category's views over time.
type Series struct {
	Category string      `json:"category"`
	Points   []DatePoint `json:"points"`
}

// Timeline returns each category's daily views in date order.
func Timeline(rows []model.FactRow) []Series {
	var out []Series
	idx := make(map[string]int)
	for _, d := range DailyTotals(rows) {
		i, ok := idx[d.Category]
		if !ok {
			i = len(out)
			idx[d.Category] = i
			out = append(out, Series{Category: d.Category})
		}
		out[i].Points = append(out[i].Points, DatePoint{Date: d.Date, Views: d.Views})
	}
	return out
}

// Slice is one wedge of the audience split.
type Slice struct {
	Category string  `json:"category"`
	Views    int64   `json:"views"`
	Percent  float64 `json:"percent"`
}

// AudienceSplit returns views per category with each category's share.
func AudienceSplit(rows []model.FactRow) []Slice {
	byCat := ViewsByCategory(rows)
	var total float64
	for _, v := range byCat {
		total += v.Value
	}
	out := make([]Slice, len(byCat))
	for i, v := range byCat {
		out[i] = Slice{Category: v.Category, Views: int64(v.Value)}
		if total > 0 {
			out[i].Percent = v.Value / total * 100
		}
	}
	return out
}
