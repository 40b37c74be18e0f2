// Package export writes dashboard views to spreadsheets.
package export

import (
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/capstone-impacta/engagement-cli/internal/dashboard"
)

// Sheet names, in workbook order.
const (
	SheetSummary  = "Summary"
	SheetTimeline = "Faculty timeline"
	SheetAudience = "Audience split"
	SheetNetwork  = "Network cards"
	SheetDailyAvg = "Daily average"
	SheetTrend    = "Trend"
)

// Workbook builds an xlsx file with one sheet per dashboard section.
func Workbook(v dashboard.View) (*xlsx.File, error) {
	f := xlsx.NewFile()
	for _, build := range []struct {
		name string
		fill func(*xlsx.Sheet, dashboard.View)
	}{
		{SheetSummary, summarySheet},
		{SheetTimeline, timelineSheet},
		{SheetAudience, audienceSheet},
		{SheetNetwork, networkSheet},
		{SheetDailyAvg, dailyAverageSheet},
		{SheetTrend, trendSheet},
	} {
		sheet, err := f.AddSheet(build.name)
		if err != nil {
			return nil, eris.Wrapf(err, "export: add sheet %s", build.name)
		}
		build.fill(sheet, v)
	}
	return f, nil
}

// Save writes the workbook for v to path.
func Save(path string, v dashboard.View) error {
	f, err := Workbook(v)
	if err != nil {
		return err
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

func header(sheet *xlsx.Sheet, names ...string) {
	row := sheet.AddRow()
	for _, n := range names {
		row.AddCell().SetString(n)
	}
}

func summarySheet(sheet *xlsx.Sheet, v dashboard.View) {
	header(sheet, "Field", "Value")
	add := func(k, val string) {
		row := sheet.AddRow()
		row.AddCell().SetString(k)
		row.AddCell().SetString(val)
	}
	add("Start", dateOrDash(v.Filter.Start))
	add("End", dateOrDash(v.Filter.End))
	add("Faculty rows", strconv.Itoa(v.Faculty.Rows))
	add("Network rows", strconv.Itoa(v.Network.Rows))
	add("Total views", v.Faculty.Display.Views)
	add("Total likes", v.Faculty.Display.Likes)
	add("Total comments", v.Faculty.Display.Comments)
	add("Mean engagement", v.Faculty.Display.MeanEngagement)
	if v.Notice != "" {
		add("Notice", v.Notice)
	}
	if v.Error != "" {
		add("Error", v.Error)
	}
}

func timelineSheet(sheet *xlsx.Sheet, v dashboard.View) {
	header(sheet, "Faculty", "Date", "Views")
	for _, s := range v.Faculty.Timeline {
		for _, p := range s.Points {
			row := sheet.AddRow()
			row.AddCell().SetString(s.Category)
			row.AddCell().SetString(p.Date.Format(time.DateOnly))
			row.AddCell().SetInt64(p.Views)
		}
	}
}

func audienceSheet(sheet *xlsx.Sheet, v dashboard.View) {
	header(sheet, "Faculty", "Views", "Percent")
	for _, s := range v.Faculty.Audience {
		row := sheet.AddRow()
		row.AddCell().SetString(s.Category)
		row.AddCell().SetInt64(s.Views)
		row.AddCell().SetFloat(s.Percent)
	}
}

func networkSheet(sheet *xlsx.Sheet, v dashboard.View) {
	header(sheet, "Card", "Network", "Value", "Display", "Caption")
	for _, c := range []dashboard.Card{v.Network.Leader, v.Network.Engagement, v.Network.Stability} {
		row := sheet.AddRow()
		row.AddCell().SetString(c.Title)
		row.AddCell().SetString(c.Category)
		row.AddCell().SetFloat(c.Value)
		row.AddCell().SetString(c.Display)
		row.AddCell().SetString(c.Caption)
	}
}

func dailyAverageSheet(sheet *xlsx.Sheet, v dashboard.View) {
	header(sheet, "Network", "Mean daily views", "Label")
	for _, b := range v.Network.DailyAverage {
		row := sheet.AddRow()
		row.AddCell().SetString(b.Category)
		row.AddCell().SetFloat(b.Views)
		row.AddCell().SetString(b.Label)
	}
}

func trendSheet(sheet *xlsx.Sheet, v dashboard.View) {
	header(sheet, "Network", "Day", "Date", "Views")
	for _, s := range v.Network.Trend.Series {
		for _, p := range s.Points {
			row := sheet.AddRow()
			row.AddCell().SetString(s.Category)
			row.AddCell().SetString(p.Day)
			row.AddCell().SetString(p.Date.Format(time.DateOnly))
			row.AddCell().SetInt64(p.Views)
		}
	}
}

func dateOrDash(t time.Time) string {
	if t.IsZero() {
		return dashboard.NoValue
	}
	return t.Format(time.DateOnly)
}
