// Package model defines the engagement records shared by the loader and the dashboard.
package model

import "time"

// Table identifies one of the two gold fact tables.
type Table int

const (
	// FacultyTable holds daily metrics grouped by academic faculty.
	FacultyTable Table = iota + 1
	// NetworkTable holds daily metrics grouped by social network.
	NetworkTable
)

// Column names shared by both fact tables.
const (
	ColDate     = "data_postagem"
	ColViews    = "total_views"
	ColLikes    = "total_likes"
	ColComments = "total_comentarios"
	ColVideos   = "total_videos"
)

// Name returns the SQL table name.
func (t Table) Name() string {
	switch t {
	case FacultyTable:
		return "gold_video_views_dia_faculdade"
	case NetworkTable:
		return "gold_video_views_dia_rede_social"
	default:
		return ""
	}
}

// CategoryColumn returns the column that distinguishes rows within the table.
func (t Table) CategoryColumn() string {
	switch t {
	case FacultyTable:
		return "faculdade"
	case NetworkTable:
		return "rede_social"
	default:
		return ""
	}
}

// String returns a short label used in logs and metrics.
func (t Table) String() string {
	switch t {
	case FacultyTable:
		return "faculty"
	case NetworkTable:
		return "network"
	default:
		return "unknown"
	}
}

// Columns returns the insert column order for the table.
func (t Table) Columns() []string {
	return []string{ColDate, t.CategoryColumn(), ColViews, ColLikes, ColComments, ColVideos}
}

// Record is one parsed row of a source file.
type Record struct {
	Date       time.Time // calendar date, UTC midnight
	Category   string
	Views      int64
	Likes      int64
	Comments   int64
	VideoCount int64
}

// Key returns the (date, category) pair that identifies the row within a table.
func (r Record) Key() string {
	return r.Date.Format(time.DateOnly) + "\x00" + r.Category
}

// Values returns the record in Table.Columns order.
func (r Record) Values() []any {
	return []any{r.Date, r.Category, r.Views, r.Likes, r.Comments, r.VideoCount}
}

// FactRow is a persisted row read back from a fact table.
type FactRow struct {
	Date       time.Time `json:"date"`
	Category   string    `json:"category"`
	Views      int64     `json:"views"`
	Likes      int64     `json:"likes"`
	Comments   int64     `json:"comments"`
	VideoCount int64     `json:"video_count"`
}
