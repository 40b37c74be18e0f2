// Package fetcher lists and downloads source objects and parses their CSV payloads.
package fetcher

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"strconv"
	"strings"
	"time"

	"github.com/capstone-impacta/engagement-cli/internal/model"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// dateLayouts are tried in order when parsing data_postagem.
var dateLayouts = []string{time.DateOnly, time.DateTime, time.RFC3339, "2006-01-02T15:04:05"}

// ParseError reports a structurally malformed file: no header, a missing
// required column, or a row whose field count differs from the header.
type ParseError struct {
	Key  string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse %s: line %d: %s", e.Key, e.Line, e.Msg)
	}
	return fmt.Sprintf("parse %s: %s", e.Key, e.Msg)
}

// TypeError reports a field whose value does not convert to its column type.
type TypeError struct {
	Key   string
	Line  int
	Field string
	Value string
	Err   error
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("parse %s: line %d: field %s: invalid value %q: %v", e.Key, e.Line, e.Field, e.Value, e.Err)
}

func (e *TypeError) Unwrap() error { return e.Err }

// Row is a data row keyed by header name.
type Row struct {
	Line   int
	Fields map[string]string
}

// CSVFile is a parsed, headered CSV payload. Rows can be iterated any number
// of times; each iteration re-reads the original bytes.
type CSVFile struct {
	Key    string
	Header []string
	data   []byte
}

// ParseCSV validates that data starts with a header row and returns a CSVFile
// over it. An empty payload is a ParseError.
func ParseCSV(key string, data []byte) (*CSVFile, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	r := newReader(data)
	header, err := r.Read()
	if err == io.EOF {
		return nil, &ParseError{Key: key, Line: 1, Msg: "missing header"}
	}
	if err != nil {
		return nil, &ParseError{Key: key, Line: 1, Msg: err.Error()}
	}

	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	return &CSVFile{Key: key, Header: header, data: data}, nil
}

func newReader(data []byte) *csv.Reader {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = 0 // every row must match the header width
	return r
}

// Rows returns a lazy sequence of data rows. Iteration stops at the first
// error, which is yielded as a *ParseError.
func (f *CSVFile) Rows() iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		r := newReader(f.data)
		if _, err := r.Read(); err != nil {
			yield(Row{}, &ParseError{Key: f.Key, Line: 1, Msg: "missing header"})
			return
		}

		for {
			record, err := r.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(Row{}, f.readError(err))
				return
			}

			line, _ := r.FieldPos(0)
			fields := make(map[string]string, len(f.Header))
			for i, name := range f.Header {
				fields[name] = record[i]
			}
			if !yield(Row{Line: line, Fields: fields}, nil) {
				return
			}
		}
	}
}

func (f *CSVFile) readError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		msg := pe.Err.Error()
		if errors.Is(pe.Err, csv.ErrFieldCount) {
			msg = fmt.Sprintf("field count does not match header (%d columns)", len(f.Header))
		}
		return &ParseError{Key: f.Key, Line: pe.Line, Msg: msg}
	}
	return &ParseError{Key: f.Key, Msg: err.Error()}
}

// Records converts every row into a typed record, reading the category from
// categoryCol. The header must carry the date, category and four numeric columns.
func (f *CSVFile) Records(categoryCol string) ([]model.Record, error) {
	required := []string{model.ColDate, categoryCol, model.ColViews, model.ColLikes, model.ColComments, model.ColVideos}
	present := make(map[string]bool, len(f.Header))
	for _, h := range f.Header {
		present[h] = true
	}
	var missing []string
	for _, col := range required {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &ParseError{Key: f.Key, Line: 1, Msg: "missing columns: " + strings.Join(missing, ", ")}
	}

	var records []model.Record
	for row, err := range f.Rows() {
		if err != nil {
			return nil, err
		}
		rec, err := f.decode(row, categoryCol)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (f *CSVFile) decode(row Row, categoryCol string) (model.Record, error) {
	date, err := parseDate(row.Fields[model.ColDate])
	if err != nil {
		return model.Record{}, &TypeError{Key: f.Key, Line: row.Line, Field: model.ColDate, Value: row.Fields[model.ColDate], Err: err}
	}

	rec := model.Record{Date: date, Category: row.Fields[categoryCol]}
	targets := []struct {
		col string
		dst *int64
	}{
		{model.ColViews, &rec.Views},
		{model.ColLikes, &rec.Likes},
		{model.ColComments, &rec.Comments},
		{model.ColVideos, &rec.VideoCount},
	}
	for _, t := range targets {
		v, err := parseCount(row.Fields[t.col])
		if err != nil {
			return model.Record{}, &TypeError{Key: f.Key, Line: row.Line, Field: t.col, Value: row.Fields[t.col], Err: err}
		}
		*t.dst = v
	}
	return rec, nil
}

// parseCount parses a non-negative integer.
func parseCount(s string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, errors.New("not an integer")
	}
	if v < 0 {
		return 0, errors.New("negative count")
	}
	return v, nil
}

// parseDate accepts a date or timestamp and truncates it to the calendar date.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, errors.New("not a date")
}
