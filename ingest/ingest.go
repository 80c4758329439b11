// Package ingest parses the semicolon-separated air quality export into Readings.
package ingest

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"

	"github.com/mtraver/airquality/reading"
)

const (
	DateColumn  = "Date"
	TimeColumn  = "Time"
	ValueColumn = "CO(GT)"

	DefaultSource = "air_quality"
)

// ErrMissingColumn is returned when the header lacks a required column.
var ErrMissingColumn = errors.New("ingest: missing column")

// Layouts tried, in order, against the concatenation of a row's date and time fields.
// Day, month and hour may be written without a leading zero.
var timeLayouts = []string{
	"2/1/2006 15.04.05",
	"2/1/2006 15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15.04.05",
	"2006-01-02T15:04:05",
}

// Options controls how rows are turned into Readings.
type Options struct {
	// ValueColumn is the header of the column holding the value. Defaults to ValueColumn.
	ValueColumn string

	// Source is recorded in every Reading's metadata. Defaults to DefaultSource.
	Source string

	// If non-nil, rows whose value equals *Sentinel are dropped.
	Sentinel *float64
}

func (o Options) withDefaults() Options {
	if o.ValueColumn == "" {
		o.ValueColumn = ValueColumn
	}
	if o.Source == "" {
		o.Source = DefaultSource
	}
	return o
}

// Result holds the parsed Readings and the number of data rows that were dropped.
type Result struct {
	Readings []reading.Reading
	Dropped  int
}

// ParseTimestamp parses the concatenation of a date and a time field. The result is in UTC.
func ParseTimestamp(date, tod string) (time.Time, error) {
	date = strings.TrimSpace(date)
	tod = strings.TrimSpace(tod)
	if date == "" || tod == "" {
		return time.Time{}, fmt.Errorf("ingest: empty date or time: %q %q", date, tod)
	}

	s := date + " " + tod
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("ingest: unrecognized timestamp %q", s)
}

// ParseValue parses a number written with a decimal comma. An empty field is an error.
func ParseValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("ingest: empty value")
	}

	v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) {
		return 0, errors.New("ingest: value is NaN")
	}
	return v, nil
}

func columnIndexes(header []string, names ...string) ([]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, ok := idx[h]; !ok {
			idx[h] = i
		}
	}

	out := make([]int, len(names))
	for i, n := range names {
		j, ok := idx[n]
		if !ok {
			return nil, fmt.Errorf("%w %q", ErrMissingColumn, n)
		}
		out[i] = j
	}
	return out, nil
}

func field(line []string, i int) string {
	if i >= len(line) {
		return ""
	}
	return line[i]
}

// Load reads a semicolon-separated file with a header row and returns a Reading for
// every row whose date, time and value parse. Other rows are dropped and counted.
func Load(r io.Reader, opts Options) (Result, error) {
	opts = opts.withDefaults()

	reader := csv.NewReader(bufio.NewReader(r))
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return Result{}, fmt.Errorf("%w: file has no header", ErrMissingColumn)
	} else if err != nil {
		return Result{}, err
	}

	cols, err := columnIndexes(header, DateColumn, TimeColumn, opts.ValueColumn)
	if err != nil {
		return Result{}, err
	}
	dateCol, timeCol, valueCol := cols[0], cols[1], cols[2]

	var res Result
	for {
		line, err := reader.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return Result{}, err
		}

		if isBlank(line) {
			continue
		}

		ts, err := ParseTimestamp(field(line, dateCol), field(line, timeCol))
		if err != nil {
			res.Dropped++
			continue
		}

		v, err := ParseValue(field(line, valueCol))
		if err != nil {
			res.Dropped++
			continue
		}

		if opts.Sentinel != nil && v == *opts.Sentinel {
			res.Dropped++
			continue
		}

		res.Readings = append(res.Readings, reading.New(ts, v, opts.Source))
	}

	return res, nil
}

// LoadFile expands a leading ~ in path, opens the file and calls Load.
func LoadFile(path string, opts Options) (Result, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return Result{}, err
	}

	f, err := os.Open(expanded)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()

	return Load(f, opts)
}

// isBlank reports whether every field of the line is empty, as in the runs of
// semicolons at the end of the export.
func isBlank(line []string) bool {
	for _, f := range line {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
