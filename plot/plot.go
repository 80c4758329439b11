// Package plot renders reading series and weekly averages as PNG line charts.
package plot

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/mtraver/airquality/reading"
)

const (
	RawFile      = "raw.png"
	WeeklyFile   = "weekly.png"
	CombinedFile = "combined.png"

	defaultWidth  = 1280
	defaultHeight = 480
)

// ErrNoData is returned when asked to plot an empty series.
var ErrNoData = errors.New("plot: no data")

var (
	rawStyle = chart.Style{
		StrokeColor: chart.ColorBlue,
		StrokeWidth: 1,
	}
	translucentRawStyle = chart.Style{
		StrokeColor: chart.ColorBlue.WithAlpha(128),
		StrokeWidth: 1,
	}
	weeklyStyle = chart.Style{
		StrokeColor: drawing.ColorRed,
		StrokeWidth: 2,
	}
)

// series builds a time series that go-chart can draw. go-chart needs at least two
// X values, so a single point is padded with a copy one second later.
func series(name string, xs []time.Time, ys []float64, style chart.Style) chart.TimeSeries {
	if len(xs) == 1 {
		xs = []time.Time{xs[0], xs[0].Add(time.Second)}
		ys = []float64{ys[0], ys[0]}
	}

	return chart.TimeSeries{
		Name:    name,
		XValues: xs,
		YValues: ys,
		Style:   style,
	}
}

// yRange returns a fixed Y range when every value is the same, since go-chart
// refuses to draw a zero-height range. Otherwise it returns nil and go-chart
// picks the range.
func yRange(vals ...[]float64) *chart.ContinuousRange {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, vs := range vals {
		for _, v := range vs {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}

	if lo == hi {
		return &chart.ContinuousRange{Min: lo - 1, Max: hi + 1}
	}
	return nil
}

func newChart(title, xName, yName string, yr *chart.ContinuousRange, s ...chart.Series) chart.Chart {
	ch := chart.Chart{
		Title:  title,
		Width:  defaultWidth,
		Height: defaultHeight,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16},
		},
		XAxis: chart.XAxis{
			Name:           xName,
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: yName,
		},
		Series: s,
	}
	if yr != nil {
		ch.YAxis.Range = yr
	}
	return ch
}

func weekTimes(weeks []reading.WeeklyAverage) ([]time.Time, []float64) {
	xs := make([]time.Time, len(weeks))
	ys := make([]float64, len(weeks))
	for i, w := range weeks {
		xs[i] = w.WeekEnd()
		ys[i] = w.AvgValue
	}
	return xs, ys
}

// Raw draws the original reading series.
func Raw(w io.Writer, readings []reading.Reading) error {
	if len(readings) == 0 {
		return ErrNoData
	}

	xs, ys := reading.Timestamps(readings), reading.Values(readings)
	ch := newChart("Original Time Series (Plot A)", "Time", "CO Level", yRange(ys),
		series("Original", xs, ys, rawStyle))
	return ch.Render(chart.PNG, w)
}

// Weekly draws the weekly averages against the end of each week.
func Weekly(w io.Writer, weeks []reading.WeeklyAverage) error {
	if len(weeks) == 0 {
		return ErrNoData
	}

	xs, ys := weekTimes(weeks)
	ch := newChart("Weekly Average (Plot B)", "Week", "Avg CO Level", yRange(ys),
		series("Weekly Avg", xs, ys, weeklyStyle))
	return ch.Render(chart.PNG, w)
}

// Combined overlays the weekly averages on a translucent copy of the original series.
func Combined(w io.Writer, readings []reading.Reading, weeks []reading.WeeklyAverage) error {
	if len(readings) == 0 || len(weeks) == 0 {
		return ErrNoData
	}

	rxs, rys := reading.Timestamps(readings), reading.Values(readings)
	wxs, wys := weekTimes(weeks)

	ch := newChart("Combined Time Series", "Time", "CO Level", yRange(rys, wys),
		series("Original", rxs, rys, translucentRawStyle),
		series("Weekly Avg", wxs, wys, weeklyStyle))
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	return ch.Render(chart.PNG, w)
}

// Renderer writes each chart to a PNG file in Dir.
type Renderer struct {
	Dir string
}

func (r Renderer) create(name string, render func(w io.Writer) error) (string, error) {
	dir, err := homedir.Expand(r.Dir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}

	if err := render(f); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("render %s: %w", name, err)
	}

	return path, f.Close()
}

func (r Renderer) Raw(readings []reading.Reading) (string, error) {
	return r.create(RawFile, func(w io.Writer) error {
		return Raw(w, readings)
	})
}

func (r Renderer) Weekly(weeks []reading.WeeklyAverage) (string, error) {
	return r.create(WeeklyFile, func(w io.Writer) error {
		return Weekly(w, weeks)
	})
}

func (r Renderer) Combined(readings []reading.Reading, weeks []reading.WeeklyAverage) (string, error) {
	return r.create(CombinedFile, func(w io.Writer) error {
		return Combined(w, readings, weeks)
	})
}
