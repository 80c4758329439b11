// Package pipeline runs the ingest, store, summarize, resample and plot steps in order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mtraver/airquality/db"
	"github.com/mtraver/airquality/ingest"
	"github.com/mtraver/airquality/plot"
	"github.com/mtraver/airquality/reading"
)

// Plotter renders the three charts and returns where each one was written.
type Plotter interface {
	Raw(readings []reading.Reading) (string, error)
	Weekly(weeks []reading.WeeklyAverage) (string, error)
	Combined(readings []reading.Reading, weeks []reading.WeeklyAverage) (string, error)
}

type Options struct {
	CSVPath string
	Ingest  ingest.Options

	// Plotter may be nil, in which case no charts are rendered.
	Plotter Plotter
}

// Report describes what a run did.
type Report struct {
	// Parsed and Dropped count the CSV rows that were and weren't turned into readings.
	Parsed  int
	Dropped int

	// Stored is the number of readings read back from the store. Because runs are
	// not idempotent this includes readings inserted by earlier runs.
	Stored int

	Summary reading.Summary
	Weekly  []reading.WeeklyAverage
	Plots   []string
}

// Print writes the statistics to w.
func (r Report) Print(w io.Writer) {
	fmt.Fprintf(w, "Rows: %d parsed, %d dropped, %d stored\n", r.Parsed, r.Dropped, r.Stored)
	fmt.Fprintln(w, "Mean:", r.Summary.Mean)
	fmt.Fprintln(w, "Median:", r.Summary.Median)
	fmt.Fprintln(w, "Std Dev:", r.Summary.StdDev)
	fmt.Fprintln(w, "Min:", r.Summary.Min)
	fmt.Fprintln(w, "Max:", r.Summary.Max)
	fmt.Fprintf(w, "Weeks: %d\n", len(r.Weekly))
}

type runner struct {
	opts   Options
	logger *slog.Logger
	report Report
}

// render calls f unless plotting is disabled. A chart with nothing to draw is skipped
// with a warning; any other rendering error is returned.
func (r *runner) render(name string, f func(p Plotter) (string, error)) error {
	if r.opts.Plotter == nil {
		return nil
	}

	path, err := f(r.opts.Plotter)
	if errors.Is(err, plot.ErrNoData) {
		r.logger.Warn("nothing to plot", "chart", name)
		return nil
	} else if err != nil {
		return fmt.Errorf("plot %s: %w", name, err)
	}

	r.logger.Info("rendered chart", "chart", name, "path", path)
	r.report.Plots = append(r.report.Plots, path)
	return nil
}

// Run executes the pipeline against store. Only the failure to create the readings
// container is tolerated; every other error ends the run.
func Run(ctx context.Context, opts Options, store db.Store, logger *slog.Logger) (Report, error) {
	r := &runner{
		opts:   opts,
		logger: logger,
	}

	// Load.
	res, err := ingest.LoadFile(opts.CSVPath, opts.Ingest)
	if err != nil {
		return r.report, fmt.Errorf("load %s: %w", opts.CSVPath, err)
	}
	r.report.Parsed = len(res.Readings)
	r.report.Dropped = res.Dropped
	logger.Info("loaded csv", "path", opts.CSVPath, "parsed", r.report.Parsed, "dropped", r.report.Dropped)
	if n := len(res.Readings); n > 0 {
		logger.Debug("parsed readings", "first", res.Readings[0].String(), "last", res.Readings[n-1].String())
	}

	// Store raw readings.
	if err := store.EnsureReadings(ctx); err != nil {
		logger.Warn("collection may already exist", "collection", db.ReadingsName, "err", err)
	}
	if err := store.InsertReadings(ctx, res.Readings); err != nil {
		return r.report, err
	}
	logger.Info("stored readings", "collection", db.ReadingsName, "count", len(res.Readings))

	// Read back and summarize.
	stored, err := store.Readings(ctx)
	if err != nil {
		return r.report, err
	}
	r.report.Stored = len(stored)
	r.report.Summary = reading.Summarize(reading.Values(stored))
	logger.Info("summary", "count", r.report.Summary.Count, "mean", r.report.Summary.Mean,
		"median", r.report.Summary.Median, "stddev", r.report.Summary.StdDev)

	if err := r.render("raw", func(p Plotter) (string, error) { return p.Raw(stored) }); err != nil {
		return r.report, err
	}

	// Resample.
	weeks := reading.Weekly(res.Readings)
	r.report.Weekly = weeks
	for _, w := range weeks {
		logger.Debug("weekly average", "week", w.String())
	}

	if err := r.render("weekly", func(p Plotter) (string, error) { return p.Weekly(weeks) }); err != nil {
		return r.report, err
	}

	// Store weekly averages.
	if err := store.InsertWeekly(ctx, weeks); err != nil {
		return r.report, err
	}
	logger.Info("stored weekly averages", "collection", db.WeeklyName, "count", len(weeks))

	if err := r.render("combined", func(p Plotter) (string, error) { return p.Combined(stored, weeks) }); err != nil {
		return r.report, err
	}

	return r.report, nil
}
