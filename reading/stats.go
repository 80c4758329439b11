package reading

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary holds the descriptive statistics of a value series.
type Summary struct {
	Count  int
	Mean   float64
	Median float64
	StdDev float64
	Min    float64
	Max    float64
}

// Summarize computes the statistics of vals. Every statistic of an empty series is NaN.
func Summarize(vals []float64) Summary {
	if len(vals) == 0 {
		nan := math.NaN()
		return Summary{Mean: nan, Median: nan, StdDev: nan, Min: nan, Max: nan}
	}

	mean, std := stat.PopMeanStdDev(vals, nil)
	return Summary{
		Count:  len(vals),
		Mean:   mean,
		Median: Median(vals),
		StdDev: std,
		Min:    floats.Min(vals),
		Max:    floats.Max(vals),
	}
}

// Mean returns the arithmetic mean of vals, or NaN if vals is empty.
func Mean(vals []float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	return stat.Mean(vals, nil)
}

// Median returns the middle value of vals, averaging the two middle values when
// the length is even. It does not modify vals.
func Median(vals []float64) float64 {
	n := len(vals)
	if n == 0 {
		return math.NaN()
	}

	sorted := make([]float64, n)
	copy(sorted, vals)
	sort.Float64s(sorted)

	// The empirical quantile at 0.5 is the lower of the two middle values.
	m := stat.Quantile(0.5, stat.Empirical, sorted, nil)
	if n%2 == 1 {
		return m
	}
	return (m + sorted[n/2]) / 2
}

// StdDev returns the population standard deviation of vals (the sum of squared
// deviations is divided by N, not N-1).
func StdDev(vals []float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	_, std := stat.PopMeanStdDev(vals, nil)
	return std
}

// WeekEnding returns the Sunday at midnight that closes the calendar week containing t.
// A reading taken at any time on a Sunday belongs to the week ending that day.
func WeekEnding(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	offset := (7 - int(day.Weekday())) % 7
	return day.AddDate(0, 0, offset)
}

// Weekly resamples readings into calendar weeks anchored to the week end and
// averages the values in each. The result is in chronological order. Weeks that
// contain no readings are absent.
func Weekly(readings []Reading) []WeeklyAverage {
	type bucket struct {
		sum   float64
		count int
	}

	// Keyed by Unix seconds since time.Time values with different *Location
	// pointers don't compare equal.
	buckets := make(map[int64]*bucket)
	ends := []time.Time{}
	for _, r := range readings {
		end := WeekEnding(r.Timestamp)
		b, ok := buckets[end.Unix()]
		if !ok {
			b = &bucket{}
			buckets[end.Unix()] = b
			ends = append(ends, end)
		}
		b.sum += r.Value
		b.count++
	}

	sort.Slice(ends, func(i, j int) bool {
		return ends[i].Before(ends[j])
	})

	weeks := make([]WeeklyAverage, 0, len(ends))
	for _, end := range ends {
		b := buckets[end.Unix()]
		weeks = append(weeks, WeeklyAverage{
			Week:      end.Format(WeekLayout),
			WeekStart: end.AddDate(0, 0, -6),
			AvgValue:  b.sum / float64(b.count),
			Count:     b.count,
		})
	}

	return weeks
}
