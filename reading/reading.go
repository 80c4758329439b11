// Package reading defines the sensor reading and weekly aggregate types shared by
// the ingest, storage and plotting packages, along with the statistics computed over them.
package reading

import (
	"fmt"
	"time"
)

// WeekLayout is the format of WeeklyAverage.Week.
const WeekLayout = "2006-01-02 15:04:05"

// Metadata is the time-series meta field attached to every stored Reading.
type Metadata struct {
	Source string `json:"source" bson:"source" datastore:"source"`
}

// Reading is one timestamped value parsed from a CSV row. It is created once and never updated.
type Reading struct {
	Timestamp time.Time `json:"timestamp" bson:"timestamp" datastore:"timestamp"`
	Value     float64   `json:"value" bson:"value" datastore:"value"`
	Metadata  Metadata  `json:"metadata" bson:"metadata" datastore:"metadata,flatten"`
}

// New returns a Reading with the given source as its metadata.
func New(ts time.Time, value float64, source string) Reading {
	return Reading{
		Timestamp: ts,
		Value:     value,
		Metadata:  Metadata{Source: source},
	}
}

// Source returns the name of the data set the Reading came from.
func (r Reading) Source() string {
	return r.Metadata.Source
}

func (r Reading) String() string {
	source := r.Metadata.Source
	if source == "" {
		source = "[unknown]"
	}

	return fmt.Sprintf("%s %.3f %s", source, r.Value, r.Timestamp.Format(time.RFC3339))
}

// Values returns the values of the given readings in order.
func Values(readings []Reading) []float64 {
	vals := make([]float64, len(readings))
	for i, r := range readings {
		vals[i] = r.Value
	}
	return vals
}

// Timestamps returns the timestamps of the given readings in order.
func Timestamps(readings []Reading) []time.Time {
	ts := make([]time.Time, len(readings))
	for i, r := range readings {
		ts[i] = r.Timestamp
	}
	return ts
}

// WeeklyAverage is the mean of all readings that fall in one calendar week.
//
// Weeks are anchored to their end: Week is the label of the bucket, the Sunday
// that closes it at midnight, formatted with WeekLayout. WeekStart is the Monday
// at midnight that opens it.
type WeeklyAverage struct {
	Week      string    `json:"week" bson:"week" datastore:"week"`
	WeekStart time.Time `json:"week_start" bson:"week_start" datastore:"week_start"`
	AvgValue  float64   `json:"avg_value" bson:"avg_value" datastore:"avg_value"`
	Count     int       `json:"count" bson:"count" datastore:"count"`
}

// WeekEnd returns the time at which the week's label is anchored.
func (w WeeklyAverage) WeekEnd() time.Time {
	return w.WeekStart.AddDate(0, 0, 6)
}

func (w WeeklyAverage) String() string {
	return fmt.Sprintf("%s %.3f (n=%d)", w.Week, w.AvgValue, w.Count)
}
