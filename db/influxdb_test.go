package db

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/mtraver/airquality/reading"
)

var testTimestamp = time.Date(2004, time.March, 10, 18, 0, 0, 0, time.UTC)

func TestNewReadingPoints(t *testing.T) {
	cases := []struct {
		name     string
		readings []reading.Reading
		want     []*write.Point
	}{
		{
			name:     "empty",
			readings: nil,
			want:     []*write.Point{},
		},
		{
			name: "many",
			readings: []reading.Reading{
				reading.New(testTimestamp, 2.6, "air_quality"),
				reading.New(testTimestamp.Add(time.Hour), 2.0, "air_quality"),
			},
			want: []*write.Point{
				influxdb2.NewPointWithMeasurement("reading").AddTag("source", "air_quality").AddField("value", 2.6).SetTime(testTimestamp),
				influxdb2.NewPointWithMeasurement("reading").AddTag("source", "air_quality").AddField("value", 2.0).SetTime(testTimestamp.Add(time.Hour)),
			},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := newReadingPoints(c.readings)
			if diff := cmp.Diff(got, c.want, cmp.AllowUnexported(write.Point{})); diff != "" {
				t.Errorf("Unexpected result (-got +want):\n%s", diff)
			}
		})
	}
}

func TestNewWeeklyPoints(t *testing.T) {
	weeks := []reading.WeeklyAverage{
		{
			Week:      "2004-03-14 00:00:00",
			WeekStart: time.Date(2004, time.March, 8, 0, 0, 0, 0, time.UTC),
			AvgValue:  2.3,
			Count:     2,
		},
	}

	want := []*write.Point{
		influxdb2.NewPointWithMeasurement("weekly_avg").
			AddTag("week", "2004-03-14 00:00:00").
			AddField("avg_value", 2.3).
			AddField("count", 2).
			SetTime(time.Date(2004, time.March, 14, 0, 0, 0, 0, time.UTC)),
	}

	got := newWeeklyPoints(weeks)
	if diff := cmp.Diff(got, want, cmp.AllowUnexported(write.Point{})); diff != "" {
		t.Errorf("Unexpected result (-got +want):\n%s", diff)
	}
}

func TestReadingsQuery(t *testing.T) {
	q := readingsQuery("sensor_data")
	for _, want := range []string{`from(bucket: "sensor_data")`, `r._measurement == "reading"`, `sort(columns: ["_time"])`} {
		if !strings.Contains(q, want) {
			t.Errorf("Query %q does not contain %q", q, want)
		}
	}
}
