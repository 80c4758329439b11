package db

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/mtraver/airquality/reading"
)

const (
	readingMeasurement = "reading"
	weeklyMeasurement  = WeeklyName
)

func newReadingPoints(readings []reading.Reading) []*write.Point {
	points := make([]*write.Point, 0, len(readings))
	for _, r := range readings {
		p := influxdb2.NewPointWithMeasurement(readingMeasurement).
			AddTag("source", r.Source()).
			AddField("value", r.Value).
			SetTime(r.Timestamp)
		points = append(points, p)
	}
	return points
}

// Weekly averages are stamped with the end of their week, which is also their label.
func newWeeklyPoints(weeks []reading.WeeklyAverage) []*write.Point {
	points := make([]*write.Point, 0, len(weeks))
	for _, w := range weeks {
		p := influxdb2.NewPointWithMeasurement(weeklyMeasurement).
			AddTag("week", w.Week).
			AddField("avg_value", w.AvgValue).
			AddField("count", w.Count).
			SetTime(w.WeekEnd())
		points = append(points, p)
	}
	return points
}

func readingsQuery(bucket string) string {
	return fmt.Sprintf(`from(bucket: %q)
  |> range(start: 0)
  |> filter(fn: (r) => r._measurement == %q and r._field == "value")
  |> group()
  |> sort(columns: ["_time"])`, bucket, readingMeasurement)
}

// InfluxDB stores readings and weekly averages as two measurements in one bucket.
// Points with the same source and timestamp overwrite each other, so unlike the other
// backends repeated runs don't duplicate raw readings.
type InfluxDB struct {
	client influxdb2.Client
	org    string
	bucket string
}

func NewInfluxDB(serverURL, token, org, bucket string) *InfluxDB {
	// Readings are hourly at most, so second precision loses nothing.
	opts := influxdb2.DefaultOptions().SetPrecision(time.Second)

	return &InfluxDB{
		client: influxdb2.NewClientWithOptions(serverURL, token, opts),
		org:    org,
		bucket: bucket,
	}
}

// EnsureReadings creates the bucket. It fails if the bucket already exists.
func (db *InfluxDB) EnsureReadings(ctx context.Context) error {
	org, err := db.client.OrganizationsAPI().FindOrganizationByName(ctx, db.org)
	if err != nil {
		return fmt.Errorf("find organization %q: %w", db.org, err)
	}

	if _, err := db.client.BucketsAPI().CreateBucketWithName(ctx, org, db.bucket); err != nil {
		return fmt.Errorf("create bucket %q: %w", db.bucket, err)
	}
	return nil
}

func (db *InfluxDB) write(ctx context.Context, points []*write.Point) error {
	if len(points) == 0 {
		return nil
	}
	return db.client.WriteAPIBlocking(db.org, db.bucket).WritePoint(ctx, points...)
}

func (db *InfluxDB) InsertReadings(ctx context.Context, readings []reading.Reading) error {
	if err := db.write(ctx, newReadingPoints(readings)); err != nil {
		return fmt.Errorf("write readings: %w", err)
	}
	return nil
}

func (db *InfluxDB) Readings(ctx context.Context) ([]reading.Reading, error) {
	result, err := db.client.QueryAPI(db.org).Query(ctx, readingsQuery(db.bucket))
	if err != nil {
		return nil, fmt.Errorf("query readings: %w", err)
	}
	defer result.Close()

	var out []reading.Reading
	for result.Next() {
		rec := result.Record()

		var v float64
		switch x := rec.Value().(type) {
		case float64:
			v = x
		case int64:
			v = float64(x)
		default:
			return nil, fmt.Errorf("query readings: unexpected value type %T", x)
		}

		source, _ := rec.ValueByKey("source").(string)
		out = append(out, reading.New(rec.Time().UTC(), v, source))
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("query readings: %w", err)
	}

	return out, nil
}

func (db *InfluxDB) InsertWeekly(ctx context.Context, weeks []reading.WeeklyAverage) error {
	if err := db.write(ctx, newWeeklyPoints(weeks)); err != nil {
		return fmt.Errorf("write weekly averages: %w", err)
	}
	return nil
}

func (db *InfluxDB) Close(ctx context.Context) error {
	db.client.Close()
	return nil
}
