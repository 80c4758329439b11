package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/mtraver/airquality/reading"
)

// MongoDB stores readings in a time-series collection and weekly averages in a plain one.
type MongoDB struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoDB connects to the server at uri and checks that it's reachable.
func NewMongoDB(ctx context.Context, uri, database string) (*MongoDB, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	return &MongoDB{
		client: client,
		db:     client.Database(database),
	}, nil
}

func timeSeriesOptions() *options.CreateCollectionOptions {
	return options.CreateCollection().SetTimeSeriesOptions(
		options.TimeSeries().
			SetTimeField("timestamp").
			SetMetaField("metadata").
			SetGranularity("minutes"),
	)
}

func (m *MongoDB) EnsureReadings(ctx context.Context) error {
	return m.db.CreateCollection(ctx, ReadingsName, timeSeriesOptions())
}

func readingDocs(readings []reading.Reading) []interface{} {
	docs := make([]interface{}, len(readings))
	for i, r := range readings {
		docs[i] = r
	}
	return docs
}

func weeklyDocs(weeks []reading.WeeklyAverage) []interface{} {
	docs := make([]interface{}, len(weeks))
	for i, w := range weeks {
		docs[i] = w
	}
	return docs
}

func (m *MongoDB) InsertReadings(ctx context.Context, readings []reading.Reading) error {
	if len(readings) == 0 {
		return nil
	}

	if _, err := m.db.Collection(ReadingsName).InsertMany(ctx, readingDocs(readings)); err != nil {
		return fmt.Errorf("insert readings: %w", err)
	}
	return nil
}

func (m *MongoDB) Readings(ctx context.Context) ([]reading.Reading, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	cursor, err := m.db.Collection(ReadingsName).Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find readings: %w", err)
	}
	defer cursor.Close(ctx)

	var out []reading.Reading
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode readings: %w", err)
	}
	return out, nil
}

func (m *MongoDB) InsertWeekly(ctx context.Context, weeks []reading.WeeklyAverage) error {
	if len(weeks) == 0 {
		return nil
	}

	if _, err := m.db.Collection(WeeklyName).InsertMany(ctx, weeklyDocs(weeks)); err != nil {
		return fmt.Errorf("insert weekly averages: %w", err)
	}
	return nil
}

func (m *MongoDB) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
