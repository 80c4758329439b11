package db

import (
	"context"
	"fmt"

	"cloud.google.com/go/datastore"
	"google.golang.org/api/iterator"

	"github.com/mtraver/airquality/reading"
)

const (
	// Datastore accepts at most this many entities in one PutMulti call, so a batch
	// is sent as several calls.
	putLimit = 500

	// Datastore queries are limited to this many entities, and multiple queries
	// are made to fetch all results.
	queryLimit = 1000
)

type DatastoreDB struct {
	client *datastore.Client
}

func NewDatastoreDB(ctx context.Context, projectID string) (*DatastoreDB, error) {
	client, err := datastore.NewClient(ctx, projectID)
	if err != nil {
		return nil, err
	}

	return &DatastoreDB{
		client: client,
	}, nil
}

// EnsureReadings is a no-op. Datastore kinds come into being with their first entity
// and every entity is indexed by its properties, timestamp included.
func (db *DatastoreDB) EnsureReadings(ctx context.Context) error {
	return nil
}

// span returns the [start, end) bounds that split n items into runs of at most size.
func span(n, size int) [][2]int {
	var out [][2]int
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		out = append(out, [2]int{start, end})
	}
	return out
}

func putAll[T any](ctx context.Context, client *datastore.Client, kind string, src []T) error {
	for _, s := range span(len(src), putLimit) {
		keys := make([]*datastore.Key, s[1]-s[0])
		for i := range keys {
			keys[i] = datastore.IncompleteKey(kind, nil)
		}

		if _, err := client.PutMulti(ctx, keys, src[s[0]:s[1]]); err != nil {
			return err
		}
	}
	return nil
}

func (db *DatastoreDB) InsertReadings(ctx context.Context, readings []reading.Reading) error {
	if err := putAll(ctx, db.client, ReadingsName, readings); err != nil {
		return fmt.Errorf("put readings: %w", err)
	}
	return nil
}

func (db *DatastoreDB) executeQuery(ctx context.Context, q *datastore.Query) ([]reading.Reading, error) {
	var results []reading.Reading

	// Don't modify the original query. We'll continue to derive queries from it
	// using a cursor to break apart the whole query into multiple smaller ones.
	derivedQuery := q.Limit(queryLimit)

	for {
		processed := 0

		it := db.client.Run(ctx, derivedQuery)
		for {
			var r reading.Reading
			_, err := it.Next(&r)
			if err == iterator.Done {
				cursor, err := it.Cursor()
				if err != nil {
					return nil, err
				}

				// The current query finished, so make a new one that starts
				// where it left off.
				derivedQuery = q.Start(cursor).Limit(queryLimit)
				break
			} else if err != nil {
				return nil, err
			}

			results = append(results, r)
			processed++
		}

		if processed < queryLimit {
			// The last query returned fewer results than the limit, meaning that a
			// subsequent query would return nothing, so we're done.
			break
		}
	}

	return results, nil
}

func (db *DatastoreDB) Readings(ctx context.Context) ([]reading.Reading, error) {
	q := datastore.NewQuery(ReadingsName).Order("timestamp")
	readings, err := db.executeQuery(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query readings: %w", err)
	}

	// Datastore hands back times in the local zone.
	for i := range readings {
		readings[i].Timestamp = readings[i].Timestamp.UTC()
	}
	return readings, nil
}

func (db *DatastoreDB) InsertWeekly(ctx context.Context, weeks []reading.WeeklyAverage) error {
	if err := putAll(ctx, db.client, WeeklyName, weeks); err != nil {
		return fmt.Errorf("put weekly averages: %w", err)
	}
	return nil
}

func (db *DatastoreDB) Close(ctx context.Context) error {
	return db.client.Close()
}
