package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/mtraver/airquality/reading"
)

func setupTestDB(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(context.Background()); err != nil {
			t.Errorf("close db: %v", err)
		}
	})
	return s
}

func weeklyCount(t *testing.T, s *SQLite) int {
	t.Helper()
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM weekly_avg`).Scan(&n); err != nil {
		t.Fatalf("count weekly_avg: %v", err)
	}
	return n
}

func testReadings() []reading.Reading {
	return []reading.Reading{
		reading.New(testTimestamp.Add(2*time.Hour), -200, "air_quality"),
		reading.New(testTimestamp, 2.6, "air_quality"),
		reading.New(testTimestamp.Add(time.Hour), 2.0, "air_quality"),
	}
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := setupTestDB(t)

	if err := s.EnsureReadings(ctx); err != nil {
		t.Fatalf("EnsureReadings: %v", err)
	}
	if err := s.InsertReadings(ctx, testReadings()); err != nil {
		t.Fatalf("InsertReadings: %v", err)
	}

	got, err := s.Readings(ctx)
	if err != nil {
		t.Fatalf("Readings: %v", err)
	}

	want := []reading.Reading{
		reading.New(testTimestamp, 2.6, "air_quality"),
		reading.New(testTimestamp.Add(time.Hour), 2.0, "air_quality"),
		reading.New(testTimestamp.Add(2*time.Hour), -200, "air_quality"),
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Unexpected result (-got +want):\n%s", diff)
	}
}

func TestSQLiteSubSecondOrder(t *testing.T) {
	ctx := context.Background()
	s := setupTestDB(t)

	if err := s.EnsureReadings(ctx); err != nil {
		t.Fatalf("EnsureReadings: %v", err)
	}

	offsets := []time.Duration{
		550 * time.Millisecond,
		500 * time.Millisecond,
		time.Second,
		0,
		123456789 * time.Nanosecond,
	}
	var in []reading.Reading
	for i, d := range offsets {
		in = append(in, reading.New(testTimestamp.Add(d), float64(i), "air_quality"))
	}
	if err := s.InsertReadings(ctx, in); err != nil {
		t.Fatalf("InsertReadings: %v", err)
	}

	got, err := s.Readings(ctx)
	if err != nil {
		t.Fatalf("Readings: %v", err)
	}

	want := []reading.Reading{
		reading.New(testTimestamp, 3, "air_quality"),
		reading.New(testTimestamp.Add(123456789*time.Nanosecond), 4, "air_quality"),
		reading.New(testTimestamp.Add(500*time.Millisecond), 1, "air_quality"),
		reading.New(testTimestamp.Add(550*time.Millisecond), 0, "air_quality"),
		reading.New(testTimestamp.Add(time.Second), 2, "air_quality"),
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Readings not in timestamp order (-got +want):\n%s", diff)
	}
}

func TestSQLiteEnsureReadingsTwice(t *testing.T) {
	ctx := context.Background()
	s := setupTestDB(t)

	if err := s.EnsureReadings(ctx); err != nil {
		t.Fatalf("EnsureReadings: %v", err)
	}
	if err := s.EnsureReadings(ctx); err == nil {
		t.Errorf("Expected error creating the readings table twice, got nil")
	}
}

func TestSQLiteInsertWithoutTable(t *testing.T) {
	s := setupTestDB(t)

	if err := s.InsertReadings(context.Background(), testReadings()); err == nil {
		t.Errorf("Expected error inserting before the table exists, got nil")
	}
}

func TestSQLiteInsertWeeklyDuplicates(t *testing.T) {
	ctx := context.Background()
	s := setupTestDB(t)

	weeks := reading.Weekly(testReadings())
	for i := 0; i < 2; i++ {
		if err := s.InsertWeekly(ctx, weeks); err != nil {
			t.Fatalf("InsertWeekly #%d: %v", i, err)
		}
	}

	if got := weeklyCount(t, s); got != 2*len(weeks) {
		t.Errorf("Got %d weekly rows, want %d", got, 2*len(weeks))
	}
}

func TestSQLiteFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "air_quality.db")

	s, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := s.EnsureReadings(ctx); err != nil {
		t.Fatalf("EnsureReadings: %v", err)
	}
	if err := s.InsertReadings(ctx, testReadings()); err != nil {
		t.Fatalf("InsertReadings: %v", err)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatalf("close db: %v", err)
	}

	s, err = NewSQLite(path)
	if err != nil {
		t.Fatalf("reopen db: %v", err)
	}
	defer s.Close(ctx)

	got, err := s.Readings(ctx)
	if err != nil {
		t.Fatalf("Readings: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("Got %d readings after reopening, want 3", len(got))
	}
}
