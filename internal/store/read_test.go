package store

import (
	"context"
	"testing"
)

func TestReadWindow_Empty(t *testing.T) {
	s := createTestStore(t)

	records, err := s.ReadWindow(context.Background(), 0, 10)
	if err != nil {
		t.Fatalf("ReadWindow() failed: %v", err)
	}
	if records == nil {
		t.Error("records is nil, want empty slice")
	}
	if len(records) != 0 {
		t.Errorf("len(records) = %d, want 0", len(records))
	}
}

func TestReadWindow_HalfOpenRange(t *testing.T) {
	s := createTestStore(t)
	seedRecords(t, s,
		Record{Channel: "a", Timestamp: 4, Value: 1},
		Record{Channel: "a", Timestamp: 5, Value: 2},
		Record{Channel: "a", Timestamp: 9, Value: 3},
		Record{Channel: "a", Timestamp: 10, Value: 4},
	)

	records, err := s.ReadWindow(context.Background(), 5, 10)
	if err != nil {
		t.Fatalf("ReadWindow() failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	if records[0].Timestamp != 5 || records[1].Timestamp != 9 {
		t.Errorf("timestamps = [%d %d], want [5 9]", records[0].Timestamp, records[1].Timestamp)
	}
}

func TestReadWindow_OrderedByTimestampThenInsertion(t *testing.T) {
	s := createTestStore(t)
	seedRecords(t, s,
		Record{Channel: "b", Timestamp: 3, Value: 30},
		Record{Channel: "a", Timestamp: 1, Value: 10},
		Record{Channel: "a", Timestamp: 3, Value: 31},
		Record{Channel: "c", Timestamp: 2, Value: 20},
	)

	records, err := s.ReadWindow(context.Background(), 0, 100)
	if err != nil {
		t.Fatalf("ReadWindow() failed: %v", err)
	}

	want := []Record{
		{Channel: "a", Timestamp: 1, Value: 10},
		{Channel: "c", Timestamp: 2, Value: 20},
		{Channel: "b", Timestamp: 3, Value: 30},
		{Channel: "a", Timestamp: 3, Value: 31},
	}
	if len(records) != len(want) {
		t.Fatalf("len(records) = %d, want %d", len(records), len(want))
	}
	for i := range want {
		if records[i] != want[i] {
			t.Errorf("records[%d] = %+v, want %+v", i, records[i], want[i])
		}
	}
}

func TestReadWindow_NormalizesChannel(t *testing.T) {
	s := createTestStore(t)
	seedRecords(t, s, Record{Channel: "cafe\u0301", Timestamp: 1, Value: 1})

	records, err := s.ReadWindow(context.Background(), 0, 2)
	if err != nil {
		t.Fatalf("ReadWindow() failed: %v", err)
	}
	if len(records) != 1 || records[0].Channel != "caf\u00e9" {
		t.Errorf("records = %+v, want channel in composed form", records)
	}
}

func TestCountWindow(t *testing.T) {
	s := createTestStore(t)
	seedRecords(t, s,
		Record{Channel: "a", Timestamp: 0, Value: 1},
		Record{Channel: "b", Timestamp: 4, Value: 1},
		Record{Channel: "a", Timestamp: 5, Value: 1},
	)

	n, err := s.CountWindow(context.Background(), 0, 5)
	if err != nil {
		t.Fatalf("CountWindow() failed: %v", err)
	}
	if n != 2 {
		t.Errorf("CountWindow() = %d, want 2", n)
	}
}

func TestBounds(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, _, ok, err := s.Bounds(ctx)
	if err != nil {
		t.Fatalf("Bounds() on empty table failed: %v", err)
	}
	if ok {
		t.Error("Bounds() ok = true on empty table")
	}

	seedRecords(t, s,
		Record{Channel: "a", Timestamp: 7, Value: 1},
		Record{Channel: "b", Timestamp: 3, Value: 1},
		Record{Channel: "a", Timestamp: 12, Value: 1},
	)

	lo, hi, ok, err := s.Bounds(ctx)
	if err != nil {
		t.Fatalf("Bounds() failed: %v", err)
	}
	if !ok || lo != 3 || hi != 12 {
		t.Errorf("Bounds() = (%d, %d, %v), want (3, 12, true)", lo, hi, ok)
	}
}
