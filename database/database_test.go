package database

import (
	"testing"
	"time"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(t.TempDir())
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testRecord(ino uint64, path string) *RemovalRecord {
	return &RemovalRecord{
		Timestamp: time.Now(),
		PID:       1234,
		Comm:      "rm",
		CmdLine:   "rm " + path,
		ExePath:   "/usr/bin/rm",
		Username:  "builder",
		Dev:       64769,
		Ino:       ino,
		Path:      path,
	}
}

func TestInsertAndQueryRemovals(t *testing.T) {
	db := testDB(t)

	id1, err := db.InsertRemoval(testRecord(100, "/tmp/a"))
	if err != nil {
		t.Fatalf("InsertRemoval failed: %v", err)
	}
	id2, err := db.InsertRemoval(testRecord(200, "/tmp/b"))
	if err != nil {
		t.Fatalf("InsertRemoval failed: %v", err)
	}
	if id2 <= id1 {
		t.Errorf("row ids not increasing: %d then %d", id1, id2)
	}

	records, err := db.RecentRemovals(10)
	if err != nil {
		t.Fatalf("RecentRemovals failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	// Newest first
	if records[0].Ino != 200 || records[1].Ino != 100 {
		t.Errorf("unexpected order: %d, %d", records[0].Ino, records[1].Ino)
	}
	if records[0].Comm != "rm" || records[0].Username != "builder" {
		t.Errorf("enrichment fields lost: %+v", records[0])
	}
}

func TestRemovalsByIdentity(t *testing.T) {
	db := testDB(t)

	// Same object removed twice (recreated in between), another object once
	if _, err := db.InsertRemoval(testRecord(100, "/tmp/a")); err != nil {
		t.Fatal(err)
	}
	if _, err := db.InsertRemoval(testRecord(100, "/tmp/a-renamed")); err != nil {
		t.Fatal(err)
	}
	if _, err := db.InsertRemoval(testRecord(200, "/tmp/b")); err != nil {
		t.Fatal(err)
	}

	records, err := db.RemovalsByIdentity(64769, 100)
	if err != nil {
		t.Fatalf("RemovalsByIdentity failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records for identity, want 2", len(records))
	}
	for _, r := range records {
		if r.Ino != 100 {
			t.Errorf("record for wrong identity: %+v", r)
		}
	}
}

func TestCountRemovals(t *testing.T) {
	db := testDB(t)

	count, err := db.CountRemovals()
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("empty journal count = %d", count)
	}

	if _, err := db.InsertRemoval(testRecord(1, "/tmp/x")); err != nil {
		t.Fatal(err)
	}

	count, err = db.CountRemovals()
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestRecentMatchesEmpty(t *testing.T) {
	db := testDB(t)

	records, err := db.RecentMatches(10)
	if err != nil {
		t.Fatalf("RecentMatches failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("got %d matches from empty journal", len(records))
	}
}

func TestLargeInodeRoundTrip(t *testing.T) {
	db := testDB(t)

	// Inodes can exceed int64 when stored naively; make sure the
	// round-trip through SQLite preserves the value.
	rec := testRecord(1<<63+17, "/tmp/huge")
	if _, err := db.InsertRemoval(rec); err != nil {
		t.Fatal(err)
	}

	records, err := db.RecentRemovals(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Ino != rec.Ino {
		t.Errorf("inode mangled in round-trip: got %v", records)
	}
}
