package sigma

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/filetrack/removetrace/database"
)

const tmpDeletionRule = `title: Temp File Deletion
id: 11111111-2222-3333-4444-555555555555
status: test
level: high
logsource:
  category: file_delete
detection:
  selection:
    TargetFilename|startswith: '/tmp/'
  condition: selection
`

func testDetector(t *testing.T) *Detector {
	t.Helper()
	db, err := database.NewDB(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	rulesDir := t.TempDir()
	detector, err := NewDetector(rulesDir, db.Db)
	if err != nil {
		t.Fatalf("NewDetector failed: %v", err)
	}
	t.Cleanup(func() { detector.Close() })
	return detector
}

func writeRule(t *testing.T, detector *Detector, name, content string) {
	t.Helper()
	path := filepath.Join(detector.RulesDir, "enabled_rules", name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadAndMatch(t *testing.T) {
	detector := testDetector(t)
	writeRule(t, detector, "tmp_deletion.yml", tmpDeletionRule)
	if err := detector.LoadRules(); err != nil {
		t.Fatalf("LoadRules failed: %v", err)
	}
	if detector.RuleCount() != 1 {
		t.Fatalf("RuleCount = %d, want 1", detector.RuleCount())
	}

	ctx := context.Background()
	results := detector.CheckEvent(ctx, map[string]interface{}{
		"TargetFilename": "/tmp/secrets.txt",
		"Image":          "/usr/bin/shred",
	})
	if len(results) != 1 {
		t.Fatalf("got %d matches for /tmp path, want 1", len(results))
	}
	if results[0].Rule.Title != "Temp File Deletion" {
		t.Errorf("matched wrong rule: %s", results[0].Rule.Title)
	}

	results = detector.CheckEvent(ctx, map[string]interface{}{
		"TargetFilename": "/home/user/notes.txt",
	})
	if len(results) != 0 {
		t.Errorf("got %d matches for non-tmp path, want 0", len(results))
	}
}

func TestDisabledRulesAreInert(t *testing.T) {
	detector := testDetector(t)

	path := filepath.Join(detector.RulesDir, "disabled_rules", "tmp_deletion.yml")
	if err := os.WriteFile(path, []byte(tmpDeletionRule), 0644); err != nil {
		t.Fatal(err)
	}
	if err := detector.LoadRules(); err != nil {
		t.Fatal(err)
	}
	if detector.RuleCount() != 0 {
		t.Errorf("disabled rule was loaded, RuleCount = %d", detector.RuleCount())
	}
}

func TestBrokenRuleIsSkipped(t *testing.T) {
	detector := testDetector(t)
	writeRule(t, detector, "broken.yml", "title: [unclosed\n")
	writeRule(t, detector, "good.yml", tmpDeletionRule)

	if err := detector.LoadRules(); err != nil {
		t.Fatalf("LoadRules failed on a directory with one broken rule: %v", err)
	}
	if detector.RuleCount() != 1 {
		t.Errorf("RuleCount = %d, want 1", detector.RuleCount())
	}
}

func TestWatcherTriggersReload(t *testing.T) {
	detector := testDetector(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go detector.Run(ctx)

	writeRule(t, detector, "tmp_deletion.yml", tmpDeletionRule)

	deadline := time.Now().Add(3 * time.Second)
	for detector.RuleCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("rule not picked up after watcher event")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestStoreMatch(t *testing.T) {
	db, err := database.NewDB(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	detector, err := NewDetector(t.TempDir(), db.Db)
	if err != nil {
		t.Fatal(err)
	}
	defer detector.Close()
	writeRule(t, detector, "tmp_deletion.yml", tmpDeletionRule)
	if err := detector.LoadRules(); err != nil {
		t.Fatal(err)
	}

	event := map[string]interface{}{
		"id":             int64(7),
		"TargetFilename": "/tmp/secrets.txt",
		"Image":          "/usr/bin/shred",
		"User":           "builder",
	}
	results := detector.CheckEvent(context.Background(), event)
	if len(results) != 1 {
		t.Fatalf("got %d matches, want 1", len(results))
	}
	if err := detector.StoreMatch(results[0], event); err != nil {
		t.Fatalf("StoreMatch failed: %v", err)
	}

	matches, err := db.RecentMatches(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d stored matches, want 1", len(matches))
	}
	if matches[0].EventID != 7 || matches[0].Severity != "high" {
		t.Errorf("stored match fields wrong: %+v", matches[0])
	}
	if err := detector.StoreMatch(results[0], map[string]interface{}{}); err == nil {
		t.Error("StoreMatch accepted an event without an id")
	}
}
