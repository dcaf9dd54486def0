package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunGuardedSkipsOverlappingRun(t *testing.T) {
	s := New(Config{})

	var calls int32
	var wg sync.WaitGroup
	release := make(chan struct{})

	slow := func(ctx context.Context) (map[string]int64, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return nil, nil
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.runGuarded(context.Background(), "job", slow)
	}()

	// Give the first run a moment to claim the guard.
	time.Sleep(20 * time.Millisecond)
	s.runGuarded(context.Background(), "job", slow)

	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected slow job to run exactly once while in flight, ran %d times", got)
	}
}

func TestArchiveMovesExpiredFilesAndRemovesOriginals(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	archiveRoot := filepath.Join(dir, "archive")
	typeDir := filepath.Join(src, "trace")
	if err := os.MkdirAll(typeDir, 0o755); err != nil {
		t.Fatal(err)
	}
	filePath := filepath.Join(typeDir, "events.jsonl")
	if err := os.WriteFile(filePath, []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(filePath, old, old); err != nil {
		t.Fatal(err)
	}

	cfg := ArchiveConfig{
		SourceRoot:  src,
		ArchiveRoot: archiveRoot,
		HotExpiry:   24 * time.Hour,
	}
	counts, err := runArchive(context.Background(), cfg, time.Now)
	if err != nil {
		t.Fatalf("runArchive: %v", err)
	}
	if counts["archived"] != 1 {
		t.Fatalf("expected 1 archived file, got %d", counts["archived"])
	}
	if _, err := os.Stat(filePath); !os.IsNotExist(err) {
		t.Fatalf("expected original removed, stat err=%v", err)
	}
}

func TestPurgeRemovesFilesPastColdExpiry(t *testing.T) {
	dir := t.TempDir()
	typeDir := filepath.Join(dir, "trace")
	if err := os.MkdirAll(typeDir, 0o755); err != nil {
		t.Fatal(err)
	}
	filePath := filepath.Join(typeDir, "events.jsonl.gz")
	if err := os.WriteFile(filePath, []byte{}, 0o644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-90 * 24 * time.Hour)
	if err := os.Chtimes(filePath, old, old); err != nil {
		t.Fatal(err)
	}

	var indexDeleted bool
	cfg := PurgeConfig{
		ArchiveRoot: dir,
		ColdExpiry:  60 * 24 * time.Hour,
		DeleteIndex: func(ctx context.Context, dataType string, before time.Time) error {
			indexDeleted = true
			return nil
		},
	}
	counts, err := runPurge(context.Background(), cfg, time.Now)
	if err != nil {
		t.Fatalf("runPurge: %v", err)
	}
	if counts["removed"] != 1 {
		t.Fatalf("expected 1 removed file, got %d", counts["removed"])
	}
	if !indexDeleted {
		t.Fatal("expected search-index deletion to be requested")
	}
}
