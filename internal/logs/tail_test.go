package logs_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"stageflow/internal/logs"
)

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stageflow.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func TestLastReturnsTrailingLines(t *testing.T) {
	path := writeLog(t, "a\nb\nc\npartial")

	lines, offset, err := logs.Last(path, 2, nil)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	if len(lines) != 2 || lines[0] != "b" || lines[1] != "c" {
		t.Fatalf("unexpected lines: %#v", lines)
	}
	if offset != int64(len("a\nb\nc\n")) {
		t.Fatalf("expected offset before partial line, got %d", offset)
	}
}

func TestLastMissingFile(t *testing.T) {
	lines, offset, err := logs.Last(filepath.Join(t.TempDir(), "none.log"), 5, nil)
	if err != nil || len(lines) != 0 || offset != 0 {
		t.Fatalf("unexpected result %v %d %v", lines, offset, err)
	}
}

func TestForItemMatchesBothFormats(t *testing.T) {
	keep := logs.ForItem(42)
	cases := map[string]bool{
		`{"level":"INFO","msg":"moved","item_id":42}`:              true,
		`{"level":"INFO","msg":"moved","item_id":421}`:             false,
		`2026-03-02 09:00 INFO moved item_id=42 stage=Done`:        true,
		`2026-03-02 09:00 INFO moved item_id=4 stage=Done`:         false,
		`2026-03-02 09:00 INFO [workflow] Item #42 (Done) – moved`: true,
		`2026-03-02 09:00 INFO [workflow] Item #420 – moved`:       false,
		`not json {`: false,
	}
	for line, want := range cases {
		if got := keep(line); got != want {
			t.Fatalf("ForItem(%q) = %v, want %v", line, got, want)
		}
	}
}

func TestFollowEmitsAppendedLines(t *testing.T) {
	path := writeLog(t, "start\n")
	_, offset, err := logs.Last(path, 1, nil)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []string
	done := make(chan error, 1)
	go func() {
		done <- logs.Follow(ctx, path, offset, 10*time.Millisecond, nil, func(line string) {
			mu.Lock()
			got = append(got, line)
			mu.Unlock()
		})
	}()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	if _, err := f.WriteString("next\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	f.Close()

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "next" {
		t.Fatalf("unexpected followed lines %#v", got)
	}
}
