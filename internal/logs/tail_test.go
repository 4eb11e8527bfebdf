package logs_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/aishuidedabai/whistle/internal/logs"
)

func TestLastLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.log")
	content := "a\nb\nc\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	lines, pos, err := logs.Last(path, 2)
	if err != nil {
		t.Fatalf("Last returned error: %v", err)
	}
	if diff := cmp.Diff([]string{"b", "c"}, lines); diff != "" {
		t.Fatalf("lines mismatch (-want +got):\n%s", diff)
	}
	if pos.Offset != int64(len(content)) {
		t.Fatalf("offset = %d, want %d", pos.Offset, len(content))
	}
}

func TestLastFewerLinesThanLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.log")
	if err := os.WriteFile(path, []byte("only\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	lines, _, err := logs.Last(path, 10)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	if diff := cmp.Diff([]string{"only"}, lines); diff != "" {
		t.Fatalf("lines mismatch (-want +got):\n%s", diff)
	}
}

func TestLastMissingFile(t *testing.T) {
	lines, pos, err := logs.Last(filepath.Join(t.TempDir(), "missing.log"), 5)
	if err != nil || len(lines) != 0 || pos.Offset != 0 {
		t.Fatalf("Last on missing file = %v, %d, %v", lines, pos.Offset, err)
	}
}

func TestLastRejectsDirectory(t *testing.T) {
	if _, _, err := logs.Last(t.TempDir(), 5); err == nil {
		t.Fatal("expected error for directory")
	}
}

func TestFollowEmitsAppendedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.log")
	if err := os.WriteFile(path, []byte("start\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	_, pos, err := logs.Last(path, 1)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var mu sync.Mutex
	var got []string
	done := make(chan error, 1)
	go func() {
		done <- logs.Follow(ctx, path, pos, 10*time.Millisecond, func(line string) {
			mu.Lock()
			got = append(got, line)
			if len(got) == 2 {
				cancel()
			}
			mu.Unlock()
		})
	}()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	if _, err := f.WriteString("later\npart"); err != nil {
		t.Fatalf("append: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if _, err := f.WriteString("ial\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	_ = f.Close()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Follow returned %v, want context.Canceled", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if diff := cmp.Diff([]string{"later", "partial"}, got); diff != "" {
		t.Fatalf("followed lines mismatch (-want +got):\n%s", diff)
	}
}

func TestFollowRestartsAfterTruncation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.log")
	if err := os.WriteFile(path, []byte("old line one\nold line two\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	_, pos, err := logs.Last(path, 0)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	if err := os.WriteFile(path, []byte("new\n"), 0o644); err != nil {
		t.Fatalf("truncate log: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var got []string
	err = logs.Follow(ctx, path, pos, 10*time.Millisecond, func(line string) {
		got = append(got, line)
		cancel()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Follow returned %v", err)
	}
	if diff := cmp.Diff([]string{"new"}, got); diff != "" {
		t.Fatalf("lines mismatch (-want +got):\n%s", diff)
	}
}

func TestLastWithoutLimitReturnsEverything(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.log")
	if err := os.WriteFile(path, []byte("a\nb\nc\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	lines, _, err := logs.Last(path, 0)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, lines); diff != "" {
		t.Fatalf("lines mismatch (-want +got):\n%s", diff)
	}
}

func TestLastHoldsBackPartialLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.log")
	if err := os.WriteFile(path, []byte("first\nhal"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	lines, pos, err := logs.Last(path, 5)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	if diff := cmp.Diff([]string{"first"}, lines); diff != "" {
		t.Fatalf("lines mismatch (-want +got):\n%s", diff)
	}
	if pos.Offset != int64(len("first\n")) {
		t.Fatalf("offset = %d, want %d", pos.Offset, len("first\n"))
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	if _, err := f.WriteString("f done\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	_ = f.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var got []string
	err = logs.Follow(ctx, path, pos, 10*time.Millisecond, func(line string) {
		got = append(got, line)
		cancel()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Follow returned %v", err)
	}
	if diff := cmp.Diff([]string{"half done"}, got); diff != "" {
		t.Fatalf("followed lines mismatch (-want +got):\n%s", diff)
	}
}

func TestFollowRestartsAfterLongerRewrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.log")
	if err := os.WriteFile(path, []byte("old line one\nold line two\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	_, pos, err := logs.Last(path, 0)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	// Same file truncated and refilled past the previous offset before the
	// first poll, as a restarted engine does.
	rewrite := "fresh engine output line one\nfresh engine output line two\n"
	if err := os.WriteFile(path, []byte(rewrite), 0o644); err != nil {
		t.Fatalf("rewrite log: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var got []string
	err = logs.Follow(ctx, path, pos, 10*time.Millisecond, func(line string) {
		got = append(got, line)
		if len(got) == 2 {
			cancel()
		}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Follow returned %v", err)
	}
	want := []string{"fresh engine output line one", "fresh engine output line two"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("lines mismatch (-want +got):\n%s", diff)
	}
}
