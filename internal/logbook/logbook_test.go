package logbook

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestTailReturnsRecentLinesAndTotal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "resolve.log")
	book, err := New(path)
	if err != nil {
		t.Fatalf("new logbook: %v", err)
	}
	for i := 0; i < 5; i++ {
		book.Info("entry-%d", i)
	}
	lines, total := book.Tail(3)
	if total != 5 {
		t.Fatalf("total lines = %d, want 5", total)
	}
	if len(lines) != 3 {
		t.Fatalf("len(lines) = %d, want 3", len(lines))
	}
	for idx, want := range []string{"entry-2", "entry-3", "entry-4"} {
		if !strings.Contains(lines[idx], want) {
			t.Fatalf("line %d = %q, missing %s", idx, lines[idx], want)
		}
	}
}

func TestScopedEntriesRoundTrip(t *testing.T) {
	book, err := New(filepath.Join(t.TempDir(), "resolve.log"))
	if err != nil {
		t.Fatalf("new logbook: %v", err)
	}
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	book.now = func() time.Time { return fixed }

	book.Scope("Linux/development").Warn("ambiguous %s", "Json")
	book.Error("multi\nline")
	entries := book.Entries(10)
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	first := entries[0]
	if first.Level != LevelWarn || first.Scope != "Linux/development" || first.Message != "ambiguous Json" {
		t.Fatalf("unexpected first entry %+v", first)
	}
	if !first.Time.Equal(fixed) {
		t.Fatalf("time = %v", first.Time)
	}
	second := entries[1]
	if second.Scope != "" || second.Message != "multi | line" || second.Level != LevelError {
		t.Fatalf("unexpected second entry %+v", second)
	}
}

func TestNilLogbookIsSafe(t *testing.T) {
	var book *Logbook
	book.Info("ignored")
	book.Scope("x").Error("ignored")
	if lines, total := book.Tail(5); lines != nil || total != 0 {
		t.Fatalf("nil logbook tail should be empty")
	}
	if book.Path() != "" {
		t.Fatalf("nil logbook path should be empty")
	}
}

func TestParseLineRejectsGarbage(t *testing.T) {
	if _, ok := ParseLine("not a journal line"); ok {
		t.Fatalf("expected garbage to be rejected")
	}
}
