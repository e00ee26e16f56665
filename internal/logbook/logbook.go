package logbook

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a journal entry.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Entry is one parsed journal line.
type Entry struct {
	Time    time.Time
	Level   Level
	Scope   string
	Message string
}

// Logbook appends resolution progress to a plain text journal so a run can
// be inspected after the CLI exits. All methods are safe on a nil receiver.
type Logbook struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// New creates a logbook that writes to path, creating parent directories.
func New(path string) (*Logbook, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("logbook: ensure dir: %w", err)
	}
	return &Logbook{path: path, now: time.Now}, nil
}

// Path returns the file backing this logbook.
func (l *Logbook) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Append writes a single entry.
func (l *Logbook) Append(level Level, scope, message string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if scope == "" {
		scope = "-"
	}
	line := fmt.Sprintf("%s %-5s [%s] %s\n",
		l.now().UTC().Format(time.RFC3339),
		string(level),
		scope,
		strings.ReplaceAll(strings.TrimSpace(message), "\n", " | "),
	)
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return
	}
	defer file.Close()
	_, _ = file.WriteString(line)
}

// Tail returns up to maxLines of the most recent entries plus the total
// number of lines in the journal.
func (l *Logbook) Tail(maxLines int) ([]string, int) {
	if l == nil || maxLines <= 0 {
		return nil, 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	file, err := os.Open(l.path)
	if err != nil {
		return nil, 0
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	total := len(lines)
	if total == 0 {
		return nil, 0
	}
	if total > maxLines {
		lines = lines[total-maxLines:]
	}
	return lines, total
}

// Entries parses the most recent maxLines journal lines. Lines that do not
// follow the journal format are skipped.
func (l *Logbook) Entries(maxLines int) []Entry {
	lines, _ := l.Tail(maxLines)
	entries := make([]Entry, 0, len(lines))
	for _, line := range lines {
		if entry, ok := ParseLine(line); ok {
			entries = append(entries, entry)
		}
	}
	return entries
}

// ParseLine decodes a single journal line.
func ParseLine(line string) (Entry, bool) {
	fields := strings.SplitN(line, " ", 3)
	if len(fields) < 3 {
		return Entry{}, false
	}
	ts, err := time.Parse(time.RFC3339, fields[0])
	if err != nil {
		return Entry{}, false
	}
	rest := strings.TrimLeft(fields[2], " ")
	entry := Entry{Time: ts, Level: Level(fields[1])}
	if strings.HasPrefix(rest, "[") {
		if end := strings.Index(rest, "] "); end > 0 {
			entry.Scope = rest[1:end]
			rest = rest[end+2:]
		}
	}
	if entry.Scope == "-" {
		entry.Scope = ""
	}
	entry.Message = rest
	return entry, true
}

// Scope returns a view that tags every entry with name, typically the key
// of one resolution request.
func (l *Logbook) Scope(name string) *Scope {
	return &Scope{book: l, name: name}
}

// Info appends an informational entry.
func (l *Logbook) Info(format string, args ...any) {
	l.Append(LevelInfo, "", fmt.Sprintf(format, args...))
}

// Warn appends a warning entry.
func (l *Logbook) Warn(format string, args ...any) {
	l.Append(LevelWarn, "", fmt.Sprintf(format, args...))
}

// Error appends an error entry.
func (l *Logbook) Error(format string, args ...any) {
	l.Append(LevelError, "", fmt.Sprintf(format, args...))
}

// Scope writes entries tagged with a fixed name.
type Scope struct {
	book *Logbook
	name string
}

// Info appends an informational entry.
func (s *Scope) Info(format string, args ...any) {
	if s == nil {
		return
	}
	s.book.Append(LevelInfo, s.name, fmt.Sprintf(format, args...))
}

// Warn appends a warning entry.
func (s *Scope) Warn(format string, args ...any) {
	if s == nil {
		return
	}
	s.book.Append(LevelWarn, s.name, fmt.Sprintf(format, args...))
}

// Error appends an error entry.
func (s *Scope) Error(format string, args ...any) {
	if s == nil {
		return
	}
	s.book.Append(LevelError, s.name, fmt.Sprintf(format, args...))
}
