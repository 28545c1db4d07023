package reflection

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// LogFileName is the reflection log file inside a spec root.
const LogFileName = "REFLECTION_LOG.md"

const (
	entryHeading = "## Entry"
	fenceOpen    = "```yaml"
	fenceClose   = "```"
)

// FileLog is a Log backed by one REFLECTION_LOG.md per spec root.
// Entries are appended as markdown sections carrying a fenced YAML block,
// so the log stays both human-readable and machine-foldable.
type FileLog struct {
	root string

	mu sync.Mutex
}

// NewFileLog creates a file log rooted at the given spec root directory.
func NewFileLog(root string) *FileLog {
	return &FileLog{root: root}
}

// Path returns the log file path.
func (l *FileLog) Path() string {
	return filepath.Join(l.root, LogFileName)
}

// Append adds one entry to the log file, creating it if needed. The file
// is opened O_APPEND; existing content is never rewritten.
func (l *FileLog) Append(ctx context.Context, entry Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if entry.SpecID == "" {
		return fmt.Errorf("reflection entry requires a spec id")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	body, err := yaml.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal reflection entry: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.Path(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open reflection log: %w", err)
	}
	defer f.Close()

	section := fmt.Sprintf("%s %s\n\n%s\n%s%s\n\n",
		entryHeading, entry.CreatedAt.Format(time.RFC3339), fenceOpen, body, fenceClose)
	if _, err := f.WriteString(section); err != nil {
		return fmt.Errorf("append reflection entry: %w", err)
	}
	return nil
}

// Entries folds over the full log and returns the entries for one spec in
// creation order. A missing file is an empty log, not an error.
func (l *FileLog) Entries(ctx context.Context, specID string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	raw, err := os.ReadFile(l.Path())
	l.mu.Unlock()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read reflection log: %w", err)
	}

	var entries []Entry
	for _, block := range extractYAMLBlocks(string(raw)) {
		var e Entry
		if err := yaml.Unmarshal([]byte(block), &e); err != nil {
			return nil, fmt.Errorf("parse reflection entry: %w", err)
		}
		if e.SpecID == specID {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// extractYAMLBlocks returns the contents of every fenced yaml block that
// follows an entry heading.
func extractYAMLBlocks(doc string) []string {
	var blocks []string
	lines := strings.Split(doc, "\n")
	inEntry := false
	inBlock := false
	var cur []string
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, entryHeading):
			inEntry = true
		case inEntry && !inBlock && strings.TrimSpace(line) == fenceOpen:
			inBlock = true
			cur = cur[:0]
		case inBlock && strings.TrimSpace(line) == fenceClose:
			inBlock = false
			inEntry = false
			blocks = append(blocks, strings.Join(cur, "\n"))
		case inBlock:
			cur = append(cur, line)
		}
	}
	return blocks
}

// MemoryLog is an in-memory Log for tests.
type MemoryLog struct {
	mu      sync.Mutex
	entries map[string][]Entry
}

// NewMemoryLog creates an empty in-memory log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{entries: make(map[string][]Entry)}
}

// Append adds one entry.
func (l *MemoryLog) Append(ctx context.Context, entry Entry) error {
	if entry.SpecID == "" {
		return fmt.Errorf("reflection entry requires a spec id")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[entry.SpecID] = append(l.entries[entry.SpecID], entry)
	return nil
}

// Entries returns the entries for one spec in creation order.
func (l *MemoryLog) Entries(ctx context.Context, specID string) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries[specID]))
	copy(out, l.entries[specID])
	return out, nil
}
