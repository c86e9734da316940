// Package archive persists generated social posts to a flat JSON file.
// The whole file is read and rewritten on every append; the archive is a
// small personal history, not a database.
package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Record is one archived post.
type Record struct {
	ID        string    `json:"id"`
	Provider  string    `json:"provider"`
	Platform  string    `json:"platform"`
	Topic     string    `json:"topic"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Archive appends records to a JSON file. All methods are safe for
// concurrent use within one process; the file itself is single-writer.
type Archive struct {
	mu   sync.Mutex
	path string
}

func New(path string) *Archive {
	return &Archive{path: path}
}

// Append stores a new record and returns it with its generated id.
func (a *Archive) Append(provider, platform, topic, content string) (Record, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	records, err := a.load()
	if err != nil {
		return Record{}, err
	}

	rec := Record{
		ID:        uuid.NewString(),
		Provider:  provider,
		Platform:  platform,
		Topic:     topic,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	records = append(records, rec)

	if err := a.write(records); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// List returns all archived records, oldest first. A missing file is an
// empty archive, not an error.
func (a *Archive) List() ([]Record, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.load()
}

func (a *Archive) load() ([]Record, error) {
	raw, err := os.ReadFile(a.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var records []Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode archive: %w", err)
	}
	return records, nil
}

// write rewrites the whole file through a temp rename so a crash mid-write
// never leaves a truncated archive.
func (a *Archive) write(records []Record) error {
	raw, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode archive: %w", err)
	}

	dir := filepath.Dir(a.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".archive-*")
	if err != nil {
		return fmt.Errorf("create temp archive: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close archive: %w", err)
	}
	if err := os.Rename(tmp.Name(), a.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace archive: %w", err)
	}
	return nil
}
