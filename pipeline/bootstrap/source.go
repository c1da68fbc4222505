package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// WorkItem is one unit of seed data.
type WorkItem struct {
	// Title names the item; it keys the terminal document section.
	Title string `json:"title"`
	// Background is the initial payload handed to the first stage.
	Background string `json:"background"`
}

// Seed returns the JSON payload carried by the item's initial envelope, so
// the first stage sees both the title and the background text.
func (w WorkItem) Seed() (string, error) {
	data, err := json.Marshal(w)
	if err != nil {
		return "", fmt.Errorf("marshal seed item: %w", err)
	}
	return string(data), nil
}

// Source supplies the seed items for bootstrap.
type Source interface {
	Load(ctx context.Context) ([]WorkItem, error)
}

// FileSource loads seed items from a JSON file holding an array of work
// items.
type FileSource struct {
	Path string
}

// NewFileSource creates a FileSource for the given path.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

// Load reads and parses the seed file.
func (s *FileSource) Load(ctx context.Context) ([]WorkItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var items []WorkItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	for i, item := range items {
		if item.Title == "" {
			return nil, fmt.Errorf("seed item %d has no title", i)
		}
	}
	return items, nil
}

// StaticSource returns a fixed item list. Used by tests.
type StaticSource []WorkItem

// Load returns the items unchanged.
func (s StaticSource) Load(ctx context.Context) ([]WorkItem, error) {
	return s, nil
}

var (
	_ Source = (*FileSource)(nil)
	_ Source = (StaticSource)(nil)
)
