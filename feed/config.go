package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/robertmeta/swipe-news/model"
)

// LoadConfig reads the feed configuration document from location, which is
// either an http(s) URL or a file path. The document must have the shape
// {"feeds": [...]} and every feed must carry an id and an rssUrl.
func (f *Fetcher) LoadConfig(ctx context.Context, location string) (*model.FeedConfig, error) {
	var (
		data []byte
		err  error
	)
	if isURL(location) {
		data, err = f.get(ctx, location)
	} else {
		data, err = os.ReadFile(location)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load feeds configuration: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig decodes and validates a feed configuration document.
func ParseConfig(data []byte) (*model.FeedConfig, error) {
	var doc struct {
		Feeds *[]model.Feed `json:"feeds"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode feeds configuration: %w", err)
	}
	if doc.Feeds == nil {
		return nil, errors.New("feeds configuration has no feeds list")
	}

	cfg := &model.FeedConfig{Feeds: *doc.Feeds}
	seen := make(map[string]bool, len(cfg.Feeds))
	for i := range cfg.Feeds {
		fd := &cfg.Feeds[i]
		if err := fd.Validate(); err != nil {
			return nil, fmt.Errorf("feed %d: %w", i, err)
		}
		if seen[fd.ID] {
			return nil, fmt.Errorf("feed %d: duplicate id %q", i, fd.ID)
		}
		seen[fd.ID] = true
	}
	return cfg, nil
}

// SaveConfig writes cfg to path as indented JSON.
func SaveConfig(path string, cfg *model.FeedConfig) error {
	if isURL(path) {
		return fmt.Errorf("cannot write feeds configuration to %s", path)
	}
	feeds := cfg.Feeds
	if feeds == nil {
		feeds = []model.Feed{}
	}
	data, err := json.MarshalIndent(model.FeedConfig{Feeds: feeds}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode feeds configuration: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

// Merge adds feeds to cfg, replacing entries with the same id.
// It returns how many feeds were added and how many replaced.
func Merge(cfg *model.FeedConfig, feeds []model.Feed) (added, replaced int) {
	index := make(map[string]int, len(cfg.Feeds))
	for i, fd := range cfg.Feeds {
		index[fd.ID] = i
	}
	for _, fd := range feeds {
		if i, ok := index[fd.ID]; ok {
			cfg.Feeds[i] = fd
			replaced++
			continue
		}
		index[fd.ID] = len(cfg.Feeds)
		cfg.Feeds = append(cfg.Feeds, fd)
		added++
	}
	return added, replaced
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
