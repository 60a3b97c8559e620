// Package clipstore persists announced clip ids in a flat text file, one newline-terminated id per line.
package clipstore

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const DefaultPath = "posted_clips.txt"

// FileCache is the file-backed domain.ClipCache. It is not safe for concurrent writers;
// the poller is the only one.
type FileCache struct {
	path string
}

func NewFileCache(path string) *FileCache {
	if path == "" {
		path = DefaultPath
	}
	return &FileCache{path: path}
}

func (c *FileCache) Path() string {
	return c.path
}

// Load reads all ids in file order. A missing file is an empty cache; blank lines are skipped.
func (c *FileCache) Load(_ context.Context) ([]string, error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read clip cache %s: %w", c.path, err)
	}

	var ids []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		if id := strings.TrimSpace(scanner.Text()); id != "" {
			ids = append(ids, id)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse clip cache %s: %w", c.path, err)
	}
	return ids, nil
}

// Save overwrites the file with ids. The new content is written to a temp file in the same
// directory and renamed over the old one, so the cache is either the old list or the new list.
func (c *FileCache) Save(ctx context.Context, ids []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer
	for _, id := range ids {
		buf.WriteString(id)
		buf.WriteByte('\n')
	}

	dir := filepath.Dir(c.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp clip cache: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write clip cache: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync clip cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close clip cache: %w", err)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		return fmt.Errorf("failed to replace clip cache %s: %w", c.path, err)
	}
	return nil
}
