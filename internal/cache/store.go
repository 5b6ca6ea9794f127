package cache

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"bgzfiltra/internal/bugzilla"

	"github.com/rs/zerolog/log"
)

const maxLineSize = 16 * 1024 * 1024

// DecodeError reports an unreadable snapshot. It is never masked by a live fetch.
type DecodeError struct {
	Path string
	Line int
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("corrupt snapshot %s at line %d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("corrupt snapshot %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Store keeps one snapshot file per product and decides whether the tracker
// needs to be asked at all.
type Store struct {
	client bugzilla.Client
	dir    string
}

// NewStore creates a Store writing snapshots into dir ("" means the working directory).
func NewStore(client bugzilla.Client, dir string) *Store {
	if dir == "" {
		dir = "."
	}
	return &Store{client: client, dir: dir}
}

// Path returns the snapshot file of a product. The name is path-escaped so
// distinct products never share a file.
func (s *Store) Path(product string) string {
	return filepath.Join(s.dir, fmt.Sprintf("cache-%s.jsonl", url.PathEscape(product)))
}

// GetRecords returns the snapshot when useCache is set and one exists,
// otherwise fetches live and overwrites the snapshot.
func (s *Store) GetRecords(ctx context.Context, product string, useCache bool) ([]bugzilla.Record, error) {
	records, _, err := s.Lookup(ctx, product, useCache)
	return records, err
}

// Lookup is GetRecords that also reports whether the snapshot was used.
func (s *Store) Lookup(ctx context.Context, product string, useCache bool) ([]bugzilla.Record, bool, error) {
	if useCache {
		exists, err := s.Exists(product)
		if err != nil {
			return nil, false, err
		}
		if exists {
			records, err := s.Load(product)
			if err != nil {
				return nil, false, err
			}
			return records, true, nil
		}
		log.Debug().Str("product", product).Msg("No snapshot yet, fetching live")
	}

	records, err := s.client.FetchProduct(ctx, product)
	if err != nil {
		return nil, false, err
	}
	if err := s.Save(product, records); err != nil {
		return nil, false, err
	}
	return records, false, nil
}

// Exists reports whether a regular snapshot file exists for product.
func (s *Store) Exists(product string) (bool, error) {
	info, err := os.Stat(s.Path(product))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat snapshot: %w", err)
	}
	return info.Mode().IsRegular(), nil
}

// Load reads a product snapshot.
func (s *Store) Load(product string) ([]bugzilla.Record, error) {
	path := s.Path(product)
	file, err := os.Open(path)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	defer file.Close()

	records := []bugzilla.Record{}
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0
	for scanner.Scan() {
		line++
		if len(strings.TrimSpace(scanner.Text())) == 0 {
			continue
		}
		var r bugzilla.Record
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			return nil, &DecodeError{Path: path, Line: line, Err: err}
		}
		records = append(records, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}

	log.Info().Str("product", product).Int("count", len(records)).Msg("Loaded records from snapshot")
	return records, nil
}

// Save writes records to the product snapshot, replacing it atomically.
// An empty record list still produces an (empty) snapshot.
func (s *Store) Save(product string, records []bugzilla.Record) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	path := s.Path(product)
	tmpPath := path + ".tmp"

	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot file: %w", err)
	}

	writer := bufio.NewWriter(file)
	encoder := json.NewEncoder(writer)

	for _, r := range records {
		if err := encoder.Encode(r); err != nil {
			file.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("failed to encode record %d: %w", r.ID, err)
		}
	}

	if err := writer.Flush(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to flush writer: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename snapshot file: %w", err)
	}

	log.Info().Str("product", product).Int("count", len(records)).Msg("Snapshot written")
	return nil
}
