package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Donnadieu/Epstein-File-Explorer-sub002/internal/analysis"
	"github.com/Donnadieu/Epstein-File-Explorer-sub002/internal/dedup"
)

// FileStore keeps one JSON file per result under a directory. It exists
// for environments without a database; the SQLite store is preferred.
type FileStore struct {
	dir string
}

func OpenFiles(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating results dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) resultPath(fileName string) string {
	stem := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	return filepath.Join(s.dir, stem+".analysis.json")
}

func (s *FileStore) HasResult(_ context.Context, fileName string) (bool, error) {
	_, err := os.Stat(s.resultPath(fileName))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("checking result %s: %w", fileName, err)
}

func (s *FileStore) SaveResult(_ context.Context, res analysis.TieredAnalysisResult) error {
	return WriteJSON(s.resultPath(res.FileName), res)
}

func (s *FileStore) ListResults(_ context.Context) ([]analysis.TieredAnalysisResult, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing results: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".analysis.json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	out := make([]analysis.TieredAnalysisResult, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			return nil, fmt.Errorf("reading result %s: %w", name, err)
		}
		var res analysis.TieredAnalysisResult
		if err := json.Unmarshal(data, &res); err != nil {
			return nil, fmt.Errorf("decoding result %s: %w", name, err)
		}
		out = append(out, res)
	}
	return out, nil
}

func (s *FileStore) SaveRoster(_ context.Context, roster []dedup.Person) error {
	return WriteJSON(filepath.Join(s.dir, "roster.json"), roster)
}

// WriteJSON writes via a temp file and rename so readers never observe
// a partial file.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}
