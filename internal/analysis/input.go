package analysis

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ReadDocument loads one extracted-document JSON file. Upstream
// extraction occasionally emits slightly malformed JSON (unescaped
// control characters, truncated tails), so a strict parse failure falls
// back to repairing the payload before giving up.
func ReadDocument(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("reading document: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		repaired, rerr := jsonrepair.JSONRepair(string(data))
		if rerr != nil {
			return Document{}, fmt.Errorf("parsing document %s: %w", filepath.Base(path), err)
		}
		if err := json.Unmarshal([]byte(repaired), &doc); err != nil {
			return Document{}, fmt.Errorf("parsing document %s: %w", filepath.Base(path), err)
		}
	}
	if doc.FileName == "" {
		doc.FileName = filepath.Base(path)
	}
	return doc, nil
}

// ListDocuments returns the JSON document files under dir in a stable
// lexical order.
func ListDocuments(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".json") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}
