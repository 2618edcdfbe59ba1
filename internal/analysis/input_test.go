package analysis

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadDocument(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "doc001.json", `{"text": "some document text", "fileName": "doc001.json"}`)

	doc, err := ReadDocument(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Text != "some document text" || doc.FileName != "doc001.json" {
		t.Fatalf("unexpected document: %+v", doc)
	}
}

func TestReadDocumentDefaultsFileName(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "doc002.json", `{"text": "body"}`)

	doc, err := ReadDocument(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.FileName != "doc002.json" {
		t.Fatalf("expected file name fallback, got %q", doc.FileName)
	}
}

func TestReadDocumentRepairsMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	// Trailing comma from a truncating upstream writer.
	path := writeFile(t, dir, "doc003.json", `{"text": "body", "fileName": "doc003.json",}`)

	doc, err := ReadDocument(path)
	if err != nil {
		t.Fatalf("repairable input should load: %v", err)
	}
	if doc.Text != "body" {
		t.Fatalf("unexpected text %q", doc.Text)
	}
}

func TestListDocumentsSortedJSONOnly(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.json", "{}")
	writeFile(t, dir, "a.json", "{}")
	writeFile(t, dir, "notes.txt", "skip me")
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	paths, err := ListDocuments(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected 2 JSON files, got %v", paths)
	}
	if filepath.Base(paths[0]) != "a.json" || filepath.Base(paths[1]) != "b.json" {
		t.Fatalf("expected lexical order, got %v", paths)
	}
}
