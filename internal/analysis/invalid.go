package analysis

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// InvalidSink persists rejected model responses to disk so prompt and
// validator changes can be evaluated against real failures.
type InvalidSink struct {
	dir string
	now func() time.Time
}

type invalidRecord struct {
	FileName   string    `json:"fileName"`
	ChunkIndex int       `json:"chunkIndex"`
	ChunkTotal int       `json:"chunkTotal"`
	Reason     string    `json:"reason"`
	Response   string    `json:"response"`
	RecordedAt time.Time `json:"recordedAt"`
}

func NewInvalidSink(dir string) *InvalidSink {
	return &InvalidSink{dir: dir, now: time.Now}
}

// Record writes one rejected response. The original payload is kept
// verbatim; failures to persist are returned but never abort a run.
func (s *InvalidSink) Record(fileName string, chunkIndex, chunkTotal int, reason, response string) error {
	if s == nil || s.dir == "" {
		return nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating invalid dir: %w", err)
	}
	rec := invalidRecord{
		FileName:   fileName,
		ChunkIndex: chunkIndex,
		ChunkTotal: chunkTotal,
		Reason:     reason,
		Response:   response,
		RecordedAt: s.now().UTC(),
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding invalid record: %w", err)
	}

	name := fmt.Sprintf("%s_%s_chunk%d.json",
		rec.RecordedAt.Format("20060102T150405"), sanitizeStem(fileName), chunkIndex)
	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing invalid record: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("writing invalid record: %w", err)
	}
	return nil
}

// sanitizeStem keeps only filesystem-safe characters from a file name.
func sanitizeStem(fileName string) string {
	stem := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	var b strings.Builder
	for _, r := range stem {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "document"
	}
	return b.String()
}
