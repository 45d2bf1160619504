package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "campaigner/pkg/logx"
)

// DefaultFilePath is used when storage.path is empty for the file driver.
const DefaultFilePath = "./campaign_logs.json"

// fileStore keeps the delivery log as a single JSON array document.
//
// Files:
//   - <path>                     (delivery entries)
//   - <prefix>.campaigns.json    (campaign summaries)
//
// Every append reads the current document, adds one entry and rewrites the
// whole file through a temp file + rename. A missing or unparseable document
// counts as empty.
type fileStore struct {
	log logx.Logger

	mu     sync.Mutex
	closed bool

	logPath       string
	campaignsPath string
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = DefaultFilePath
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	return &fileStore{
		log:           log,
		logPath:       path,
		campaignsPath: prefix + ".campaigns.json",
	}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fileStore) Append(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	entries := readDoc[Entry](s.log, s.logPath)
	entries = append(entries, e)
	return writeJSONAtomic(s.logPath, entries)
}

func (s *fileStore) Stats(ctx context.Context) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return statsOf(readDoc[Entry](s.log, s.logPath)), nil
}

func (s *fileStore) SaveCampaign(ctx context.Context, rec CampaignRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	recs := readDoc[CampaignRecord](s.log, s.campaignsPath)
	recs = append(recs, rec)
	return writeJSONAtomic(s.campaignsPath, recs)
}

func (s *fileStore) Campaigns(ctx context.Context, limit int) ([]CampaignRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return tailCampaigns(readDoc[CampaignRecord](s.log, s.campaignsPath), limit), nil
}

// readDoc decodes the JSON array at path. Missing files and broken documents
// yield an empty slice; the latter is logged because the next write replaces it.
func readDoc[T any](log logx.Logger, path string) []T {
	b, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn("log file unreadable; treating as empty", logx.String("path", path), logx.Err(err))
		}
		return nil
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		return nil
	}
	var out []T
	if err := json.Unmarshal(b, &out); err != nil {
		log.Warn("log file unparseable; treating as empty", logx.String("path", path), logx.Err(err))
		return nil
	}
	return out
}

func writeJSONAtomic(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
