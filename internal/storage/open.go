package storage

import (
	"context"
	"fmt"
	"strings"

	logx "campaigner/pkg/logx"
)

// Open initializes the configured store. An empty driver means "file".
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "", "file", "json":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "none":
		return nopStore{}, nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", driver)
	}
}

type nopStore struct{}

func (nopStore) Append(context.Context, Entry) error { return nil }

func (nopStore) Stats(context.Context) (Stats, error) { return Stats{}, nil }

func (nopStore) SaveCampaign(context.Context, CampaignRecord) error { return nil }

func (nopStore) Campaigns(context.Context, int) ([]CampaignRecord, error) { return nil, nil }

func (nopStore) Close() error { return nil }
