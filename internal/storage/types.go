package storage

import (
	"context"
	"errors"
	"time"
)

var ErrClosed = errors.New("store closed")

// Entry kinds.
const (
	KindSuccess    = "success"
	KindError      = "error"
	KindFatalError = "fatal_error"
)

// Config configures the delivery log.
//
// Driver values:
//   - "file": single JSON array document, rewritten on every append (default)
//   - "sqlite": SQLite database file
//   - "none": discard everything
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Entry is one delivery log record. Field names are the on-disk keys.
type Entry struct {
	Timestamp   time.Time `json:"timestamp"`
	Kind        string    `json:"kind"`
	Destination string    `json:"destination,omitempty"`
	Name        string    `json:"name,omitempty"`
	Group       string    `json:"group,omitempty"`
	Campaign    string    `json:"campaign,omitempty"`
	RunID       string    `json:"run_id,omitempty"`
	MessageID   string    `json:"message_id,omitempty"`
	Error       string    `json:"error,omitempty"`
	Attempts    int       `json:"attempts,omitempty"`
	Stack       string    `json:"stack,omitempty"`
}

// CampaignRecord summarizes one finished run.
type CampaignRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Campaign  string    `json:"campaign"`
	RunID     string    `json:"run_id"`
	Total     int       `json:"total"`
	Success   int       `json:"success"`
	Failed    int       `json:"failed"`
	TookMS    int64     `json:"took_ms"`
}

// Stats are aggregate counters over the delivery log, shown before a new run.
type Stats struct {
	Total   int
	Success int
	Failed  int
	LastRun time.Time // zero when the log is empty
}

// Store is the delivery log. Implementations assume a single writer.
type Store interface {
	Append(ctx context.Context, e Entry) error
	Stats(ctx context.Context) (Stats, error)
	SaveCampaign(ctx context.Context, rec CampaignRecord) error
	// Campaigns returns the most recent records, newest last. limit <= 0 means all.
	Campaigns(ctx context.Context, limit int) ([]CampaignRecord, error)
	Close() error
}

func statsOf(entries []Entry) Stats {
	var st Stats
	st.Total = len(entries)
	for _, e := range entries {
		switch e.Kind {
		case KindSuccess:
			st.Success++
		case KindError, KindFatalError:
			st.Failed++
		}
	}
	if n := len(entries); n > 0 {
		st.LastRun = entries[n-1].Timestamp
	}
	return st
}

func tailCampaigns(recs []CampaignRecord, limit int) []CampaignRecord {
	if limit > 0 && len(recs) > limit {
		recs = recs[len(recs)-limit:]
	}
	return append([]CampaignRecord(nil), recs...)
}
