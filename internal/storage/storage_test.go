package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	logx "campaigner/pkg/logx"
)

func openTestStore(t *testing.T, driver string) Store {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "campaign_logs.json")
	if driver == "sqlite" {
		path = filepath.Join(dir, "campaign.db")
	}
	st, err := Open(Config{Driver: driver, Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open(%s): %v", driver, err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestStoreStatsAndCampaigns(t *testing.T) {
	for _, driver := range []string{"file", "sqlite"} {
		driver := driver
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			st := openTestStore(t, driver)

			empty, err := st.Stats(ctx)
			if err != nil {
				t.Fatalf("Stats on empty store: %v", err)
			}
			if empty.Total != 0 || !empty.LastRun.IsZero() {
				t.Fatalf("empty stats = %+v", empty)
			}

			base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
			entries := []Entry{
				{Timestamp: base, Kind: KindSuccess, Destination: "a@example.com", Campaign: "c", RunID: "r1", MessageID: "m1", Attempts: 1},
				{Timestamp: base.Add(time.Second), Kind: KindError, Destination: "b@example.com", Campaign: "c", RunID: "r1", Error: "boom", Attempts: 4},
				{Timestamp: base.Add(2 * time.Second), Kind: KindFatalError, Error: "auth missing"},
			}
			for _, e := range entries {
				if err := st.Append(ctx, e); err != nil {
					t.Fatalf("Append: %v", err)
				}
			}

			stats, err := st.Stats(ctx)
			if err != nil {
				t.Fatalf("Stats: %v", err)
			}
			if stats.Total != 3 || stats.Success != 1 || stats.Failed != 2 {
				t.Fatalf("stats = %+v", stats)
			}
			if !stats.LastRun.Equal(base.Add(2 * time.Second)) {
				t.Fatalf("LastRun = %v", stats.LastRun)
			}

			for i := 1; i <= 3; i++ {
				rec := CampaignRecord{Timestamp: base.Add(time.Duration(i) * time.Minute), Campaign: "c", RunID: "r" + string(rune('0'+i)), Total: i, Success: i}
				if err := st.SaveCampaign(ctx, rec); err != nil {
					t.Fatalf("SaveCampaign: %v", err)
				}
			}
			recs, err := st.Campaigns(ctx, 2)
			if err != nil {
				t.Fatalf("Campaigns: %v", err)
			}
			if len(recs) != 2 || recs[0].RunID != "r2" || recs[1].RunID != "r3" {
				t.Fatalf("Campaigns(2) = %+v", recs)
			}
			all, _ := st.Campaigns(ctx, 0)
			if len(all) != 3 {
				t.Fatalf("Campaigns(0) = %d records, want 3", len(all))
			}
		})
	}
}

func TestFileStoreTreatsBrokenDocumentAsEmpty(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "logs.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	stats, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 0 {
		t.Fatalf("stats = %+v, want empty", stats)
	}
	if err := st.Append(ctx, Entry{Timestamp: time.Now(), Kind: KindSuccess, Destination: "x"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if stats, _ = st.Stats(ctx); stats.Total != 1 {
		t.Fatalf("stats after append = %+v", stats)
	}
	if _, err := os.Stat(filepath.Join(dir, "logs.campaigns.json")); !os.IsNotExist(err) {
		t.Fatalf("campaigns file created before any SaveCampaign: %v", err)
	}
}

func TestFileStoreClosed(t *testing.T) {
	st := openTestStore(t, "file")
	_ = st.Close()
	if err := st.Append(context.Background(), Entry{Kind: KindSuccess}); err != ErrClosed {
		t.Fatalf("Append after Close = %v, want ErrClosed", err)
	}
}

func TestOpenDrivers(t *testing.T) {
	st, err := Open(Config{Driver: "none"}, logx.Nop())
	if err != nil {
		t.Fatalf("Open(none): %v", err)
	}
	if err := st.Append(context.Background(), Entry{Kind: KindSuccess}); err != nil {
		t.Fatalf("none Append: %v", err)
	}
	if _, err := Open(Config{Driver: "postgres"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
	if _, err := Open(Config{Driver: "sqlite"}, logx.Nop()); err == nil {
		t.Fatal("expected error for sqlite without path")
	}
}
