package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"campaigner/internal/config"
	"campaigner/internal/dispatch"
	"campaigner/internal/scheduler"
	"campaigner/internal/storage"
	logx "campaigner/pkg/logx"
)

const baseYAML = `
storage:
  driver: file
  path: ./logs/campaign_logs.json
dispatch:
  batch_size: 2
  delay_between_messages: 0
  delay_between_batches: 0
  retry_cooldown: 0
gateway:
  kind: dryrun
`

const seminarYAML = `
campaigns:
  - name: seminar
    subject: "Seminar for {{.Name}}"
    sender: "Academic <academic@example.com>"
    params:
      date: "2026-11-02"
    recipients:
      - destination: ana@example.com
        name: Ana
      - destination: budi@example.com
        name: Budi
      - destination: citra@example.com
        name: Citra
`

type harness struct {
	dir string
	out *bytes.Buffer
	app *App
}

func newHarness(t *testing.T, doc, input string, dryRun bool) *harness {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "campaigner.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	out := &bytes.Buffer{}
	a, err := New(Options{
		ConfigPath: path,
		EnvFiles:   []string{filepath.Join(dir, ".env")},
		DryRun:     dryRun,
		Out:        out,
		In:         strings.NewReader(input),
		Logger:     logx.Nop(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return &harness{dir: dir, out: out, app: a}
}

func (h *harness) stats(t *testing.T) storage.Stats {
	t.Helper()
	st, err := h.app.store.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	return st
}

func TestSendConfirmedDeliversAndRecords(t *testing.T) {
	h := newHarness(t, baseYAML+seminarYAML, "Yes\n", false)

	if err := h.app.Send(context.Background(), SendOptions{}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	out := h.out.String()
	for _, want := range []string{
		"Delivery log:",
		`Campaign "seminar" via dryrun`,
		"Recipients: 3 in 2 batch(es) of up to 2",
		"[dry-run]",
		"budi@example.com",
		"100.0%",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}

	st := h.stats(t)
	if st.Total != 3 || st.Success != 3 || st.Failed != 0 {
		t.Fatalf("stats = %+v, want 3 successes", st)
	}
	recs, err := h.app.store.Campaigns(context.Background(), 0)
	if err != nil {
		t.Fatalf("Campaigns: %v", err)
	}
	if len(recs) != 1 || recs[0].Campaign != "seminar" || recs[0].Success != 3 || recs[0].RunID == "" {
		t.Fatalf("campaign records = %+v", recs)
	}
}

func TestSendDeclinedSendsNothing(t *testing.T) {
	for _, input := range []string{"n\n", "\n", "sure\n", ""} {
		h := newHarness(t, baseYAML+seminarYAML, input, false)
		if err := h.app.Send(context.Background(), SendOptions{}); err != nil {
			t.Fatalf("Send(%q): %v", input, err)
		}
		if !strings.Contains(h.out.String(), "Aborted.") {
			t.Fatalf("input %q: expected Aborted in output:\n%s", input, h.out.String())
		}
		if st := h.stats(t); st.Total != 0 {
			t.Fatalf("input %q: stats = %+v, want empty log", input, st)
		}
	}
}

func TestSendYesSkipsPrompt(t *testing.T) {
	h := newHarness(t, baseYAML+seminarYAML, "", false)
	if err := h.app.Send(context.Background(), SendOptions{Campaign: "seminar", Yes: true}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if strings.Contains(h.out.String(), "[y/N]") {
		t.Fatal("prompt shown despite Yes")
	}
	if st := h.stats(t); st.Success != 3 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestSendCampaignSelection(t *testing.T) {
	doc := baseYAML + seminarYAML + `
  - name: newsletter
    subject: "News"
    sender: "news@example.com"
    recipients:
      - destination: ana@example.com
`
	h := newHarness(t, doc, "", false)

	err := h.app.Send(context.Background(), SendOptions{Yes: true})
	if !errors.Is(err, ErrUsage) || !strings.Contains(err.Error(), "newsletter, seminar") {
		t.Fatalf("Send without campaign = %v, want usage error listing names", err)
	}
	err = h.app.Send(context.Background(), SendOptions{Campaign: "missing", Yes: true})
	if !errors.Is(err, ErrUsage) {
		t.Fatalf("Send unknown campaign = %v, want usage error", err)
	}
	if err := h.app.Send(context.Background(), SendOptions{Campaign: "newsletter", Yes: true}); err != nil {
		t.Fatalf("Send newsletter: %v", err)
	}
	if st := h.stats(t); st.Total != 1 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestSendLoadsRecipientsFileRelativeToConfig(t *testing.T) {
	doc := baseYAML + `
campaigns:
  - name: reminder
    subject: "Reminder"
    sender: "ops@example.com"
    recipients_file: people.csv
`
	h := newHarness(t, doc, "", false)
	csv := "Email,Nama,Group\nana@example.com,Ana,2\n,NoMail,1\nbudi@example.com,Budi,\n"
	if err := os.WriteFile(filepath.Join(h.dir, "people.csv"), []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := h.app.Send(context.Background(), SendOptions{Yes: true}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if st := h.stats(t); st.Total != 2 || st.Success != 2 {
		t.Fatalf("stats = %+v, want the two usable rows", st)
	}
}

func TestSendWithoutRecipientsRecordsFatalError(t *testing.T) {
	doc := baseYAML + `
campaigns:
  - name: empty
    subject: "Nothing"
    sender: "ops@example.com"
    recipients_file: nobody.csv
`
	h := newHarness(t, doc, "", false)
	if err := os.WriteFile(filepath.Join(h.dir, "nobody.csv"), []byte("email,name\n,Ana\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := h.app.Send(context.Background(), SendOptions{Yes: true})
	if !errors.Is(err, dispatch.ErrNoRecipients) {
		t.Fatalf("Send = %v, want ErrNoRecipients", err)
	}
	if st := h.stats(t); st.Total != 1 || st.Failed != 1 {
		t.Fatalf("stats = %+v, want one fatal entry", st)
	}
}

func TestSendCancelledStoresPartialRun(t *testing.T) {
	h := newHarness(t, baseYAML+seminarYAML, "", false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.app.Send(ctx, SendOptions{Yes: true})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Send = %v, want context.Canceled", err)
	}
	recs, _ := h.app.store.Campaigns(context.Background(), 0)
	if len(recs) != 1 || recs[0].Total != 3 {
		t.Fatalf("campaign records = %+v, want the cancelled run recorded", recs)
	}
}

func TestDryRunIgnoresGatewayCredentials(t *testing.T) {
	doc := strings.Replace(baseYAML, "kind: dryrun", "kind: resend", 1) + seminarYAML
	t.Setenv("RESEND_API_KEY", "")

	dir := t.TempDir()
	path := filepath.Join(dir, "campaigner.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(Options{ConfigPath: path, EnvFiles: []string{filepath.Join(dir, ".env")}, Logger: logx.Nop()}); err == nil {
		t.Fatal("expected missing api_key error without dry run")
	}

	h := newHarness(t, doc, "", true)
	if err := h.app.Send(context.Background(), SendOptions{Yes: true}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !strings.Contains(h.out.String(), "via dryrun") {
		t.Fatalf("expected dry-run gateway:\n%s", h.out.String())
	}
}

func TestStatsAndHistory(t *testing.T) {
	h := newHarness(t, baseYAML+seminarYAML, "", false)
	if err := h.app.History(context.Background(), 5); err != nil {
		t.Fatalf("History: %v", err)
	}
	if !strings.Contains(h.out.String(), "No campaign runs recorded.") {
		t.Fatalf("unexpected history output:\n%s", h.out.String())
	}

	for i := 0; i < 2; i++ {
		if err := h.app.Send(context.Background(), SendOptions{Yes: true}); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}
	h.out.Reset()

	if err := h.app.Stats(context.Background()); err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if !strings.Contains(h.out.String(), "Total:   6") || !strings.Contains(h.out.String(), "Success: 6") {
		t.Fatalf("unexpected stats output:\n%s", h.out.String())
	}

	h.out.Reset()
	if err := h.app.History(context.Background(), 1); err != nil {
		t.Fatalf("History: %v", err)
	}
	if lines := strings.Count(h.out.String(), "\n"); lines != 1 {
		t.Fatalf("history lines = %d, want 1:\n%s", lines, h.out.String())
	}
	if !strings.Contains(h.out.String(), "rate=100.0%") {
		t.Fatalf("unexpected history output:\n%s", h.out.String())
	}
}

func TestValidateReportsEveryCampaign(t *testing.T) {
	doc := baseYAML + seminarYAML + `
    schedule: "daily:08:30"
  - name: broken
    subject: "Broken"
    sender: "ops@example.com"
    recipients_file: missing.csv
`
	h := newHarness(t, doc, "", false)
	err := h.app.Validate()
	if err == nil {
		t.Fatal("expected an error for the broken campaign")
	}
	out := h.out.String()
	if !strings.Contains(out, "✓ seminar: 3 recipients, 2 batch(es)") || !strings.Contains(out, "schedule daily:08:30") {
		t.Fatalf("seminar line missing:\n%s", out)
	}
	if !strings.Contains(out, "✗ broken:") {
		t.Fatalf("broken line missing:\n%s", out)
	}
}

func TestSyncSchedules(t *testing.T) {
	doc := baseYAML + seminarYAML + `
    schedule: "1h"
  - name: newsletter
    subject: "News"
    sender: "news@example.com"
    schedule: "0 9 * * 1"
    recipients:
      - destination: ana@example.com
  - name: adhoc
    subject: "Adhoc"
    sender: "ops@example.com"
    recipients:
      - destination: ana@example.com
`
	h := newHarness(t, doc, "", false)
	sched := scheduler.New(scheduler.Config{}, logx.Nop())

	if n := h.app.syncSchedules(sched, h.app.Config(), nil); n != 2 {
		t.Fatalf("scheduled = %d, want 2", n)
	}
	if got := strings.Join(sched.Names(), ","); got != "newsletter,seminar" {
		t.Fatalf("names = %s", got)
	}

	next := *h.app.Config()
	next.Campaigns = append(next.Campaigns[:0:0], next.Campaigns...)
	next.Campaigns[0].Schedule = "daily:07:00"
	next.Campaigns[1].Schedule = ""
	h.app.syncSchedules(sched, &next, nil)

	snap := sched.Snapshot()
	if len(snap) != 1 || snap[0].Name != "seminar" || snap[0].Schedule != "daily:07:00" {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestRunScheduledUsesCurrentConfig(t *testing.T) {
	h := newHarness(t, baseYAML+seminarYAML, "", false)

	if err := h.app.runScheduled(context.Background(), "seminar", nil); err != nil {
		t.Fatalf("runScheduled: %v", err)
	}
	if st := h.stats(t); st.Success != 3 {
		t.Fatalf("stats = %+v", st)
	}
	if err := h.app.runScheduled(context.Background(), "gone", nil); err == nil {
		t.Fatal("expected error for an unknown campaign")
	}
}

func TestScheduleStopsOnCancel(t *testing.T) {
	h := newHarness(t, baseYAML+seminarYAML+`
    schedule: "1h"
`, "", false)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.app.Schedule(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Schedule: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Schedule did not return after cancel")
	}
}

func TestMapStorageConfig(t *testing.T) {
	tests := []struct {
		driver, path string
		want         storage.Config
	}{
		{"", "", storage.Config{Driver: "file", Path: storage.DefaultFilePath}},
		{"JSON", "x.json", storage.Config{Driver: "file", Path: "x.json"}},
		{"sqlite3", "", storage.Config{Driver: "sqlite", Path: "./campaign_logs.db"}},
		{"none", "", storage.Config{Driver: "none"}},
	}
	for _, tt := range tests {
		got := mapStorageConfig(config.StorageConfig{Driver: tt.driver, Path: tt.path})
		if got != tt.want {
			t.Errorf("mapStorageConfig(%q, %q) = %+v, want %+v", tt.driver, tt.path, got, tt.want)
		}
	}
}
