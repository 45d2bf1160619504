package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	logx "campaigner/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Append(ctx context.Context, e Entry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deliveries(at, kind, destination, name, grp, campaign, run_id, message_id, err, attempts, stack)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
		e.Timestamp.UTC().Format(time.RFC3339Nano), e.Kind, nullStr(e.Destination), nullStr(e.Name), nullStr(e.Group),
		nullStr(e.Campaign), nullStr(e.RunID), nullStr(e.MessageID), nullStr(e.Error), e.Attempts, nullStr(e.Stack),
	)
	return err
}

func (s *sqliteStore) Stats(ctx context.Context) (Stats, error) {
	var (
		st   Stats
		last sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `SELECT
		COUNT(*),
		COALESCE(SUM(CASE WHEN kind = ? THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN kind IN (?, ?) THEN 1 ELSE 0 END), 0),
		(SELECT at FROM deliveries ORDER BY id DESC LIMIT 1)
		FROM deliveries`, KindSuccess, KindError, KindFatalError,
	).Scan(&st.Total, &st.Success, &st.Failed, &last)
	if err != nil {
		return Stats{}, err
	}
	if last.Valid {
		st.LastRun, _ = time.Parse(time.RFC3339Nano, last.String)
	}
	return st, nil
}

func (s *sqliteStore) SaveCampaign(ctx context.Context, rec CampaignRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO campaigns(at, campaign, run_id, total, success, failed, took_ms) VALUES(?,?,?,?,?,?,?)`,
		rec.Timestamp.UTC().Format(time.RFC3339Nano), rec.Campaign, rec.RunID, rec.Total, rec.Success, rec.Failed, rec.TookMS,
	)
	return err
}

func (s *sqliteStore) Campaigns(ctx context.Context, limit int) ([]CampaignRecord, error) {
	q := `SELECT at, campaign, run_id, total, success, failed, took_ms FROM campaigns ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CampaignRecord
	for rows.Next() {
		var (
			rec CampaignRecord
			at  string
		)
		if err := rows.Scan(&at, &rec.Campaign, &rec.RunID, &rec.Total, &rec.Success, &rec.Failed, &rec.TookMS); err != nil {
			return nil, err
		}
		rec.Timestamp, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// newest last, same as the file driver
	slices.Reverse(out)
	return out, nil
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
