// Package store persists the durable leftovers of observation runs: accounts,
// watchlists, run rows and terminal summaries. Nothing spatial is stored;
// hints, plans, observations and provenance live and die inside a request.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"
)

type Store struct {
	DB *sql.DB
}

// Run statuses persisted for pipeline invocations.
const (
	RunStatusRunning      = "running"
	RunStatusCompleted    = "completed"
	RunStatusInapplicable = "inapplicable"
	RunStatusFailed       = "failed"
)

func New(ctx context.Context) (*Store, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		host := getenvDefault("POSTGRES_HOST", "localhost")
		port := getenvDefault("POSTGRES_PORT", "5432")
		user := os.Getenv("POSTGRES_USER")
		pass := os.Getenv("POSTGRES_PASSWORD")
		db := os.Getenv("POSTGRES_DB")
		ssl := getenvDefault("POSTGRES_SSLMODE", "disable")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, ssl)
	}
	return NewWithDSN(ctx, dsn)
}

// NewWithDSN constructs the Store using an explicit Postgres DSN
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

// User operations
func (s *Store) CreateUser(ctx context.Context, email, hash string) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO users (email, password_hash) VALUES ($1,$2)`, email, hash)
	return err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (id string, hash string, err error) {
	err = s.DB.QueryRowContext(ctx, `SELECT id, password_hash FROM users WHERE email=$1`, email).Scan(&id, &hash)
	return
}

// Watchlist operations
type WatchlistEntry struct {
	ID           string
	UserID       string
	Ticker       string
	Industry     string
	ScheduleCron string
	CreatedAt    time.Time
}

func (s *Store) AddWatchlist(ctx context.Context, userID, ticker, industry, cron string) (string, error) {
	if cron == "" {
		cron = "@daily"
	}
	var id string
	err := s.DB.QueryRowContext(ctx, `INSERT INTO watchlists (user_id, ticker, industry, schedule_cron) VALUES ($1,$2,$3,$4) RETURNING id`,
		userID, ticker, industry, cron).Scan(&id)
	return id, err
}

func (s *Store) ListWatchlists(ctx context.Context, userID string) ([]WatchlistEntry, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id, user_id, ticker, industry, schedule_cron, created_at FROM watchlists WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []WatchlistEntry
	for rows.Next() {
		var w WatchlistEntry
		if err := rows.Scan(&w.ID, &w.UserID, &w.Ticker, &w.Industry, &w.ScheduleCron, &w.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// ListAllWatchlists returns every entry across users, for the scheduler.
func (s *Store) ListAllWatchlists(ctx context.Context) ([]WatchlistEntry, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id, user_id, ticker, industry, schedule_cron, created_at FROM watchlists ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []WatchlistEntry
	for rows.Next() {
		var w WatchlistEntry
		if err := rows.Scan(&w.ID, &w.UserID, &w.Ticker, &w.Industry, &w.ScheduleCron, &w.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// DeleteWatchlist removes an entry scoped to its owner. Returns sql.ErrNoRows
// when nothing matched.
func (s *Store) DeleteWatchlist(ctx context.Context, id, userID string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM watchlists WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Run operations
type Run struct {
	ID         string
	Ticker     string
	Industry   string
	Status     string
	StartedAt  time.Time
	FinishedAt *time.Time
	Error      *string
}

func (s *Store) CreateRun(ctx context.Context, ticker, industry, status string) (string, error) {
	var id string
	err := s.DB.QueryRowContext(ctx, `INSERT INTO runs (ticker, industry, status) VALUES ($1,$2,$3) RETURNING id`, ticker, industry, status).Scan(&id)
	return id, err
}

func (s *Store) FinishRun(ctx context.Context, runID string, status string, errMsg *string) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE runs SET status=$1, finished_at=NOW(), error=$2 WHERE id=$3`, status, errMsg, runID)
	return err
}

func (s *Store) LatestRunTime(ctx context.Context, ticker string) (*time.Time, error) {
	var ts *time.Time
	err := s.DB.QueryRowContext(ctx, `SELECT MAX(COALESCE(finished_at, started_at)) FROM runs WHERE ticker=$1`, ticker).Scan(&ts)
	return ts, err
}

// Summary operations
type SummaryRecord struct {
	ID               string
	RunID            string
	Ticker           string
	Industry         string
	Headline         string
	Bullets          []string
	Confidence       float64
	Attribution      []string
	ObservationCount int
	GapCount         int
	Report           string
	CreatedAt        time.Time
}

// SaveSummary persists one terminal summary per run. Only headline, bullets,
// confidence, attribution, counters and the rendered report are written.
func (s *Store) SaveSummary(ctx context.Context, rec SummaryRecord) (string, error) {
	bullets, err := json.Marshal(emptyIfNil(rec.Bullets))
	if err != nil {
		return "", fmt.Errorf("marshal bullets: %w", err)
	}
	attribution, err := json.Marshal(emptyIfNil(rec.Attribution))
	if err != nil {
		return "", fmt.Errorf("marshal attribution: %w", err)
	}
	var id string
	err = s.DB.QueryRowContext(ctx, `
INSERT INTO summaries (run_id, ticker, industry, headline, bullets, confidence, attribution, observation_count, gap_count, report)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
RETURNING id
`, rec.RunID, rec.Ticker, rec.Industry, rec.Headline, bullets, rec.Confidence, attribution, rec.ObservationCount, rec.GapCount, rec.Report).Scan(&id)
	return id, err
}

// ListSummaries returns recent summaries, newest first. Empty ticker means all
// tickers; limit is clamped to 1..200 with a default of 50.
func (s *Store) ListSummaries(ctx context.Context, ticker string, limit int) ([]SummaryRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `SELECT id, run_id, ticker, industry, headline, bullets, confidence, attribution, observation_count, gap_count, report, created_at FROM summaries`
	args := []interface{}{}
	if ticker != "" {
		query += ` WHERE ticker=$1 ORDER BY created_at DESC LIMIT $2`
		args = append(args, ticker, limit)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SummaryRecord
	for rows.Next() {
		var (
			rec              SummaryRecord
			bulletsBytes     []byte
			attributionBytes []byte
		)
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.Ticker, &rec.Industry, &rec.Headline, &bulletsBytes, &rec.Confidence, &attributionBytes, &rec.ObservationCount, &rec.GapCount, &rec.Report, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if len(bulletsBytes) > 0 {
			_ = json.Unmarshal(bulletsBytes, &rec.Bullets)
		}
		if len(attributionBytes) > 0 {
			_ = json.Unmarshal(attributionBytes, &rec.Attribution)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetSummaryByID fetches a single summary row. Bool indicates existence.
func (s *Store) GetSummaryByID(ctx context.Context, id string) (SummaryRecord, bool, error) {
	var (
		rec              SummaryRecord
		bulletsBytes     []byte
		attributionBytes []byte
	)
	err := s.DB.QueryRowContext(ctx, `SELECT id, run_id, ticker, industry, headline, bullets, confidence, attribution, observation_count, gap_count, report, created_at FROM summaries WHERE id=$1`, id).
		Scan(&rec.ID, &rec.RunID, &rec.Ticker, &rec.Industry, &rec.Headline, &bulletsBytes, &rec.Confidence, &attributionBytes, &rec.ObservationCount, &rec.GapCount, &rec.Report, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return SummaryRecord{}, false, nil
	}
	if err != nil {
		return SummaryRecord{}, false, err
	}
	if len(bulletsBytes) > 0 {
		_ = json.Unmarshal(bulletsBytes, &rec.Bullets)
	}
	if len(attributionBytes) > 0 {
		_ = json.Unmarshal(attributionBytes, &rec.Attribution)
	}
	return rec, true, nil
}

func emptyIfNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
