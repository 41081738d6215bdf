package server

import (
	"time"

	"github.com/skyfield-labs/terralens/internal/satellite"
)

// HTTPError is a generic error envelope returned by the server.
type HTTPError struct {
	Error string `json:"error"`
}

// AuthSignupRequest represents the signup payload.
type AuthSignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthLoginRequest represents the login payload.
type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries a bearer token.
type TokenResponse struct {
	Token string `json:"token"`
}

// IDResponse is a generic id response wrapper.
type IDResponse struct {
	ID string `json:"id"`
}

// MeResponse returns the current authenticated user id.
type MeResponse struct {
	UserID string `json:"user_id"`
}

// AnalysisRequest triggers one observation run. Hints ride along in the
// request body and are never persisted.
type AnalysisRequest struct {
	Ticker     string           `json:"ticker"`
	Industry   string           `json:"industry"`
	SiteHints  []satellite.Hint `json:"site_hints,omitempty"`
	ProxyHints []satellite.Hint `json:"proxy_hints,omitempty"`
}

// AnalysisResponse is the synchronous result of an analysis run.
type AnalysisResponse struct {
	RunID   string                     `json:"run_id"`
	Summary satellite.SatelliteSummary `json:"summary"`
	Report  string                     `json:"report"`
}

// AddWatchlistRequest represents a new watchlist entry payload.
type AddWatchlistRequest struct {
	Ticker       string `json:"ticker"`
	Industry     string `json:"industry"`
	ScheduleCron string `json:"schedule_cron"`
}

// WatchlistResponse is one watchlist entry.
type WatchlistResponse struct {
	ID           string    `json:"id"`
	Ticker       string    `json:"ticker"`
	Industry     string    `json:"industry"`
	ScheduleCron string    `json:"schedule_cron"`
	CreatedAt    time.Time `json:"created_at"`
}

// SummaryResponse is one persisted summary row.
type SummaryResponse struct {
	ID               string    `json:"id"`
	RunID            string    `json:"run_id"`
	Ticker           string    `json:"ticker"`
	Industry         string    `json:"industry"`
	Headline         string    `json:"headline"`
	Bullets          []string  `json:"bullets"`
	Confidence       float64   `json:"confidence"`
	Attribution      []string  `json:"attribution"`
	ObservationCount int       `json:"observation_count"`
	GapCount         int       `json:"gap_count"`
	Report           string    `json:"report,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// SearchHitResponse is one full-text match against stored summaries.
type SearchHitResponse struct {
	Score   float64         `json:"score"`
	Summary SummaryResponse `json:"summary"`
}
