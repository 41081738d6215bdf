package server

import (
	"testing"
	"time"
)

func timePtr(t time.Time) *time.Time { return &t }

func TestIsDueDaily(t *testing.T) {
	if !isDue("@daily", nil) {
		t.Fatalf("never-run entry must be due")
	}
	if isDue("@daily", timePtr(time.Now().Add(-2*time.Hour))) {
		t.Fatalf("ran 2h ago, not due yet")
	}
	if !isDue("@daily", timePtr(time.Now().Add(-25*time.Hour))) {
		t.Fatalf("ran 25h ago, must be due")
	}
}

func TestIsDueHourly(t *testing.T) {
	if !isDue("@hourly", nil) {
		t.Fatalf("never-run entry must be due")
	}
	if isDue("@hourly", timePtr(time.Now().Add(-30*time.Minute))) {
		t.Fatalf("ran 30m ago, not due yet")
	}
	if !isDue("@hourly", timePtr(time.Now().Add(-90*time.Minute))) {
		t.Fatalf("ran 90m ago, must be due")
	}
}

func TestIsDueCronExpression(t *testing.T) {
	// Every 2 hours on the hour.
	if !isDue("0 */2 * * *", nil) {
		t.Fatalf("never-run entry must be due")
	}
	if !isDue("0 */2 * * *", timePtr(time.Now().Add(-3*time.Hour))) {
		t.Fatalf("next firing after last run is in the past, must be due")
	}
	if isDue("0 */2 * * *", timePtr(time.Now())) {
		t.Fatalf("just ran, next firing is in the future")
	}
}

func TestIsDueInvalidSpecFallsBackToDaily(t *testing.T) {
	if !isDue("not-a-cron", nil) {
		t.Fatalf("never-run entry must be due")
	}
	if isDue("not-a-cron", timePtr(time.Now().Add(-2*time.Hour))) {
		t.Fatalf("invalid spec behaves as @daily, not due after 2h")
	}
	if !isDue("not-a-cron", timePtr(time.Now().Add(-25*time.Hour))) {
		t.Fatalf("invalid spec behaves as @daily, due after 25h")
	}
}
