package main

import (
	"testing"
	"time"

	"saaskit/internal/profiles"
)

func TestSeedLocalProfilesCoversMetrics(t *testing.T) {
	now := time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)
	seed := seedLocalProfiles(now)

	metrics := profiles.ComputeMetrics(seed, now)
	if metrics.Totals.Admins != 1 {
		t.Fatalf("expected one admin, got %d", metrics.Totals.Admins)
	}
	if metrics.Signups.Today != 1 {
		t.Fatalf("expected one signup today, got %d", metrics.Signups.Today)
	}
	if seed[0].ID != seedAdminID {
		t.Fatalf("expected stable admin id, got %s", seed[0].ID)
	}
}
