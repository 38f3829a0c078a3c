package store

import (
	"testing"
	"time"

	"contentforge/pkg/domain"
)

func TestUsageStatsAggregation(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()
	records := []domain.UsageRecord{
		{UserID: "u1", TokensUsed: 100, Cost: 0.00015, Model: "gpt-3.5-turbo", CreatedAt: now},
		{UserID: "u1", TokensUsed: 300, Cost: 0.00045, Model: "gpt-3.5-turbo", CreatedAt: now},
		{UserID: "u2", TokensUsed: 500, Cost: 0.03, Model: "gpt-4", CreatedAt: now.Add(-48 * time.Hour)},
	}
	for _, rec := range records {
		if err := s.AppendUsage(rec); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	stats, err := s.UsageStats(now.Add(-24*time.Hour), "")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalRequests != 2 || stats.TotalTokens != 400 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.AvgTokensPerRequest != 200 {
		t.Fatalf("avg = %v, want 200", stats.AvgTokensPerRequest)
	}

	perUser, err := s.UsageStats(now.Add(-72*time.Hour), "u2")
	if err != nil {
		t.Fatalf("per-user stats: %v", err)
	}
	if perUser.TotalRequests != 1 || perUser.TotalTokens != 500 {
		t.Fatalf("per-user stats = %+v", perUser)
	}

	n, err := s.PurgeUsage(now.Add(-24 * time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("purge = %d, %v", n, err)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	if _, found, err := s.GetSetting("provider_api_key"); err != nil || found {
		t.Fatalf("get missing = %v, %v", found, err)
	}
	if err := s.PutSetting("provider_api_key", "sealed-v1"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.PutSetting("provider_api_key", "sealed-v2"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	value, found, err := s.GetSetting("provider_api_key")
	if err != nil || !found || value != "sealed-v2" {
		t.Fatalf("get = %q, %v, %v", value, found, err)
	}
	if err := s.DeleteSetting("provider_api_key"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, found, _ := s.GetSetting("provider_api_key"); found {
		t.Fatalf("setting should be gone")
	}
}
