package store

import (
	"testing"
	"time"

	"contentforge/pkg/domain"
)

func TestCacheEntryLifecycle(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()
	entry := CacheEntry{
		Key:         "abc123",
		ContentType: domain.ContentPost,
		Payload:     `{"title":"Hello"}`,
		ExpiresAt:   now.Add(24 * time.Hour),
	}
	if err := s.PutCacheEntry(entry); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, found, err := s.GetCacheEntry("abc123", now)
	if err != nil || !found {
		t.Fatalf("get = %v, %v", found, err)
	}
	if got.Payload != entry.Payload || got.ContentType != domain.ContentPost {
		t.Fatalf("entry = %+v", got)
	}

	if err := s.TouchCacheHit("abc123"); err != nil {
		t.Fatalf("touch: %v", err)
	}
	stats, err := s.CacheStats(now)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Entries != 1 || stats.Active != 1 || stats.Hits != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	// Past expiry the entry counts as expired but not active.
	stats, err = s.CacheStats(now.Add(25 * time.Hour))
	if err != nil {
		t.Fatalf("stats after expiry: %v", err)
	}
	if stats.Active != 0 || stats.Expired != 1 {
		t.Fatalf("expired stats = %+v", stats)
	}

	// Expired entries are treated as absent.
	if _, found, _ := s.GetCacheEntry("abc123", now.Add(25*time.Hour)); found {
		t.Fatalf("expired entry should be a miss")
	}
}

func TestCacheUpsertRefreshesPayload(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()
	if err := s.PutCacheEntry(CacheEntry{
		Key: "k", ContentType: domain.ContentPost, Payload: "v1", ExpiresAt: now.Add(time.Hour),
	}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.PutCacheEntry(CacheEntry{
		Key: "k", ContentType: domain.ContentPage, Payload: "v2", ExpiresAt: now.Add(2 * time.Hour),
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, found, err := s.GetCacheEntry("k", now)
	if err != nil || !found {
		t.Fatalf("get = %v, %v", found, err)
	}
	if got.Payload != "v2" || got.ContentType != domain.ContentPage {
		t.Fatalf("entry after upsert = %+v", got)
	}
}

func TestClearCacheByContentType(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()
	for _, e := range []CacheEntry{
		{Key: "p1", ContentType: domain.ContentPost, Payload: "x", ExpiresAt: now.Add(time.Hour)},
		{Key: "p2", ContentType: domain.ContentPost, Payload: "x", ExpiresAt: now.Add(time.Hour)},
		{Key: "e1", ContentType: domain.ContentEmail, Payload: "x", ExpiresAt: now.Add(time.Hour)},
	} {
		if err := s.PutCacheEntry(e); err != nil {
			t.Fatalf("put %s: %v", e.Key, err)
		}
	}
	n, err := s.ClearCache(domain.ContentPost)
	if err != nil || n != 2 {
		t.Fatalf("clear posts = %d, %v", n, err)
	}
	if _, found, _ := s.GetCacheEntry("e1", now); !found {
		t.Fatalf("email entry should survive a post-only clear")
	}
	n, err = s.ClearCache("")
	if err != nil || n != 1 {
		t.Fatalf("clear all = %d, %v", n, err)
	}
}

func TestPurgeExpiredCache(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()
	_ = s.PutCacheEntry(CacheEntry{Key: "live", ContentType: domain.ContentPost, Payload: "x", ExpiresAt: now.Add(time.Hour)})
	_ = s.PutCacheEntry(CacheEntry{Key: "dead", ContentType: domain.ContentPost, Payload: "x", ExpiresAt: now.Add(-time.Minute)})

	n, err := s.PurgeExpiredCache(now)
	if err != nil || n != 1 {
		t.Fatalf("purge = %d, %v", n, err)
	}
	if _, found, _ := s.GetCacheEntry("live", now); !found {
		t.Fatalf("unexpired entry should survive purge")
	}
}
