package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisv9 "github.com/redis/go-redis/v9"

	"gopherai-insect/internal/model"
)

func newTestCache(t *testing.T, ttl time.Duration) (*ClassificationCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redisv9.NewClient(&redisv9.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewClassificationCache(client, ttl), mr
}

func TestClassificationCacheRoundTrip(t *testing.T) {
	c, mr := newTestCache(t, time.Hour)
	ctx := context.Background()

	if _, ok, err := c.Get(ctx, "abc", "gemini-2.0-flash"); err != nil || ok {
		t.Fatalf("Get on empty cache = %v, %v", ok, err)
	}

	entry := model.CachedClassification{
		RawText:      "🐛 곤충 이름: 나비",
		ModelVersion: "Gemini-2.0-flash",
		CreatedAt:    time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	if err := c.Set(ctx, "abc", "gemini-2.0-flash", entry); err != nil {
		t.Fatalf("Set: %v", err)
	}

	key := "insect:classification:gemini-2.0-flash:abc"
	if !mr.Exists(key) {
		t.Fatalf("expected key %q in redis", key)
	}
	if ttl := mr.TTL(key); ttl != time.Hour {
		t.Fatalf("ttl = %v, want 1h", ttl)
	}

	got, ok, err := c.Get(ctx, "abc", "gemini-2.0-flash")
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if got.RawText != entry.RawText || !got.CreatedAt.Equal(entry.CreatedAt) {
		t.Fatalf("Get = %+v, want %+v", got, entry)
	}

	if _, ok, _ := c.Get(ctx, "abc", "other-model"); ok {
		t.Fatal("entries must be scoped by model")
	}
}

func TestClassificationCacheExpiresAndDeletes(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	if err := c.Set(ctx, "d1", "m", model.CachedClassification{RawText: "x"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, ok, _ := c.Get(ctx, "d1", "m"); ok {
		t.Fatal("entry should expire after ttl")
	}

	if err := c.Set(ctx, "d2", "m", model.CachedClassification{RawText: "y"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := c.Delete(ctx, "d2", "m"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "d2", "m"); ok {
		t.Fatal("entry should be deleted")
	}
}

func TestClassificationCacheRejectsCorruptEntry(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	if err := mr.Set("insect:classification:m:bad", "{not json"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := c.Get(context.Background(), "bad", "m"); err == nil {
		t.Fatal("expected unmarshal error")
	}
}
