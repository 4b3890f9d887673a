package cache

import (
	"testing"

	"github.com/use-agent/auspex/scraper"
)

func TestKeyDeterministicAndDistinct(t *testing.T) {
	k1 := Key("https://example.com", "markdown", "article")
	k2 := Key("https://example.com", "markdown", "article")
	if k1 != k2 {
		t.Fatalf("Key should be deterministic: %q != %q", k1, k2)
	}
	if Key("https://example.com", "html", "article") == k1 {
		t.Fatal("Key should differ when output format differs")
	}
}

func TestGetMissAndHit(t *testing.T) {
	c := New(10)
	key := Key("https://example.com", "markdown", "article")

	if _, ok := c.Get(key, 60_000); ok {
		t.Fatal("expected miss before Set")
	}

	outcome := &scraper.Outcome{Result: scraper.Result{FinalURL: "https://example.com"}}
	c.Set(key, outcome)

	got, ok := c.Get(key, 60_000)
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if got.Result.FinalURL != outcome.Result.FinalURL {
		t.Fatalf("cached outcome mismatch: %+v", got)
	}
}

func TestGetDisabledWhenMaxAgeNonPositive(t *testing.T) {
	c := New(10)
	key := Key("https://example.com", "markdown", "article")
	c.Set(key, &scraper.Outcome{})

	if _, ok := c.Get(key, 0); ok {
		t.Fatal("maxAgeMs <= 0 must disable cache lookups entirely")
	}
}

func TestSetEvictsAtCapacity(t *testing.T) {
	c := New(2)
	c.Set("a", &scraper.Outcome{})
	c.Set("b", &scraper.Outcome{})
	c.Set("c", &scraper.Outcome{})

	c.mu.RLock()
	n := len(c.store)
	c.mu.RUnlock()
	if n > 2 {
		t.Fatalf("store grew past maxEntries: len=%d", n)
	}
}
