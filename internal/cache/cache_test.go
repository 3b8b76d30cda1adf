package cache

import (
	"bytes"
	"testing"
)

func newTestCache(t *testing.T, capacity int64) *Cache {
	t.Helper()
	c, err := New(t.TempDir(), capacity)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestKeyIsDeterministicAndDistinct(t *testing.T) {
	a := Key("model", "voice", "hello")
	b := Key("model", "voice", "hello")
	if a != b {
		t.Error("identical inputs should produce identical keys")
	}

	variants := []string{
		Key("model", "voice", "goodbye"),
		Key("model", "other-voice", "hello"),
		Key("other-model", "voice", "hello"),
	}
	for _, v := range variants {
		if v == a {
			t.Error("different inputs should produce different keys")
		}
	}
}

func TestPutGetRoundtrip(t *testing.T) {
	c := newTestCache(t, 1<<20)

	data := bytes.Repeat([]byte("audio"), 1000)
	key := Key("model", "voice-1", "hello")
	if err := c.Put(key, data); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, ok := c.Get(key)
	if !ok {
		t.Fatal("Get() miss, want hit")
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Get() returned %d bytes, want the original %d", len(got), len(data))
	}
}

func TestGetMiss(t *testing.T) {
	c := newTestCache(t, 1<<20)

	if _, ok := c.Get(Key("model", "voice-1", "never stored")); ok {
		t.Error("Get() hit, want miss")
	}

	stats := c.Stats()
	if stats.Misses != 1 {
		t.Errorf("Misses = %d, want 1", stats.Misses)
	}
}

func TestEvictionKeepsNewestEntry(t *testing.T) {
	// A tiny budget forces eviction on every Put; the entry just written
	// must survive anyway.
	c := newTestCache(t, 10)

	keyA := Key("model", "voice-1", "first")
	keyB := Key("model", "voice-1", "second")

	if err := c.Put(keyA, bytes.Repeat([]byte("a"), 4096)); err != nil {
		t.Fatal(err)
	}
	if err := c.Put(keyB, bytes.Repeat([]byte("b"), 4096)); err != nil {
		t.Fatal(err)
	}

	if _, ok := c.Get(keyA); ok {
		t.Error("oldest entry should have been evicted")
	}
	if _, ok := c.Get(keyB); !ok {
		t.Error("newest entry should survive eviction")
	}
}

func TestClear(t *testing.T) {
	c := newTestCache(t, 1<<20)

	for _, text := range []string{"one", "two", "three"} {
		if err := c.Put(Key("model", "voice-1", text), []byte(text)); err != nil {
			t.Fatal(err)
		}
	}
	if stats := c.Stats(); stats.Entries != 3 {
		t.Fatalf("Entries = %d, want 3", stats.Entries)
	}

	if err := c.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if stats := c.Stats(); stats.Entries != 0 {
		t.Errorf("Entries = %d after Clear, want 0", stats.Entries)
	}
}

func TestStatsCountsHits(t *testing.T) {
	c := newTestCache(t, 1<<20)

	key := Key("model", "voice-1", "hello")
	if err := c.Put(key, []byte("audio")); err != nil {
		t.Fatal(err)
	}
	c.Get(key)
	c.Get(key)
	c.Get(Key("model", "voice-1", "other"))

	stats := c.Stats()
	if stats.Hits != 2 {
		t.Errorf("Hits = %d, want 2", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("Misses = %d, want 1", stats.Misses)
	}
	if stats.Entries != 1 {
		t.Errorf("Entries = %d, want 1", stats.Entries)
	}
	if stats.Bytes <= 0 {
		t.Error("Bytes should be positive with one entry on disk")
	}
}
