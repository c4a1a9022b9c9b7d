package cache

import (
	"fmt"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestCache(maxSize int, ttl time.Duration) (*Cache, *time.Time) {
	c := New(Config{MaxSize: maxSize, TTL: ttl})
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercase", "Hello World", "hello world"},
		{"trimmed", "  hello world  ", "hello world"},
		{"collapsed whitespace", "hello   world", "hello world"},
		{"tabs and newlines", "hello\t\nworld", "hello world"},
		{"already normalized", "hello world", "hello world"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeKey(tt.input); got != tt.want {
				t.Errorf("NormalizeKey(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCache_GetNormalizesKey(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)
	c.Set("Hello World", Entry{Answer: "answer"})

	for _, q := range []string{"Hello World", "hello world", "  hello   world  ", "HELLO WORLD"} {
		got, ok := c.Get(q)
		if !ok {
			t.Fatalf("Get(%q) missed, want hit", q)
		}
		if got.Answer != "answer" {
			t.Errorf("Get(%q).Answer = %q, want %q", q, got.Answer, "answer")
		}
	}
}

func TestCache_LRUEviction(t *testing.T) {
	c, _ := newTestCache(3, time.Minute)

	c.Set("q1", Entry{Answer: "a1"})
	c.Set("q2", Entry{Answer: "a2"})
	c.Set("q3", Entry{Answer: "a3"})

	// Touch q1 so q2 becomes least recently used.
	if _, ok := c.Get("q1"); !ok {
		t.Fatal("Get(q1) missed")
	}

	c.Set("q4", Entry{Answer: "a4"})

	if c.Has("q2") {
		t.Error("q2 should have been evicted as least recently used")
	}
	for _, q := range []string{"q1", "q3", "q4"} {
		if !c.Has(q) {
			t.Errorf("%s should still be present", q)
		}
	}
}

func TestCache_ExactlyOneEvicted(t *testing.T) {
	const n = 5
	c, _ := newTestCache(n, time.Minute)

	for i := 0; i <= n; i++ {
		c.Set(fmt.Sprintf("q%d", i), Entry{Answer: "a"})
	}

	if got := c.Stats().Size; got != n {
		t.Fatalf("size = %d after N+1 inserts, want %d", got, n)
	}
	if c.Has("q0") {
		t.Error("q0 (oldest) should have been evicted")
	}
	for i := 1; i <= n; i++ {
		if !c.Has(fmt.Sprintf("q%d", i)) {
			t.Errorf("q%d should still be present", i)
		}
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	c, now := newTestCache(10, 30*time.Minute)
	c.Set("question", Entry{Answer: "answer"})

	*now = now.Add(29 * time.Minute)
	if !c.Has("question") {
		t.Fatal("entry expired before TTL")
	}

	*now = now.Add(2 * time.Minute)
	if c.Has("question") {
		t.Error("entry still live after TTL")
	}
	if _, ok := c.Get("question"); ok {
		t.Error("Get returned an expired entry")
	}
}

func TestCache_SlidingTTLOnGet(t *testing.T) {
	c, now := newTestCache(10, 30*time.Minute)
	c.Set("question", Entry{Answer: "answer"})

	// Touch at 20 minutes: expiry slides to the 50 minute mark.
	*now = now.Add(20 * time.Minute)
	if _, ok := c.Get("question"); !ok {
		t.Fatal("Get missed before expiry")
	}

	*now = now.Add(25 * time.Minute) // 45 minutes from insert, within slid window
	if !c.Has("question") {
		t.Error("entry expired despite TTL refresh on Get")
	}

	*now = now.Add(10 * time.Minute) // 55 minutes, beyond slid window
	if c.Has("question") {
		t.Error("entry still live after slid TTL elapsed")
	}
}

func TestCache_HasDoesNotSlideTTL(t *testing.T) {
	c, now := newTestCache(10, 30*time.Minute)
	c.Set("question", Entry{Answer: "answer"})

	*now = now.Add(20 * time.Minute)
	if !c.Has("question") {
		t.Fatal("Has missed before expiry")
	}

	// Had Has refreshed the TTL, the entry would live until the 50 minute
	// mark. It must expire at 30.
	*now = now.Add(15 * time.Minute)
	if c.Has("question") {
		t.Error("Has refreshed the TTL; probing must be side-effect free")
	}
}

func TestCache_Delete(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)
	c.Set("question", Entry{Answer: "answer"})

	if !c.Delete("  QUESTION ") {
		t.Error("Delete with unnormalized key returned false, want true")
	}
	if c.Has("question") {
		t.Error("entry present after Delete")
	}
	if c.Delete("question") {
		t.Error("second Delete returned true, want false")
	}
}

func TestCache_Clear(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)
	c.Set("q1", Entry{Answer: "a1"})
	c.Set("q2", Entry{Answer: "a2"})

	c.Clear()

	stats := c.Stats()
	if stats.Size != 0 {
		t.Errorf("size = %d after Clear, want 0", stats.Size)
	}
	if stats.ApproxBytes != 0 {
		t.Errorf("approxBytes = %d after Clear, want 0", stats.ApproxBytes)
	}
}

func TestCache_Stats(t *testing.T) {
	c, _ := newTestCache(42, time.Minute)
	c.Set("q1", Entry{Answer: "a1", Sources: []Source{{Preview: "preview", Chapter: "Chapter 1"}}})

	stats := c.Stats()
	if stats.Size != 1 {
		t.Errorf("size = %d, want 1", stats.Size)
	}
	if stats.MaxSize != 42 {
		t.Errorf("maxSize = %d, want 42", stats.MaxSize)
	}
	if stats.ApproxBytes <= 0 {
		t.Errorf("approxBytes = %d, want > 0", stats.ApproxBytes)
	}

	// Replacing an entry must not double-count bytes.
	before := stats.ApproxBytes
	c.Set("q1", Entry{Answer: "a1", Sources: []Source{{Preview: "preview", Chapter: "Chapter 1"}}})
	if got := c.Stats().ApproxBytes; got != before {
		t.Errorf("approxBytes = %d after identical replace, want %d", got, before)
	}
}

func TestCache_Defaults(t *testing.T) {
	c := New(Config{})
	if c.maxSize != DefaultMaxSize {
		t.Errorf("maxSize = %d, want %d", c.maxSize, DefaultMaxSize)
	}
	if c.ttl != DefaultTTL {
		t.Errorf("ttl = %v, want %v", c.ttl, DefaultTTL)
	}
}
