package memory

import (
	"testing"
	"time"
)

func TestSegmentCacheGetSet(t *testing.T) {
	c := NewSegmentCache()
	if _, ok := c.Get(SegmentLessons, time.Minute); ok {
		t.Fatal("empty cache returned a hit")
	}
	c.Set(SegmentLessons, "lesson content")
	got, ok := c.Get(SegmentLessons, time.Minute)
	if !ok || got != "lesson content" {
		t.Fatalf("got %q ok=%v", got, ok)
	}
}

func TestSegmentCacheExpiry(t *testing.T) {
	c := NewSegmentCache()
	base := time.Now()
	c.now = func() time.Time { return base }
	c.Set(SegmentProcedural, "entry")

	c.now = func() time.Time { return base.Add(2 * time.Minute) }
	if _, ok := c.Get(SegmentProcedural, time.Minute); ok {
		t.Fatal("expired entry returned")
	}
}

func TestSegmentCacheInvalidate(t *testing.T) {
	c := NewSegmentCache()
	c.Set(SegmentPreferences, "pref")
	c.Invalidate(SegmentPreferences)
	if _, ok := c.Get(SegmentPreferences, time.Minute); ok {
		t.Fatal("invalidated entry returned")
	}
}

func TestSegmentCacheClear(t *testing.T) {
	c := NewSegmentCache()
	c.Set(SegmentLessons, "a")
	c.Set(SegmentProcedural, "b")
	c.Clear()
	if _, ok := c.Get(SegmentLessons, time.Minute); ok {
		t.Fatal("cache not cleared")
	}
}

func TestSegmentForFile(t *testing.T) {
	cases := map[string]Segment{
		"lessons.md":     SegmentLessons,
		"procedural.md":  SegmentProcedural,
		"preferences.md": SegmentPreferences,
	}
	for name, want := range cases {
		got, ok := segmentForFile(name)
		if !ok || got != want {
			t.Fatalf("%s -> %v ok=%v", name, got, ok)
		}
	}
	if _, ok := segmentForFile("long-term.md"); ok {
		t.Fatal("long-term.md should not map to a cached segment")
	}
}
