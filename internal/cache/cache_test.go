package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemorySetGet(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("")

	if err := c.Set(ctx, "lessons:1:list", "payload", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, err := c.Get(ctx, "lessons:1:list")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != "payload" {
		t.Fatalf("Get = %q, want %q", v, "payload")
	}

	if _, err := c.Get(ctx, "missing"); !IsNotFound(err) {
		t.Fatalf("Get missing = %v, want not-found", err)
	}
}

func TestMemoryDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("")

	_ = c.Set(ctx, "k", "v", 0)
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := c.Get(ctx, "k"); !IsNotFound(err) {
		t.Fatalf("Get after delete = %v, want not-found", err)
	}
}

func TestMemoryDeletePrefix(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("")

	_ = c.Set(ctx, "lessons:1:list", "a", 0)
	_ = c.Set(ctx, "lessons:1:detail", "b", 0)
	_ = c.Set(ctx, "lessons:2:list", "c", 0)
	_ = c.Set(ctx, "quizzes:1:list", "d", 0)

	n, err := c.DeletePrefix(ctx, "lessons:")
	if err != nil {
		t.Fatalf("DeletePrefix: %v", err)
	}
	if n != 3 {
		t.Fatalf("DeletePrefix removed %d keys, want 3", n)
	}
	if _, err := c.Get(ctx, "lessons:1:list"); !IsNotFound(err) {
		t.Fatal("lessons family should be gone")
	}
	if _, err := c.Get(ctx, "quizzes:1:list"); err != nil {
		t.Fatalf("quizzes family should survive: %v", err)
	}
}

func TestMemoryClear(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("")

	_ = c.Set(ctx, "a", "1", 0)
	_ = c.Set(ctx, "b", "2", 0)
	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := c.Get(ctx, "a"); !IsNotFound(err) {
		t.Fatal("Clear must drop every key")
	}
}

func TestMemoryTTL(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("")

	_ = c.Set(ctx, "fleeting", "v", 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	if _, err := c.Get(ctx, "fleeting"); !IsNotFound(err) {
		t.Fatal("expired entry must read as not-found")
	}
}

func TestMemorySnapshotRestore(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("")

	_ = c.Set(ctx, "lessons:1:list", "a", 0)
	_ = c.Set(ctx, "progress:1", "b", time.Hour)
	_ = c.Set(ctx, "blink", "gone", time.Nanosecond)
	time.Sleep(time.Millisecond)

	blob, err := c.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	fresh := NewMemory("")
	if err := fresh.Restore(ctx, blob); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if v, err := fresh.Get(ctx, "lessons:1:list"); err != nil || v != "a" {
		t.Fatalf("restored lessons:1:list = %q, %v", v, err)
	}
	if v, err := fresh.Get(ctx, "progress:1"); err != nil || v != "b" {
		t.Fatalf("restored progress:1 = %q, %v", v, err)
	}
	if _, err := fresh.Get(ctx, "blink"); !IsNotFound(err) {
		t.Fatal("expired entries must not survive a snapshot round trip")
	}
}

func TestMemoryRestoreCorruptBlob(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("")

	if err := c.Restore(ctx, []byte("{not json")); err != nil {
		t.Fatalf("Restore corrupt = %v, want nil (cold start)", err)
	}
	_ = c.Set(ctx, "after", "ok", 0)
	if v, _ := c.Get(ctx, "after"); v != "ok" {
		t.Fatal("cache must stay usable after a corrupt restore")
	}
}

func TestMemoryPrefixIsolation(t *testing.T) {
	ctx := context.Background()
	a := NewMemory("profileA")

	_ = a.Set(ctx, "k", "va", 0)
	v, err := a.Get(ctx, "k")
	if err != nil || v != "va" {
		t.Fatalf("prefixed Get = %q, %v", v, err)
	}

	n, err := a.DeletePrefix(ctx, "k")
	if err != nil || n != 1 {
		t.Fatalf("prefixed DeletePrefix = %d, %v, want 1", n, err)
	}
}

func TestNewDefaultsToMemory(t *testing.T) {
	c, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := c.(*memoryClient); !ok {
		t.Fatalf("New(empty) = %T, want *memoryClient", c)
	}
}
