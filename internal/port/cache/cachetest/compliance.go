// Package cachetest holds the compliance suite shared by cache.Cache adapters.
package cachetest

import (
	"context"
	"testing"
	"time"

	"github.com/Strob0t/TaskDesk/internal/port/cache"
)

// Run runs the standard compliance test suite against any Cache implementation.
// settle is called after writes for adapters that apply them asynchronously; it may be nil.
func Run(t *testing.T, c cache.Cache, settle func()) {
	t.Helper()
	ctx := context.Background()
	if settle == nil {
		settle = func() {}
	}

	t.Run("SetAndGet", func(t *testing.T) {
		if err := c.Set(ctx, "tasks?page=1", []byte(`{"items":[]}`), time.Minute); err != nil {
			t.Fatal(err)
		}
		settle()
		val, found, err := c.Get(ctx, "tasks?page=1")
		if err != nil {
			t.Fatal(err)
		}
		if !found {
			t.Fatal("expected found after Set")
		}
		if string(val) != `{"items":[]}` {
			t.Fatalf("unexpected value %s", val)
		}
	})

	t.Run("GetMiss", func(t *testing.T) {
		_, found, err := c.Get(ctx, "tasks?page=999")
		if err != nil {
			t.Fatal(err)
		}
		if found {
			t.Fatal("expected miss for nonexistent key")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		_ = c.Set(ctx, "tasks?page=2", []byte("v"), time.Minute)
		settle()
		if err := c.Delete(ctx, "tasks?page=2"); err != nil {
			t.Fatal(err)
		}
		settle()
		_, found, err := c.Get(ctx, "tasks?page=2")
		if err != nil {
			t.Fatal(err)
		}
		if found {
			t.Fatal("expected miss after Delete")
		}
	})

	t.Run("DeleteNonexistent", func(t *testing.T) {
		if err := c.Delete(ctx, "never-existed"); err != nil {
			t.Fatal("Delete of nonexistent key should not error")
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		_ = c.Set(ctx, "tasks?page=3", []byte("v1"), time.Minute)
		settle()
		_ = c.Set(ctx, "tasks?page=3", []byte("v2"), time.Minute)
		settle()
		val, found, err := c.Get(ctx, "tasks?page=3")
		if err != nil {
			t.Fatal(err)
		}
		if !found {
			t.Fatal("expected found after overwrite")
		}
		if string(val) != "v2" {
			t.Fatalf("expected v2 after overwrite, got %s", val)
		}
	})

	t.Run("ValueIsolation", func(t *testing.T) {
		in := []byte("snapshot")
		_ = c.Set(ctx, "tasks?page=4", in, time.Minute)
		settle()
		in[0] = 'X'

		out, found, err := c.Get(ctx, "tasks?page=4")
		if err != nil || !found {
			t.Fatalf("Get: found=%v err=%v", found, err)
		}
		if string(out) != "snapshot" {
			t.Fatalf("store kept the caller's slice: %s", out)
		}
		out[0] = 'Y'

		again, _, _ := c.Get(ctx, "tasks?page=4")
		if string(again) != "snapshot" {
			t.Fatalf("store handed out its own slice: %s", again)
		}
	})
}
