package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"llmbridge/internal/gemini"
)

func TestMemoryExactCache_TTL(t *testing.T) {
	c := NewMemoryExactCache(10 * time.Millisecond)
	defer c.Close()

	ctx := context.Background()
	key := "exact:gpt-4o:v1:abc"
	val := []byte("hello")

	if err := c.Set(ctx, key, val, 20*time.Millisecond); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, hit, err := c.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !hit {
		t.Fatalf("expected hit immediately after Set")
	}
	if string(got) != "hello" {
		t.Fatalf("expected 'hello', got %q", got)
	}

	// Wait for TTL to expire
	time.Sleep(30 * time.Millisecond)

	_, hit, err = c.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get after TTL failed: %v", err)
	}
	if hit {
		t.Fatalf("expected miss after TTL expiry")
	}
}

func TestMemoryExactCache_SetCopiesValue(t *testing.T) {
	c := NewMemoryExactCache(time.Minute)
	defer c.Close()

	ctx := context.Background()
	val := []byte("original")
	if err := c.Set(ctx, "k", val, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	val[0] = 'X'

	got, hit, _ := c.Get(ctx, "k")
	if !hit || string(got) != "original" {
		t.Fatalf("cached value should be decoupled from caller's buffer, got %q", got)
	}
}

func TestMemoryExactCache_NonPositiveTTLDeletes(t *testing.T) {
	c := NewMemoryExactCache(time.Minute)
	defer c.Close()

	ctx := context.Background()
	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := c.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set with zero TTL failed: %v", err)
	}

	if _, hit, _ := c.Get(ctx, "k"); hit {
		t.Fatalf("expected key deleted by zero TTL")
	}
}

func TestMemoryExactCache_LenAndClear(t *testing.T) {
	c := NewMemoryExactCache(time.Minute)
	defer c.Close()

	ctx := context.Background()
	c.Set(ctx, "a", []byte("1"), time.Minute)
	c.Set(ctx, "b", []byte("2"), time.Minute)

	if c.Len() != 2 {
		t.Fatalf("expected 2 items, got %d", c.Len())
	}

	c.Clear()
	if c.Len() != 0 {
		t.Fatalf("expected empty cache after Clear, got %d", c.Len())
	}
}

func TestExactCacheKeyString(t *testing.T) {
	key := ExactCacheKey{ModelID: "gpt-4o", VersionID: "v2", Hash: "deadbeef"}
	if key.String() != "exact:gpt-4o:v2:deadbeef" {
		t.Fatalf("unexpected key string: %s", key.String())
	}
}

func TestBuildExactCacheKey(t *testing.T) {
	req := gemini.GenerateContentRequest{
		Contents: []gemini.Content{{
			Role:  gemini.RoleUser,
			Parts: []gemini.Part{{Text: "hello"}},
		}},
	}

	key1, err := BuildExactCacheKey(req, " gpt-4o ", "v1")
	if err != nil {
		t.Fatalf("BuildExactCacheKey failed: %v", err)
	}
	if key1.ModelID != "gpt-4o" || key1.VersionID != "v1" {
		t.Fatalf("expected trimmed model and version, got %+v", key1)
	}
	if len(key1.Hash) != 64 || strings.ToLower(key1.Hash) != key1.Hash {
		t.Fatalf("expected lowercase sha256 hex hash, got %q", key1.Hash)
	}

	// Same request, same key.
	key2, _ := BuildExactCacheKey(req, "gpt-4o", "v1")
	if key1.Hash != key2.Hash {
		t.Fatalf("identical requests must hash identically")
	}

	// Different request body, different key.
	req.Contents[0].Parts[0].Text = "different"
	key3, _ := BuildExactCacheKey(req, "gpt-4o", "v1")
	if key3.Hash == key1.Hash {
		t.Fatalf("different requests must hash differently")
	}

	// Different model, different key.
	req.Contents[0].Parts[0].Text = "hello"
	key4, _ := BuildExactCacheKey(req, "gpt-4o-mini", "v1")
	if key4.Hash == key1.Hash {
		t.Fatalf("model must participate in the hash")
	}
}
