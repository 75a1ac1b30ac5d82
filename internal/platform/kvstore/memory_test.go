package kvstore

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreSetGetDelete(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	if err := s.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatalf("ok: want=true got=false")
	}
	if string(got) != "v" {
		t.Fatalf("value: want=%q got=%q", "v", got)
	}

	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatalf("ok after delete: want=false got=true")
	}
}

func TestMemoryStoreMissingKey(t *testing.T) {
	s := NewMemory()
	_, ok, err := s.Get(context.Background(), "absent")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatalf("ok: want=false got=true")
	}
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	base := time.Now()
	s := &memoryStore{
		data: make(map[string]memoryEntry),
		now:  func() time.Time { return base },
	}
	ctx := context.Background()

	if err := s.Set(ctx, "short", []byte("x"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, "forever", []byte("y"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if _, ok, _ := s.Get(ctx, "short"); !ok {
		t.Fatalf("short before expiry: want=true got=false")
	}

	base = base.Add(2 * time.Minute)

	if _, ok, _ := s.Get(ctx, "short"); ok {
		t.Fatalf("short after expiry: want=false got=true")
	}
	if _, ok, _ := s.Get(ctx, "forever"); !ok {
		t.Fatalf("forever after expiry: want=true got=false")
	}
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	src := []byte("abc")
	if err := s.Set(ctx, "k", src, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	src[0] = 'z'

	got, _, _ := s.Get(ctx, "k")
	if string(got) != "abc" {
		t.Fatalf("value: want=%q got=%q", "abc", got)
	}
}
