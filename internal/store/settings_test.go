package store

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestSettingsGetSet(t *testing.T) {
	db := setupDB(t)
	s := NewSettingsStore(db)
	ctx := context.Background()

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.Set(ctx, "key", "one"); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "key", "two"); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	value, err := s.Get(ctx, "key")
	if err != nil || value != "two" {
		t.Errorf("Get = %q, %v", value, err)
	}
}

func TestEnsureSecretSaltIsStable(t *testing.T) {
	db := setupDB(t)
	s := NewSettingsStore(db)
	ctx := context.Background()

	first, err := s.EnsureSecretSalt(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) == 0 {
		t.Fatal("empty salt")
	}

	second, err := s.EnsureSecretSalt(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Error("salt changed between calls")
	}
}
