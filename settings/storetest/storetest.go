// Package storetest provides a reusable conformance suite for
// settings.Store implementations.
package storetest

import (
	"context"
	"testing"

	"github.com/brainmate-ai/tutorchat/settings"
)

// Factory builds a fresh Store for one subtest.
type Factory func(t *testing.T) settings.Store

// RunStoreTests exercises the settings.Store contract against the
// factory's implementation.
func RunStoreTests(t *testing.T, factory Factory) {
	t.Run("RoundTrip", func(t *testing.T) {
		s := factory(t)
		defer s.Close()
		ctx := context.Background()

		if _, ok, err := s.Get(ctx, "stu-1", settings.KeyTheme); err != nil || ok {
			t.Fatalf("Get before Set = ok=%v err=%v", ok, err)
		}
		if err := s.Set(ctx, "stu-1", settings.KeyTheme, "dark"); err != nil {
			t.Fatalf("Set: %v", err)
		}
		v, ok, err := s.Get(ctx, "stu-1", settings.KeyTheme)
		if err != nil || !ok || v != "dark" {
			t.Fatalf("Get = %q ok=%v err=%v", v, ok, err)
		}

		if err := s.Set(ctx, "stu-1", settings.KeyTheme, "light"); err != nil {
			t.Fatalf("Set overwrite: %v", err)
		}
		if v, _, _ := s.Get(ctx, "stu-1", settings.KeyTheme); v != "light" {
			t.Fatalf("overwritten value = %q", v)
		}
	})

	t.Run("StudentsIsolated", func(t *testing.T) {
		s := factory(t)
		defer s.Close()
		ctx := context.Background()

		if err := s.Set(ctx, "stu-1", settings.KeyTourSeen, "true"); err != nil {
			t.Fatalf("Set: %v", err)
		}
		if _, ok, err := s.Get(ctx, "stu-2", settings.KeyTourSeen); err != nil || ok {
			t.Fatalf("other student sees value: ok=%v err=%v", ok, err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		s := factory(t)
		defer s.Close()
		ctx := context.Background()

		if err := s.Set(ctx, "stu-1", settings.KeyVoiceOutput, "on"); err != nil {
			t.Fatalf("Set: %v", err)
		}
		if err := s.Delete(ctx, "stu-1", settings.KeyVoiceOutput); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, ok, _ := s.Get(ctx, "stu-1", settings.KeyVoiceOutput); ok {
			t.Fatal("value survived Delete")
		}
		if err := s.Delete(ctx, "stu-1", settings.KeyVoiceOutput); err != nil {
			t.Fatalf("Delete should be idempotent: %v", err)
		}
	})
}
