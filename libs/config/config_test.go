package config

import (
	"testing"
	"time"
)

func TestIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("CFG_TEST_INT", "not-a-number")
	if got := Int("CFG_TEST_INT", 42); got != 42 {
		t.Fatalf("expected fallback 42, got %d", got)
	}
	t.Setenv("CFG_TEST_INT", "7")
	if got := Int("CFG_TEST_INT", 42); got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
}

func TestBool(t *testing.T) {
	t.Setenv("CFG_TEST_BOOL", "yes")
	if !Bool("CFG_TEST_BOOL", false) {
		t.Fatal("expected true for yes")
	}
	t.Setenv("CFG_TEST_BOOL", "off")
	if Bool("CFG_TEST_BOOL", true) {
		t.Fatal("expected false for off")
	}
	t.Setenv("CFG_TEST_BOOL", "maybe")
	if !Bool("CFG_TEST_BOOL", true) {
		t.Fatal("expected fallback for unknown value")
	}
}

func TestDurationSeconds(t *testing.T) {
	t.Setenv("CFG_TEST_DUR", "30")
	if got := Duration("CFG_TEST_DUR", time.Second); got != 30*time.Second {
		t.Fatalf("expected 30s, got %s", got)
	}
	t.Setenv("CFG_TEST_DUR", "-5")
	if got := Duration("CFG_TEST_DUR", time.Second); got != time.Second {
		t.Fatalf("expected fallback, got %s", got)
	}
}

func TestPortRejectsOutOfRange(t *testing.T) {
	t.Setenv("CFG_TEST_PORT", "70000")
	if _, err := Port("CFG_TEST_PORT", "8080"); err == nil {
		t.Fatal("expected error for out-of-range port")
	}
	t.Setenv("CFG_TEST_PORT", "8085")
	p, err := Port("CFG_TEST_PORT", "8080")
	if err != nil || p != "8085" {
		t.Fatalf("expected 8085, got %q err=%v", p, err)
	}
}

func TestList(t *testing.T) {
	t.Setenv("CFG_TEST_LIST", " a, ,b ,")
	got := List("CFG_TEST_LIST", "")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected list: %#v", got)
	}
}
