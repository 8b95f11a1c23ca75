package receipt

import (
	"regexp"
	"testing"
	"time"
)

func TestNumberFormat(t *testing.T) {
	at := time.Date(2026, 8, 28, 14, 30, 15, 0, time.UTC)
	got := Number(at)
	pattern := regexp.MustCompile(`^RCP-20260828143015-[0-9A-F]{8}$`)
	if !pattern.MatchString(got) {
		t.Fatalf("receipt number %q does not match expected format", got)
	}
}

func TestNumberUnique(t *testing.T) {
	at := time.Now()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		n := Number(at)
		if seen[n] {
			t.Fatalf("duplicate receipt number %q", n)
		}
		seen[n] = true
	}
}

func TestNewIDPrefix(t *testing.T) {
	id := NewID("sale")
	if len(id) < 6 || id[:5] != "sale-" {
		t.Fatalf("id %q missing prefix", id)
	}
}
