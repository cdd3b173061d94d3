package services

import "testing"

func TestRequiredKeysPresent(t *testing.T) {
	required := []string{
		"botox", "dermal_fillers", "laser_hair_removal",
		"hydrafacial", "chemical_peel", "microneedling", "consultation",
	}
	for _, key := range required {
		if _, ok := Lookup(key); !ok {
			t.Fatalf("expected catalog to contain required key %q", key)
		}
	}
}

func TestLookupIsCaseInsensitive(t *testing.T) {
	svc, ok := Lookup("  BOTOX ")
	if !ok {
		t.Fatalf("expected case-insensitive lookup to succeed")
	}
	if svc.Key != "botox" {
		t.Fatalf("expected key botox, got %q", svc.Key)
	}
}

func TestDurationMinutesFallback(t *testing.T) {
	if got := DurationMinutes("not-a-service", 45); got != 45 {
		t.Fatalf("expected fallback duration 45, got %d", got)
	}
	if got := DurationMinutes("hydrafacial", 45); got != 60 {
		t.Fatalf("expected catalog duration 60, got %d", got)
	}
}

func TestAllIsSortedAndComplete(t *testing.T) {
	all := All()
	if len(all) != 7 {
		t.Fatalf("expected 7 catalog entries, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].Key > all[i].Key {
			t.Fatalf("expected sorted output, %q came before %q", all[i-1].Key, all[i].Key)
		}
	}
}
