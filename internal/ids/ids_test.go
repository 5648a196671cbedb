package ids

import (
	"fmt"
	"testing"
	"time"
)

var day = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

func TestGenerateSequence(t *testing.T) {
	var existing []string
	want := []string{"MEM-20260314-001", "MEM-20260314-002", "MEM-20260314-003"}
	for i, w := range want {
		id := Generate(Member, "", day, existing)
		if id != w {
			t.Errorf("id[%d] = %q, want %q", i, id, w)
		}
		existing = append(existing, id)
	}
}

func TestGenerateWithSubtype(t *testing.T) {
	existing := []string{
		"TRX-ACH-20260314-004",
		"TRX-VIO-20260314-009",
		"TRX-ACH-20260314-002",
	}
	if got := Generate(Transaction, Achievement, day, existing); got != "TRX-ACH-20260314-005" {
		t.Errorf("ach id = %q, want TRX-ACH-20260314-005", got)
	}
	if got := Generate(Transaction, Violation, day, existing); got != "TRX-VIO-20260314-010" {
		t.Errorf("vio id = %q, want TRX-VIO-20260314-010", got)
	}
}

func TestGenerateResetsDaily(t *testing.T) {
	existing := []string{"APL-20260313-007", "APL-20260313-008"}
	if got := Generate(Appeal, "", day, existing); got != "APL-20260314-001" {
		t.Errorf("id = %q, want APL-20260314-001", got)
	}
}

func TestGenerateUsesUTCDate(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	late := time.Date(2026, 3, 15, 8, 0, 0, 0, loc) // 2026-03-14 22:00 UTC
	if got := Generate(Archive, "", late, nil); got != "ARC-20260314-001" {
		t.Errorf("id = %q, want ARC-20260314-001", got)
	}
}

func TestGenerateIgnoresMalformed(t *testing.T) {
	existing := []string{"MEM-20260314-abc", "MEM-20260314-", "MEM-20260314-002"}
	if got := Generate(Member, "", day, existing); got != "MEM-20260314-003" {
		t.Errorf("id = %q, want MEM-20260314-003", got)
	}
}

func TestGenerateWidensPast999(t *testing.T) {
	existing := []string{"MEM-20260314-999"}
	if got := Generate(Member, "", day, existing); got != "MEM-20260314-1000" {
		t.Errorf("id = %q, want MEM-20260314-1000", got)
	}
}

func TestGenerateStrictlyIncreasing(t *testing.T) {
	var existing []string
	prev := 0
	for i := 0; i < 50; i++ {
		id := Generate(Rule, Violation, day, existing)
		n, ok := Sequence(id)
		if !ok {
			t.Fatalf("unparseable id %q", id)
		}
		if n <= prev {
			t.Fatalf("sequence %d not greater than %d", n, prev)
		}
		prev = n
		existing = append(existing, id)
	}
}

func TestSequence(t *testing.T) {
	tests := []struct {
		id   string
		want int
		ok   bool
	}{
		{"MEM-20260314-001", 1, true},
		{"LOG-UPD-20260314-042", 42, true},
		{"nodash", 0, false},
		{"MEM-20260314-", 0, false},
		{"MEM-20260314-x1", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			n, ok := Sequence(tt.id)
			if n != tt.want || ok != tt.ok {
				t.Errorf("Sequence(%q) = (%d, %v), want (%d, %v)", tt.id, n, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestSetUniqueKeepsFreeID(t *testing.T) {
	s := NewSet([]string{"MEM-20260314-001"})
	if got := s.Unique("S-100", Member, "", day); got != "S-100" {
		t.Errorf("id = %q, want S-100", got)
	}
	if !s.Has("S-100") {
		t.Error("expected S-100 to be reserved")
	}
}

func TestSetUniqueResolvesCollision(t *testing.T) {
	s := NewSet([]string{"MEM-20260314-001", "MEM-20260314-002"})

	first := s.Unique("MEM-20260314-001", Member, "", day)
	second := s.Unique("", Member, "", day)

	if first != "MEM-20260314-003" {
		t.Errorf("first = %q, want MEM-20260314-003", first)
	}
	if second != "MEM-20260314-004" {
		t.Errorf("second = %q, want MEM-20260314-004", second)
	}
}

func TestSetUniqueBatch(t *testing.T) {
	s := NewSet(nil)
	seen := map[string]bool{}
	for i := 0; i < 25; i++ {
		id := s.Unique("", User, Contributor, day)
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
	if !seen[fmt.Sprintf("USR-CON-20260314-%03d", 25)] {
		t.Error("expected sequence to reach 025")
	}
}
