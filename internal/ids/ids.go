// Package ids generates sortable, human-readable identifiers of the form
// PREFIX-[SUBTYPE-]YYYYMMDD-NNN where NNN restarts at 001 each UTC day.
package ids

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	Member      = "MEM"
	Rule        = "RUL"
	WarningRule = "WRN"
	Transaction = "TRX"
	AuditLog    = "LOG"
	Appeal      = "APL"
	Archive     = "ARC"
	User        = "USR"
)

const (
	Achievement = "ACH"
	Violation   = "VIO"
	Update      = "UPD"
	Admin       = "ADM"
	Contributor = "CON"
)

// Scope returns the string every id in (prefix, subtype, day) starts with,
// including the trailing separator.
func Scope(prefix, subtype string, at time.Time) string {
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteByte('-')
	if subtype != "" {
		b.WriteString(subtype)
		b.WriteByte('-')
	}
	b.WriteString(at.UTC().Format("20060102"))
	b.WriteByte('-')
	return b.String()
}

// Format renders the id for seq within the scope.
func Format(prefix, subtype string, at time.Time, seq int) string {
	return fmt.Sprintf("%s%03d", Scope(prefix, subtype, at), seq)
}

// Sequence parses the trailing numeric segment of id.
func Sequence(id string) (int, bool) {
	i := strings.LastIndexByte(id, '-')
	if i < 0 || i == len(id)-1 {
		return 0, false
	}
	n, err := strconv.Atoi(id[i+1:])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Generate returns the next id in scope: one past the highest sequence among
// existing ids sharing the scope, or 001 when none do.
func Generate(prefix, subtype string, at time.Time, existing []string) string {
	return Format(prefix, subtype, at, next(Scope(prefix, subtype, at), existing))
}

func next(scope string, existing []string) int {
	highest := 0
	for _, id := range existing {
		if !strings.HasPrefix(id, scope) {
			continue
		}
		n, err := strconv.Atoi(id[len(scope):])
		if err == nil && n > highest {
			highest = n
		}
	}
	return highest + 1
}

// Set tracks ids already taken so a batch can allocate without collisions.
type Set map[string]struct{}

// NewSet builds a Set from existing ids.
func NewSet(existing []string) Set {
	s := make(Set, len(existing))
	for _, id := range existing {
		s[id] = struct{}{}
	}
	return s
}

func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s Set) Add(id string) {
	s[id] = struct{}{}
}

func (s Set) list() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	return out
}

// Unique returns want when it is non-empty and free. Otherwise it generates an
// id in scope and increments the sequence until it finds a free one. The
// result is added to the set.
func (s Set) Unique(want, prefix, subtype string, at time.Time) string {
	if want != "" && !s.Has(want) {
		s.Add(want)
		return want
	}
	scope := Scope(prefix, subtype, at)
	seq := next(scope, s.list())
	id := Format(prefix, subtype, at, seq)
	for s.Has(id) {
		seq++
		id = Format(prefix, subtype, at, seq)
	}
	s.Add(id)
	return id
}
