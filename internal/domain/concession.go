package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ConcessionKind string

const (
	ConcessionPercentage ConcessionKind = "PERCENTAGE"
	ConcessionFixed      ConcessionKind = "FIXED"
)

func (k ConcessionKind) Valid() bool {
	return k == ConcessionPercentage || k == ConcessionFixed
}

// Applicability restricts a concession to a set of fee head or fee term ids.
// The zero value applies to nothing; use ApplyAll or ApplyOnly.
type Applicability struct {
	all bool
	ids map[string]struct{}
}

func ApplyAll() Applicability {
	return Applicability{all: true}
}

// ApplyOnly applies to exactly the given ids. An empty list applies to nothing.
func ApplyOnly(ids ...string) Applicability {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return Applicability{ids: set}
}

func (a Applicability) IsAll() bool { return a.all }

func (a Applicability) Includes(id string) bool {
	if a.all {
		return true
	}
	_, ok := a.ids[id]
	return ok
}

// IDs returns the restricted ids, or nil for ApplyAll.
func (a Applicability) IDs() []string {
	if a.all {
		return nil
	}
	out := make([]string, 0, len(a.ids))
	for id := range a.ids {
		out = append(out, id)
	}
	return out
}

type ConcessionType struct {
	ID                string
	Name              string
	Kind              ConcessionKind
	Value             decimal.Decimal
	MaxValue          *decimal.Decimal
	AppliedFeeHeads   Applicability
	AppliedFeeTerms   Applicability
	FeeTermAmounts    map[string]decimal.Decimal
	RequiredDocuments []string
}

type StudentConcession struct {
	ID               string
	StudentID        string
	ConcessionTypeID string
	Reason           string
	ValidFrom        time.Time
	ValidUntil       *time.Time
	Notes            string
}

// ActiveAt reports whether the calendar day of t falls in [ValidFrom, ValidUntil). Each side is
// read as a date in its own location, so stored dates match local evaluation days.
func (sc StudentConcession) ActiveAt(t time.Time) bool {
	day := CalendarDay(t)
	if day.Before(CalendarDay(sc.ValidFrom)) {
		return false
	}
	if sc.ValidUntil != nil && !day.Before(CalendarDay(*sc.ValidUntil)) {
		return false
	}
	return true
}

// CalendarDay drops the clock and zone of t, keeping its year, month and day.
func CalendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AssignedConcession pairs a student's assignment with its type definition.
type AssignedConcession struct {
	Type       ConcessionType
	Assignment StudentConcession
}

type AppliedConcession struct {
	ConcessionTypeID string
	Name             string
	Kind             ConcessionKind
	Value            decimal.Decimal
	Amount           decimal.Decimal
}
