package repository

import (
	"testing"
	"time"

	"fee-ledger/internal/domain"
)

func TestReferenceCache(t *testing.T) {
	c := NewReferenceCache(time.Minute)
	scope := domain.Scope{BranchID: "br-1", SessionID: "2025-26"}
	other := domain.Scope{BranchID: "br-2", SessionID: "2025-26"}

	if _, ok := c.Heads(scope); ok {
		t.Fatal("expected empty cache")
	}

	c.SetHeads(scope, []domain.FeeHead{{ID: "tuition", Name: "Tuition"}})
	c.SetTerms(scope, []domain.FeeTerm{{ID: "term1", Name: "Term 1"}})

	heads, ok := c.Heads(scope)
	if !ok || len(heads) != 1 || heads[0].ID != "tuition" {
		t.Fatalf("unexpected heads %v (%v)", heads, ok)
	}
	if _, ok := c.Heads(other); ok {
		t.Fatal("scopes must not share entries")
	}

	c.Invalidate(scope)
	if _, ok := c.Terms(scope); ok {
		t.Fatal("expected terms to be invalidated")
	}
}

func TestReferenceCache_Nil(t *testing.T) {
	var c *ReferenceCache
	c.SetHeads(domain.Scope{}, nil)
	if _, ok := c.Heads(domain.Scope{}); ok {
		t.Fatal("nil cache must always miss")
	}
}

func TestReferencesKnown(t *testing.T) {
	heads := []domain.FeeHead{{ID: "tuition"}}
	terms := []domain.FeeTerm{{ID: "term1"}}

	known := []domain.FeeStructureEntry{{FeeHeadID: "tuition", FeeTermID: "term1"}}
	if !referencesKnown(known, heads, terms) {
		t.Fatal("expected entries to be covered by the cached reference data")
	}

	newHead := append(known, domain.FeeStructureEntry{FeeHeadID: "transport", FeeTermID: "term1"})
	if referencesKnown(newHead, heads, terms) {
		t.Fatal("an unknown head must force a refresh")
	}

	newTerm := append(known, domain.FeeStructureEntry{FeeHeadID: "tuition", FeeTermID: "term2"})
	if referencesKnown(newTerm, heads, terms) {
		t.Fatal("an unknown term must force a refresh")
	}
}
