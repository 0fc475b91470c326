package repository

import (
	"time"

	"fee-ledger/internal/domain"

	"github.com/patrickmn/go-cache"
)

// ReferenceCache holds heads and terms per branch and session. They change a few times a year
// while every ledger request reads them.
type ReferenceCache struct {
	c *cache.Cache
}

func NewReferenceCache(ttl time.Duration) *ReferenceCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &ReferenceCache{c: cache.New(ttl, 2*ttl)}
}

func headsKey(s domain.Scope) string { return "heads:" + s.BranchID + ":" + s.SessionID }
func termsKey(s domain.Scope) string { return "terms:" + s.BranchID + ":" + s.SessionID }

func (r *ReferenceCache) Heads(s domain.Scope) ([]domain.FeeHead, bool) {
	if r == nil {
		return nil, false
	}
	v, ok := r.c.Get(headsKey(s))
	if !ok {
		return nil, false
	}
	return v.([]domain.FeeHead), true
}

func (r *ReferenceCache) SetHeads(s domain.Scope, heads []domain.FeeHead) {
	if r == nil {
		return
	}
	r.c.SetDefault(headsKey(s), heads)
}

func (r *ReferenceCache) Terms(s domain.Scope) ([]domain.FeeTerm, bool) {
	if r == nil {
		return nil, false
	}
	v, ok := r.c.Get(termsKey(s))
	if !ok {
		return nil, false
	}
	return v.([]domain.FeeTerm), true
}

func (r *ReferenceCache) SetTerms(s domain.Scope, terms []domain.FeeTerm) {
	if r == nil {
		return
	}
	r.c.SetDefault(termsKey(s), terms)
}

// Invalidate drops both lists of a scope.
func (r *ReferenceCache) Invalidate(s domain.Scope) {
	if r == nil {
		return
	}
	r.c.Delete(headsKey(s))
	r.c.Delete(termsKey(s))
}
