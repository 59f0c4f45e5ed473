package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/zicaiw625/profit-pulse-sub001/pkg/finance"
	"github.com/zicaiw625/profit-pulse-sub001/pkg/reconcile"
)

// MemoryStore is a process-local Store for tests and single-node use.
type MemoryStore struct {
	mu        sync.RWMutex
	templates map[string][]finance.CostTemplate
	flags     map[string][]FlagRecord
	seen      map[string]struct{}
	now       func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		templates: make(map[string][]finance.CostTemplate),
		flags:     make(map[string][]FlagRecord),
		seen:      make(map[string]struct{}),
		now:       time.Now,
	}
}

func (s *MemoryStore) ListTemplates(_ context.Context, merchantID string) ([]finance.CostTemplate, error) {
	if merchantID == "" {
		return nil, ErrMissingMerchant
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]finance.CostTemplate{}, s.templates[merchantID]...), nil
}

func (s *MemoryStore) PutTemplates(_ context.Context, merchantID string, templates []finance.CostTemplate) error {
	if merchantID == "" {
		return ErrMissingMerchant
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[merchantID] = append([]finance.CostTemplate{}, templates...)
	return nil
}

func (s *MemoryStore) SaveFlags(_ context.Context, merchantID, runID string, flags []reconcile.DiscrepancyFlag) error {
	if merchantID == "" {
		return ErrMissingMerchant
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	for _, f := range flags {
		fp := f.Fingerprint()
		key := merchantID + "|" + runID + "|" + fp
		if _, dup := s.seen[key]; dup {
			continue
		}
		s.seen[key] = struct{}{}
		s.flags[merchantID] = append(s.flags[merchantID], FlagRecord{
			MerchantID:  merchantID,
			RunID:       runID,
			Fingerprint: fp,
			Flag:        f,
			CreatedAt:   now,
		})
	}
	return nil
}

func (s *MemoryStore) ListFlags(_ context.Context, merchantID string, limit int) ([]FlagRecord, error) {
	if merchantID == "" {
		return nil, ErrMissingMerchant
	}
	s.mu.RLock()
	all := append([]FlagRecord{}, s.flags[merchantID]...)
	s.mu.RUnlock()

	// Newest first; insertion order breaks ties.
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	if limit = normalizeLimit(limit); len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}
