package storage

import (
	"fmt"

	"github.com/Rdilshan/e-voting-web-sub000/types"
)

// SetRun stores or replaces a provisioning run.
func (s *Storage) SetRun(run *types.ProvisioningRun) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("invalid provisioning run")
	}
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	return s.setArtifact(runPrefix, []byte(run.ID), run, false)
}

// Run returns a provisioning run or ErrNotFound.
func (s *Storage) Run(id string) (*types.ProvisioningRun, error) {
	if v, ok := s.cache.Get(cacheKey(runPrefix, []byte(id))); ok {
		return v.(*types.ProvisioningRun), nil
	}
	run := &types.ProvisioningRun{}
	if err := s.getArtifact(runPrefix, []byte(id), run); err != nil {
		return nil, err
	}
	s.cache.Add(cacheKey(runPrefix, []byte(id)), run)
	return run, nil
}

// ListRuns returns the ids of the stored runs.
func (s *Storage) ListRuns() ([]string, error) {
	keys, err := s.listKeys(runPrefix)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, string(k))
	}
	return ids, nil
}
