package storage

import (
	"fmt"

	"github.com/Rdilshan/e-voting-web-sub000/types"
)

// SetElection stores the record of a newly provisioned election. Records
// are immutable: storing an id twice fails with ErrKeyAlreadyExists.
func (s *Storage) SetElection(rec *types.ElectionRecord) error {
	if rec == nil || rec.ID.IsZero() {
		return fmt.Errorf("invalid election record")
	}
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	return s.setArtifact(electionPrefix, rec.ID.Key(), rec, true)
}

// Election returns the record of an election or ErrNotFound.
func (s *Storage) Election(id types.ElectionID) (*types.ElectionRecord, error) {
	if v, ok := s.cache.Get(cacheKey(electionPrefix, id.Key())); ok {
		return v.(*types.ElectionRecord), nil
	}
	rec := &types.ElectionRecord{}
	if err := s.getArtifact(electionPrefix, id.Key(), rec); err != nil {
		return nil, err
	}
	s.cache.Add(cacheKey(electionPrefix, id.Key()), rec)
	return rec, nil
}

// ListElections returns the ids of the stored elections in ascending order.
func (s *Storage) ListElections() ([]types.ElectionID, error) {
	keys, err := s.listKeys(electionPrefix)
	if err != nil {
		return nil, fmt.Errorf("list elections: %w", err)
	}
	ids := make([]types.ElectionID, 0, len(keys))
	for _, k := range keys {
		var id types.ElectionID
		if err := id.UnmarshalBinary(k); err != nil {
			return nil, fmt.Errorf("invalid election key %x: %w", k, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
