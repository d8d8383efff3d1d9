package memory

import (
	"context"

	"github.com/bloodbank-ledger/internal/domain/profile"
	"github.com/bloodbank-ledger/internal/domain/shared"
)

// PutDonor stores or replaces a donor profile
func (s *Store) PutDonor(p profile.DonorProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.DonorID] = p
}

// SeedDonors stores every profile in one call
func (s *Store) SeedDonors(profiles []profile.DonorProfile) {
	for _, p := range profiles {
		s.PutDonor(p)
	}
}

func (s *Store) GetDonor(ctx context.Context, donorID string) (*profile.DonorProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[donorID]
	if !ok {
		return nil, shared.NotFoundError{Entity: "donor", ID: donorID}
	}
	return &p, nil
}
