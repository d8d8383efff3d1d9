package inventory

import (
	"time"

	"github.com/bloodbank-ledger/internal/domain/shared"
)

// Stock is the unit counter for one blood group
type Stock struct {
	BloodGroup shared.BloodGroup `json:"blood_group"`
	Units      int               `json:"units"`
	Version    int               `json:"version"` // For optimistic locking
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Add credits units to the counter
func (s *Stock) Add(units int) error {
	if units <= 0 {
		return shared.ErrInvalidUnits
	}

	s.Units += units
	s.UpdatedAt = time.Now()
	s.Version++
	return nil
}

// Remove debits units from the counter, refusing to go below zero
func (s *Stock) Remove(units int) error {
	if units <= 0 {
		return shared.ErrInvalidUnits
	}

	if !s.CanRemove(units) {
		return shared.InsufficientStockError{Group: s.BloodGroup, Requested: units, Available: s.Units}
	}

	s.Units -= units
	s.UpdatedAt = time.Now()
	s.Version++
	return nil
}

// CanRemove checks if the counter can cover a debit of units
func (s *Stock) CanRemove(units int) bool {
	return s.Units >= units
}
