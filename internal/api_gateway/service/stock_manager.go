package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bloodbank-ledger/internal/domain/inventory"
	"github.com/bloodbank-ledger/internal/domain/shared"
)

// stockManager locks and persists stock counters inside a unit of work
type stockManager struct {
	logger *slog.Logger
}

func newStockManager(logger *slog.Logger) *stockManager {
	return &stockManager{logger: logger}
}

// lock acquires the counters of groups in lexical order, so two units of work
// touching the same pair of groups always lock them in the same sequence.
func (m *stockManager) lock(ctx context.Context, repo inventory.StockRepository, groups ...shared.BloodGroup) (map[shared.BloodGroup]*inventory.Stock, error) {
	ordered := append([]shared.BloodGroup(nil), groups...)
	shared.SortBloodGroups(ordered)

	locked := make(map[shared.BloodGroup]*inventory.Stock, len(ordered))
	for _, group := range ordered {
		if _, ok := locked[group]; ok {
			continue
		}
		stock, err := repo.LockForUpdate(ctx, group)
		if err != nil {
			if !errors.Is(err, shared.ErrNotFound) {
				m.logger.Error("Failed to lock stock", "blood_group", group.String(), "error", err)
			}
			return nil, fmt.Errorf("failed to lock stock %s: %w", group, err)
		}
		m.logger.Debug("Stock locked", "blood_group", group.String(), "units", stock.Units, "version", stock.Version)
		locked[group] = stock
	}
	return locked, nil
}

// save persists counters whose in-memory version moved
func (m *stockManager) save(ctx context.Context, repo inventory.StockRepository, stocks ...*inventory.Stock) error {
	for _, stock := range stocks {
		if err := repo.Update(ctx, stock); err != nil {
			if errors.Is(err, shared.ErrConcurrentModification) {
				m.logger.Warn("Concurrent modification on stock update", "blood_group", stock.BloodGroup.String())
			} else {
				m.logger.Error("Failed to update stock", "blood_group", stock.BloodGroup.String(), "error", err)
			}
			return err
		}
	}
	return nil
}
