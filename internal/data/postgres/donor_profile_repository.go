package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bloodbank-ledger/internal/domain/profile"
	"github.com/bloodbank-ledger/internal/domain/shared"
	"github.com/bloodbank-ledger/internal/platform/persistence"
	"github.com/jackc/pgx/v5"
)

const selectDonorProfileQuery = `
	SELECT donor_id, name, phone, blood_group, last_donation_date, date_of_birth, weight_kg
	FROM donor_profiles
	WHERE donor_id = $1
`

// DonorProfileRepository reads donor profiles; the engine never writes them
type DonorProfileRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

var _ profile.Provider = (*DonorProfileRepository)(nil)

func NewDonorProfileRepository(logger *slog.Logger, db *persistence.PostgresDB) *DonorProfileRepository {
	return &DonorProfileRepository{
		querier: db.Querier(),
		logger:  logger,
	}
}

// GetDonor implements profile.Provider
func (r *DonorProfileRepository) GetDonor(ctx context.Context, donorID string) (*profile.DonorProfile, error) {
	var (
		p          profile.DonorProfile
		bloodGroup string
	)
	err := r.querier.QueryRow(ctx, selectDonorProfileQuery, donorID).Scan(
		&p.DonorID,
		&p.Name,
		&p.Phone,
		&bloodGroup,
		&p.LastDonationDate,
		&p.DateOfBirth,
		&p.WeightKg,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NotFoundError{Entity: "donor", ID: donorID}
		}
		r.logger.Error("Failed to get donor profile", "donor_id", donorID, "error", err)
		return nil, fmt.Errorf("failed to get donor profile: %w", err)
	}
	p.BloodGroup = shared.BloodGroup(bloodGroup)
	return &p, nil
}
