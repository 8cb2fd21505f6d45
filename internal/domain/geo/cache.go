package geo

import (
	"context"

	"github.com/google/uuid"
)

// StatsCache holds one DistrictStats entry per district id.
// Get returns (nil, nil) on a miss. Invalidate is idempotent: removing an
// absent entry is not an error.
type StatsCache interface {
	Get(ctx context.Context, districtID uuid.UUID) (*DistrictStats, error)
	Set(ctx context.Context, stats *DistrictStats) error
	Invalidate(ctx context.Context, districtID uuid.UUID) error
}
