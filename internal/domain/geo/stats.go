package geo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DistrictStats is the precomputed statistics entry of one district.
// It is the only unit the geographic cache stores.
type DistrictStats struct {
	DistrictID         uuid.UUID       `json:"district_id"`
	Dossiers           int64           `json:"dossiers"`
	OpenDossiers       int64           `json:"open_dossiers"`
	Properties         int64           `json:"properties"`
	Requesters         int64           `json:"requesters"`
	ActiveAssociations int64           `json:"active_associations"`
	StalePrices        int64           `json:"stale_prices"`
	TotalCentiares     int64           `json:"total_centiares"`
	TotalPrice         decimal.Decimal `json:"total_price"`
	ComputedAt         time.Time       `json:"computed_at"`
}

// ScopeStats is a region, province or national view built by summing district entries.
// It is never cached.
type ScopeStats struct {
	Level              FilterLevel     `json:"level"`
	DistrictIDs        []uuid.UUID     `json:"district_ids"`
	Dossiers           int64           `json:"dossiers"`
	OpenDossiers       int64           `json:"open_dossiers"`
	Properties         int64           `json:"properties"`
	Requesters         int64           `json:"requesters"`
	ActiveAssociations int64           `json:"active_associations"`
	StalePrices        int64           `json:"stale_prices"`
	TotalCentiares     int64           `json:"total_centiares"`
	TotalPrice         decimal.Decimal `json:"total_price"`
	OldestEntry        time.Time       `json:"oldest_entry"`
}

// Aggregate sums district entries into a scope view
func Aggregate(level FilterLevel, entries []DistrictStats) ScopeStats {
	out := ScopeStats{
		Level:       level,
		DistrictIDs: make([]uuid.UUID, 0, len(entries)),
		TotalPrice:  decimal.Zero,
	}
	for _, e := range entries {
		out.DistrictIDs = append(out.DistrictIDs, e.DistrictID)
		out.Dossiers += e.Dossiers
		out.OpenDossiers += e.OpenDossiers
		out.Properties += e.Properties
		out.Requesters += e.Requesters
		out.ActiveAssociations += e.ActiveAssociations
		out.StalePrices += e.StalePrices
		out.TotalCentiares += e.TotalCentiares
		out.TotalPrice = out.TotalPrice.Add(e.TotalPrice)
		if out.OldestEntry.IsZero() || (!e.ComputedAt.IsZero() && e.ComputedAt.Before(out.OldestEntry)) {
			out.OldestEntry = e.ComputedAt
		}
	}
	return out
}

// StatsSource recomputes a district entry from persistence
type StatsSource interface {
	ComputeDistrictStats(ctx context.Context, districtID uuid.UUID) (*DistrictStats, error)
}
