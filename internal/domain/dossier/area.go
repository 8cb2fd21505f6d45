package dossier

import (
	"fmt"

	"github.com/foncier/backend/internal/domain/shared"
)

const (
	centiaresPerAre     = 100
	centiaresPerHectare = 100 * centiaresPerAre
)

// Area is a surface expressed as Ha/A/Ca.
// Persistence and price math only use the flattened centiare count.
type Area struct {
	Hectares  int64
	Ares      int64
	Centiares int64
}

// NewArea builds an area from its composite form
func NewArea(hectares, ares, centiares int64) (Area, error) {
	if hectares < 0 || ares < 0 || centiares < 0 {
		return Area{}, shared.NewDomainError("INVALID_AREA", "Area components cannot be negative")
	}
	if ares >= 100 || centiares >= 100 {
		return Area{}, shared.NewDomainError("INVALID_AREA", "Ares and centiares must be below 100")
	}
	return Area{Hectares: hectares, Ares: ares, Centiares: centiares}, nil
}

// AreaFromCentiares rebuilds the composite form of a flattened area
func AreaFromCentiares(total int64) Area {
	if total < 0 {
		total = 0
	}
	return Area{
		Hectares:  total / centiaresPerHectare,
		Ares:      (total % centiaresPerHectare) / centiaresPerAre,
		Centiares: total % centiaresPerAre,
	}
}

// TotalCentiares flattens the area
func (a Area) TotalCentiares() int64 {
	return a.Hectares*centiaresPerHectare + a.Ares*centiaresPerAre + a.Centiares
}

// String renders the area the way it appears on deeds, e.g. "1 Ha 20 A 05 Ca"
func (a Area) String() string {
	return fmt.Sprintf("%d Ha %02d A %02d Ca", a.Hectares, a.Ares, a.Centiares)
}
