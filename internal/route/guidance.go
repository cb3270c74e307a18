package route

import (
	"math"

	"github.com/revieqt/taralets-server/internal/geo"
)

// coincidenceEpsilon is the coordinate difference, in degrees, below which a
// route point is treated as coincident with the current position (~5 m).
const coincidenceEpsilon = 5e-5

// GuidanceBearing returns the initial bearing from the current position to
// the first snapped-route point that is not effectively coincident with it.
// The second return value is false when no such point exists (route exhausted
// or degenerate), in which case callers should suppress the guidance
// indicator.
func GuidanceBearing(current geo.Coordinate, snapped []geo.Coordinate) (float64, bool) {
	for _, p := range snapped {
		if math.Abs(p.Latitude-current.Latitude) > coincidenceEpsilon ||
			math.Abs(p.Longitude-current.Longitude) > coincidenceEpsilon {
			return geo.Bearing(current, p), true
		}
	}
	return 0, false
}
