package locality

import (
	"fmt"

	"github.com/revieqt/taralets-server/internal/geo"
)

// Unknown is returned when no locality can be resolved for a point.
const Unknown = "Unknown location"

// Resolve returns the "<district>, <city>" display string of the dataset
// record nearest to the given point by haversine distance, or Unknown for an
// empty dataset.
//
// The scan is linear over every record. When two records are at exactly the
// same distance, the one encountered first in dataset order wins; the order
// is not otherwise meaningful.
func (d *Dataset) Resolve(point geo.Coordinate) string {
	if d == nil || len(d.records) == 0 {
		return Unknown
	}

	best := d.records[0]
	bestDistance := geo.DistanceKm(point, best.Coordinate)

	for _, r := range d.records[1:] {
		distance := geo.DistanceKm(point, r.Coordinate)
		if distance < bestDistance {
			best = r
			bestDistance = distance
		}
	}

	return fmt.Sprintf("%s, %s", best.Name, best.City)
}
