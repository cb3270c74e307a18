package route

import (
	"fmt"

	"github.com/revieqt/taralets-server/internal/geo"
)

// polylinePrecision is the scale factor of the encoded polyline format:
// coordinates are stored as integers of 1e-5 degrees.
const polylinePrecision = 1e5

// DecodePolyline decodes an encoded polyline string into its coordinate
// sequence. The format stores signed deltas between consecutive points as
// variable-length base-64-like character runs offset by 63, with 5 payload
// bits per character.
func DecodePolyline(encoded string) ([]geo.Coordinate, error) {
	var coords []geo.Coordinate
	var lat, lon int64

	index := 0
	for index < len(encoded) {
		dlat, width, err := decodeSignedDelta(encoded[index:])
		if err != nil {
			return nil, fmt.Errorf("invalid polyline at offset %d: %v", index, err)
		}
		index += width

		dlon, width, err := decodeSignedDelta(encoded[index:])
		if err != nil {
			return nil, fmt.Errorf("invalid polyline at offset %d: %v", index, err)
		}
		index += width

		lat += dlat
		lon += dlon

		coords = append(coords, geo.Coordinate{
			Latitude:  float64(lat) / polylinePrecision,
			Longitude: float64(lon) / polylinePrecision,
		})
	}

	return coords, nil
}

// decodeSignedDelta reads one zigzag-encoded varint from the head of s and
// returns its value along with the number of characters consumed.
func decodeSignedDelta(s string) (value int64, width int, err error) {
	var result int64
	var shift uint

	for i := 0; i < len(s); i++ {
		c := int64(s[i]) - 63
		if c < 0 || c > 63 {
			return 0, 0, fmt.Errorf("character %q out of range", s[i])
		}

		result |= (c & 0x1f) << shift
		shift += 5

		if c < 0x20 {
			if result&1 != 0 {
				return ^(result >> 1), i + 1, nil
			}
			return result >> 1, i + 1, nil
		}
	}

	return 0, 0, fmt.Errorf("truncated coordinate delta")
}
