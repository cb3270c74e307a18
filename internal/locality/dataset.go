package locality

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/revieqt/taralets-server/internal/geo"
)

//go:embed data/localities.json
var bundled []byte

// Record is one district-level entry of the offline locality dataset.
type Record struct {
	Name       string
	City       string
	Coordinate geo.Coordinate
}

// cityGroup mirrors the bundled JSON asset: an array of cities each holding
// its district (barangay) entries. Either "name" or "barangay" may carry the
// district name depending on the city's source data.
type cityGroup struct {
	City      string `json:"city"`
	Districts []struct {
		Name     string  `json:"name"`
		Barangay string  `json:"barangay"`
		Lat      float64 `json:"lat"`
		Lon      float64 `json:"lon"`
	} `json:"districts"`
}

// Bounds defines the corners of a lat/lon box covering the dataset.
type Bounds struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// Contains checks whether the given latitude and longitude are within the bounds.
func (b *Bounds) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// Dataset is the read-only offline locality dataset. It is loaded once at
// startup and safe for unsynchronized concurrent reads.
type Dataset struct {
	records []Record
	bounds  Bounds
}

// Load parses and validates a locality dataset from raw JSON, preserving the
// encounter order of records.
func Load(data []byte) (*Dataset, error) {
	var groups []cityGroup
	if err := json.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("failed to unmarshal locality dataset: %v", err)
	}

	d := &Dataset{
		bounds: Bounds{
			MinLat: math.MaxFloat64,
			MaxLat: -math.MaxFloat64,
			MinLon: math.MaxFloat64,
			MaxLon: -math.MaxFloat64,
		},
	}

	for _, g := range groups {
		for _, entry := range g.Districts {
			name := entry.Name
			if name == "" {
				name = entry.Barangay
			}
			if name == "" || g.City == "" {
				return nil, fmt.Errorf("locality record in %q is missing a district name", g.City)
			}
			if !geo.IsValidLatLon(entry.Lat, entry.Lon) {
				return nil, fmt.Errorf("locality record %q, %q has invalid coordinates (%v, %v)", name, g.City, entry.Lat, entry.Lon)
			}

			d.records = append(d.records, Record{
				Name:       name,
				City:       g.City,
				Coordinate: geo.Coordinate{Latitude: entry.Lat, Longitude: entry.Lon},
			})

			d.bounds.MinLat = math.Min(d.bounds.MinLat, entry.Lat)
			d.bounds.MaxLat = math.Max(d.bounds.MaxLat, entry.Lat)
			d.bounds.MinLon = math.Min(d.bounds.MinLon, entry.Lon)
			d.bounds.MaxLon = math.Max(d.bounds.MaxLon, entry.Lon)
		}
	}

	return d, nil
}

// LoadBundled loads the dataset embedded in the binary.
func LoadBundled() (*Dataset, error) {
	return Load(bundled)
}

// LoadFile loads a dataset from a JSON file on disk, for deployments that
// override the bundled asset.
func LoadFile(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read locality dataset: %v", err)
	}
	return Load(data)
}

// Len returns the total number of district records.
func (d *Dataset) Len() int {
	return len(d.records)
}

// Bounds returns the bounding box covering every record in the dataset.
// The zero Bounds is returned for an empty dataset.
func (d *Dataset) Bounds() Bounds {
	if len(d.records) == 0 {
		return Bounds{}
	}
	return d.bounds
}
