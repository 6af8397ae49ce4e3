// Package boundary places claimed land parcels on the map. It resolves a
// village name to a center point and draws a rough polygon whose size tracks
// the claimed area. The geometry is cosmetic: the hectares-to-degrees factor
// is a placeholder, not a projection.
package boundary

import (
	"math"

	"github.com/ppiankov/fratlas/internal/model"
	"github.com/ppiankov/fratlas/internal/sim"
)

const (
	// DegreesPerRootHectare scales sqrt(hectares) to a radius in degrees
	DegreesPerRootHectare = 0.001

	// MinAreaHectares replaces non-positive or non-finite areas so the
	// polygon stays drawable. Valid small areas are used as given.
	MinAreaHectares = 0.01

	angleJitter  = 0.3 // total spread in radians, ±0.15
	radiusJitter = 0.3 // total spread as a share of the base radius, ±15%
	minVertices  = 6
	maxVertices  = 8

	fallbackLat      = 21.0
	fallbackLng      = 78.0
	fallbackSpread   = 2.0 // degrees, ±1
	fallbackDistrict = "Unknown"
	fallbackState    = "Maharashtra"
)

// Synthesizer generates boundary polygons around village centers
type Synthesizer struct {
	rnd sim.Rand
}

// NewSynthesizer creates a synthesizer drawing from rnd
func NewSynthesizer(rnd sim.Rand) *Synthesizer {
	if rnd == nil {
		rnd = sim.NewRand(0)
	}
	return &Synthesizer{rnd: rnd}
}

// Locate resolves village to a table entry, or fabricates a center near the
// fallback reference point when the table has no match
func (s *Synthesizer) Locate(village string) model.VillageLocation {
	if loc, ok := Lookup(village); ok {
		return loc
	}
	return model.VillageLocation{
		Village:  village,
		Lat:      fallbackLat + (s.rnd.Float64()-0.5)*fallbackSpread,
		Lng:      fallbackLng + (s.rnd.Float64()-0.5)*fallbackSpread,
		District: fallbackDistrict,
		State:    fallbackState,
	}
}

// Generate returns a closed polygon of 6-8 vertices around the village center
// whose radius grows with the square root of areaHectares
func (s *Synthesizer) Generate(village string, areaHectares float64) model.Polygon {
	center := s.Locate(village)
	return s.around(center, areaHectares)
}

func (s *Synthesizer) around(center model.VillageLocation, areaHectares float64) model.Polygon {
	if !(areaHectares > 0) || math.IsInf(areaHectares, 0) {
		areaHectares = MinAreaHectares
	}

	base := math.Sqrt(areaHectares) * DegreesPerRootHectare
	n := minVertices + s.rnd.IntN(maxVertices-minVertices+1)

	ring := make([]model.Position, 0, n+1)
	for i := 0; i < n; i++ {
		angle := 2 * math.Pi * float64(i) / float64(n)
		r := base + (s.rnd.Float64()-0.5)*radiusJitter*base
		theta := angle + (s.rnd.Float64()-0.5)*angleJitter

		lat := center.Lat + r*math.Cos(theta)
		lng := center.Lng + r*math.Sin(theta)
		ring = append(ring, model.Position{lng, lat})
	}
	ring = append(ring, ring[0])

	return model.Polygon{
		Type:        model.GeometryPolygon,
		Coordinates: [][]model.Position{ring},
	}
}
