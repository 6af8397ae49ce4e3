package model

// VillageLocation is a village center used to place claim boundaries
type VillageLocation struct {
	Village  string  `json:"village"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	District string  `json:"district,omitempty"`
	State    string  `json:"state,omitempty"`
}

// Position is a GeoJSON position: [longitude, latitude]
type Position [2]float64

// Lng returns the longitude
func (p Position) Lng() float64 { return p[0] }

// Lat returns the latitude
func (p Position) Lat() float64 { return p[1] }

// GeometryPolygon is the GeoJSON type name for polygons
const GeometryPolygon = "Polygon"

// Polygon is a GeoJSON polygon geometry. Coordinates holds linear rings; the
// first ring is the exterior and repeats its first position as its last.
type Polygon struct {
	Type        string       `json:"type"`
	Coordinates [][]Position `json:"coordinates"`
}

// Ring returns the exterior ring, or nil for an empty polygon
func (p Polygon) Ring() []Position {
	if len(p.Coordinates) == 0 {
		return nil
	}
	return p.Coordinates[0]
}

// Feature is a GeoJSON feature carrying a claim boundary
type Feature struct {
	Type       string                 `json:"type"`
	Geometry   *Polygon               `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

// FeatureCollection is a GeoJSON feature collection
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}
