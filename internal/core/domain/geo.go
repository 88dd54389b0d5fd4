package domain

// BoundingBox is a rectangular viewport in decimal degrees (WGS 84).
// Normally south < north and west < east. Boxes crossing the
// antimeridian are not handled; the naive rectangle math below is
// applied as-is.
type BoundingBox struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// Contains reports whether the point lies inside the box, bounds
// inclusive.
func (b BoundingBox) Contains(lat, lng float64) bool {
	return lat >= b.South && lat <= b.North && lng >= b.West && lng <= b.East
}

// Intersects reports whether two boxes overlap. Two boxes intersect
// unless one is entirely east, west, north, or south of the other.
func (b BoundingBox) Intersects(o BoundingBox) bool {
	return !(o.East < b.West || o.West > b.East || o.North < b.South || o.South > b.North)
}

// Area returns the rectangular area in degrees². A coarse resolution
// signal, not a projection-aware surface computation.
func (b BoundingBox) Area() float64 {
	return (b.North - b.South) * (b.East - b.West)
}
