package mission

import "fmt"

// LatLon is a geographic position in degrees.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// SearchArea describes the region a quick scan vehicle has to cover.
// Rad1 is part of the ground station contract but the spiral planner only
// uses the outer radius.
type SearchArea struct {
	Center LatLon  `json:"center"`
	Rad1   float64 `json:"rad1"`
	Rad2   float64 `json:"rad2"`
}

func NewSearchArea(center LatLon, rad1, rad2 float64) SearchArea {
	return SearchArea{Center: center, Rad1: rad1, Rad2: rad2}
}

func (a SearchArea) String() string {
	return fmt.Sprintf("SearchArea((%f, %f), %g, %g)", a.Center.Lat, a.Center.Lon, a.Rad1, a.Rad2)
}
