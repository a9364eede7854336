// Package planner turns a search area into an Archimedean spiral of
// waypoints sized to the camera footprint at mission altitude.
package planner

import (
	"math"

	"github.com/pkg/errors"
	"github.com/tiiuae/quickscan/internal/geodesy"
	"github.com/tiiuae/quickscan/internal/mission"
)

// Raspberry Pi camera v2 field of view, degrees
const (
	HorizontalFOV = 62.2
	VerticalFOV   = 48.8
)

const (
	// coverage keeps 25% sideways overlap between neighbouring coils
	coverage = 0.75
	// spiral starts due north of the center
	rotation = -math.Pi / 2
	// MAVLink mission counts are uint16. Besides the waypoints a mission
	// carries the home item, the takeoff and the completion sentinel.
	MaxWaypoints = math.MaxUint16 - 3
)

type Config struct {
	// Altitude above the takeoff point, meters
	Altitude float64
	// AngularStep between consecutive spiral waypoints, radians
	AngularStep float64
}

func (c Config) Validate() error {
	if math.IsNaN(c.AngularStep) || math.IsInf(c.AngularStep, 0) || c.AngularStep <= 0 {
		return errors.WithMessagef(mission.ErrConfiguration, "angular step must be a positive number, got %v", c.AngularStep)
	}
	if math.IsNaN(c.Altitude) || math.IsInf(c.Altitude, 0) || c.Altitude <= 0 {
		return errors.WithMessagef(mission.ErrConfiguration, "altitude must be a positive number, got %v", c.Altitude)
	}
	return nil
}

// Waypoint is a trajectory point both as an offset from the search area
// center (on the ground) and as a geographic position.
type Waypoint struct {
	North float64
	East  float64
	Down  float64
	Lat   float64
	Lon   float64
	Alt   float64
}

// Trajectory starts at the search area center and spirals outwards.
type Trajectory []Waypoint

// Footprint returns the ground coverage of one camera frame at altitude.
func Footprint(altitude float64) (horizontal, vertical float64) {
	horizontal = 2 * altitude * math.Tan(radians(HorizontalFOV)/2)
	vertical = 2 * altitude * math.Tan(radians(VerticalFOV)/2)
	return horizontal, vertical
}

// CoilSpacing is the spiral parameter b in r = b·θ, so neighbouring coils are
// 2π·b apart.
func CoilSpacing(altitude float64) float64 {
	horizontal, _ := Footprint(altitude)
	return coverage * horizontal / (2 * math.Pi)
}

// Generate plans the spiral for area. The result has floor(maxθ/step)+2
// waypoints where maxθ = Rad2/b, or only the center when Rad2 is not positive.
func Generate(area mission.SearchArea, cfg Config) (Trajectory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	lat0, lon0 := area.Center.Lat, area.Center.Lon
	trajectory := Trajectory{{
		Down: -cfg.Altitude,
		Lat:  lat0,
		Lon:  lon0,
		Alt:  cfg.Altitude,
	}}

	if !(area.Rad2 > 0) {
		return trajectory, nil
	}

	b := CoilSpacing(cfg.Altitude)
	maxTheta := area.Rad2 / b

	steps := math.Floor(maxTheta / cfg.AngularStep)
	if steps+2 > MaxWaypoints {
		return nil, errors.WithMessagef(mission.ErrConfiguration,
			"spiral needs %.0f waypoints, at most %d fit in a mission", steps+2, MaxWaypoints)
	}

	n := int(steps)
	for i := 0; i <= n; i++ {
		theta := float64(i) * cfg.AngularStep
		r := b * theta
		sin, cos := math.Sincos(theta + rotation)

		north := -r * sin
		east := r * cos
		lat, lon, alt := geodesy.NEDToGeodetic(north, east, -cfg.Altitude, lat0, lon0, 0)

		trajectory = append(trajectory, Waypoint{
			North: north,
			East:  east,
			Down:  -cfg.Altitude,
			Lat:   lat,
			Lon:   lon,
			Alt:   alt,
		})
	}

	return trajectory, nil
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
