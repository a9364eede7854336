package geodesy

import (
	"math"
	"testing"
)

const (
	angleTolerance    = 1e-9 // degrees, ~0.1 mm
	distanceTolerance = 1e-6 // meters
)

func TestGeodeticToECEF_Axes(t *testing.T) {
	tests := []struct {
		name          string
		lat, lon, alt float64
		x, y, z       float64
	}{
		{"equator prime meridian", 0, 0, 0, semiMajorAxis, 0, 0},
		{"equator 90E", 0, 90, 0, 0, semiMajorAxis, 0},
		{"north pole", 90, 0, 0, 0, 0, semiMinorAxis},
		{"south pole", -90, 0, 0, 0, 0, -semiMinorAxis},
		{"equator with altitude", 0, 0, 1000, semiMajorAxis + 1000, 0, 0},
	}

	for _, tt := range tests {
		x, y, z := GeodeticToECEF(tt.lat, tt.lon, tt.alt)
		if math.Abs(x-tt.x) > distanceTolerance || math.Abs(y-tt.y) > distanceTolerance || math.Abs(z-tt.z) > distanceTolerance {
			t.Errorf("%s: got (%f, %f, %f), want (%f, %f, %f)", tt.name, x, y, z, tt.x, tt.y, tt.z)
		}
	}
}

func TestECEFToGeodetic_RoundTrip(t *testing.T) {
	for lat := -89.5; lat <= 89.5; lat += 11.3 {
		for lon := -180.0; lon <= 180; lon += 17.7 {
			for _, alt := range []float64{-100, 0, 12.5, 10000} {
				gotLat, gotLon, gotAlt := ECEFToGeodetic(GeodeticToECEF(lat, lon, alt))
				assertGeodetic(t, gotLat, gotLon, gotAlt, lat, lon, alt)
			}
		}
	}
}

func TestLocalTangent_RoundTrip(t *testing.T) {
	refs := [][3]float64{
		{0, 0, 0},
		{60.1699, 24.9384, 12},
		{-33.8688, 151.2093, 50},
		{85.0, -179.9, 100},
	}
	offsets := [][3]float64{
		{0, 0, 0},
		{30, -20, 0},
		{-1500, 2500, -120},
		{15000, 15000, 300},
	}

	for _, ref := range refs {
		for _, off := range offsets {
			lat, lon, alt := NEDToGeodetic(off[0], off[1], off[2], ref[0], ref[1], ref[2])

			x, y, z := GeodeticToECEF(lat, lon, alt)
			n, e, d := ECEFToNED(x, y, z, ref[0], ref[1], ref[2])
			if math.Abs(n-off[0]) > distanceTolerance || math.Abs(e-off[1]) > distanceTolerance || math.Abs(d-off[2]) > distanceTolerance {
				t.Errorf("ref %v: got NED (%f, %f, %f), want %v", ref, n, e, d, off)
			}

			gotLat, gotLon, gotAlt := NEDToGeodetic(n, e, d, ref[0], ref[1], ref[2])
			assertGeodetic(t, gotLat, gotLon, gotAlt, lat, lon, alt)
		}
	}
}

func TestNEDToGeodetic_ZeroOffsetIsReference(t *testing.T) {
	lat, lon, alt := NEDToGeodetic(0, 0, 0, 1.0, 2.0, 10)
	assertGeodetic(t, lat, lon, alt, 1.0, 2.0, 10)

	n, e, d := GeodeticToNED(1.0, 2.0, 10, 1.0, 2.0, 10)
	if math.Abs(n) > distanceTolerance || math.Abs(e) > distanceTolerance || math.Abs(d) > distanceTolerance {
		t.Errorf("expected zero offsets for the reference point, got (%g, %g, %g)", n, e, d)
	}
}

func TestECEFToNED_Directions(t *testing.T) {
	// A point straight above the reference is "up", i.e. negative down.
	x, y, z := GeodeticToECEF(0, 0, 100)
	n, e, d := ECEFToNED(x, y, z, 0, 0, 0)
	if math.Abs(n) > distanceTolerance || math.Abs(e) > distanceTolerance || math.Abs(d+100) > distanceTolerance {
		t.Errorf("expected (0, 0, -100), got (%f, %f, %f)", n, e, d)
	}

	// Small latitude increase moves north, small longitude increase moves east.
	n, e, _ = GeodeticToNED(0.001, 0, 0, 0, 0, 0)
	if n <= 0 || math.Abs(e) > distanceTolerance {
		t.Errorf("expected a northward offset, got n=%f e=%f", n, e)
	}
	n, e, _ = GeodeticToNED(0, 0.001, 0, 0, 0, 0)
	if e <= 0 || math.Abs(n) > distanceTolerance {
		t.Errorf("expected an eastward offset, got n=%f e=%f", n, e)
	}
}

func assertGeodetic(t *testing.T, lat, lon, alt, wantLat, wantLon, wantAlt float64) {
	t.Helper()
	if math.Abs(lat-wantLat) > angleTolerance {
		t.Errorf("latitude: got %.12f, want %.12f", lat, wantLat)
	}
	if lonDiff(lon, wantLon) > angleTolerance {
		t.Errorf("longitude: got %.12f, want %.12f", lon, wantLon)
	}
	if math.Abs(alt-wantAlt) > distanceTolerance {
		t.Errorf("altitude: got %.9f, want %.9f", alt, wantAlt)
	}
}

func lonDiff(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 360)
	if d > 180 {
		d = 360 - d
	}
	return d
}
