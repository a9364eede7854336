// Package geodesy converts between geodetic, earth-centered earth-fixed (ECEF)
// and local north-east-down (NED) coordinates on the WGS-84 ellipsoid.
//
// Angles are in degrees, distances in meters.
package geodesy

import "math"

// WGS-84
const (
	semiMajorAxis  = 6378137.0
	flattening     = 1 / 298.257223563
	semiMinorAxis  = semiMajorAxis * (1 - flattening)
	eccentricitySq = flattening * (2 - flattening)
)

const (
	maxIterations = 16
	convergence   = 1e-15
)

// GeodeticToECEF converts latitude, longitude and ellipsoidal altitude into ECEF coordinates.
func GeodeticToECEF(lat, lon, alt float64) (x, y, z float64) {
	phi := radians(lat)
	lambda := radians(lon)
	sinPhi, cosPhi := math.Sincos(phi)
	sinLambda, cosLambda := math.Sincos(lambda)

	n := primeVerticalRadius(sinPhi)
	x = (n + alt) * cosPhi * cosLambda
	y = (n + alt) * cosPhi * sinLambda
	z = (n*(1-eccentricitySq) + alt) * sinPhi
	return x, y, z
}

// ECEFToGeodetic converts ECEF coordinates into latitude, longitude and altitude.
func ECEFToGeodetic(x, y, z float64) (lat, lon, alt float64) {
	lambda := math.Atan2(y, x)
	p := math.Hypot(x, y)

	phi := math.Atan2(z, p*(1-eccentricitySq))
	for i := 0; i < maxIterations; i++ {
		sinPhi, cosPhi := math.Sincos(phi)
		n := primeVerticalRadius(sinPhi)
		h := p*cosPhi + (z+eccentricitySq*n*sinPhi)*sinPhi - n
		next := math.Atan2(z, p*(1-eccentricitySq*n/(n+h)))
		if math.Abs(next-phi) < convergence {
			phi = next
			break
		}
		phi = next
	}

	sinPhi, cosPhi := math.Sincos(phi)
	n := primeVerticalRadius(sinPhi)
	alt = p*cosPhi + (z+eccentricitySq*n*sinPhi)*sinPhi - n

	return degrees(phi), degrees(lambda), alt
}

// ECEFToNED expresses an ECEF point as north, east, down offsets from the
// reference point refLat, refLon, refAlt.
func ECEFToNED(x, y, z, refLat, refLon, refAlt float64) (north, east, down float64) {
	x0, y0, z0 := GeodeticToECEF(refLat, refLon, refAlt)
	dx, dy, dz := x-x0, y-y0, z-z0

	sinPhi, cosPhi := math.Sincos(radians(refLat))
	sinLambda, cosLambda := math.Sincos(radians(refLon))

	north = -sinPhi*cosLambda*dx - sinPhi*sinLambda*dy + cosPhi*dz
	east = -sinLambda*dx + cosLambda*dy
	down = -cosPhi*cosLambda*dx - cosPhi*sinLambda*dy - sinPhi*dz
	return north, east, down
}

// NEDToECEF is the inverse of ECEFToNED.
func NEDToECEF(north, east, down, refLat, refLon, refAlt float64) (x, y, z float64) {
	x0, y0, z0 := GeodeticToECEF(refLat, refLon, refAlt)

	sinPhi, cosPhi := math.Sincos(radians(refLat))
	sinLambda, cosLambda := math.Sincos(radians(refLon))

	dx := -sinPhi*cosLambda*north - sinLambda*east - cosPhi*cosLambda*down
	dy := -sinPhi*sinLambda*north + cosLambda*east - cosPhi*sinLambda*down
	dz := cosPhi*north - sinPhi*down
	return x0 + dx, y0 + dy, z0 + dz
}

// NEDToGeodetic converts north, east, down offsets from the reference point
// into latitude, longitude and altitude.
func NEDToGeodetic(north, east, down, refLat, refLon, refAlt float64) (lat, lon, alt float64) {
	return ECEFToGeodetic(NEDToECEF(north, east, down, refLat, refLon, refAlt))
}

// GeodeticToNED converts a geodetic point into offsets from the reference point.
func GeodeticToNED(lat, lon, alt, refLat, refLon, refAlt float64) (north, east, down float64) {
	x, y, z := GeodeticToECEF(lat, lon, alt)
	return ECEFToNED(x, y, z, refLat, refLon, refAlt)
}

func primeVerticalRadius(sinPhi float64) float64 {
	return semiMajorAxis / math.Sqrt(1-eccentricitySq*sinPhi*sinPhi)
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
