// Great-circle math shared by the generator, injector, and feature extractor.
package geo

import "math"

const earthRadiusKM = 6371.0

// DistanceKM calculates the haversine distance between two lat/lon points in kilometers.
func DistanceKM(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Asin(math.Sqrt(a))
	return earthRadiusKM * c
}

// BearingDeg calculates the initial bearing from the first point to the second, in degrees [0,360).
func BearingDeg(lat1, lon1, lat2, lon2 float64) float64 {
	rLat1 := lat1 * math.Pi / 180
	rLat2 := lat2 * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	y := math.Sin(dLon) * math.Cos(rLat2)
	x := math.Cos(rLat1)*math.Sin(rLat2) - math.Sin(rLat1)*math.Cos(rLat2)*math.Cos(dLon)

	bearing := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(bearing+360, 360)
}

// Destination returns the point reached by traveling distKM from (lat,lon)
// along the given bearing, using a flat-earth approximation adequate for the
// short offsets the injector produces.
func Destination(lat, lon, bearingDeg, distKM float64) (float64, float64) {
	rad := bearingDeg * math.Pi / 180
	dLat := (distKM * math.Cos(rad)) / 111.0
	dLon := (distKM * math.Sin(rad)) / (111.0 * math.Cos(lat*math.Pi/180))
	return lat + dLat, lon + dLon
}

// Bounds is a latitude/longitude bounding box.
type Bounds struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// Clamp returns lat/lon clamped to the bounding box.
func (b Bounds) Clamp(lat, lon float64) (float64, float64) {
	return math.Max(b.MinLat, math.Min(b.MaxLat, lat)),
		math.Max(b.MinLon, math.Min(b.MaxLon, lon))
}

// Contains reports whether the point lies inside the bounding box.
func (b Bounds) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}
