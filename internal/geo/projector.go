package geo

import (
	"math"

	"github.com/olvesh/airsportslivetracking/internal/models"
)

const (
	earthRadiusM = 6371000.0
	// MetersPerNauticalMile conversion constant
	MetersPerNauticalMile = 1852.0
)

// Projector maps geographic coordinates onto a local flat plane
// anchored at a reference latitude. Within the span of a navigation
// task (tens of kilometers) the distortion is negligible, and segment
// intersection becomes plain 2D linear algebra.
type Projector struct {
	refLat   float64
	lonScale float64 // meters per degree of longitude at refLat
	latScale float64 // meters per degree of latitude
}

// NewProjector creates a projector anchored at the given latitude
func NewProjector(refLat float64) *Projector {
	return &Projector{
		refLat:   refLat,
		latScale: earthRadiusM * math.Pi / 180,
		lonScale: earthRadiusM * math.Pi / 180 * math.Cos(refLat*math.Pi/180),
	}
}

// Project converts a geographic point to plane coordinates in meters
func (pr *Projector) Project(p models.GeoPoint) (x, y float64) {
	return p.Longitude * pr.lonScale, p.Latitude * pr.latScale
}

// unproject converts plane coordinates back to a geographic point
func (pr *Projector) unproject(x, y float64) models.GeoPoint {
	return models.GeoPoint{
		Latitude:  y / pr.latScale,
		Longitude: x / pr.lonScale,
	}
}

// Intersect returns the intersection point of segments p1-p2 and q1-q2,
// or nil when the segments do not cross. Parallel and degenerate
// segments never intersect.
func (pr *Projector) Intersect(p1, p2, q1, q2 models.GeoPoint) *models.GeoPoint {
	x1, y1 := pr.Project(p1)
	x2, y2 := pr.Project(p2)
	x3, y3 := pr.Project(q1)
	x4, y4 := pr.Project(q2)

	denom := (x1-x2)*(y3-y4) - (y1-y2)*(x3-x4)
	if math.Abs(denom) < 1e-12 {
		return nil
	}

	t := ((x1-x3)*(y3-y4) - (y1-y3)*(x3-x4)) / denom
	u := ((x1-x3)*(y1-y2) - (y1-y3)*(x1-x2)) / denom
	if t < 0 || t > 1 || u < 0 || u > 1 {
		return nil
	}

	point := pr.unproject(x1+t*(x2-x1), y1+t*(y2-y1))
	return &point
}

// DistanceToSegment returns the distance in meters from point p
// to the segment a-b
func (pr *Projector) DistanceToSegment(p, a, b models.GeoPoint) float64 {
	px, py := pr.Project(p)
	ax, ay := pr.Project(a)
	bx, by := pr.Project(b)

	dx, dy := bx-ax, by-ay
	lengthSq := dx*dx + dy*dy
	if lengthSq == 0 {
		return math.Hypot(px-ax, py-ay)
	}

	t := ((px-ax)*dx + (py-ay)*dy) / lengthSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return math.Hypot(px-(ax+t*dx), py-(ay+t*dy))
}

// SideOfLine reports which side of the directed line a-b the point p
// lies on: positive is left, negative is right, zero is on the line
func (pr *Projector) SideOfLine(p, a, b models.GeoPoint) float64 {
	px, py := pr.Project(p)
	ax, ay := pr.Project(a)
	bx, by := pr.Project(b)
	return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
}

// Bearing returns the initial great-circle bearing from one point
// to another in degrees, normalised to [0, 360)
func Bearing(from, to models.GeoPoint) float64 {
	lat1 := from.Latitude * math.Pi / 180
	lat2 := to.Latitude * math.Pi / 180
	dLon := (to.Longitude - from.Longitude) * math.Pi / 180

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	bearing := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(bearing+360, 360)
}

// BearingDifference returns the signed difference b2-b1 folded
// into (-180, 180]
func BearingDifference(b1, b2 float64) float64 {
	return math.Mod(b2-b1+540, 360) - 180
}

// DistanceMeters returns the haversine distance between two points in meters
func DistanceMeters(p1, p2 models.GeoPoint) float64 {
	return p1.DistanceTo(p2) * 1000
}

// PointAtBearing returns the destination point reached by travelling
// the given distance in meters from p along the given bearing
func PointAtBearing(p models.GeoPoint, bearingDeg, distanceM float64) models.GeoPoint {
	lat1 := p.Latitude * math.Pi / 180
	lon1 := p.Longitude * math.Pi / 180
	brng := bearingDeg * math.Pi / 180
	d := distanceM / earthRadiusM

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(d) + math.Cos(lat1)*math.Sin(d)*math.Cos(brng))
	lon2 := lon1 + math.Atan2(
		math.Sin(brng)*math.Sin(d)*math.Cos(lat1),
		math.Cos(d)-math.Sin(lat1)*math.Sin(lat2),
	)

	return models.GeoPoint{
		Latitude:  lat2 * 180 / math.Pi,
		Longitude: math.Mod(lon2*180/math.Pi+540, 360) - 180,
	}
}

// FractionalPoint returns the point located at the given fraction of
// the great-circle path from start to finish
func FractionalPoint(start, finish models.GeoPoint, fraction float64) models.GeoPoint {
	if fraction <= 0 {
		return start
	}
	if fraction >= 1 {
		return finish
	}
	distance := DistanceMeters(start, finish)
	bearing := Bearing(start, finish)
	return PointAtBearing(start, bearing, distance*fraction)
}

// FractionOfSegment returns how far along the segment a-b the point p
// lies, as a fraction of the segment length
func FractionOfSegment(a, b, p models.GeoPoint) float64 {
	total := DistanceMeters(a, b)
	if total == 0 {
		return 0
	}
	return DistanceMeters(a, p) / total
}

// ExtendLine returns a line with the same midpoint and bearing as a-b
// stretched to the given total length in nautical miles. Non-positive
// length returns the original line.
func ExtendLine(a, b models.GeoPoint, lengthNM float64) []models.GeoPoint {
	if lengthNM <= 0 {
		return []models.GeoPoint{a, b}
	}
	bearing := Bearing(a, b)
	midpoint := FractionalPoint(a, b, 0.5)
	half := lengthNM * MetersPerNauticalMile / 2
	return []models.GeoPoint{
		PointAtBearing(midpoint, math.Mod(bearing+180, 360), half),
		PointAtBearing(midpoint, bearing, half),
	}
}

// GateLine builds a gate line of the given width in nautical miles,
// perpendicular to the gate bearing and centred on the gate position
func GateLine(center models.GeoPoint, gateBearing, widthNM float64) []models.GeoPoint {
	half := widthNM * MetersPerNauticalMile / 2
	left := math.Mod(gateBearing+270, 360)
	right := math.Mod(gateBearing+90, 360)
	return []models.GeoPoint{
		PointAtBearing(center, left, half),
		PointAtBearing(center, right, half),
	}
}
