package geo

import (
	"fmt"
	"math"

	"github.com/olvesh/airsportslivetracking/internal/models"
)

// infiniteGateLengthNM is the length the gate line is stretched to
// for detecting that the crossing plane was passed at all
const infiniteGateLengthNM = 40

// CalculateLegs fills in the derived geometry of a route: leg bearings
// and distances, gate lines at nominal, extended and infinite widths,
// procedure turn flags and gate proximity radii. Must be called once
// after loading a route and before it is given to a calculation worker.
func CalculateLegs(route *models.Route, scorecard *models.Scorecard) error {
	if err := route.Validate(); err != nil {
		return err
	}

	waypoints := route.Waypoints
	n := len(waypoints)

	for i := range waypoints {
		w := &waypoints[i]
		if i > 0 {
			prev := &waypoints[i-1]
			w.BearingPrevious = Bearing(prev.Point(), w.Point())
			w.DistancePrevious = DistanceMeters(prev.Point(), w.Point())
		}
		if i < n-1 {
			next := &waypoints[i+1]
			w.BearingNext = Bearing(w.Point(), next.Point())
			w.DistanceNext = DistanceMeters(w.Point(), next.Point())
		}
	}

	for i := range waypoints {
		w := &waypoints[i]

		// The gate plane bisects the turn: halfway between the inbound
		// and outbound bearings. Endpoints use the single known bearing.
		gateBearing := w.BearingPrevious
		switch {
		case i == 0:
			gateBearing = w.BearingNext
		case i < n-1:
			gateBearing = w.BearingPrevious + BearingDifference(w.BearingPrevious, w.BearingNext)/2
			gateBearing = math.Mod(gateBearing+360, 360)
		}

		if w.Width <= 0 {
			return fmt.Errorf("waypoint %s has non-positive gate width", w.Name)
		}
		w.GateLine = GateLine(w.Point(), gateBearing, w.Width)
		w.GateLineInfinite = ExtendLine(w.GateLine[0], w.GateLine[1], infiniteGateLengthNM)

		extendedWidth := scorecard.ForGateType(w.Type).ExtendedGateWidth
		if extendedWidth > w.Width {
			w.GateLineExtended = GateLine(w.Point(), gateBearing, extendedWidth)
		} else {
			w.GateLineExtended = w.GateLine
		}

		if i > 0 && i < n-1 {
			w.IsProcedureTurn = math.Abs(BearingDifference(w.BearingPrevious, w.BearingNext)) > 90
		}
	}

	calculateProximityRadii(waypoints)

	if scorecard.Calculator == models.CalculatorANRCorridor {
		buildCorridor(route)
	}

	return nil
}

// calculateProximityRadii derives per-gate inside and outside radii.
// A competitor closer than the inside radius is considered near the
// gate; moving past the outside radius without a crossing scores the
// gate as missed. The inside radius is two thirds of the distance to
// the nearest other gate so that neighbouring circles never overlap.
func calculateProximityRadii(waypoints []models.Waypoint) {
	for i := range waypoints {
		w := &waypoints[i]
		minDistance := math.MaxFloat64
		for j := range waypoints {
			if i == j {
				continue
			}
			d := DistanceMeters(w.Point(), waypoints[j].Point())
			if d > 0 && d < minDistance {
				minDistance = d
			}
		}
		if minDistance == math.MaxFloat64 {
			minDistance = 3000
		}
		w.InsideDistance = minDistance * 2 / 3
		w.OutsideDistance = w.InsideDistance + 2000
	}
}

// buildCorridor constructs the left and right corridor boundary
// segments for every leg of an ANR route
func buildCorridor(route *models.Route) {
	width := route.CorridorWidth
	if width <= 0 {
		width = 0.5
	}
	half := width * MetersPerNauticalMile / 2

	waypoints := route.Waypoints
	for i := 0; i < len(waypoints)-1; i++ {
		w := &waypoints[i]
		next := &waypoints[i+1]
		bearing := Bearing(w.Point(), next.Point())
		left := math.Mod(bearing+270, 360)
		right := math.Mod(bearing+90, 360)

		w.LeftCorridorLine = []models.GeoPoint{
			PointAtBearing(w.Point(), left, half),
			PointAtBearing(next.Point(), left, half),
		}
		w.RightCorridorLine = []models.GeoPoint{
			PointAtBearing(w.Point(), right, half),
			PointAtBearing(next.Point(), right, half),
		}
	}
}

// InsideCorridor reports whether the point lies within the corridor
// of any leg of the route, and returns the distance in meters to the
// nearest corridor centre line
func InsideCorridor(pr *Projector, route *models.Route, p models.GeoPoint) (bool, float64) {
	width := route.CorridorWidth
	if width <= 0 {
		width = 0.5
	}
	half := width * MetersPerNauticalMile / 2

	minDistance := math.MaxFloat64
	for i := 0; i < len(route.Waypoints)-1; i++ {
		a := route.Waypoints[i].Point()
		b := route.Waypoints[i+1].Point()
		if d := pr.DistanceToSegment(p, a, b); d < minDistance {
			minDistance = d
		}
	}
	return minDistance <= half, minDistance
}
