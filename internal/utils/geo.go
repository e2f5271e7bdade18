// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package utils

import (
	"math"

	"github.com/sndie3/LABAN/models"
)

// EarthRadiusMeters is the mean Earth radius used by [Distance].
const EarthRadiusMeters = 6371e3

// Distance returns the great-circle distance in meters between a and b
// using the haversine formula.
func Distance(a, b models.Location) float64 {
	phi1 := a.Latitude * math.Pi / 180
	phi2 := b.Latitude * math.Pi / 180
	dPhi := (b.Latitude - a.Latitude) * math.Pi / 180
	dLambda := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	// rounding can push h a hair above 1 for antipodal points
	h = math.Min(1, h)

	return EarthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}
