package service

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"github.com/globeoverlay/backend/internal/domain"
)

// earthCircumference is the host's mean-radius circumference in meters,
// used for altitude and meter scaling.
const earthCircumference = 2 * math.Pi * 6371008.8

// worldHalfWidth is the spherical-mercator x of the antimeridian, used to
// normalize orb's mercator meters into the host's [0,1] world space.
var worldHalfWidth = project.WGS84.ToMercator(orb.Point{180, 0})[0]

// maxMercatorLatitude is where the square mercator world ends.
const maxMercatorLatitude = 85.051129

// Project converts a position and altitude into the host's rendering space.
// The x/y origin is the north-west corner of the world, y grows southwards
// and one world unit spans the full mercator width. Input is assumed valid;
// latitudes past the mercator limit are pinned to it.
func Project(p domain.GeoPosition, altitudeMeters float64) domain.ProjectedTransform {
	lat := math.Max(-maxMercatorLatitude, math.Min(maxMercatorLatitude, p.Lat))
	m := project.WGS84.ToMercator(orb.Point{p.Lng, lat})
	worldWidth := 2 * worldHalfWidth

	circumferenceAtLat := earthCircumference * math.Cos(lat*math.Pi/180)

	return domain.ProjectedTransform{
		TranslateX: (m[0] + worldHalfWidth) / worldWidth,
		TranslateY: (worldHalfWidth - m[1]) / worldWidth,
		TranslateZ: altitudeMeters / circumferenceAtLat,
		Scale:      1 / circumferenceAtLat,
	}
}
