package engine

import (
	"math"

	"github.com/skylattice/orbitsim/internal/geo"
)

// haversineKm returns the great-circle distance between two points in km.
func haversineKm(a, b geo.Point) float64 {
	const earthRadiusKm = 6371.0
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)
	lat1, lat2 := toRad(a.Lat), toRad(b.Lat)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// snapToNearestStation resolves identifier via resolver and, if it does not
// already name a registered ground station, rewrites it to the name of the
// nearest one. DSROQ and the Positioning Engine both key a flow endpoint's
// network identity off satnet.GroundHash(name) against the fixed set of
// named ground stations a backend's snapshot actually contains, so an ad
// hoc (GeoIP-resolved) identifier must be snapped to that identifier space
// before it can route or be sampled at all — the resolved coordinate
// otherwise never corresponds to any node in the topology.
func snapToNearestStation(resolver *geo.Resolver, identifier string) (string, error) {
	if _, ok := resolver.Named(identifier); ok {
		return identifier, nil
	}
	point, err := resolver.Resolve(identifier)
	if err != nil {
		return "", err
	}
	names := resolver.Names()
	best := ""
	bestDist := math.Inf(1)
	for _, name := range names {
		stationPoint, _ := resolver.Named(name)
		d := haversineKm(point, stationPoint)
		if d < bestDist {
			bestDist = d
			best = name
		}
	}
	return best, nil
}
