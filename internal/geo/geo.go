// Package geo resolves ground-endpoint identifiers to (lat, lon) pairs: a
// fixed registry of scenario-configured ground stations, falling back to a
// MaxMind GeoLite2-City database lookup for ad hoc identifiers (IP
// addresses) not present in the registry. Grounded on the teacher's
// internal/geoip/geoip.go, which wraps the same library for IP->country
// resolution; here the richer City record's Location is consulted instead.
package geo

import (
	"fmt"
	"net"
	"sync"

	"github.com/oschwald/maxminddb-golang"

	"github.com/skylattice/orbitsim/internal/config"
)

// Point is a geographic coordinate.
type Point struct {
	Lat float64
	Lon float64
}

// cityRecord mirrors the subset of the GeoLite2-City schema this resolver
// consumes.
type cityRecord struct {
	Location struct {
		Latitude  float64 `maxminddb:"latitude"`
		Longitude float64 `maxminddb:"longitude"`
	} `maxminddb:"location"`
}

// Reader abstracts the maxminddb lookup so tests can inject a fake without
// touching the filesystem, the same seam the teacher's GeoReader interface
// provides.
type Reader interface {
	Lookup(ip net.IP, result any) error
}

type mmdbReader struct {
	db *maxminddb.Reader
}

func (r *mmdbReader) Lookup(ip net.IP, result any) error {
	return r.db.Lookup(ip, result)
}

// OpenReader opens a GeoLite2-City database file.
func OpenReader(path string) (Reader, func() error, error) {
	db, err := maxminddb.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open geoip db %s: %w", path, err)
	}
	return &mmdbReader{db: db}, db.Close, nil
}

// Resolver resolves ground-endpoint identifiers to coordinates: named
// ground stations first, then an optional GeoIP reader for identifiers
// shaped like IP addresses.
type Resolver struct {
	mu       sync.RWMutex
	stations map[string]Point
	reader   Reader
}

// NewResolver builds a Resolver from a scenario's named ground stations.
// The GeoIP reader may be nil, in which case Resolve only serves the named
// registry and returns an error for unknown identifiers.
func NewResolver(stations []config.GroundStation, reader Reader) *Resolver {
	m := make(map[string]Point, len(stations))
	for _, gs := range stations {
		m[gs.Name] = Point{Lat: gs.Lat, Lon: gs.Lon}
	}
	return &Resolver{stations: m, reader: reader}
}

// SetReader hot-swaps the GeoIP reader, mirroring the teacher's
// reloadReader under a dedicated lock so concurrent Resolve calls never
// observe a partially-closed reader.
func (r *Resolver) SetReader(reader Reader) {
	r.mu.Lock()
	r.reader = reader
	r.mu.Unlock()
}

// Resolve looks up identifier in the named registry first, then falls back
// to a GeoIP lookup if identifier parses as an IP address and a reader is
// configured.
func (r *Resolver) Resolve(identifier string) (Point, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.stations[identifier]; ok {
		return p, nil
	}

	ip := net.ParseIP(identifier)
	if ip == nil {
		return Point{}, fmt.Errorf("geo: %q is neither a named ground station nor a valid IP", identifier)
	}
	if r.reader == nil {
		return Point{}, fmt.Errorf("geo: %q requires GeoIP lookup but no reader is configured", identifier)
	}

	var rec cityRecord
	if err := r.reader.Lookup(ip, &rec); err != nil {
		return Point{}, fmt.Errorf("geo: lookup %s: %w", identifier, err)
	}
	if rec.Location.Latitude == 0 && rec.Location.Longitude == 0 {
		return Point{}, fmt.Errorf("geo: no location record for %s", identifier)
	}
	return Point{Lat: rec.Location.Latitude, Lon: rec.Location.Longitude}, nil
}

// Named returns the coordinate of a registry ground station by name, and
// whether it exists, without attempting GeoIP fallback.
func (r *Resolver) Named(name string) (Point, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.stations[name]
	return p, ok
}

// Names returns all registered ground station names, stably sorted by
// insertion is not guaranteed; callers that need stable order should sort.
func (r *Resolver) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.stations))
	for name := range r.stations {
		out = append(out, name)
	}
	return out
}
