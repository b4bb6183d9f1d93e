// Package geoip resolves login IPs to a display location and coordinates
// for the account presence fields.
package geoip

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/oschwald/geoip2-golang"
)

// Resolver provides city lookups backed by a MaxMind GeoIP2 database.
type Resolver struct {
	reader *geoip2.Reader
}

// NewResolver opens the GeoIP database at the given path. When the path is
// empty, nil is returned and location fill is disabled.
func NewResolver(path string) (*Resolver, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geoip: open database: %w", err)
	}
	return &Resolver{reader: reader}, nil
}

// Locate resolves an IP to "City, Country" plus decimal coordinates. The
// coordinates come back as strings because that is how the legacy account
// records store them.
func (r *Resolver) Locate(ip string) (location, latitude, longitude string, ok bool) {
	if r == nil || r.reader == nil {
		return "", "", "", false
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "", "", "", false
	}
	record, err := r.reader.City(parsed)
	if err != nil || record == nil {
		return "", "", "", false
	}

	var parts []string
	if city := record.City.Names["en"]; city != "" {
		parts = append(parts, city)
	}
	if country := record.Country.Names["en"]; country != "" {
		parts = append(parts, country)
	}
	if len(parts) == 0 {
		return "", "", "", false
	}

	latitude = strconv.FormatFloat(record.Location.Latitude, 'f', 4, 64)
	longitude = strconv.FormatFloat(record.Location.Longitude, 'f', 4, 64)
	return strings.Join(parts, ", "), latitude, longitude, true
}

// Close closes the underlying database reader.
func (r *Resolver) Close() error {
	if r == nil || r.reader == nil {
		return nil
	}
	return r.reader.Close()
}
