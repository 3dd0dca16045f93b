// geo/ip/ip.go
// Package ip resolves client addresses and maps them to countries with a
// MaxMind (GeoLite2/GeoIP2 Country or City) database.
package ip

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/oschwald/maxminddb-golang"
)

var (
	ErrDatabaseNotLoaded = errors.New("geoip: database not loaded")
	ErrInvalidIP         = errors.New("geoip: invalid IP address")
	ErrDatabasePath      = errors.New("geoip: database path required")
)

// DB is a MaxMind database reader. Country and City editions both carry the
// country record used here.
type DB struct {
	mu     sync.RWMutex
	reader *maxminddb.Reader
}

type countryRecord struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
	RegisteredCountry struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"registered_country"`
}

// Open memory-maps the .mmdb file at path.
func Open(path string) (*DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrDatabasePath
	}
	r, err := maxminddb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geoip: open %s: %w", path, err)
	}
	return &DB{reader: r}, nil
}

// Close releases the database. Later lookups return ErrDatabaseNotLoaded.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.reader == nil {
		return nil
	}
	err := db.reader.Close()
	db.reader = nil
	return err
}

// Country returns the upper-case ISO 3166-1 alpha-2 code for ipStr, falling
// back to the registered country. An address absent from the database
// yields "" and no error.
func (db *DB) Country(ipStr string) (string, error) {
	ip := net.ParseIP(strings.TrimSpace(ipStr))
	if ip == nil {
		return "", ErrInvalidIP
	}

	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.reader == nil {
		return "", ErrDatabaseNotLoaded
	}

	var rec countryRecord
	if err := db.reader.Lookup(ip, &rec); err != nil {
		return "", fmt.Errorf("geoip: lookup failed: %w", err)
	}
	code := rec.Country.ISOCode
	if code == "" {
		code = rec.RegisteredCountry.ISOCode
	}
	return strings.ToUpper(code), nil
}

// ClientIP returns the originating client address: the first entry of
// X-Forwarded-For, then X-Real-IP, then CF-Connecting-IP, then the peer
// address. The first non-blank header value wins as sent, even when it is
// not a valid IP.
func ClientIP(r *http.Request) string {
	first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
	if ip := strings.TrimSpace(first); ip != "" {
		return ip
	}
	for _, h := range []string{"X-Real-IP", "CF-Connecting-IP"} {
		if ip := strings.TrimSpace(r.Header.Get(h)); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// IsPrivateIP reports whether ip is private, loopback or link-local.
// Such addresses never resolve to a country.
func IsPrivateIP(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	return parsed.IsPrivate() || parsed.IsLoopback() || parsed.IsLinkLocalUnicast()
}
