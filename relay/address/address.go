// Package address parses the relay address format
// {relay-host:port}/{network-id}/{view-query} into typed segments.
package address

import (
	"strconv"
	"strings"

	"github.com/dlt-interop/relay/relay/types"
	"github.com/pkg/errors"
)

// Location is the relay endpoint segment of an address.
type Location struct {
	Hostname string
	Port     string
}

// Address is a fully parsed relay address. The view query may itself
// contain further slashes.
type Address struct {
	Location  Location
	NetworkID string
	ViewQuery string
}

// Parse splits host:port/network-id/view-query. The view segment keeps
// any embedded slashes.
func Parse(s string) (*Address, error) {
	parts := strings.SplitN(s, "/", 3)
	if len(parts) != 3 {
		return nil, errors.Wrapf(types.ErrMalformed, "address %q: want host:port/network-id/view-query", s)
	}
	loc, err := ParseLocation(parts[0])
	if err != nil {
		return nil, err
	}
	if parts[1] == "" {
		return nil, errors.Wrapf(types.ErrMalformed, "address %q: empty network id", s)
	}
	if parts[2] == "" {
		return nil, errors.Wrapf(types.ErrMalformed, "address %q: empty view query", s)
	}
	return &Address{Location: *loc, NetworkID: parts[1], ViewQuery: parts[2]}, nil
}

// ParseLocation parses only the host:port prefix.
func ParseLocation(s string) (*Location, error) {
	idx := strings.LastIndex(s, ":")
	if idx <= 0 || idx == len(s)-1 {
		return nil, errors.Wrapf(types.ErrMalformed, "location %q: want host:port", s)
	}
	host, port := s[:idx], s[idx+1:]
	if _, err := strconv.ParseUint(port, 10, 16); err != nil {
		return nil, errors.Wrapf(types.ErrMalformed, "location %q: bad port", s)
	}
	return &Location{Hostname: host, Port: port}, nil
}
