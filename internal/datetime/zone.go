package datetime

import (
	"context"
	"strings"
	"time"
)

var zoneAliases = map[string]string{
	"ist":     "Asia/Kolkata",
	"indian":  "Asia/Kolkata",
	"india":   "Asia/Kolkata",
	"kolkata": "Asia/Kolkata",
	"mumbai":  "Asia/Kolkata",
	"delhi":   "Asia/Kolkata",
	"pst":     "America/Los_Angeles",
	"est":     "America/New_York",
	"utc":     "UTC",
	"gmt":     "GMT",
}

// NormalizeZone maps an alias or IANA name to a loadable zone name.
func NormalizeZone(name string) (string, *time.Location, bool) {
	in := strings.TrimSpace(name)
	if in == "" {
		return "", nil, false
	}
	if alias, ok := zoneAliases[strings.ToLower(in)]; ok {
		in = alias
	}
	loc, err := time.LoadLocation(in)
	if err != nil {
		return "", nil, false
	}
	return in, loc, true
}

// ZoneLookup returns the stored zone name for an owner, or "" when unknown.
type ZoneLookup func(ctx context.Context, ownerID string) (string, error)

// Resolver maps an owner to a time zone, falling back to a default.
type Resolver struct {
	lookup ZoneLookup
	def    *time.Location
}

func NewResolver(lookup ZoneLookup, def *time.Location) *Resolver {
	if def == nil {
		def = time.UTC
	}
	return &Resolver{lookup: lookup, def: def}
}

func (r *Resolver) Default() *time.Location { return r.def }

// Resolve never fails; lookup errors and unknown zones yield the default.
func (r *Resolver) Resolve(ctx context.Context, ownerID string) *time.Location {
	if r == nil {
		return time.UTC
	}
	if r.lookup == nil {
		return r.def
	}
	name, err := r.lookup(ctx, ownerID)
	if err != nil {
		return r.def
	}
	if _, loc, ok := NormalizeZone(name); ok {
		return loc
	}
	return r.def
}
