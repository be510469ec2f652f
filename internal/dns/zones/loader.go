package zones

import (
	"fmt"
	"os"

	"github.com/miekg/dns"
)

// FileRef names one zone to load: its origin and the RFC 1035 master file
// backing it.
type FileRef struct {
	Name string
	File string
}

// LoadFile parses path as an RFC 1035 master file for origin, using
// dns.ZoneParser, and builds a Zone from the resulting records.
func LoadFile(origin, path string) (*Zone, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening zone file %s: %w", path, err)
	}
	defer f.Close()

	zp := dns.NewZoneParser(f, dns.Fqdn(origin), path)
	zp.SetIncludeAllowed(false)

	var rrs []dns.RR
	for rr, ok := zp.Next(); ok; rr, ok = zp.Next() {
		rrs = append(rrs, rr)
	}
	if err := zp.Err(); err != nil {
		return nil, fmt.Errorf("parsing zone file %s: %w", path, err)
	}

	return Build(origin, rrs)
}

// LoadAll parses every referenced zone file and returns the resulting Zones
// in the same order as refs. The first parse or validation error aborts the
// whole load so that a Reload never installs a partially-loaded zone set.
func LoadAll(refs []FileRef) ([]*Zone, error) {
	zs := make([]*Zone, 0, len(refs))
	for _, ref := range refs {
		z, err := LoadFile(ref.Name, ref.File)
		if err != nil {
			return nil, err
		}
		zs = append(zs, z)
	}
	return zs, nil
}
