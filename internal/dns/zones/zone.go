package zones

import (
	"fmt"

	"github.com/miekg/dns"

	"github.com/shuque/adnsd/internal/dns/dnsname"
)

// Zone holds the parsed contents of one zone: an origin name and a mapping
// from owner name to Node, with every strict ancestor of every owner name
// materialized (at least as an empty non-terminal) up to the origin.
type Zone struct {
	origin string
	nodes  map[string]*Node
}

// Build groups rrs by owner name under origin, validates the zone's
// structural invariants, and eagerly materializes empty non-terminals so
// that node lookup can distinguish NODATA from NXDOMAIN for every
// descendant-only path.
func Build(origin string, rrs []dns.RR) (*Zone, error) {
	origin = dnsname.Canonical(origin)

	z := &Zone{
		origin: origin,
		nodes:  make(map[string]*Node),
	}

	for _, rr := range rrs {
		owner := dnsname.Canonical(rr.Header().Name)
		if !dnsname.IsSubdomain(owner, origin) {
			return nil, fmt.Errorf("zone %s: record owner %s is outside the zone", origin, owner)
		}
		node, ok := z.nodes[owner]
		if !ok {
			node = newNode(owner)
			z.nodes[owner] = node
		}
		node.add(rr)
	}

	z.materializeENTs()

	if err := z.validate(); err != nil {
		return nil, err
	}
	return z, nil
}

// materializeENTs inserts an empty Node for every strict ancestor, between
// an owner name and the origin, that does not already have one.
func (z *Zone) materializeENTs() {
	apex, ok := z.nodes[z.origin]
	if !ok {
		apex = newNode(z.origin)
		z.nodes[z.origin] = apex
	}

	owners := make([]string, 0, len(z.nodes))
	for name := range z.nodes {
		owners = append(owners, name)
	}

	for _, owner := range owners {
		for cur := dnsname.Parent(owner); cur != "" && cur != z.origin && dnsname.IsSubdomain(cur, z.origin); cur = dnsname.Parent(cur) {
			if _, exists := z.nodes[cur]; !exists {
				ent := newNode(cur)
				ent.ent = true
				z.nodes[cur] = ent
			}
		}
	}
}

// validate checks the zone's required invariants: exactly one SOA at the
// origin, an NS RRset at the origin, and every node's strict ancestors
// present up to (and excluding) the origin.
func (z *Zone) validate() error {
	apex, ok := z.nodes[z.origin]
	if !ok {
		return fmt.Errorf("zone %s: apex node missing", z.origin)
	}
	soa, ok := apex.RRSet(dns.TypeSOA)
	if !ok || len(soa) != 1 {
		return fmt.Errorf("zone %s: must contain exactly one SOA RRset at the origin", z.origin)
	}
	if !apex.HasType(dns.TypeNS) {
		return fmt.Errorf("zone %s: must contain an NS RRset at the origin", z.origin)
	}
	for name := range z.nodes {
		if name == z.origin {
			continue
		}
		parent := dnsname.Parent(name)
		for parent != "" && parent != z.origin && dnsname.IsSubdomain(parent, z.origin) {
			if _, exists := z.nodes[parent]; !exists {
				return fmt.Errorf("zone %s: ancestor %s of %s is missing", z.origin, parent, name)
			}
			parent = dnsname.Parent(parent)
		}
	}
	return nil
}

// Origin returns the zone's apex name.
func (z *Zone) Origin() string {
	return z.origin
}

// GetNode returns the node at name, if one exists (including ENTs).
func (z *Zone) GetNode(name string) (*Node, bool) {
	n, ok := z.nodes[dnsname.Canonical(name)]
	return n, ok
}

// GetRRset returns the RRset of qtype at name, if present.
func (z *Zone) GetRRset(name string, qtype uint16) ([]dns.RR, bool) {
	n, ok := z.GetNode(name)
	if !ok {
		return nil, false
	}
	return n.RRSet(qtype)
}

// IsDelegationPoint reports whether name holds an NS RRset and is not the
// zone apex — the definition of a delegation point per §3.
func (z *Zone) IsDelegationPoint(name string) bool {
	name = dnsname.Canonical(name)
	if name == z.origin {
		return false
	}
	n, ok := z.GetNode(name)
	if !ok {
		return false
	}
	return n.HasType(dns.TypeNS)
}
