// Package zones implements the zone data model: a name tree with explicit
// empty-non-terminal materialization, and a store that selects the
// closest-enclosing zone for a query name.
package zones

import "github.com/miekg/dns"

// Node is a name in a zone's tree. It carries zero or more RRsets keyed by
// type. A Node with no RRsets but ent=true exists only because a descendant
// name exists (an empty non-terminal) and must be distinguishable from a
// name that is entirely absent from the zone.
type Node struct {
	name   string
	rrsets map[uint16][]dns.RR
	ent    bool
}

func newNode(name string) *Node {
	return &Node{name: name, rrsets: make(map[uint16][]dns.RR)}
}

// Name returns the node's owner name.
func (n *Node) Name() string {
	return n.name
}

// IsENT reports whether this node exists solely as an empty non-terminal.
func (n *Node) IsENT() bool {
	return n.ent
}

// RRSet returns the RRset of the given type at this node, if any.
func (n *Node) RRSet(qtype uint16) ([]dns.RR, bool) {
	rrs, ok := n.rrsets[qtype]
	if !ok || len(rrs) == 0 {
		return nil, false
	}
	return rrs, true
}

// HasType reports whether the node carries at least one RR of the given type.
func (n *Node) HasType(qtype uint16) bool {
	_, ok := n.RRSet(qtype)
	return ok
}

func (n *Node) add(rr dns.RR) {
	t := rr.Header().Rrtype
	n.rrsets[t] = append(n.rrsets[t], rr)
	n.ent = false
}
