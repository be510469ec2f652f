// Package dnsname provides the name operations (parent, suffix,
// relativization, wire length) that the zone store and resolver need,
// built as thin wrappers around github.com/miekg/dns's string-based name
// helpers rather than a bespoke Name type.
package dnsname

import (
	"strings"

	"github.com/miekg/dns"
)

// Canonical returns name in canonical form: fully qualified (trailing dot)
// and lowercased, matching the comparison rules RFC 1035 requires for
// owner-name lookups.
func Canonical(name string) string {
	return dns.CanonicalName(name)
}

// IsSubdomain reports whether child is equal to or a descendant of parent.
func IsSubdomain(child, parent string) bool {
	return dns.IsSubDomain(Canonical(parent), Canonical(child))
}

// LabelCount returns the number of labels in name (the root has zero).
func LabelCount(name string) int {
	return dns.CountLabel(Canonical(name))
}

// Parent returns the immediate parent of name, or "" if name is already the
// root.
func Parent(name string) string {
	name = Canonical(name)
	if name == "." {
		return ""
	}
	labels := dns.SplitDomainName(name)
	if len(labels) <= 1 {
		return "."
	}
	return dns.Fqdn(strings.Join(labels[1:], "."))
}

// ReplaceLeftmostLabel returns name with its leftmost (most specific) label
// replaced by "*" — the wildcard owner candidate used by §4.3.3.
func ReplaceLeftmostLabel(name string) string {
	p := Parent(name)
	if p == "" {
		return "*."
	}
	return "*." + p
}

// RelativeLabels returns the labels of name that lie above origin, ordered
// with the label closest to the zone apex first (index 0) and the leaf
// label last. The walk in resolver.FindAnswerInZone pops from index 0.
// Returns nil if name is not a subdomain of origin or equals origin.
func RelativeLabels(name, origin string) []string {
	name = Canonical(name)
	origin = Canonical(origin)
	if !IsSubdomain(name, origin) || name == origin {
		return nil
	}
	nameLabels := dns.SplitDomainName(name)
	originLabels := dns.SplitDomainName(origin)
	k := len(nameLabels) - len(originLabels)
	if k <= 0 {
		return nil
	}
	leafFirst := nameLabels[:k]
	apexFirst := make([]string, k)
	for i, l := range leafFirst {
		apexFirst[k-1-i] = l
	}
	return apexFirst
}

// Extend prepends label to current, producing the next name in a top-down
// zone walk.
func Extend(label, current string) string {
	return dns.Fqdn(label + "." + strings.TrimSuffix(Canonical(current), "."))
}

// WireLength returns the wire-format length, in octets, of name: the sum of
// each label's length-octet plus content, plus the terminating root octet.
// Used to enforce RFC 1035's 255-octet name limit during DNAME synthesis.
func WireLength(name string) int {
	name = Canonical(name)
	if name == "." {
		return 1
	}
	total := 1 // root terminator
	for _, label := range dns.SplitDomainName(name) {
		total += len(label) + 1
	}
	return total
}

// StripSuffix removes the owner suffix from qname, returning the labels
// that sit below owner (with a trailing dot retained so the result is a
// valid relative-free string when concatenated). Used by DNAME synthesis:
// strip the DNAME owner from qname, then concatenate with the DNAME target.
func StripSuffix(qname, owner string) string {
	qname = Canonical(qname)
	owner = Canonical(owner)
	if qname == owner {
		return ""
	}
	if !strings.HasSuffix(qname, owner) {
		return qname
	}
	return strings.TrimSuffix(qname, owner)
}
