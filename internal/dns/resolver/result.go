// Package resolver implements the zone-walk resolution algorithm: given a
// zone store and a question, it classifies the queried name (delegation,
// DNAME, wildcard, NXDOMAIN, NODATA) and produces the answer, authority,
// and additional records a response should carry.
package resolver

import "github.com/miekg/dns"

// Result carries everything the resolution algorithm produces for one
// question: the records destined for each section, the final RCODE, and
// whether the response is a pure referral (no authoritative answer).
type Result struct {
	RCode      int
	Answer     []dns.RR
	Authority  []dns.RR
	Additional []dns.RR
	IsReferral bool
}
