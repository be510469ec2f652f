package resolver

import (
	"github.com/miekg/dns"

	"github.com/shuque/adnsd/internal/dns/common/log"
	"github.com/shuque/adnsd/internal/dns/dnsname"
	"github.com/shuque/adnsd/internal/dns/zones"
)

// Resolver answers one question at a time against a zone store. It holds
// no per-request state of its own; every call to FindAnswer is independent
// and safe to run concurrently with any other.
type Resolver struct {
	store  *zones.Store
	logger log.Logger
}

// New returns a Resolver backed by store. A nil logger is replaced with a
// no-op logger.
func New(store *zones.Store, logger log.Logger) *Resolver {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Resolver{store: store, logger: logger}
}

// FindAnswer resolves qname/qtype against the zone store, chasing CNAME and
// DNAME chains (possibly across zone boundaries) until the chain ends, a
// loop is detected, or the name or type cannot be found. It never blocks
// and never returns an error: every DNS-level outcome is expressed in the
// returned Result's RCode.
func (r *Resolver) FindAnswer(qname string, qtype uint16) *Result {
	res := &Result{RCode: dns.RcodeSuccess}
	st := newState()

	current := dnsname.Canonical(qname)
	for {
		step := r.findAnswerStep(res, st, current, qtype)
		if step.next == "" {
			break
		}
		current = step.next
	}
	return res
}

// findAnswerStep implements §4.3.1: select the closest-enclosing zone for
// the current name, or REFUSE if none is loaded (unless a prior CNAME step
// already produced a partial answer).
func (r *Resolver) findAnswerStep(res *Result, st *state, qname string, qtype uint16) stepResult {
	zone, ok := r.store.FindZone(qname)
	if !ok {
		if len(res.Answer) == 0 {
			res.RCode = dns.RcodeRefused
		}
		return stepResult{}
	}
	return r.findAnswerInZone(res, st, zone, qname, qtype)
}

// findAnswerInZone implements §4.3.2: walk labels from the zone apex
// towards qname, classifying each visited name, stopping at the first name
// that resolves to a final outcome.
func (r *Resolver) findAnswerInZone(res *Result, st *state, zone *zones.Zone, qname string, qtype uint16) stepResult {
	labels := dnsname.RelativeLabels(qname, zone.Origin())
	current := zone.Origin()

	for {
		step := r.processName(res, st, zone, qname, current, qtype)
		if !step.continueWalk {
			return step
		}
		if len(labels) == 0 {
			return step
		}
		label := labels[0]
		labels = labels[1:]
		current = dnsname.Extend(label, current)
	}
}

// processName implements §4.3.3: classify one visited name (sname) on the
// way to qname.
func (r *Resolver) processName(res *Result, st *state, zone *zones.Zone, qname, sname string, qtype uint16) stepResult {
	node, ok := zone.GetNode(sname)
	if !ok {
		wildcard := dnsname.ReplaceLeftmostLabel(sname)
		if _, wok := zone.GetNode(wildcard); wok {
			return r.findRRtype(res, st, zone, wildcard, qtype, sname)
		}
		res.RCode = dns.RcodeNameError
		r.addSOA(res, zone)
		return stepResult{}
	}

	if dnameRRs, ok := node.RRSet(dns.TypeDNAME); ok {
		return r.processDname(res, st, zone, qname, sname, qtype, dnameRRs[0])
	}

	if zone.IsDelegationPoint(sname) {
		nsRRs, _ := node.RRSet(dns.TypeNS)
		r.doReferral(res, zone, sname, nsRRs)
		return stepResult{}
	}

	if dnsname.Canonical(sname) != dnsname.Canonical(qname) {
		return stepResult{continueWalk: true}
	}

	return r.findRRtype(res, st, zone, sname, qtype, "")
}

// findRRtype implements §4.3.4: select the answer RRset at the resolved
// node, following a CNAME if one is present there instead of the queried
// type. wildcardMatch, when set, is the original queried name whose owner
// the synthesized answer must carry instead of the wildcard node's name.
func (r *Resolver) findRRtype(res *Result, st *state, zone *zones.Zone, nodeName string, qtype uint16, wildcardMatch string) stepResult {
	rrname := nodeName
	if wildcardMatch != "" {
		rrname = wildcardMatch
	}

	node, ok := zone.GetNode(nodeName)
	if !ok {
		res.RCode = dns.RcodeNameError
		r.addSOA(res, zone)
		return stepResult{}
	}

	if cnameRRs, ok := node.RRSet(dns.TypeCNAME); ok {
		return r.processCname(res, st, rrname, nodeName, cnameRRs[0])
	}

	if rrs, ok := node.RRSet(qtype); ok {
		for _, rr := range rrs {
			res.Answer = append(res.Answer, cloneWithOwner(rr, rrname))
		}
		return stepResult{}
	}

	r.addSOA(res, zone)
	return stepResult{}
}

// processCname implements §4.3.5: append the CNAME to the answer and
// continue resolution at its target, unless sname has already been chased
// in this request (a loop), in which case the whole response fails closed.
func (r *Resolver) processCname(res *Result, st *state, rrname, sname string, cnameRR dns.RR) stepResult {
	key := dnsname.Canonical(sname)
	if st.cnameOwners[key] {
		r.logger.Warn(map[string]any{"name": sname}, "cname loop detected")
		res.RCode = dns.RcodeServerFailure
		return stepResult{}
	}
	st.cnameOwners[key] = true

	res.Answer = append(res.Answer, cloneWithOwner(cnameRR, rrname))
	target := dnsname.Canonical(cnameRR.(*dns.CNAME).Target)
	return stepResult{next: target}
}

// processDname implements §4.3.6: append the DNAME, synthesize a CNAME from
// qname into the target subtree, and chase it exactly like an explicit
// CNAME.
func (r *Resolver) processDname(res *Result, st *state, zone *zones.Zone, qname, sname string, qtype uint16, dnameRR dns.RR) stepResult {
	key := dnsname.Canonical(sname)
	if st.dnameOwners[key] {
		r.logger.Warn(map[string]any{"name": sname}, "dname loop detected")
		res.RCode = dns.RcodeServerFailure
		return stepResult{}
	}
	st.dnameOwners[key] = true
	res.Answer = append(res.Answer, cloneWithOwner(dnameRR, sname))

	target := dnsname.Canonical(dnameRR.(*dns.DNAME).Target)
	suffix := dnsname.StripSuffix(qname, sname)
	synthesized := dnsname.Canonical(suffix + target)

	if dnsname.WireLength(synthesized) > 255 {
		res.RCode = dns.RcodeYXDomain
		return stepResult{}
	}

	owner := dnsname.Canonical(qname)
	cname := &dns.CNAME{
		Hdr: dns.RR_Header{
			Name:   owner,
			Rrtype: dns.TypeCNAME,
			Class:  dns.ClassINET,
			Ttl:    dnameRR.Header().Ttl,
		},
		Target: synthesized,
	}
	return r.processCname(res, st, owner, owner, cname)
}

// doReferral implements §4.3.7: mark the response as a referral, add the
// delegation's NS RRset to authority, and attach in-bailiwick glue.
func (r *Resolver) doReferral(res *Result, zone *zones.Zone, sname string, nsRRs []dns.RR) {
	res.IsReferral = true
	for _, rr := range nsRRs {
		res.Authority = append(res.Authority, cloneWithOwner(rr, sname))
	}
	for _, rr := range nsRRs {
		ns, ok := rr.(*dns.NS)
		if !ok {
			continue
		}
		target := dnsname.Canonical(ns.Ns)
		if !dnsname.IsSubdomain(target, sname) {
			continue
		}
		if as, ok := zone.GetRRset(target, dns.TypeA); ok {
			res.Additional = append(res.Additional, as...)
		}
		if aaaas, ok := zone.GetRRset(target, dns.TypeAAAA); ok {
			res.Additional = append(res.Additional, aaaas...)
		}
	}
}

// addSOA appends the zone's SOA RRset to authority, as required for both
// NXDOMAIN and NODATA responses. The SOA's TTL is clamped to its own MINIMUM
// field per RFC 2308 §3: the negative-caching TTL is min(soa.ttl, soa.minimum),
// not the SOA record's own wire TTL.
func (r *Resolver) addSOA(res *Result, zone *zones.Zone) {
	soaRRs, ok := zone.GetRRset(zone.Origin(), dns.TypeSOA)
	if !ok || len(soaRRs) == 0 {
		return
	}
	soa, ok := soaRRs[0].(*dns.SOA)
	if !ok {
		res.Authority = append(res.Authority, soaRRs...)
		return
	}
	clamped := dns.Copy(soa).(*dns.SOA)
	if clamped.Hdr.Ttl > clamped.Minimum {
		clamped.Hdr.Ttl = clamped.Minimum
	}
	res.Authority = append(res.Authority, clamped)
}

// cloneWithOwner copies rr and rewrites its owner name, used whenever a
// record is served under a name other than its literal owner in the zone
// (wildcard synthesis, DNAME/CNAME synthesis, delegation NS echoing).
func cloneWithOwner(rr dns.RR, owner string) dns.RR {
	c := dns.Copy(rr)
	c.Header().Name = dnsname.Canonical(owner)
	return c
}
