// Package respond implements the response builder: it wraps the resolver
// with EDNS negotiation, RCODE policy for conditions the resolver never
// sees (wrong class, meta-type queries, unsupported EDNS version), the AA
// flag rule, and size-budget truncation.
package respond

import (
	"github.com/miekg/dns"

	"github.com/shuque/adnsd/internal/dns/common/log"
	"github.com/shuque/adnsd/internal/dns/dnsname"
	"github.com/shuque/adnsd/internal/dns/resolver"
)

// Transport identifies which wire budget and framing rule apply.
type Transport int

const (
	UDP Transport = iota
	TCP
)

const (
	udpNoEDNSBudget = 512
	tcpBudget       = 65533
)

// Options configures a Builder. Zero values fall back to the defaults in
// SPEC_FULL.md §6.
type Options struct {
	// Advertise is the UDP payload size this server advertises in its own
	// OPT record. Fixed policy: 1232.
	Advertise uint16
	// MaxSend caps the reply size even when the client advertises a larger
	// payload. Configurable; default 1432.
	MaxSend uint16
	// DisableEDNS strips EDNS support entirely: replies never carry an OPT
	// record and the UDP budget is always 512.
	DisableEDNS bool
	Logger      log.Logger
}

// Builder assembles a wire-ready reply from a parsed query using a Resolver
// for the DNS-level resolution work.
type Builder struct {
	resolver    *resolver.Resolver
	advertise   uint16
	maxSend     uint16
	disableEDNS bool
	logger      log.Logger
}

// New returns a Builder backed by res, applying opts' EDNS policy.
func New(res *resolver.Resolver, opts Options) *Builder {
	advertise := opts.Advertise
	if advertise == 0 {
		advertise = 1232
	}
	maxSend := opts.MaxSend
	if maxSend == 0 {
		maxSend = 1432
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Builder{
		resolver:    res,
		advertise:   advertise,
		maxSend:     maxSend,
		disableEDNS: opts.DisableEDNS,
		logger:      logger,
	}
}

// Handle builds the wire-encoded reply to query for the given transport.
// It never returns an error: malformed-query handling is the caller's
// responsibility (a query that fails to unpack is dropped before Handle is
// ever called, per §7).
func (b *Builder) Handle(query *dns.Msg, transport Transport) []byte {
	reply := new(dns.Msg)
	reply.SetReply(query)
	reply.RecursionAvailable = false

	budget, stop := b.negotiateEDNS(query, reply, transport)
	if !stop {
		stop = b.checkClassAndType(query, reply)
	}

	var result *resolver.Result
	if !stop {
		q := query.Question[0]
		result = b.resolver.FindAnswer(dnsname.Canonical(q.Name), q.Qtype)
		reply.Rcode = result.RCode
		if isMetaType(query.Question[0].Qtype) {
			reply.Rcode = dns.RcodeNotImplemented
		}
		reply.Answer = result.Answer
		reply.Ns = result.Authority
		reply.Extra = append(reply.Extra, result.Additional...)
	}

	// The resolver is never invoked on the wrong-class or BADVERS early-stop
	// paths; an unanswered REFUSED/BADVERS reply is not authoritative.
	if stop {
		reply.Authoritative = false
	} else {
		reply.Authoritative = result == nil || !result.IsReferral || len(result.Answer) > 0
	}

	return b.encode(reply, transport, budget)
}

// negotiateEDNS implements §4.4 step 2: OPT echo and the BADVERS version
// check, which apply regardless of transport. Only the size budget
// returned here is transport-specific (TCP's is fixed; UDP's depends on the
// query's advertised OPT, if any).
func (b *Builder) negotiateEDNS(query, reply *dns.Msg, transport Transport) (budget int, stop bool) {
	if transport == TCP {
		budget = tcpBudget
	} else {
		budget = udpNoEDNSBudget
	}

	if b.disableEDNS {
		return budget, false
	}

	opt := query.IsEdns0()
	if opt == nil {
		return budget, false
	}

	if transport == UDP {
		budget = int(minUint16(opt.UDPSize(), b.maxSend))
	}

	if opt.Version() > 0 {
		reply.Rcode = dns.RcodeBadVers
		reply.Answer = nil
		reply.Ns = nil
		reply.Extra = nil
		reply.SetEdns0(b.advertise, false)
		return budget, true
	}

	reply.SetEdns0(b.advertise, false)
	return budget, false
}

// checkClassAndType implements §4.4 step 3: a non-IN class sets REFUSED and
// short-circuits resolution without disqualifying the rest of the response
// (encoding, truncation, TCP framing still apply). The meta-type check of
// step 4 does not stop resolution; Handle applies NOTIMP after the resolver
// has run.
func (b *Builder) checkClassAndType(query, reply *dns.Msg) (stop bool) {
	q := query.Question[0]
	if q.Qclass != dns.ClassINET {
		reply.Rcode = dns.RcodeRefused
		return true
	}
	return false
}

func isMetaType(qtype uint16) bool {
	return qtype >= 128 && qtype <= 255
}

// encode implements §4.4 steps 7-9: pack the reply within its size budget,
// truncating (but preserving any OPT record) if it overflows, and
// prepending a TCP length prefix.
func (b *Builder) encode(reply *dns.Msg, transport Transport, budget int) []byte {
	wire, err := reply.Pack()
	if err != nil || (budget > 0 && len(wire) > budget) {
		if err != nil {
			b.logger.Warn(map[string]any{"error": err.Error()}, "failed to pack dns reply, truncating")
		}
		wire = b.truncate(reply)
	}

	if transport == TCP {
		framed := make([]byte, 2+len(wire))
		framed[0] = byte(len(wire) >> 8)
		framed[1] = byte(len(wire))
		copy(framed[2:], wire)
		return framed
	}
	return wire
}

// truncate implements §4.4 step 8: clear every section except the OPT
// pseudo-RR, set TC, and re-encode.
func (b *Builder) truncate(reply *dns.Msg) []byte {
	var opt *dns.OPT
	for _, rr := range reply.Extra {
		if o, ok := rr.(*dns.OPT); ok {
			opt = o
			break
		}
	}

	reply.Answer = nil
	reply.Ns = nil
	reply.Extra = nil
	if opt != nil {
		reply.Extra = []dns.RR{opt}
	}
	reply.Truncated = true

	wire, err := reply.Pack()
	if err != nil {
		b.logger.Error(map[string]any{"error": err.Error()}, "failed to pack truncated dns reply")
		return nil
	}
	return wire
}

func minUint16(a, b uint16) uint16 {
	if a < b {
		return a
	}
	return b
}
