package resolver

import (
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shuque/adnsd/internal/dns/zones"
)

func mustRR(t *testing.T, s string) dns.RR {
	t.Helper()
	rr, err := dns.NewRR(s)
	require.NoError(t, err)
	return rr
}

// newTestResolver builds the zone described in spec §8's end-to-end
// scenarios: example.com. with an apex, a direct A record, a wildcard, a
// CNAME, a sub-delegation with in-bailiwick glue, and a DNAME whose target
// does not exist.
func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	rrs := []dns.RR{
		mustRR(t, "example.com. 3600 IN SOA ns.example.com. hostmaster.example.com. 1 3600 600 86400 3600"),
		mustRR(t, "example.com. 3600 IN NS ns.example.com."),
		mustRR(t, "ns.example.com. 3600 IN A 10.0.0.9"),
		mustRR(t, "a.example.com. 3600 IN A 10.0.0.1"),
		mustRR(t, "*.wild.example.com. 3600 IN A 10.0.0.9"),
		mustRR(t, "cname.example.com. 3600 IN CNAME a.example.com."),
		mustRR(t, "sub.example.com. 3600 IN NS ns.sub.example.com."),
		mustRR(t, "ns.sub.example.com. 3600 IN A 10.0.0.2"),
		mustRR(t, "alias.example.com. 3600 IN DNAME target.example.com."),
	}
	zone, err := zones.Build("example.com.", rrs)
	require.NoError(t, err)

	store := zones.NewStore(nil)
	store.Replace([]*zones.Zone{zone})
	return New(store, nil)
}

func TestFindAnswer_DirectHit(t *testing.T) {
	r := newTestResolver(t)
	res := r.FindAnswer("a.example.com.", dns.TypeA)
	assert.Equal(t, dns.RcodeSuccess, res.RCode)
	require.Len(t, res.Answer, 1)
	assert.Equal(t, "a.example.com.", res.Answer[0].Header().Name)
	assert.Empty(t, res.Authority)
}

func TestFindAnswer_NXDOMAIN(t *testing.T) {
	r := newTestResolver(t)
	res := r.FindAnswer("missing.example.com.", dns.TypeA)
	assert.Equal(t, dns.RcodeNameError, res.RCode)
	require.Len(t, res.Authority, 1)
	assert.Equal(t, dns.TypeSOA, res.Authority[0].Header().Rrtype)
	assert.Empty(t, res.Answer)
}

func TestFindAnswer_NODATA(t *testing.T) {
	r := newTestResolver(t)
	res := r.FindAnswer("a.example.com.", dns.TypeTXT)
	assert.Equal(t, dns.RcodeSuccess, res.RCode)
	require.Len(t, res.Authority, 1)
	assert.Equal(t, dns.TypeSOA, res.Authority[0].Header().Rrtype)
	assert.Empty(t, res.Answer)
}

func TestFindAnswer_Wildcard(t *testing.T) {
	r := newTestResolver(t)
	res := r.FindAnswer("foo.wild.example.com.", dns.TypeA)
	assert.Equal(t, dns.RcodeSuccess, res.RCode)
	require.Len(t, res.Answer, 1)
	assert.Equal(t, "foo.wild.example.com.", res.Answer[0].Header().Name, "owner rewritten to queried name")
}

func TestFindAnswer_CnameChain(t *testing.T) {
	r := newTestResolver(t)
	res := r.FindAnswer("cname.example.com.", dns.TypeA)
	assert.Equal(t, dns.RcodeSuccess, res.RCode)
	require.Len(t, res.Answer, 2)
	assert.Equal(t, dns.TypeCNAME, res.Answer[0].Header().Rrtype)
	assert.Equal(t, dns.TypeA, res.Answer[1].Header().Rrtype)
}

func TestFindAnswer_Referral(t *testing.T) {
	r := newTestResolver(t)
	res := r.FindAnswer("host.sub.example.com.", dns.TypeA)
	assert.True(t, res.IsReferral)
	require.Len(t, res.Authority, 1)
	assert.Equal(t, dns.TypeNS, res.Authority[0].Header().Rrtype)
	require.Len(t, res.Additional, 1)
	assert.Equal(t, "ns.sub.example.com.", res.Additional[0].Header().Name)
}

func TestFindAnswer_DnameSynthesisThenNXDOMAIN(t *testing.T) {
	r := newTestResolver(t)
	res := r.FindAnswer("x.alias.example.com.", dns.TypeA)
	// target.example.com. does not exist in this zone, so the chain ends NXDOMAIN.
	assert.Equal(t, dns.RcodeNameError, res.RCode)
	require.GreaterOrEqual(t, len(res.Answer), 2)
	assert.Equal(t, dns.TypeDNAME, res.Answer[0].Header().Rrtype)
	assert.Equal(t, dns.TypeCNAME, res.Answer[1].Header().Rrtype)
}

func TestFindAnswer_RefusedOutsideAnyZone(t *testing.T) {
	r := newTestResolver(t)
	res := r.FindAnswer("nowhere.net.", dns.TypeA)
	assert.Equal(t, dns.RcodeRefused, res.RCode)
}

func TestFindAnswer_CnameLoopServfails(t *testing.T) {
	rrs := []dns.RR{
		mustRR(t, "loop.com. 3600 IN SOA ns.loop.com. hostmaster.loop.com. 1 3600 600 86400 3600"),
		mustRR(t, "loop.com. 3600 IN NS ns.loop.com."),
		mustRR(t, "ns.loop.com. 3600 IN A 10.0.0.9"),
		mustRR(t, "a.loop.com. 3600 IN CNAME b.loop.com."),
		mustRR(t, "b.loop.com. 3600 IN CNAME a.loop.com."),
	}
	zone, err := zones.Build("loop.com.", rrs)
	require.NoError(t, err)
	store := zones.NewStore(nil)
	store.Replace([]*zones.Zone{zone})
	r := New(store, nil)

	res := r.FindAnswer("a.loop.com.", dns.TypeA)
	assert.Equal(t, dns.RcodeServerFailure, res.RCode)
}
