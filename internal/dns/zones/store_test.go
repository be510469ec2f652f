package zones

import (
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shuque/adnsd/internal/dns/common/clock"
)

func TestStore_FindZone_LongestSuffix(t *testing.T) {
	parent, err := Build("example.com.", exampleZoneRRs(t))
	require.NoError(t, err)
	child, err := Build("sub.example.com.", []dns.RR{
		mustRR(t, "sub.example.com. 3600 IN SOA ns.sub.example.com. hostmaster.sub.example.com. 1 3600 600 86400 3600"),
		mustRR(t, "sub.example.com. 3600 IN NS ns.sub.example.com."),
		mustRR(t, "ns.sub.example.com. 3600 IN A 10.0.0.2"),
	})
	require.NoError(t, err)

	store := NewStore(&clock.MockClock{CurrentTime: time.Unix(0, 0)})
	store.Replace([]*Zone{parent, child})

	got, ok := store.FindZone("host.sub.example.com.")
	require.True(t, ok)
	assert.Equal(t, "sub.example.com.", got.Origin())

	got, ok = store.FindZone("a.example.com.")
	require.True(t, ok)
	assert.Equal(t, "example.com.", got.Origin())

	_, ok = store.FindZone("other.net.")
	assert.False(t, ok)
}

func TestStore_Replace_ReplacesWholesale(t *testing.T) {
	z1, err := Build("example.com.", exampleZoneRRs(t))
	require.NoError(t, err)

	store := NewStore(nil)
	store.Replace([]*Zone{z1})
	assert.Equal(t, 1, store.Count())
	assert.Equal(t, []string{"example.com."}, store.Zones())

	store.Replace(nil)
	assert.Equal(t, 0, store.Count())
}
