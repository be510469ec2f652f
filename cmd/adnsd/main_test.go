package main

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shuque/adnsd/internal/dns/config"
)

func writeTestZoneFile(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "e2e.test.zone")
	contents := `$ORIGIN e2e.test.
$TTL 3600
@       IN SOA  ns.e2e.test. hostmaster.e2e.test. 1 3600 600 86400 3600
@       IN NS   ns.e2e.test.
ns      IN A    10.0.0.9
api     IN A    10.0.0.1
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func writeTestConfigFile(t *testing.T, zoneFile, listen string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "adnsd.yaml")
	contents := "zones:\n  - name: e2e.test.\n    file: " + zoneFile + "\nlisten: \"" + listen + "\"\nlog_level: debug\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

// freeAddr returns a loopback address with an OS-assigned free port.
func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestBuildApplication_LoadsConfiguredZones(t *testing.T) {
	zoneFile := writeTestZoneFile(t)
	listen := freeAddr(t)
	cfgPath := writeTestConfigFile(t, zoneFile, listen)

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)

	app, err := buildApplication(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"e2e.test."}, app.store.Zones())
}

func TestRun_ServesUDPQueriesUntilCancelled(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test in short mode")
	}

	zoneFile := writeTestZoneFile(t)
	listen := freeAddr(t)
	cfgPath := writeTestConfigFile(t, zoneFile, listen)

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)

	app, err := buildApplication(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- app.Run(ctx) }()

	require.Eventually(t, func() bool {
		conn, err := net.DialTimeout("udp", listen, 100*time.Millisecond)
		if err != nil {
			return false
		}
		defer conn.Close()
		return true
	}, 2*time.Second, 20*time.Millisecond)

	q := new(dns.Msg)
	q.SetQuestion("api.e2e.test.", dns.TypeA)
	wire, err := q.Pack()
	require.NoError(t, err)

	conn, err := net.Dial("udp", listen)
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write(wire)
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 512)
	n, err := conn.Read(buf)
	require.NoError(t, err)

	reply := new(dns.Msg)
	require.NoError(t, reply.Unpack(buf[:n]))
	assert.Equal(t, dns.RcodeSuccess, reply.Rcode)
	require.Len(t, reply.Answer, 1)

	cancel()
	require.NoError(t, <-runErr)
}

func TestReloadZones_PicksUpNewZoneContent(t *testing.T) {
	zoneFile := writeTestZoneFile(t)
	listen := freeAddr(t)
	cfgPath := writeTestConfigFile(t, zoneFile, listen)

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)

	app, err := buildApplication(cfg)
	require.NoError(t, err)

	updated := `$ORIGIN e2e.test.
$TTL 3600
@       IN SOA  ns.e2e.test. hostmaster.e2e.test. 2 3600 600 86400 3600
@       IN NS   ns.e2e.test.
ns      IN A    10.0.0.9
api     IN A    10.0.0.1
extra   IN A    10.0.0.5
`
	require.NoError(t, os.WriteFile(zoneFile, []byte(updated), 0o644))
	require.NoError(t, app.reloadZones())

	zone, ok := app.store.FindZone("extra.e2e.test.")
	require.True(t, ok)
	_, ok = zone.GetRRset("extra.e2e.test.", dns.TypeA)
	assert.True(t, ok)
}
