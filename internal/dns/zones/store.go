package zones

import (
	"sort"
	"sync/atomic"
	"time"

	"github.com/shuque/adnsd/internal/dns/common/clock"
	"github.com/shuque/adnsd/internal/dns/dnsname"
)

// snapshot is the immutable contents swapped in by Store.Replace. Zones are
// kept in a slice sorted by descending label count so FindZone can scan for
// the longest-suffix (closest-enclosing) match without a lock.
type snapshot struct {
	byOrigin map[string]*Zone
	ordered  []*Zone
	loadedAt time.Time
}

// Store holds every loaded zone and answers closest-enclosing-zone lookups.
// Reloads build a full new snapshot and swap it in atomically; readers that
// already hold a snapshot keep using it until they finish, per the
// no-locks-on-the-read-path concurrency model.
type Store struct {
	current atomic.Pointer[snapshot]
	clock   clock.Clock
}

// NewStore returns an empty Store. Call Replace to load zones into it.
func NewStore(c clock.Clock) *Store {
	if c == nil {
		c = clock.RealClock{}
	}
	s := &Store{clock: c}
	s.current.Store(&snapshot{byOrigin: map[string]*Zone{}})
	return s
}

// Replace swaps in a complete new set of zones, replacing whatever was
// loaded before. It never mutates the previous snapshot.
func (s *Store) Replace(zs []*Zone) {
	snap := &snapshot{
		byOrigin: make(map[string]*Zone, len(zs)),
		ordered:  make([]*Zone, len(zs)),
		loadedAt: s.clock.Now(),
	}
	copy(snap.ordered, zs)
	for _, z := range zs {
		snap.byOrigin[z.Origin()] = z
	}
	sort.Slice(snap.ordered, func(i, j int) bool {
		return dnsname.LabelCount(snap.ordered[i].Origin()) > dnsname.LabelCount(snap.ordered[j].Origin())
	})
	s.current.Store(snap)
}

// FindZone returns the zone whose origin is the longest proper suffix of
// qname (origin-equal counts), or nil if no loaded zone encloses qname.
func (s *Store) FindZone(qname string) (*Zone, bool) {
	snap := s.current.Load()
	qname = dnsname.Canonical(qname)
	for _, z := range snap.ordered {
		if dnsname.IsSubdomain(qname, z.Origin()) {
			return z, true
		}
	}
	return nil, false
}

// Zones returns the origin names of every currently loaded zone.
func (s *Store) Zones() []string {
	snap := s.current.Load()
	out := make([]string, 0, len(snap.ordered))
	for _, z := range snap.ordered {
		out = append(out, z.Origin())
	}
	return out
}

// Count returns the number of currently loaded zones.
func (s *Store) Count() int {
	return len(s.current.Load().ordered)
}

// LoadedAt returns the time of the most recent Replace.
func (s *Store) LoadedAt() time.Time {
	return s.current.Load().loadedAt
}
