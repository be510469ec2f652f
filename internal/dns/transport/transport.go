// Package transport provides the UDP and TCP listeners that accept wire-format
// DNS queries and hand them to a respond.Builder for resolution and
// encoding. Both listeners share the same graceful-shutdown shape: a
// running flag guarded by a mutex, a stop channel, and a context passed
// down from the caller.
package transport

import (
	"context"

	"github.com/miekg/dns"

	"github.com/shuque/adnsd/internal/dns/respond"
)

// Handler builds a wire-ready reply to a parsed query for a given
// transport. respond.Builder satisfies this interface.
type Handler interface {
	Handle(query *dns.Msg, transport respond.Transport) []byte
}

// Listener is a single network transport the server can accept queries on.
type Listener interface {
	Start(ctx context.Context) error
	Stop() error
	Address() string
}
