package transport

import (
	"context"
	"fmt"

	"github.com/shuque/adnsd/internal/dns/common/log"
)

// Server runs the UDP and TCP listeners together, both backed by the same
// Handler, and reports a combined start/stop outcome. This mirrors the
// standard practice of serving DNS on the same port over both protocols:
// UDP for ordinary queries, TCP for truncated and zone-transfer-sized
// responses.
type Server struct {
	udp *UDPListener
	tcp *TCPListener
}

// NewServer builds the UDP and TCP listeners for addr, sharing handler.
func NewServer(addr string, handler Handler, logger log.Logger) *Server {
	return &Server{
		udp: NewUDPListener(addr, handler, logger),
		tcp: NewTCPListener(addr, handler, logger),
	}
}

// Start binds both listeners. If either fails, the other is stopped before
// the error is returned so a failed Start never leaks a running listener.
func (s *Server) Start(ctx context.Context) error {
	if err := s.udp.Start(ctx); err != nil {
		return fmt.Errorf("starting udp listener: %w", err)
	}
	if err := s.tcp.Start(ctx); err != nil {
		_ = s.udp.Stop()
		return fmt.Errorf("starting tcp listener: %w", err)
	}
	return nil
}

// Stop shuts down both listeners, returning the first error encountered
// (after attempting both).
func (s *Server) Stop() error {
	udpErr := s.udp.Stop()
	tcpErr := s.tcp.Stop()
	if udpErr != nil {
		return udpErr
	}
	return tcpErr
}

// Address returns the UDP listener's bound address. The TCP listener shares
// it when addr names an explicit port; with port 0 each listener gets its
// own OS-assigned port.
func (s *Server) Address() string {
	return s.udp.Address()
}
