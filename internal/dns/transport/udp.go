package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/miekg/dns"

	"github.com/shuque/adnsd/internal/dns/common/log"
	"github.com/shuque/adnsd/internal/dns/respond"
)

// UDPListener accepts DNS queries over UDP (RFC 1035). Each datagram is
// handled on its own goroutine so a slow or stuck zone walk never stalls
// the receive loop.
type UDPListener struct {
	addr    string
	conn    *net.UDPConn
	handler Handler
	logger  log.Logger

	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
}

// NewUDPListener returns a UDP listener bound to addr once Start is called.
func NewUDPListener(addr string, handler Handler, logger log.Logger) *UDPListener {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &UDPListener{
		addr:    addr,
		handler: handler,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}
}

// Start binds the UDP socket and begins the receive loop in the background.
func (l *UDPListener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return fmt.Errorf("udp listener already running")
	}

	udpAddr, err := net.ResolveUDPAddr("udp", l.addr)
	if err != nil {
		return fmt.Errorf("resolve udp address %s: %w", l.addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("bind udp socket on %s: %w", l.addr, err)
	}

	l.conn = conn
	l.addr = conn.LocalAddr().String()
	l.running = true
	l.logger.Info(map[string]any{"transport": "udp", "address": l.addr}, "dns transport started")

	go l.listenLoop(ctx)
	return nil
}

// Stop closes the socket and returns; it does not wait for the receive loop
// to exit.
func (l *UDPListener) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running {
		return nil
	}
	close(l.stopCh)

	var err error
	if l.conn != nil {
		err = l.conn.Close()
	}
	l.running = false
	l.logger.Info(map[string]any{"transport": "udp", "address": l.addr}, "dns transport stopped")
	return err
}

// Address returns the address this listener is bound to.
func (l *UDPListener) Address() string {
	return l.addr
}

// listenLoop reads datagrams until the context is cancelled or Stop is
// called. The per-read buffer is sized to the largest EDNS payload this
// server will ever accept, not the legacy 512-byte minimum: a larger
// incoming query is simply truncated by net.UDPConn, which matches how an
// oversized client query is handled in practice.
func (l *UDPListener) listenLoop(ctx context.Context) {
	buf := make([]byte, 65535)
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stopCh:
			return
		default:
		}

		n, clientAddr, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			l.mu.RLock()
			running := l.running
			l.mu.RUnlock()
			if !running {
				return
			}
			l.logger.Warn(map[string]any{"error": err.Error()}, "failed to read udp packet")
			continue
		}

		packet := make([]byte, n)
		copy(packet, buf[:n])
		go l.handlePacket(packet, clientAddr)
	}
}

func (l *UDPListener) handlePacket(data []byte, clientAddr *net.UDPAddr) {
	query := new(dns.Msg)
	if err := query.Unpack(data); err != nil {
		l.logger.Warn(map[string]any{
			"client": clientAddr.String(),
			"error":  err.Error(),
		}, "failed to unpack dns query, dropping")
		return
	}
	if len(query.Question) != 1 {
		l.logger.Warn(map[string]any{"client": clientAddr.String()}, "dropping query with question count != 1")
		return
	}

	reply := l.handler.Handle(query, respond.UDP)

	if _, err := l.conn.WriteToUDP(reply, clientAddr); err != nil {
		l.logger.Error(map[string]any{
			"client": clientAddr.String(),
			"error":  err.Error(),
		}, "failed to send dns response")
	}
}
