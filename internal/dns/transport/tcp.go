package transport

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"

	"context"

	"github.com/miekg/dns"

	"github.com/shuque/adnsd/internal/dns/common/log"
	"github.com/shuque/adnsd/internal/dns/respond"
)

// TCPListener accepts DNS queries over TCP, where each message is framed
// with a 2-byte big-endian length prefix (RFC 1035 §4.2.2). One goroutine
// per connection reads and answers messages until the peer closes or the
// listener is stopped.
type TCPListener struct {
	addr    string
	ln      net.Listener
	handler Handler
	logger  log.Logger

	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
}

// NewTCPListener returns a TCP listener bound to addr once Start is called.
func NewTCPListener(addr string, handler Handler, logger log.Logger) *TCPListener {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &TCPListener{
		addr:    addr,
		handler: handler,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}
}

// Start binds the TCP socket and begins accepting connections in the
// background.
func (l *TCPListener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return fmt.Errorf("tcp listener already running")
	}

	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return fmt.Errorf("bind tcp socket on %s: %w", l.addr, err)
	}

	l.ln = ln
	l.addr = ln.Addr().String()
	l.running = true
	l.logger.Info(map[string]any{"transport": "tcp", "address": l.addr}, "dns transport started")

	go l.acceptLoop(ctx)
	return nil
}

// Stop closes the listening socket, causing acceptLoop to unwind.
func (l *TCPListener) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running {
		return nil
	}
	close(l.stopCh)

	err := l.ln.Close()
	l.running = false
	l.logger.Info(map[string]any{"transport": "tcp", "address": l.addr}, "dns transport stopped")
	return err
}

// Address returns the address this listener is bound to.
func (l *TCPListener) Address() string {
	return l.addr
}

func (l *TCPListener) acceptLoop(ctx context.Context) {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			l.mu.RLock()
			running := l.running
			l.mu.RUnlock()
			if !running {
				return
			}
			l.logger.Warn(map[string]any{"error": err.Error()}, "failed to accept tcp connection")
			continue
		}
		go l.serveConn(ctx, conn)
	}
}

// serveConn reads length-prefixed messages off conn until it is closed,
// the listener is stopped, or a framing error occurs. Reads are
// incremental: a message's length prefix may arrive before the full
// message body does, and io.ReadFull blocks until the rest arrives.
func (l *TCPListener) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-l.stopCh:
			conn.Close()
		case <-done:
		}
	}()

	for {
		var lenBuf [2]byte
		if _, err := io.ReadFull(conn, lenBuf[:]); err != nil {
			return
		}
		msgLen := binary.BigEndian.Uint16(lenBuf[:])

		body := make([]byte, msgLen)
		if _, err := io.ReadFull(conn, body); err != nil {
			l.logger.Warn(map[string]any{"error": err.Error()}, "failed to read tcp message body")
			return
		}

		query := new(dns.Msg)
		if err := query.Unpack(body); err != nil {
			l.logger.Warn(map[string]any{"error": err.Error()}, "failed to unpack tcp dns query, closing connection")
			return
		}
		if len(query.Question) != 1 {
			l.logger.Warn(nil, "dropping tcp query with question count != 1, closing connection")
			return
		}

		reply := l.handler.Handle(query, respond.TCP)
		if _, err := conn.Write(reply); err != nil {
			l.logger.Error(map[string]any{"error": err.Error()}, "failed to write tcp dns response")
			return
		}
	}
}
