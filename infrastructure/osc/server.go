package osc

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/hypebeast/go-osc/osc"
	"github.com/rs/zerolog"
)

// HandlerFunc handles one incoming OSC message.
type HandlerFunc func(msg *osc.Message)

// Server receives commands over a UDP socket and dispatches them to
// registered handlers. Handlers run one at a time.
type Server struct {
	dispatcher *osc.StandardDispatcher
	logger     *slog.Logger
	trace      zerolog.Logger
	addr       string

	mu        sync.Mutex // serializes handler execution
	conn      net.PacketConn
	closeOnce sync.Once
}

// NewServer creates an OSC server for addr. Register handlers with Handle,
// bind with Listen, then Serve.
func NewServer(addr string, logger *slog.Logger, trace zerolog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		dispatcher: osc.NewStandardDispatcher(),
		logger:     logger,
		trace:      trace,
		addr:       addr,
	}
}

// Handle registers a handler for one address. Registration must happen
// before Serve.
func (s *Server) Handle(addr string, handler HandlerFunc) error {
	return s.dispatcher.AddMsgHandler(addr, func(msg *osc.Message) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.trace.Trace().Str("addr", msg.Address).Str("packet", msg.String()).Msg("recv")
		handler(msg)
	})
}

// Listen binds the UDP socket.
func (s *Server) Listen() error {
	conn, err := net.ListenPacket("udp", s.addr)
	if err != nil {
		return fmt.Errorf("osc listen on %s: %w", s.addr, err)
	}
	s.conn = conn
	return nil
}

// Serve dispatches incoming packets until the socket closes. Listen must
// have succeeded first. Returns nil after Close.
func (s *Server) Serve() error {
	if s.conn == nil {
		return errors.New("osc serve: socket not bound, call Listen first")
	}

	server := &osc.Server{Addr: s.addr, Dispatcher: s.dispatcher}
	s.logger.Info("starting OSC server", "addr", s.addr)
	if err := server.Serve(s.conn); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("osc server error: %w", err)
	}
	return nil
}

// Close closes the socket; an in-flight Serve returns once its current read
// fails. Safe to call more than once.
func (s *Server) Close() error {
	if s.conn == nil {
		return nil
	}

	var err error
	s.closeOnce.Do(func() {
		s.logger.Info("shutting down OSC server")
		err = s.conn.Close()
	})
	return err
}

// Addr returns the bound address once Listen succeeds, the configured
// address before that. The two differ when the configured port is 0.
func (s *Server) Addr() string {
	if s.conn != nil {
		return s.conn.LocalAddr().String()
	}
	return s.addr
}
