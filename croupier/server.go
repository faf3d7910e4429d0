package croupier

import (
	"fmt"
	"net"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"cardtable/logging"
	"cardtable/security"
	"cardtable/wire"
)

// Server is the croupier: it registers identities, hosts tables and relays
// peer payloads without inspecting them. All registry and table state is
// owned by the single run loop; reader goroutines only feed framed
// envelopes into the inbox, so no handler ever races another.
type Server struct {
	trust *security.TrustStore
	log   *logrus.Entry

	ln     net.Listener
	inbox  chan event
	quit   chan struct{}
	nextID atomic.Uint64

	preregs map[uint64]*connection
	clients map[uint64]*client
	tables  map[string]*Table
}

type eventKind int

const (
	evConnected eventKind = iota
	evFrame
	evClosed
)

type event struct {
	conn  *connection
	kind  eventKind
	frame []byte
}

// connection is a pre-registration record: socket plus the fresh server
// session generated for it at accept time.
type connection struct {
	id      uint64
	sock    net.Conn
	session *security.Session
}

// client is a connection promoted by a successful register.
type client struct {
	*connection
	name  string
	cert  []byte
	chain [][]byte
	peer  security.PeerParams
}

func NewServer(trust *security.TrustStore) *Server {
	return &Server{
		trust:   trust,
		log:     logging.Log.WithField("component", "croupier"),
		inbox:   make(chan event, 64),
		quit:    make(chan struct{}),
		preregs: make(map[uint64]*connection),
		clients: make(map[uint64]*client),
		tables:  make(map[string]*Table),
	}
}

// Serve accepts connections on ln and runs the dispatch loop until Close.
func (s *Server) Serve(ln net.Listener) error {
	s.ln = ln
	go s.acceptLoop()
	s.run()
	return nil
}

// Close stops the listener and the dispatch loop.
func (s *Server) Close() error {
	close(s.quit)
	if s.ln != nil {
		return s.ln.Close()
	}
	return nil
}

func (s *Server) acceptLoop() {
	for {
		sock, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.quit:
			default:
				s.log.WithError(err).Error("accept failed")
			}
			return
		}
		session, err := security.NewSession()
		if err != nil {
			s.log.WithError(err).Error("could not create server session")
			sock.Close()
			continue
		}
		conn := &connection{
			id:      s.nextID.Add(1),
			sock:    sock,
			session: session,
		}
		select {
		case s.inbox <- event{conn: conn, kind: evConnected}:
		case <-s.quit:
			sock.Close()
			return
		}
		go s.readLoop(conn)
	}
}

func (s *Server) readLoop(conn *connection) {
	framer := wire.NewFramer(conn.sock)
	for {
		frame, err := framer.Next()
		if err != nil {
			select {
			case s.inbox <- event{conn: conn, kind: evClosed}:
			case <-s.quit:
			}
			return
		}
		select {
		case s.inbox <- event{conn: conn, kind: evFrame, frame: frame}:
		case <-s.quit:
			return
		}
	}
}

func (s *Server) run() {
	for {
		select {
		case ev := <-s.inbox:
			switch ev.kind {
			case evConnected:
				s.handleConnected(ev.conn)
			case evFrame:
				s.handleFrame(ev.conn, ev.frame)
			case evClosed:
				s.handleClosed(ev.conn)
			}
		case <-s.quit:
			return
		}
	}
}

func (s *Server) handleConnected(conn *connection) {
	s.preregs[conn.id] = conn
	params, err := conn.session.Params()
	if err != nil {
		s.log.WithError(err).Error("could not share server session")
		conn.sock.Close()
		return
	}
	hello := wire.ServerHello{PubKey: params.PubKey, IV: params.IV}
	if err := conn.send(hello); err != nil {
		s.log.WithError(err).Warn("could not send server hello")
	}
	s.log.WithField("remote", conn.sock.RemoteAddr()).Info("connection accepted")
}

func (s *Server) handleClosed(conn *connection) {
	conn.sock.Close()
	if _, ok := s.preregs[conn.id]; ok {
		delete(s.preregs, conn.id)
		s.log.Info("unregistered connection closed")
		return
	}
	c, ok := s.clients[conn.id]
	if !ok {
		return
	}
	delete(s.clients, conn.id)
	s.log.WithField("name", c.name).Info("client disconnected")
	s.dropFromTables(c)
}

// dropFromTables enforces the recovery policy: a seat can only be vacated
// while the table is still open; any later departure aborts the table.
func (s *Server) dropFromTables(c *client) {
	for id, t := range s.tables {
		seat := t.SeatOf(c)
		if seat < 0 {
			continue
		}
		if t.State == StateOpen {
			t.RemovePlayer(seat)
			s.broadcastUpdate(t, wire.TableUpdate{Update: wire.UpdatePlayerLeft, PlayerNum: seat})
			if len(t.Players) == 0 {
				delete(s.tables, id)
			}
			continue
		}
		s.abortTable(t, "player left")
	}
}

func (s *Server) abortTable(t *Table, reason string) {
	t.State = StateAborted
	s.log.WithFields(logrus.Fields{"table": t.ID, "reason": reason}).Warn("table aborted")
	s.broadcastUpdate(t, wire.TableUpdate{Update: wire.UpdateTableState, TableState: string(StateAborted)})
	delete(s.tables, t.ID)
}

// send signs msg with the connection's server session and writes one frame.
func (c *connection) send(msg any) error {
	env, err := wire.Seal(msg, c.session.Sign)
	if err != nil {
		return err
	}
	frame, err := env.Frame()
	if err != nil {
		return err
	}
	if _, err := c.sock.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

func (s *Server) sendTo(c *client, msg any) {
	if err := c.send(msg); err != nil {
		s.log.WithError(err).WithField("name", c.name).Warn("could not send to client")
	}
}

func (s *Server) sendError(c *client, text string) {
	s.sendTo(c, wire.ErrorReply{Error: text})
}

func (s *Server) broadcastUpdate(t *Table, update wire.TableUpdate) {
	msg := wire.TableUpdateMsg{TableUpdate: update}
	for _, p := range t.Players {
		s.sendTo(p.Client, msg)
	}
}
