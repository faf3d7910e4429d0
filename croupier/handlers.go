package croupier

import (
	"encoding/json"
	"strconv"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"cardtable/deck"
	"cardtable/game"
	"cardtable/security"
	"cardtable/wire"
)

func (s *Server) handleFrame(conn *connection, frame []byte) {
	env, err := wire.ParseEnvelope(frame)
	if err != nil {
		// Unparseable frames are fatal for the session, not the server.
		s.log.WithError(err).Warn("dropping connection on invalid frame")
		conn.sock.Close()
		return
	}

	if _, pending := s.preregs[conn.id]; pending {
		s.handleRegister(conn, env)
		return
	}

	c, ok := s.clients[conn.id]
	if !ok {
		return
	}

	intent, err := wire.DecodeIntent(env.Message)
	if err != nil {
		s.log.WithError(err).Warn("dropping connection on invalid message")
		conn.sock.Close()
		return
	}

	// The table-list query is the only intent exempt from verification.
	if intent == wire.IntentGetTableList {
		s.handleTableList(c)
		return
	}

	if err := security.VerifySessionSignature(env.Message, env.Signature, c.peer.PubKey); err != nil {
		s.log.WithFields(logrus.Fields{"name": c.name, "intent": intent}).Warn("invalid signature, message discarded")
		return
	}

	msg, err := wire.DecodeRequest(env.Message)
	if err != nil {
		s.log.WithError(err).Warn("dropping connection on undecodable request")
		conn.sock.Close()
		return
	}

	switch m := msg.(type) {
	case *wire.CreateTable:
		s.handleCreateTable(c, m)
	case *wire.JoinTable:
		s.handleJoinTable(c, m)
	case *wire.ConfirmPlayers:
		s.handleConfirmPlayers(c, m)
	case *wire.LeaveTable:
		s.handleLeaveTable(c, m)
	case *wire.Relay:
		s.handleRelay(c, m)
	case *wire.ValidatePreGame:
		s.handleValidatePreGame(c, m)
	case *wire.Play:
		s.handlePlay(c, m, env)
	case *wire.Register:
		s.sendError(c, "already registered")
	default:
		s.sendError(c, "unsupported intent")
	}
}

// handleRegister promotes a pre-registration. Identity failures are
// silently dropped: the connection stays open but unauthenticated.
func (s *Server) handleRegister(conn *connection, env wire.Envelope) {
	var reg wire.Register
	if err := json.Unmarshal(env.Message, &reg); err != nil || reg.Intent != wire.IntentRegister {
		s.log.Warn("first message was not a register, dropping pre-registration")
		delete(s.preregs, conn.id)
		return
	}

	if err := s.trust.ValidateChain(reg.Certificate, reg.Chain); err != nil {
		s.log.WithError(err).WithField("name", reg.Name).Warn("certificate could not be verified")
		delete(s.preregs, conn.id)
		return
	}

	if err := security.VerifyCardSignature(env.Message, env.Signature, reg.Certificate); err != nil {
		s.log.WithError(err).WithField("name", reg.Name).Warn("registration signature could not be verified")
		delete(s.preregs, conn.id)
		return
	}

	delete(s.preregs, conn.id)
	s.clients[conn.id] = &client{
		connection: conn,
		name:       reg.Name,
		cert:       reg.Certificate,
		chain:      reg.Chain,
		peer:       security.PeerParams{PubKey: reg.PubKey, IV: reg.IV},
	}
	s.log.WithField("name", reg.Name).Info("client registered")
}

func (s *Server) handleTableList(c *client) {
	list := wire.TableList{Tables: []wire.TableSummary{}}
	for _, t := range s.tables {
		if t.State == StateOpen {
			list.Tables = append(list.Tables, t.Summary())
		}
	}
	s.sendTo(c, list)
}

func (s *Server) handleCreateTable(c *client, msg *wire.CreateTable) {
	t := NewTable(uuid.NewString(), msg.Title)
	if err := t.AddPlayer(c); err != nil {
		s.sendError(c, err.Error())
		return
	}
	s.tables[t.ID] = t
	s.log.WithFields(logrus.Fields{"table": t.ID, "name": c.name}).Info("table created")
	s.sendTo(c, wire.TableInfoReply{TableInfo: t.Info(c)})
}

func (s *Server) handleJoinTable(c *client, msg *wire.JoinTable) {
	t, ok := s.tables[msg.TableID]
	if !ok {
		s.sendError(c, "Table not found")
		return
	}
	if err := t.AddPlayer(c); err != nil {
		s.sendError(c, err.Error())
		return
	}
	s.sendTo(c, wire.TableInfoReply{TableInfo: t.Info(c)})

	// Everyone already seated learns about the newcomer.
	joined := t.Players[len(t.Players)-1]
	info := wire.PlayerInfo{Num: joined.Num, Name: c.name, PubKey: c.peer.PubKey, IV: c.peer.IV}
	for _, p := range t.Players[:len(t.Players)-1] {
		s.sendTo(p.Client, wire.TableUpdateMsg{TableUpdate: wire.TableUpdate{
			Update:    wire.UpdateNewPlayer,
			NewPlayer: &info,
		}})
	}

	if t.IsFull() {
		t.State = StateFull
		s.broadcastUpdate(t, wire.TableUpdate{Update: wire.UpdateTableState, TableState: string(StateFull)})
	}
}

func (s *Server) handleConfirmPlayers(c *client, msg *wire.ConfirmPlayers) {
	t, ok := s.tables[msg.TableID]
	if !ok {
		s.sendError(c, "Table not found")
		return
	}
	seat, err := t.Confirm(c)
	if err != nil {
		s.sendError(c, err.Error())
		return
	}
	s.broadcastUpdate(t, wire.TableUpdate{Update: wire.UpdatePlayerConfirmation, PlayerNum: seat})

	if t.AllConfirmed() {
		t.State = StateShuffle
		s.broadcastUpdate(t, wire.TableUpdate{Update: wire.UpdateTableState, TableState: string(StateShuffle)})
		s.dealDeck(t)
	}
}

// dealDeck emits a fresh plaintext deck to seat 0, opening the shuffle.
func (s *Server) dealDeck(t *Table) {
	payload, err := json.Marshal(wire.DeckPayload{Deck: deck.NewPassing(deck.New())})
	if err != nil {
		s.log.WithError(err).Error("could not marshal deck")
		return
	}
	s.log.WithField("table", t.ID).Info("dealing fresh deck to seat 0")
	s.sendTo(t.Players[0].Client, wire.Relayed{From: wire.FromServer, Relayed: payload})
}

func (s *Server) handleLeaveTable(c *client, msg *wire.LeaveTable) {
	t, ok := s.tables[msg.TableID]
	if !ok {
		s.sendError(c, "Table not found")
		return
	}
	seat := t.SeatOf(c)
	if seat < 0 {
		s.sendError(c, errNotSeated.Error())
		return
	}
	if t.State != StateOpen {
		s.sendError(c, errBadState.Error())
		return
	}
	t.RemovePlayer(seat)
	s.broadcastUpdate(t, wire.TableUpdate{Update: wire.UpdatePlayerLeft, PlayerNum: seat})
	if len(t.Players) == 0 {
		delete(s.tables, t.ID)
	}
}

// handleRelay forwards the payload verbatim; the relay never decrypts it.
func (s *Server) handleRelay(c *client, msg *wire.Relay) {
	t, ok := s.tables[msg.TableID]
	if !ok {
		s.sendError(c, "Table not found")
		return
	}
	seat := t.SeatOf(c)
	if seat < 0 {
		s.sendError(c, "You are not in this table")
		return
	}
	if t.State != StateFull && t.State != StateShuffle {
		s.sendError(c, errBadState.Error())
		return
	}
	if msg.RelayTo < 0 || msg.RelayTo >= len(t.Players) {
		s.sendError(c, "No such seat")
		return
	}
	s.sendTo(t.Players[msg.RelayTo].Client, wire.Relayed{
		From:    strconv.Itoa(seat),
		Relayed: msg.Relay,
	})
}

func (s *Server) handleValidatePreGame(c *client, msg *wire.ValidatePreGame) {
	t, ok := s.tables[msg.TableID]
	if !ok {
		s.sendError(c, "Table not found")
		return
	}
	seat := t.SeatOf(c)
	if seat < 0 {
		s.sendError(c, errNotSeated.Error())
		return
	}
	if err := t.AddValidation(seat, msg.Data); err != nil {
		s.sendError(c, err.Error())
		return
	}
	if !t.ValidationsComplete() {
		return
	}
	if !t.ValidationsAgree() {
		s.abortTable(t, "pre-game validation mismatch")
		return
	}
	t.State = StateGame
	t.Engine = game.NewHearts()
	s.log.WithField("table", t.ID).Info("pre-game data validated, game starting")
	s.broadcastUpdate(t, wire.TableUpdate{Update: wire.UpdateTableState, TableState: string(StateGame)})
}

func (s *Server) handlePlay(c *client, msg *wire.Play, env wire.Envelope) {
	t, ok := s.tables[msg.TableID]
	if !ok {
		s.sendError(c, "Table not found")
		return
	}
	if t.State != StateGame {
		s.sendError(c, "Game not started")
		return
	}
	seat := t.SeatOf(c)
	if seat < 0 {
		s.sendError(c, errNotSeated.Error())
		return
	}
	if err := t.Engine.ValidPlay(seat, msg.Card); err != nil {
		s.sendError(c, err.Error())
		return
	}
	t.Engine.NewPlay(seat, msg.Card)

	// The signed envelope travels along as proof of who played what.
	proof, err := json.Marshal(env)
	if err != nil {
		proof = nil
	}
	for _, p := range t.Players {
		s.sendTo(p.Client, wire.PlayBroadcast{Type: wire.TypePlay, From: seat, Card: msg.Card, Proof: proof})
	}

	if t.Engine.FullTrick() {
		winner, points := t.Engine.TrickOutcome()
		for _, p := range t.Players {
			s.sendTo(p.Client, wire.TrickOutcome{Type: wire.TypeTrickOutcome, Player: winner, Points: points})
		}
	}

	if t.Engine.Over() {
		winners := t.Engine.Outcome()
		for _, p := range t.Players {
			s.sendTo(p.Client, wire.GameOutcome{Type: wire.TypeGameOutcome, Winners: winners})
		}
		s.log.WithFields(logrus.Fields{"table": t.ID, "winners": winners}).Info("game over")
		delete(s.tables, t.ID)
	}
}
