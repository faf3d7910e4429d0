package client

import (
	"encoding/json"
	"fmt"
	"net"

	"github.com/sirupsen/logrus"

	"cardtable/logging"
	"cardtable/security"
	"cardtable/wire"
)

// Client is one authenticated connection to the croupier. Every method
// that waits for a reply goes through the deferred-replay buffer, so
// broadcasts that arrive interleaved with an expected reply are never
// lost and never misread.
type Client struct {
	card    security.IdentityProvider
	session *security.Session
	params  security.PeerParams
	server  security.PeerParams

	conn   net.Conn
	framer *wire.Framer
	log    *logrus.Entry

	// Messages read while waiting for something else. Consulted before
	// the socket on every wait.
	deferred []json.RawMessage
}

// Dial connects, reads the server hello and sets up a fresh session. The
// hello is signed with the key it carries, which pins the server's
// channel parameters for the rest of the connection.
func Dial(addr string, card security.IdentityProvider) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial croupier: %w", err)
	}
	c := &Client{
		card:   card,
		conn:   conn,
		framer: wire.NewFramer(conn),
		log:    logging.Log.WithField("component", "client"),
	}
	frame, err := c.framer.Next()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("read server hello: %w", err)
	}
	env, err := wire.ParseEnvelope(frame)
	if err != nil {
		conn.Close()
		return nil, err
	}
	var hello wire.ServerHello
	if err := json.Unmarshal(env.Message, &hello); err != nil {
		conn.Close()
		return nil, fmt.Errorf("decode server hello: %w", err)
	}
	if err := security.VerifySessionSignature(env.Message, env.Signature, hello.PubKey); err != nil {
		conn.Close()
		return nil, fmt.Errorf("server hello: %w", err)
	}
	c.server = security.PeerParams{PubKey: hello.PubKey, IV: hello.IV}

	c.session, err = security.NewSession()
	if err != nil {
		conn.Close()
		return nil, err
	}
	c.params, err = c.session.Params()
	if err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Params returns the session parameters this client registered with.
func (c *Client) Params() security.PeerParams {
	return c.params
}

func (c *Client) Name() string {
	return c.card.Name()
}

func (c *Client) send(msg any, signer func([]byte) ([]byte, error)) error {
	env, err := wire.Seal(msg, signer)
	if err != nil {
		return err
	}
	frame, err := env.Frame()
	if err != nil {
		return err
	}
	if _, err := c.conn.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// read returns the next verified server message.
func (c *Client) read() (json.RawMessage, error) {
	frame, err := c.framer.Next()
	if err != nil {
		return nil, err
	}
	env, err := wire.ParseEnvelope(frame)
	if err != nil {
		return nil, err
	}
	if err := security.VerifySessionSignature(env.Message, env.Signature, c.server.PubKey); err != nil {
		return nil, fmt.Errorf("server message: %w", err)
	}
	return env.Message, nil
}

func hasField(raw json.RawMessage, key string) bool {
	var fields map[string]json.RawMessage
	if json.Unmarshal(raw, &fields) != nil {
		return false
	}
	_, ok := fields[key]
	return ok
}

func hasAnyField(raw json.RawMessage, keys []string) bool {
	for _, key := range keys {
		if hasField(raw, key) {
			return true
		}
	}
	return false
}

// await returns the next message carrying the given top-level field,
// deferring everything else. An error reply fails the wait instead of
// being deferred.
func (c *Client) await(key string) (json.RawMessage, error) {
	return c.awaitAny(key)
}

// awaitAny is await over several candidate fields, returning the first
// message carrying any of them.
func (c *Client) awaitAny(keys ...string) (json.RawMessage, error) {
	for i, raw := range c.deferred {
		if hasAnyField(raw, keys) {
			c.deferred = append(c.deferred[:i], c.deferred[i+1:]...)
			return raw, nil
		}
	}
	for {
		raw, err := c.read()
		if err != nil {
			return nil, err
		}
		if hasAnyField(raw, keys) {
			return raw, nil
		}
		if hasField(raw, "error") {
			var reply wire.ErrorReply
			if err := json.Unmarshal(raw, &reply); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("croupier: %s", reply.Error)
		}
		c.deferred = append(c.deferred, raw)
	}
}

// Register announces the identity. The message is signed with the card
// key so the server can tie the session parameters to the certificate.
// There is no acknowledgement: a rejected registration shows up as the
// absence of any further service.
func (c *Client) Register() error {
	msg := wire.Register{
		Intent:      wire.IntentRegister,
		Name:        c.card.Name(),
		PubKey:      c.params.PubKey,
		IV:          c.params.IV,
		Certificate: c.card.Certificate(),
		Chain:       c.card.Chain(),
	}
	return c.send(msg, c.card.Sign)
}

// TableList fetches the open tables. This is the one unsigned request.
func (c *Client) TableList() ([]wire.TableSummary, error) {
	if err := c.send(wire.GetTableList{Intent: wire.IntentGetTableList}, nil); err != nil {
		return nil, err
	}
	raw, err := c.await("table_list")
	if err != nil {
		return nil, err
	}
	var reply wire.TableList
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, err
	}
	return reply.Tables, nil
}

func (c *Client) CreateTable(title string) (wire.TableInfo, error) {
	if err := c.send(wire.CreateTable{Intent: wire.IntentCreateTable, Title: title}, c.session.Sign); err != nil {
		return wire.TableInfo{}, err
	}
	return c.awaitTableInfo()
}

func (c *Client) JoinTable(tableID string) (wire.TableInfo, error) {
	if err := c.send(wire.JoinTable{Intent: wire.IntentJoinTable, TableID: tableID}, c.session.Sign); err != nil {
		return wire.TableInfo{}, err
	}
	return c.awaitTableInfo()
}

func (c *Client) awaitTableInfo() (wire.TableInfo, error) {
	raw, err := c.await("table_info")
	if err != nil {
		return wire.TableInfo{}, err
	}
	var reply wire.TableInfoReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return wire.TableInfo{}, err
	}
	return reply.TableInfo, nil
}

// ConfirmPlayers signs off on the seated lineup. The reply is the
// confirmation broadcast, observed through NextUpdate.
func (c *Client) ConfirmPlayers(tableID string, identities []wire.Identity) error {
	return c.send(wire.ConfirmPlayers{
		Intent:     wire.IntentConfirmPlayers,
		TableID:    tableID,
		Identities: identities,
	}, c.session.Sign)
}

func (c *Client) LeaveTable(tableID string) error {
	return c.send(wire.LeaveTable{Intent: wire.IntentLeaveTable, TableID: tableID}, c.session.Sign)
}

// Relay forwards an opaque payload to a seat through the croupier.
func (c *Client) Relay(tableID string, to int, payload json.RawMessage) error {
	return c.send(wire.Relay{
		Intent:  wire.IntentRelay,
		TableID: tableID,
		RelayTo: to,
		Relay:   payload,
	}, c.session.Sign)
}

func (c *Client) ValidatePreGame(tableID string, data wire.PassingData) error {
	return c.send(wire.ValidatePreGame{
		Intent:  wire.IntentValidatePreGame,
		TableID: tableID,
		Data:    data,
	}, c.session.Sign)
}

func (c *Client) Play(tableID, card string) error {
	return c.send(wire.Play{Intent: wire.IntentPlay, TableID: tableID, Card: card}, c.session.Sign)
}

// NextUpdate blocks for the next table_update broadcast.
func (c *Client) NextUpdate() (wire.TableUpdate, error) {
	raw, err := c.await("table_update")
	if err != nil {
		return wire.TableUpdate{}, err
	}
	var msg wire.TableUpdateMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return wire.TableUpdate{}, err
	}
	return msg.TableUpdate, nil
}

// NextRelayed blocks for the next relayed peer payload.
func (c *Client) NextRelayed() (wire.Relayed, error) {
	raw, err := c.await("relayed")
	if err != nil {
		return wire.Relayed{}, err
	}
	var rel wire.Relayed
	if err := json.Unmarshal(raw, &rel); err != nil {
		return wire.Relayed{}, err
	}
	return rel, nil
}

// NextGameEvent blocks for the next in-game broadcast (play, trick or
// game outcome), returning it raw with its type tag.
func (c *Client) NextGameEvent() (string, json.RawMessage, error) {
	raw, err := c.await("type")
	if err != nil {
		return "", nil, err
	}
	var tagged struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &tagged); err != nil {
		return "", nil, err
	}
	return tagged.Type, raw, nil
}

// EncryptFor wraps a payload for one peer: the JSON plaintext is
// channel-encrypted and carried as a single JSON string. Receivers tell
// encrypted payloads from plaintext ones by that outer shape.
func (c *Client) EncryptFor(peer security.PeerParams, payload any) (json.RawMessage, error) {
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	ciphertext, err := c.session.Encrypt(peer, plaintext)
	if err != nil {
		return nil, err
	}
	return json.Marshal(ciphertext)
}

// DecryptFrom undoes EncryptFor for a payload relayed by the peer owning
// pubKey.
func (c *Client) DecryptFrom(pubKey []byte, payload json.RawMessage) (json.RawMessage, error) {
	var ciphertext []byte
	if err := json.Unmarshal(payload, &ciphertext); err != nil {
		return nil, fmt.Errorf("encrypted payload is not a string: %w", err)
	}
	return c.session.Decrypt(pubKey, ciphertext)
}
