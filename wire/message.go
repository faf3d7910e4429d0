package wire

import (
	"encoding/json"
	"fmt"

	"cardtable/security"
)

// Intent tags every client request.
type Intent string

const (
	IntentRegister        Intent = "register"
	IntentGetTableList    Intent = "get_table_list"
	IntentCreateTable     Intent = "create_table"
	IntentJoinTable       Intent = "join_table"
	IntentConfirmPlayers  Intent = "confirm_players"
	IntentLeaveTable      Intent = "leave_table"
	IntentRelay           Intent = "relay"
	IntentValidatePreGame Intent = "validate_pre_game"
	IntentPlay            Intent = "play"
)

// Register is the first message on a connection, signed with the card key.
type Register struct {
	Intent      Intent   `json:"intent"`
	Name        string   `json:"name"`
	PubKey      []byte   `json:"pub_key"`
	IV          []byte   `json:"iv"`
	Certificate []byte   `json:"certificate"`
	Chain       [][]byte `json:"chain"`
}

type GetTableList struct {
	Intent Intent `json:"intent"`
}

type CreateTable struct {
	Intent Intent `json:"intent"`
	Title  string `json:"title,omitempty"`
}

type JoinTable struct {
	Intent  Intent `json:"intent"`
	TableID string `json:"table_id"`
}

// Identity names one opponent inside a signed confirmation statement.
type Identity struct {
	Num  int    `json:"num"`
	Name string `json:"name"`
}

type ConfirmPlayers struct {
	Intent     Intent     `json:"intent"`
	TableID    string     `json:"table_id"`
	Identities []Identity `json:"identities"`
}

type LeaveTable struct {
	Intent  Intent `json:"intent"`
	TableID string `json:"table_id"`
}

// Relay asks the server to forward an opaque payload to a seat. The server
// never interprets Relay.Relay.
type Relay struct {
	Intent  Intent          `json:"intent"`
	TableID string          `json:"table_id"`
	RelayTo int             `json:"relay_to"`
	Relay   json.RawMessage `json:"relay"`
}

// DeckKey is the symmetric key a seat layered onto the passing deck,
// revealed only after all commitments are in.
type DeckKey struct {
	Key []byte `json:"pwd"`
	IV  []byte `json:"iv"`
}

// PassingData is the shared protocol state every seat accumulates during
// the commit and key-disclosure rings; keys are decimal seat numbers.
type PassingData struct {
	Commits  map[string]security.Commitment `json:"commits"`
	DeckKeys map[string]DeckKey             `json:"deck_keys"`
}

func NewPassingData() PassingData {
	return PassingData{
		Commits:  make(map[string]security.Commitment),
		DeckKeys: make(map[string]DeckKey),
	}
}

// Merge folds entries of other into d, never overwriting existing seats.
func (d PassingData) Merge(other PassingData) {
	for seat, c := range other.Commits {
		if _, ok := d.Commits[seat]; !ok {
			d.Commits[seat] = c
		}
	}
	for seat, k := range other.DeckKeys {
		if _, ok := d.DeckKeys[seat]; !ok {
			d.DeckKeys[seat] = k
		}
	}
}

type ValidatePreGame struct {
	Intent  Intent      `json:"intent"`
	TableID string      `json:"table_id"`
	Data    PassingData `json:"data"`
}

type Play struct {
	Intent  Intent `json:"intent"`
	TableID string `json:"table_id"`
	Card    string `json:"card"`
}

// DecodeIntent extracts the intent tag from a raw message.
func DecodeIntent(raw []byte) (Intent, error) {
	var probe struct {
		Intent Intent `json:"intent"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return "", fmt.Errorf("decode intent: %w", err)
	}
	if probe.Intent == "" {
		return "", fmt.Errorf("message has no intent")
	}
	return probe.Intent, nil
}

// DecodeRequest turns a raw message into the typed struct for its intent.
// Unknown intents are a single well-typed error, not a silent drop.
func DecodeRequest(raw []byte) (any, error) {
	intent, err := DecodeIntent(raw)
	if err != nil {
		return nil, err
	}
	var msg any
	switch intent {
	case IntentRegister:
		msg = &Register{}
	case IntentGetTableList:
		msg = &GetTableList{}
	case IntentCreateTable:
		msg = &CreateTable{}
	case IntentJoinTable:
		msg = &JoinTable{}
	case IntentConfirmPlayers:
		msg = &ConfirmPlayers{}
	case IntentLeaveTable:
		msg = &LeaveTable{}
	case IntentRelay:
		msg = &Relay{}
	case IntentValidatePreGame:
		msg = &ValidatePreGame{}
	case IntentPlay:
		msg = &Play{}
	default:
		return nil, fmt.Errorf("unknown intent %q", intent)
	}
	if err := json.Unmarshal(raw, msg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", intent, err)
	}
	return msg, nil
}
